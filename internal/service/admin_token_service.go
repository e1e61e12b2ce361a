package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthConfig configures the admin API credential and token issuance.
type AdminAuthConfig struct {
	// PasswordHash is the bcrypt hash of the admin password.
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

// JWTAdminTokenService issues and validates HS256 bearer tokens for the
// admin surface (team registration, lock diagnostics).
type JWTAdminTokenService struct {
	cfg AdminAuthConfig
}

// NewJWTAdminTokenService creates the admin token service.
func NewJWTAdminTokenService(cfg AdminAuthConfig) *JWTAdminTokenService {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	return &JWTAdminTokenService{cfg: cfg}
}

// CheckPassword verifies the admin password against the stored bcrypt hash.
func (s *JWTAdminTokenService) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)) == nil
}

// Generate issues a token for subject, returning it with its expiry.
func (s *JWTAdminTokenService) Generate(subject string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate parses a token and returns its subject.
func (s *JWTAdminTokenService) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid admin token")
	}
	return claims.Subject, nil
}
