package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// TeamService implements ports.TeamStore with a read-through TTL cache in
// front of the repository. Writes invalidate the cached snapshot so readers
// pick up the new record within one lookup.
type TeamService struct {
	repo  ports.TeamRepository
	cache *gocache.Cache
	log   zerolog.Logger
}

// NewTeamService creates a TeamService with the given cache TTL.
func NewTeamService(repo ports.TeamRepository, ttl time.Duration, log zerolog.Logger) *TeamService {
	return &TeamService{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
		log:   log,
	}
}

// Lookup returns the merchant snapshot for a slug, (nil, nil) when unknown.
func (s *TeamService) Lookup(ctx context.Context, teamSlug string) (*domain.Team, error) {
	if cached, ok := s.cache.Get(teamSlug); ok {
		return cached.(*domain.Team), nil
	}

	team, err := s.repo.GetBySlug(ctx, teamSlug)
	if err != nil {
		return nil, fmt.Errorf("lookup team %s: %w", teamSlug, err)
	}
	if team == nil {
		return nil, nil
	}

	s.cache.SetDefault(teamSlug, team)
	return team, nil
}

// Invalidate drops the cached snapshot for a slug.
func (s *TeamService) Invalidate(teamSlug string) {
	s.cache.Delete(teamSlug)
}

// RegisterParams holds validated admin input for team registration.
type RegisterParams struct {
	Slug            string
	Password        string
	SuccessURL      string
	FailURL         string
	NotificationURL string
	Currencies      []string
	MinAmount       int64
	MaxAmount       int64
	DailyLimit      int64
}

// Register creates a new active merchant. The stored credential is the hex
// SHA-256 of the shared password, which also feeds token verification.
func (s *TeamService) Register(ctx context.Context, p RegisterParams) (*domain.Team, error) {
	if !domain.ValidTeamSlug(p.Slug) {
		return nil, apperror.ErrValidation("TeamSlug must be 3-50 chars of [A-Za-z0-9_-]")
	}
	if len(p.Password) < 8 {
		return nil, apperror.ErrValidation("Password must be at least 8 characters")
	}
	if p.MinAmount <= 0 {
		p.MinAmount = 1
	}
	if p.MaxAmount <= 0 {
		p.MaxAmount = 9_999_999_999 // 10-digit protocol maximum
	}
	if p.MinAmount > p.MaxAmount {
		return nil, apperror.ErrValidation("MinAmount exceeds MaxAmount")
	}

	now := time.Now().UTC()
	team := &domain.Team{
		ID:              uuid.New(),
		Slug:            p.Slug,
		PasswordHash:    HashTeamPassword(p.Password),
		Active:          true,
		SuccessURL:      p.SuccessURL,
		FailURL:         p.FailURL,
		NotificationURL: p.NotificationURL,
		Currencies:      p.Currencies,
		MinAmount:       p.MinAmount,
		MaxAmount:       p.MaxAmount,
		DailyLimit:      p.DailyLimit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, team); err != nil {
		if err == ports.ErrTeamExists {
			return nil, apperror.ErrValidation("TeamSlug already registered")
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	s.Invalidate(team.Slug)
	s.log.Info().Str("team_slug", team.Slug).Msg("team registered")
	return team, nil
}

// HashTeamPassword returns the hex SHA-256 credential for a shared password.
func HashTeamPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
