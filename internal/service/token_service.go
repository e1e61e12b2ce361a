package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// tokenKey is the request field carrying the signature itself; it never
// participates in signing.
const tokenKey = "Token"

// passwordKey is the synthetic entry holding the merchant password hash.
const passwordKey = "Password"

// SHA256TokenService implements ports.TokenAuthenticator.
//
// The signature is SHA-256 over the request's scalar values concatenated in
// lexicographic key order, with the merchant's stored password hash injected
// under the Password key. Nested objects and arrays are excluded, as is the
// Token field itself.
type SHA256TokenService struct{}

// NewSHA256TokenService creates the protocol token authenticator.
func NewSHA256TokenService() *SHA256TokenService {
	return &SHA256TokenService{}
}

// ComputeToken returns the lowercase hex SHA-256 token for params.
func (s *SHA256TokenService) ComputeToken(params map[string]any, passwordHash string) string {
	entries := make(map[string]string, len(params)+1)
	for k, v := range params {
		if k == tokenKey {
			continue
		}
		if sv, ok := renderScalar(v); ok {
			entries[k] = sv
		}
	}
	entries[passwordKey] = passwordHash

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(entries[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the token and compares case-insensitively in constant time.
func (s *SHA256TokenService) Verify(params map[string]any, providedToken, passwordHash string) bool {
	expected := s.ComputeToken(params, passwordHash)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(providedToken)))
}

// renderScalar converts a scalar request value to its wire form. Non-scalars
// report ok=false and are skipped.
func renderScalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		// encoding/json decodes all numbers as float64; integral values must
		// sign the same bytes the merchant sent.
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}
