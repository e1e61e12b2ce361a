package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTeamRepo struct {
	mu    sync.Mutex
	teams map[string]*domain.Team
	gets  int
}

func newCountingTeamRepo() *countingTeamRepo {
	return &countingTeamRepo{teams: make(map[string]*domain.Team)}
}

func (r *countingTeamRepo) Create(_ context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.Slug]; ok {
		return ports.ErrTeamExists
	}
	r.teams[team.Slug] = team
	return nil
}

func (r *countingTeamRepo) GetBySlug(_ context.Context, slug string) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	return r.teams[slug], nil
}

func (r *countingTeamRepo) Update(_ context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[team.Slug] = team
	return nil
}

func (r *countingTeamRepo) getCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

func TestTeamService_Lookup_CachesResult(t *testing.T) {
	repo := newCountingTeamRepo()
	repo.teams["demo-team"] = &domain.Team{Slug: "demo-team", Active: true}

	svc := NewTeamService(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		team, err := svc.Lookup(ctx, "demo-team")
		require.NoError(t, err)
		require.NotNil(t, team)
	}
	assert.Equal(t, 1, repo.getCount(), "repeated lookups must hit the cache")
}

func TestTeamService_Lookup_UnknownSlug(t *testing.T) {
	svc := NewTeamService(newCountingTeamRepo(), time.Minute, zerolog.Nop())
	team, err := svc.Lookup(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestTeamService_Invalidate(t *testing.T) {
	repo := newCountingTeamRepo()
	repo.teams["demo-team"] = &domain.Team{Slug: "demo-team", Active: true}

	svc := NewTeamService(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "demo-team")
	require.NoError(t, err)

	svc.Invalidate("demo-team")

	_, err = svc.Lookup(ctx, "demo-team")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.getCount(), "invalidation must force a repo read")
}

func TestTeamService_Register(t *testing.T) {
	repo := newCountingTeamRepo()
	svc := NewTeamService(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()

	team, err := svc.Register(ctx, RegisterParams{
		Slug:     "demo-team",
		Password: "super-secret",
	})
	require.NoError(t, err)
	assert.True(t, team.Active)
	assert.Equal(t, HashTeamPassword("super-secret"), team.PasswordHash)
	assert.Equal(t, int64(1), team.MinAmount)
	assert.Equal(t, int64(9_999_999_999), team.MaxAmount)

	// Duplicate slug rejected.
	_, err = svc.Register(ctx, RegisterParams{Slug: "demo-team", Password: "super-secret"})
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "251", appErr.Code)
}

func TestTeamService_Register_Validation(t *testing.T) {
	svc := NewTeamService(newCountingTeamRepo(), time.Minute, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterParams{Slug: "x", Password: "super-secret"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterParams{Slug: "demo-team", Password: "short"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, RegisterParams{Slug: "demo-team", Password: "super-secret", MinAmount: 100, MaxAmount: 50})
	assert.Error(t, err)
}

func TestHashTeamPassword_HexSHA256(t *testing.T) {
	// sha256("password")
	assert.Equal(t,
		"5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8",
		HashTeamPassword("password"))
}
