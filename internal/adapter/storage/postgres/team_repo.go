package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TeamRepo implements ports.TeamRepository.
type TeamRepo struct {
	pool Pool
}

// NewTeamRepo creates a new TeamRepo.
func NewTeamRepo(pool Pool) *TeamRepo {
	return &TeamRepo{pool: pool}
}

const teamColumns = `id, team_slug, password_hash, active, success_url, fail_url, notification_url,
	currencies, min_amount, max_amount, daily_limit, created_at, updated_at`

// Create inserts a new team. A duplicate slug maps to ports.ErrTeamExists.
func (r *TeamRepo) Create(ctx context.Context, team *domain.Team) error {
	query := `INSERT INTO teams (` + teamColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		team.ID, team.Slug, team.PasswordHash, team.Active, team.SuccessURL, team.FailURL, team.NotificationURL,
		team.Currencies, team.MinAmount, team.MaxAmount, team.DailyLimit, team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ports.ErrTeamExists
		}
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

// GetBySlug fetches a team by its slug, (nil, nil) when unknown.
func (r *TeamRepo) GetBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE team_slug = $1`

	team := &domain.Team{}
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&team.ID, &team.Slug, &team.PasswordHash, &team.Active, &team.SuccessURL, &team.FailURL, &team.NotificationURL,
		&team.Currencies, &team.MinAmount, &team.MaxAmount, &team.DailyLimit, &team.CreatedAt, &team.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return team, nil
}

// Update rewrites a team's mutable fields.
func (r *TeamRepo) Update(ctx context.Context, team *domain.Team) error {
	query := `UPDATE teams SET password_hash = $2, active = $3, success_url = $4, fail_url = $5,
			notification_url = $6, currencies = $7, min_amount = $8, max_amount = $9, daily_limit = $10,
			updated_at = $11
		WHERE team_slug = $1`

	tag, err := r.pool.Exec(ctx, query,
		team.Slug, team.PasswordHash, team.Active, team.SuccessURL, team.FailURL,
		team.NotificationURL, team.Currencies, team.MinAmount, team.MaxAmount, team.DailyLimit,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team not found: %s", team.Slug)
	}
	return nil
}
