package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Team is a merchant tenant of the gateway, identified by its slug.
// The snapshot a request works with is immutable; writes publish cache
// invalidation so readers pick up the new record.
type Team struct {
	ID              uuid.UUID `json:"id"`
	Slug            string    `json:"team_slug"`
	PasswordHash    string    `json:"-"` // hex SHA-256 of the shared password, never exposed
	Active          bool      `json:"active"`
	SuccessURL      string    `json:"success_url,omitempty"`
	FailURL         string    `json:"fail_url,omitempty"`
	NotificationURL string    `json:"notification_url,omitempty"`
	Currencies      []string  `json:"currencies,omitempty"`
	MinAmount       int64     `json:"min_amount"` // minor units, per transaction
	MaxAmount       int64     `json:"max_amount"`
	DailyLimit      int64     `json:"daily_limit"` // confirmed minus refunded, per calendar day
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var teamSlugRE = regexp.MustCompile(`^[A-Za-z0-9_-]{3,50}$`)

// ValidTeamSlug reports whether s is a well-formed team slug.
func ValidTeamSlug(s string) bool {
	return teamSlugRE.MatchString(s)
}

// SupportsCurrency reports whether the team accepts payments in cur.
// An empty currency list means any ISO 4217 code is accepted.
func (t *Team) SupportsCurrency(cur string) bool {
	if len(t.Currencies) == 0 {
		return true
	}
	for _, c := range t.Currencies {
		if c == cur {
			return true
		}
	}
	return false
}
