package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WebhookConfig tunes merchant notification delivery.
type WebhookConfig struct {
	MaxAttempts  int
	PollInterval time.Duration
	SendTimeout  time.Duration
	BatchSize    int
}

func (c *WebhookConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 7
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// retrySchedule is the delay before attempt n+1 after n failures. The first
// delivery goes out immediately; the tail backs off to once a day.
var retrySchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	4 * time.Hour,
	24 * time.Hour,
}

// WebhookEvent is the body POSTed to the merchant's notification URL. Token
// is the protocol token over the event's scalar fields under the merchant
// password hash, so merchants verify it exactly like they sign requests.
type WebhookEvent struct {
	PaymentID     string        `json:"PaymentId"`
	OrderID       string        `json:"OrderId"`
	TeamSlug      string        `json:"TeamSlug"`
	Status        domain.Status `json:"Status"`
	Amount        int64         `json:"Amount"`
	Currency      string        `json:"Currency"`
	EventAt       time.Time     `json:"EventAt"`
	CorrelationID string        `json:"CorrelationId"`
	Token         string        `json:"Token"`
}

// WebhookService persists state-change notifications and delivers them
// at least once on the retry schedule. Enqueue and dispatch are decoupled
// through the repository, so a crash between them loses nothing.
type WebhookService struct {
	cfg     WebhookConfig
	repo    ports.WebhookRepository
	sender  ports.WebhookSender
	teams   ports.TeamStore
	tokens  ports.TokenAuthenticator
	metrics ports.MetricsSink
	log     zerolog.Logger
	now     func() time.Time
}

// NewWebhookService wires the notifier and dispatch loop.
func NewWebhookService(cfg WebhookConfig, repo ports.WebhookRepository, sender ports.WebhookSender, teams ports.TeamStore, tokens ports.TokenAuthenticator, metrics ports.MetricsSink, log zerolog.Logger) *WebhookService {
	cfg.applyDefaults()
	return &WebhookService{
		cfg:     cfg,
		repo:    repo,
		sender:  sender,
		teams:   teams,
		tokens:  tokens,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// EnqueueStateChange records one delivery due immediately.
func (s *WebhookService) EnqueueStateChange(ctx context.Context, p *domain.Payment, tr domain.PaymentTransition) error {
	event := WebhookEvent{
		PaymentID:     p.PaymentID,
		OrderID:       p.OrderID,
		TeamSlug:      p.TeamSlug,
		Status:        tr.ToStatus,
		Amount:        p.Amount,
		Currency:      p.Currency,
		EventAt:       tr.CreatedAt,
		CorrelationID: tr.CorrelationID,
	}
	if err := s.signEvent(ctx, &event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	now := s.now().UTC()
	return s.repo.Create(ctx, &domain.WebhookDelivery{
		ID:            uuid.New(),
		PaymentRef:    p.ID,
		TeamSlug:      p.TeamSlug,
		URL:           p.NotificationURL,
		Payload:       payload,
		NextAttemptAt: now,
		EventAt:       tr.CreatedAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

// Run polls for due deliveries until ctx is cancelled.
func (s *WebhookService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.DispatchDue(ctx)
		}
	}
}

// DispatchDue performs one delivery pass and returns how many deliveries
// succeeded.
func (s *WebhookService) DispatchDue(ctx context.Context) int {
	now := s.now().UTC()
	due, err := s.repo.Due(ctx, now, s.cfg.BatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("webhook due query failed")
		return 0
	}

	delivered := 0
	for _, d := range due {
		if ctx.Err() != nil {
			return delivered
		}
		if s.attempt(ctx, d) {
			delivered++
		}
	}
	return delivered
}

// attempt performs one POST and records the outcome.
func (s *WebhookService) attempt(ctx context.Context, d domain.WebhookDelivery) bool {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	code, err := s.sender.Send(sendCtx, d.URL, d.Payload)
	cancel()

	now := s.now().UTC()
	if err == nil && code >= 200 && code < 300 {
		if merr := s.repo.MarkDelivered(ctx, d.ID, code, now); merr != nil {
			s.log.Error().Err(merr).Str("delivery_id", d.ID.String()).Msg("webhook delivered but not recorded")
		}
		s.metrics.WebhookAttempt(true)
		return true
	}

	s.metrics.WebhookAttempt(false)
	attempts := d.Attempts + 1
	terminal := attempts >= s.cfg.MaxAttempts

	lastError := "non-2xx response"
	var httpCode *int
	if err != nil {
		lastError = err.Error()
	} else {
		httpCode = &code
	}

	next := now
	if !terminal {
		idx := attempts - 1
		if idx >= len(retrySchedule) {
			idx = len(retrySchedule) - 1
		}
		next = now.Add(retrySchedule[idx])
	}

	if merr := s.repo.MarkFailed(ctx, d.ID, attempts, next, terminal, lastError, httpCode); merr != nil {
		s.log.Error().Err(merr).Str("delivery_id", d.ID.String()).Msg("webhook failure not recorded")
	}
	if terminal {
		s.log.Warn().
			Str("delivery_id", d.ID.String()).
			Str("team_slug", d.TeamSlug).
			Int("attempts", attempts).
			Msg("webhook delivery abandoned")
	}
	return false
}

// signEvent computes the event Token over the JSON scalar fields with the
// merchant password hash. Going through the serialized form keeps the signed
// values byte-identical to what the merchant parses.
func (s *WebhookService) signEvent(ctx context.Context, e *WebhookEvent) error {
	team, err := s.teams.Lookup(ctx, e.TeamSlug)
	if err != nil {
		return fmt.Errorf("resolve team for webhook: %w", err)
	}
	if team == nil {
		return fmt.Errorf("unknown team %q for webhook", e.TeamSlug)
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("unmarshal webhook event: %w", err)
	}
	e.Token = s.tokens.ComputeToken(fields, team.PasswordHash)
	return nil
}
