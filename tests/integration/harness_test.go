package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/adapter/acquirer"
	"github.com/hackload-kz/payment-sub010/internal/adapter/http/handler"
	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/internal/lock"
	"github.com/hackload-kz/payment-sub010/internal/metrics"
	"github.com/hackload-kz/payment-sub010/internal/ratelimit"
	"github.com/hackload-kz/payment-sub010/internal/service"
	"github.com/hackload-kz/payment-sub010/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	merchantSlug     = "demo-team"
	merchantPassword = "demo-team-pw"
	notificationURL  = "https://demo-team.example/payments/hook"
	publicBaseURL    = "https://gw.test"
)

// --- in-memory repositories ---

type memPaymentRepo struct {
	mu    sync.Mutex
	byID  map[string]*domain.Payment
	trail map[uuid.UUID][]domain.PaymentTransition
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		byID:  make(map[string]*domain.Payment),
		trail: make(map[uuid.UUID][]domain.PaymentTransition),
	}
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	return &cp
}

func (r *memPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.TeamSlug == p.TeamSlug && existing.OrderID == p.OrderID {
			return ports.ErrDuplicateOrder
		}
	}
	r.byID[p.PaymentID] = clonePayment(p)
	return nil
}

func (r *memPaymentRepo) GetByPaymentID(_ context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[paymentID]; ok {
		return clonePayment(p), nil
	}
	return nil, nil
}

func (r *memPaymentRepo) GetByOrderKey(_ context.Context, teamSlug, orderID string) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.TeamSlug == teamSlug && p.OrderID == orderID {
			return clonePayment(p), nil
		}
	}
	return nil, nil
}

func (r *memPaymentRepo) Transition(_ context.Context, params ports.TransitionParams) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if p.ID != params.PaymentRef {
			continue
		}
		if p.Version != params.ExpectedVersion {
			return nil, ports.ErrVersionConflict
		}
		now := time.Now().UTC()
		from := p.Status
		p.Status = params.NewStatus
		p.Version++
		p.UpdatedAt = now
		if params.MaskedPan != "" {
			p.MaskedPan = params.MaskedPan
		}
		p.RefundedAmount += params.RefundDelta
		if params.CaptureAmount > 0 {
			p.Amount = params.CaptureAmount
		}
		switch params.NewStatus {
		case domain.StatusAuthorized:
			p.AuthorizedAt = &now
		case domain.StatusConfirmed:
			p.ConfirmedAt = &now
		case domain.StatusCancelled, domain.StatusReversed:
			p.CancelledAt = &now
		}
		r.trail[p.ID] = append(r.trail[p.ID], domain.PaymentTransition{
			ID:            uuid.New(),
			PaymentRef:    p.ID,
			FromStatus:    from,
			ToStatus:      params.NewStatus,
			Actor:         params.Actor,
			Reason:        params.Reason,
			CorrelationID: params.CorrelationID,
			CreatedAt:     now,
		})
		return clonePayment(p), nil
	}
	return nil, errors.New("payment not found")
}

func (r *memPaymentRepo) ListTransitions(_ context.Context, paymentRef uuid.UUID) ([]domain.PaymentTransition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.PaymentTransition(nil), r.trail[paymentRef]...), nil
}

func (r *memPaymentRepo) ConfirmedTotalForDay(_ context.Context, teamSlug string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := at.UTC().Truncate(24 * time.Hour)
	var total int64
	for _, p := range r.byID {
		if p.TeamSlug != teamSlug || p.ConfirmedAt == nil {
			continue
		}
		if !p.ConfirmedAt.Before(day) && p.ConfirmedAt.Before(day.Add(24*time.Hour)) {
			total += p.Amount - p.RefundedAmount
		}
	}
	return total, nil
}

type memTeamRepo struct {
	mu    sync.Mutex
	teams map[string]*domain.Team
}

func (r *memTeamRepo) Create(_ context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.Slug]; ok {
		return ports.ErrTeamExists
	}
	cp := *team
	r.teams[team.Slug] = &cp
	return nil
}

func (r *memTeamRepo) GetBySlug(_ context.Context, slug string) (*domain.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if team, ok := r.teams[slug]; ok {
		cp := *team
		return &cp, nil
	}
	return nil, nil
}

func (r *memTeamRepo) Update(_ context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *team
	r.teams[team.Slug] = &cp
	return nil
}

type memWebhookRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.WebhookDelivery
}

func newMemWebhookRepo() *memWebhookRepo {
	return &memWebhookRepo{items: make(map[uuid.UUID]*domain.WebhookDelivery)}
}

func (r *memWebhookRepo) Create(_ context.Context, d *domain.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.items[d.ID] = &cp
	return nil
}

func (r *memWebhookRepo) Due(_ context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []domain.WebhookDelivery
	for _, d := range r.items {
		if !d.Delivered && !d.Terminal && !d.NextAttemptAt.After(now) {
			due = append(due, *d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EventAt.Before(due[j].EventAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *memWebhookRepo) MarkDelivered(_ context.Context, id uuid.UUID, httpCode int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return errors.New("delivery not found")
	}
	d.Delivered = true
	d.Attempts++
	d.LastHTTPCode = &httpCode
	d.DeliveredAt = &at
	d.UpdatedAt = at
	return nil
}

func (r *memWebhookRepo) MarkFailed(_ context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, terminal bool, lastError string, httpCode *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.items[id]
	if !ok {
		return errors.New("delivery not found")
	}
	d.Attempts = attempts
	d.NextAttemptAt = nextAttemptAt
	d.Terminal = terminal
	d.LastError = &lastError
	d.LastHTTPCode = httpCode
	return nil
}

func (r *memWebhookRepo) snapshot() []domain.WebhookDelivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.WebhookDelivery, 0, len(r.items))
	for _, d := range r.items {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventAt.Before(out[j].EventAt) })
	return out
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func (r *memAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// syncQueue runs processing jobs inline so every flow completes within the
// request that started it.
type syncQueue struct{}

func (syncQueue) Enqueue(_ string, _ bool, fn func(ctx context.Context) error) error {
	return fn(context.Background())
}

// recordingSender captures outgoing webhook posts instead of dialing out.
type recordingSender struct {
	mu       sync.Mutex
	code     int
	payloads [][]byte
	urls     []string
}

func (s *recordingSender) Send(_ context.Context, url string, payload []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.urls = append(s.urls, url)
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	if s.code == 0 {
		return http.StatusOK, nil
	}
	return s.code, nil
}

func (s *recordingSender) sent() ([]string, [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.urls...), append([][]byte(nil), s.payloads...)
}

// --- gateway fixture ---

// gateway assembles the full HTTP stack against in-memory storage: real
// router, middleware, lifecycle, webhook and token services, a memory lock
// and the acquirer simulator.
type gateway struct {
	router   *gin.Engine
	payments *memPaymentRepo
	webhooks *memWebhookRepo
	sender   *recordingSender
	hooks    *service.WebhookService
	hash     string
}

func newGateway(t *testing.T) *gateway {
	t.Helper()

	hash := service.HashTeamPassword(merchantPassword)
	teams := &memTeamRepo{teams: map[string]*domain.Team{
		merchantSlug: {
			ID:              uuid.New(),
			Slug:            merchantSlug,
			PasswordHash:    hash,
			Active:          true,
			MinAmount:       1000,
			MaxAmount:       1_000_000,
			NotificationURL: notificationURL,
		},
	}}

	payments := newMemPaymentRepo()
	webhooks := newMemWebhookRepo()
	sender := &recordingSender{}
	teamSvc := service.NewTeamService(teams, time.Minute, zerolog.Nop())
	tokenSvc := service.NewSHA256TokenService()
	hooks := service.NewWebhookService(
		service.WebhookConfig{},
		webhooks, sender, teamSvc, tokenSvc, metrics.Nop{}, zerolog.Nop(),
	)

	lifecycle := service.NewLifecycleService(
		service.LifecycleConfig{PublicBaseURL: publicBaseURL, AcquirerRetryWait: time.Millisecond},
		payments,
		lock.NewMemoryLockService(),
		syncQueue{},
		acquirer.NewSimulator(),
		hooks,
		metrics.Nop{},
		zerolog.Nop(),
	)

	adminHash, err := bcrypt.GenerateFromPassword([]byte("admin-pw"), bcrypt.MinCost)
	require.NoError(t, err)

	router := handler.SetupRouter(handler.RouterDeps{
		Log:       zerolog.Nop(),
		Lifecycle: lifecycle,
		Teams:     teamSvc,
		Tokens:    tokenSvc,
		AdminTokens: service.NewJWTAdminTokenService(service.AdminAuthConfig{
			PasswordHash: string(adminHash),
			JWTSecret:    "integration-secret",
		}),
		Audit:    service.NewAuditService(&memAuditRepo{}, zerolog.Nop()),
		Limiter:  ratelimit.New(ratelimit.DefaultPolicies()),
		Metrics:  metrics.Nop{},
		Registry: prometheus.NewRegistry(),
	})

	return &gateway{
		router:   router,
		payments: payments,
		webhooks: webhooks,
		sender:   sender,
		hooks:    hooks,
		hash:     hash,
	}
}

// --- request helpers ---

func (g *gateway) signParams(params map[string]any) map[string]any {
	params["Token"] = service.NewSHA256TokenService().ComputeToken(params, g.hash)
	return params
}

func (g *gateway) postJSON(t *testing.T, path string, body any) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	g.router.ServeHTTP(w, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func (g *gateway) postSigned(t *testing.T, path string, params map[string]any) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	return g.postJSON(t, path, g.signParams(params))
}

func (g *gateway) initPayment(t *testing.T, orderID string, amount int64, payType string) response.Envelope {
	t.Helper()
	w, env := g.postSigned(t, "/api/payment/init", map[string]any{
		"TeamSlug": merchantSlug,
		"OrderId":  orderID,
		"Amount":   amount,
		"Currency": "RUB",
		"PayType":  payType,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, env.PaymentID)
	return env
}

func (g *gateway) openForm(t *testing.T, paymentID string) {
	t.Helper()
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pay/"+paymentID, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (g *gateway) submitCard(t *testing.T, paymentID, pan string) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	form := url.Values{"CardNumber": {pan}, "ExpDate": {"1230"}, "CVV": {"123"}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pay/"+paymentID+"/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	g.router.ServeHTTP(w, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// payCard drives the hosted form through a successful authorization.
func (g *gateway) payCard(t *testing.T, paymentID string) {
	t.Helper()
	g.openForm(t, paymentID)
	w, _ := g.submitCard(t, paymentID, "4242424242424242")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (g *gateway) paymentStatus(t *testing.T, paymentID string) string {
	t.Helper()
	w, env := g.postSigned(t, "/api/payment/status", map[string]any{
		"TeamSlug":  merchantSlug,
		"PaymentId": paymentID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return env.Status
}

// statusTrail returns the transition trail as a status path starting from the
// payment's initial state.
func (g *gateway) statusTrail(t *testing.T, paymentID string) []domain.Status {
	t.Helper()
	p, err := g.payments.GetByPaymentID(context.Background(), paymentID)
	require.NoError(t, err)
	require.NotNil(t, p)

	trail, err := g.payments.ListTransitions(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotEmpty(t, trail)

	path := []domain.Status{trail[0].FromStatus}
	for _, tr := range trail {
		path = append(path, tr.ToStatus)
	}
	return path
}
