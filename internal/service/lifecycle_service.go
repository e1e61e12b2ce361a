package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"
	"github.com/hackload-kz/payment-sub010/pkg/correlation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// LifecycleConfig tunes the payment coordinator.
type LifecycleConfig struct {
	PublicBaseURL     string        // prefix for hosted payment form links
	PaymentTTL        time.Duration // deadline from Init to a terminal state
	LockLease         time.Duration
	LockWait          time.Duration
	MaxUpdateRetries  int           // optimistic concurrency retry budget
	AcquirerRetries   int           // extra attempts on transport failure
	AcquirerRetryWait time.Duration // delay between acquirer attempts
}

func (c *LifecycleConfig) applyDefaults() {
	if c.PaymentTTL <= 0 {
		c.PaymentTTL = 15 * time.Minute
	}
	if c.LockLease <= 0 {
		c.LockLease = 30 * time.Second
	}
	if c.LockWait <= 0 {
		c.LockWait = 30 * time.Second
	}
	if c.MaxUpdateRetries <= 0 {
		c.MaxUpdateRetries = 3
	}
	if c.AcquirerRetries < 0 {
		c.AcquirerRetries = 0
	} else if c.AcquirerRetries == 0 {
		c.AcquirerRetries = 2
	}
	if c.AcquirerRetryWait <= 0 {
		c.AcquirerRetryWait = 500 * time.Millisecond
	}
}

// LifecycleService coordinates the payment state machine: it owns every
// status change, guarding each one with a per-payment lock plus an optimistic
// version check, and records transitions and webhook events as it goes.
type LifecycleService struct {
	cfg      LifecycleConfig
	payments ports.PaymentRepository
	locks    ports.LockService
	queue    ports.TaskQueue
	acquirer ports.CardAcquirer
	notifier ports.WebhookNotifier
	metrics  ports.MetricsSink
	log      zerolog.Logger
}

// NewLifecycleService wires the payment coordinator.
func NewLifecycleService(
	cfg LifecycleConfig,
	payments ports.PaymentRepository,
	locks ports.LockService,
	queue ports.TaskQueue,
	acquirer ports.CardAcquirer,
	notifier ports.WebhookNotifier,
	metrics ports.MetricsSink,
	log zerolog.Logger,
) *LifecycleService {
	cfg.applyDefaults()
	return &LifecycleService{
		cfg:      cfg,
		payments: payments,
		locks:    locks,
		queue:    queue,
		acquirer: acquirer,
		notifier: notifier,
		metrics:  metrics,
		log:      log,
	}
}

// notifiableStatuses are the states merchants get webhooks for. Intermediate
// processing states stay internal.
var notifiableStatuses = map[domain.Status]struct{}{
	domain.StatusAuthorized:      {},
	domain.StatusAuthFail:        {},
	domain.StatusConfirmed:       {},
	domain.StatusCancelled:       {},
	domain.StatusReversed:        {},
	domain.StatusRefunded:        {},
	domain.StatusPartialRefunded: {},
	domain.StatusRejected:        {},
	domain.StatusDeadlineExpired: {},
	domain.StatusFailed:          {},
}

// InitParams is the validated input for creating a payment session.
type InitParams struct {
	Team            *domain.Team
	OrderID         string
	Amount          int64
	Currency        string
	PayType         domain.PayType
	Description     string
	SuccessURL      string
	FailURL         string
	NotificationURL string
	CustomerEmail   *string
	CustomerPhone   *string
	Receipt         json.RawMessage
}

// Init creates a payment session in NEW and returns it with the hosted form
// URL. A duplicate (team, order) pair is rejected, not answered idempotently:
// the merchant must not silently reuse an order for a different charge.
func (s *LifecycleService) Init(ctx context.Context, p InitParams) (*domain.Payment, error) {
	team := p.Team
	if p.OrderID == "" {
		return nil, apperror.ErrMissingField("OrderId")
	}
	if len(p.OrderID) > domain.MaxOrderIDLen {
		return nil, apperror.ErrValidation(fmt.Sprintf("OrderId exceeds %d characters", domain.MaxOrderIDLen))
	}
	if p.Amount <= 0 {
		return nil, apperror.ErrValidation("Amount must be a positive number of minor units")
	}
	if p.Amount < team.MinAmount || p.Amount > team.MaxAmount {
		return nil, apperror.ErrValidation(fmt.Sprintf("Amount must be between %d and %d minor units", team.MinAmount, team.MaxAmount))
	}
	currency := p.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	if !team.SupportsCurrency(currency) {
		return nil, apperror.ErrValidation(fmt.Sprintf("Currency %s not enabled for merchant", currency))
	}
	if p.PayType == "" {
		p.PayType = domain.PayTypeSingleStage
	}
	if p.PayType != domain.PayTypeSingleStage && p.PayType != domain.PayTypeTwoStage {
		return nil, apperror.ErrValidation("PayType must be O or T")
	}

	if team.DailyLimit > 0 {
		total, err := s.payments.ConfirmedTotalForDay(ctx, team.Slug, time.Now().UTC())
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if total+p.Amount > team.DailyLimit {
			return nil, apperror.ErrLimitExceeded()
		}
	}

	// The order lock serializes concurrent Init calls for the same order; the
	// unique index is the backstop if two instances race past it.
	orderKey := "order:" + team.Slug + ":" + p.OrderID
	lease, err := s.acquireLock(ctx, orderKey, "init")
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(lease)

	existing, err := s.payments.GetByOrderKey(ctx, team.Slug, p.OrderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateOrder()
	}

	now := time.Now().UTC()
	payment := &domain.Payment{
		ID:              uuid.New(),
		PaymentID:       newPaymentID(),
		TeamSlug:        team.Slug,
		OrderID:         p.OrderID,
		Amount:          p.Amount,
		Currency:        currency,
		PayType:         p.PayType,
		Status:          domain.StatusInit,
		SuccessURL:      firstNonEmpty(p.SuccessURL, team.SuccessURL),
		FailURL:         firstNonEmpty(p.FailURL, team.FailURL),
		NotificationURL: firstNonEmpty(p.NotificationURL, team.NotificationURL),
		CustomerEmail:   p.CustomerEmail,
		CustomerPhone:   p.CustomerPhone,
		Receipt:         p.Receipt,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.PaymentTTL),
		Version:         1,
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		if errors.Is(err, ports.ErrDuplicateOrder) {
			return nil, apperror.ErrDuplicateOrder()
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	created, err := s.apply(ctx, payment, domain.EventInitAccepted, domain.ActorMerchant, "payment created", nil)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("payment_id", created.PaymentID).
		Str("team_slug", created.TeamSlug).
		Str("order_id", created.OrderID).
		Int64("amount", created.Amount).
		Msg("payment initialized")
	return created, nil
}

// PaymentURL returns the hosted form link for a payment.
func (s *LifecycleService) PaymentURL(p *domain.Payment) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/pay/" + p.PaymentID
}

// Status returns the payment for a merchant, expiring it first when the
// deadline has lapsed. Missing payments surface as 254.
func (s *LifecycleService) Status(ctx context.Context, team *domain.Team, paymentID string) (*domain.Payment, error) {
	p, err := s.loadForTeam(ctx, team, paymentID)
	if err != nil {
		return nil, err
	}
	return s.expireOnTouch(ctx, p)
}

// StatusByOrder resolves the payment for a (team, order) pair.
func (s *LifecycleService) StatusByOrder(ctx context.Context, team *domain.Team, orderID string) (*domain.Payment, error) {
	p, err := s.payments.GetByOrderKey(ctx, team.Slug, orderID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if p == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return s.expireOnTouch(ctx, p)
}

// History returns the transition trail for a merchant's payment.
func (s *LifecycleService) History(ctx context.Context, team *domain.Team, paymentID string) ([]domain.PaymentTransition, error) {
	p, err := s.loadForTeam(ctx, team, paymentID)
	if err != nil {
		return nil, err
	}
	trail, err := s.payments.ListTransitions(ctx, p.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return trail, nil
}

// MarkFormShowed records that the hosted form was rendered. Repeated renders
// and renders after the card was already submitted are not errors.
func (s *LifecycleService) MarkFormShowed(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.withLockedPayment(ctx, paymentID, "form", func(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
		p, err := s.expireOnTouch(ctx, p)
		if err != nil {
			return nil, err
		}
		if p.Status != domain.StatusNew {
			return p, nil
		}
		return s.apply(ctx, p, domain.EventFormShowed, domain.ActorSystem, "payment form rendered", nil)
	})
}

// SubmitCardParams carries the card data entered on the hosted form. The PAN
// and CVV live only for the duration of the request.
type SubmitCardParams struct {
	PaymentID  string
	CardNumber string
	ExpDate    string // MMYY
	CVV        string
}

// SubmitCard validates the card, moves the payment to AUTHORIZING and hands
// the authorization to the background pool. The HTTP response returns before
// the acquirer answers; the form polls status.
func (s *LifecycleService) SubmitCard(ctx context.Context, p SubmitCardParams) (*domain.Payment, error) {
	if err := validateCard(p.CardNumber, p.ExpDate, p.CVV); err != nil {
		return nil, err
	}
	masked := domain.MaskPAN(p.CardNumber)

	updated, err := s.withLockedPayment(ctx, p.PaymentID, "submit", func(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
		pay, err := s.expireOnTouch(ctx, pay)
		if err != nil {
			return nil, err
		}
		if pay.IsExpired(time.Now().UTC()) || pay.Status == domain.StatusDeadlineExpired {
			return nil, apperror.ErrExpired()
		}
		if pay.Status != domain.StatusNew && pay.Status != domain.StatusFormShowed {
			return nil, apperror.ErrIllegalState(string(pay.Status))
		}
		return s.apply(ctx, pay, domain.EventCardSubmitted, domain.ActorSystem, "card submitted", func(tp *ports.TransitionParams) {
			tp.MaskedPan = masked
		})
	})
	if err != nil {
		return nil, err
	}

	job := authorizeJob{
		paymentID: updated.PaymentID,
		version:   updated.Version,
		req: ports.AuthorizeRequest{
			PaymentID:  updated.PaymentID,
			Amount:     updated.Amount,
			Currency:   updated.Currency,
			CardNumber: p.CardNumber,
			ExpDate:    p.ExpDate,
			CVV:        p.CVV,
			PayType:    updated.PayType,
		},
		correlationID: correlation.FromContext(ctx),
	}
	// Authorization is idempotent at the acquirer through the key below, so
	// the pool may retry it.
	if err := s.queue.Enqueue("authorize:"+updated.PaymentID, true, func(jctx context.Context) error {
		return s.runAuthorization(correlation.WithContext(jctx, job.correlationID), job)
	}); err != nil {
		s.log.Warn().Str("payment_id", updated.PaymentID).Msg("authorization rejected by queue")
		return nil, apperror.ErrLockTimeout(err)
	}
	return updated, nil
}

type authorizeJob struct {
	paymentID     string
	version       int64
	req           ports.AuthorizeRequest
	correlationID string
}

// runAuthorization talks to the acquirer and lands the result in the state
// machine. The idempotency key is bound to the payment version that entered
// AUTHORIZING, so a pool retry replays the same authorization.
func (s *LifecycleService) runAuthorization(ctx context.Context, job authorizeJob) error {
	job.req.IdempotencyKey = idempotencyKey(job.paymentID, job.version)

	var result *ports.AuthorizeResult
	err := s.callAcquirer(ctx, func(ctx context.Context) error {
		var aerr error
		result, aerr = s.acquirer.Authorize(ctx, job.req)
		return aerr
	})

	_, ferr := s.withLockedPayment(ctx, job.paymentID, "authorize", func(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
		if pay.Status != domain.StatusAuthorizing {
			// Expired or force-failed while we were on the wire.
			return pay, nil
		}
		switch {
		case err != nil:
			return s.apply(ctx, pay, domain.EventUnrecoverableError, domain.ActorSystem, "acquirer unreachable: "+err.Error(), nil)
		case result.RequiresThreeDS:
			return s.apply(ctx, pay, domain.Event3DSRequired, domain.ActorAcquirer, "3-D Secure challenge issued", nil)
		case !result.Approved:
			return s.apply(ctx, pay, domain.EventAuthFailed, domain.ActorAcquirer, result.Reason, nil)
		default:
			pay, aerr := s.apply(ctx, pay, domain.EventAuthSucceeded, domain.ActorAcquirer, "authorization approved", nil)
			if aerr != nil {
				return nil, aerr
			}
			if pay.PayType == domain.PayTypeSingleStage {
				return s.capture(ctx, pay, domain.ActorSystem, "single stage auto capture", pay.Amount)
			}
			return pay, nil
		}
	})
	if ferr != nil {
		s.log.Error().Err(ferr).Str("payment_id", job.paymentID).Msg("authorization result not recorded")
	}
	return ferr
}

// Complete3DS records the outcome of the 3-D Secure challenge and finishes
// the authorization.
func (s *LifecycleService) Complete3DS(ctx context.Context, paymentID string, success bool) (*domain.Payment, error) {
	return s.withLockedPayment(ctx, paymentID, "3ds", func(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
		pay, err := s.expireOnTouch(ctx, pay)
		if err != nil {
			return nil, err
		}
		if pay.Status != domain.Status3DSChecking {
			return nil, apperror.ErrIllegalState(string(pay.Status))
		}
		if !success {
			return s.apply(ctx, pay, domain.EventAuthFailed, domain.ActorAcquirer, "3-D Secure verification failed", nil)
		}

		pay, err = s.apply(ctx, pay, domain.Event3DSCompleted, domain.ActorAcquirer, "3-D Secure verified", nil)
		if err != nil {
			return nil, err
		}

		// Replay the authorization with the same key; the acquirer now has the
		// 3DS result and answers definitively.
		var result *ports.AuthorizeResult
		cerr := s.callAcquirer(ctx, func(ctx context.Context) error {
			var aerr error
			result, aerr = s.acquirer.Authorize(ctx, ports.AuthorizeRequest{
				IdempotencyKey: idempotencyKey(pay.PaymentID, pay.Version),
				PaymentID:      pay.PaymentID,
				Amount:         pay.Amount,
				Currency:       pay.Currency,
				PayType:        pay.PayType,
			})
			return aerr
		})
		if cerr != nil {
			return s.apply(ctx, pay, domain.EventUnrecoverableError, domain.ActorSystem, "acquirer unreachable: "+cerr.Error(), nil)
		}
		if !result.Approved {
			return s.apply(ctx, pay, domain.EventAuthFailed, domain.ActorAcquirer, result.Reason, nil)
		}
		pay, err = s.apply(ctx, pay, domain.EventAuthSucceeded, domain.ActorAcquirer, "authorization approved", nil)
		if err != nil {
			return nil, err
		}
		if pay.PayType == domain.PayTypeSingleStage {
			return s.capture(ctx, pay, domain.ActorSystem, "single stage auto capture", pay.Amount)
		}
		return pay, nil
	})
}

// Confirm captures an authorized two-stage payment. A lesser amount is a
// partial capture: the given amount settles and the remainder of the hold is
// released, so a second capture is illegal. Confirming an already CONFIRMED
// payment with a matching amount is answered idempotently.
func (s *LifecycleService) Confirm(ctx context.Context, team *domain.Team, paymentID string, amount *int64) (*domain.Payment, error) {
	if _, err := s.loadForTeam(ctx, team, paymentID); err != nil {
		return nil, err
	}
	return s.withLockedPayment(ctx, paymentID, "confirm", func(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
		pay, err := s.expireOnTouch(ctx, pay)
		if err != nil {
			return nil, err
		}
		if pay.Status == domain.StatusConfirmed {
			if amount != nil && *amount != pay.Amount {
				return nil, apperror.ErrIllegalState(string(pay.Status))
			}
			return pay, nil
		}
		if pay.Status == domain.StatusDeadlineExpired {
			return nil, apperror.ErrExpired()
		}
		if pay.Status != domain.StatusAuthorized {
			return nil, apperror.ErrIllegalState(string(pay.Status))
		}
		captureAmount := pay.Amount
		if amount != nil {
			if *amount > pay.Amount {
				return nil, apperror.ErrAmountExceedsAuthorized()
			}
			captureAmount = *amount
		}
		return s.capture(ctx, pay, domain.ActorMerchant, "merchant capture", captureAmount)
	})
}

// capture runs AUTHORIZED -> CONFIRMING -> acquirer -> CONFIRMED. Callers
// hold the payment lock.
func (s *LifecycleService) capture(ctx context.Context, pay *domain.Payment, actor domain.Actor, reason string, amount int64) (*domain.Payment, error) {
	pay, err := s.apply(ctx, pay, domain.EventConfirmRequested, actor, reason, nil)
	if err != nil {
		return nil, err
	}

	key := idempotencyKey(pay.PaymentID, pay.Version)
	if cerr := s.callAcquirer(ctx, func(ctx context.Context) error {
		return s.acquirer.Confirm(ctx, key, pay.PaymentID, amount)
	}); cerr != nil {
		_, _ = s.apply(ctx, pay, domain.EventUnrecoverableError, domain.ActorSystem, "capture failed: "+cerr.Error(), nil)
		return nil, apperror.ErrAcquirerRejected(cerr.Error())
	}

	settled := "capture settled"
	if amount != pay.Amount {
		// Keep the authorized amount recoverable from the trail.
		settled = fmt.Sprintf("capture settled: %d of %d authorized", amount, pay.Amount)
	}
	return s.apply(ctx, pay, domain.EventConfirmCompleted, domain.ActorAcquirer, settled, func(tp *ports.TransitionParams) {
		if amount != pay.Amount {
			tp.CaptureAmount = amount
		}
	})
}

// Cancel releases a payment. What that means depends on where it is: an
// uncaptured session is simply cancelled, an authorized hold is reversed and
// a captured payment is refunded in full. Repeating a cancel that already
// reached the corresponding terminal state succeeds idempotently.
func (s *LifecycleService) Cancel(ctx context.Context, team *domain.Team, paymentID string) (*domain.Payment, error) {
	if _, err := s.loadForTeam(ctx, team, paymentID); err != nil {
		return nil, err
	}
	return s.withLockedPayment(ctx, paymentID, "cancel", func(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
		pay, err := s.expireOnTouch(ctx, pay)
		if err != nil {
			return nil, err
		}
		switch pay.Status {
		case domain.StatusCancelled, domain.StatusReversed, domain.StatusRefunded:
			return pay, nil

		case domain.StatusNew, domain.StatusFormShowed:
			pay, err = s.apply(ctx, pay, domain.EventCancelRequested, domain.ActorMerchant, "merchant cancel", nil)
			if err != nil {
				return nil, err
			}
			return s.apply(ctx, pay, domain.EventCancelCompleted, domain.ActorSystem, "session cancelled", nil)

		case domain.StatusAuthorized:
			pay, err = s.apply(ctx, pay, domain.EventReverseRequested, domain.ActorMerchant, "merchant cancel", nil)
			if err != nil {
				return nil, err
			}
			key := idempotencyKey(pay.PaymentID, pay.Version)
			if cerr := s.callAcquirer(ctx, func(ctx context.Context) error {
				return s.acquirer.Reverse(ctx, key, pay.PaymentID)
			}); cerr != nil {
				_, _ = s.apply(ctx, pay, domain.EventUnrecoverableError, domain.ActorSystem, "reversal failed: "+cerr.Error(), nil)
				return nil, apperror.ErrAcquirerRejected(cerr.Error())
			}
			return s.apply(ctx, pay, domain.EventReverseCompleted, domain.ActorAcquirer, "hold released", nil)

		case domain.StatusConfirmed:
			return s.refundLocked(ctx, pay, pay.RemainingRefundable(), "merchant cancel, full refund")

		default:
			return nil, apperror.ErrIllegalState(string(pay.Status))
		}
	})
}

// Refund returns part or all of a captured payment. The refunded total is
// tracked across calls; exceeding the remainder is rejected.
func (s *LifecycleService) Refund(ctx context.Context, team *domain.Team, paymentID string, amount int64) (*domain.Payment, error) {
	if amount <= 0 {
		return nil, apperror.ErrValidation("Amount must be a positive number of minor units")
	}
	if _, err := s.loadForTeam(ctx, team, paymentID); err != nil {
		return nil, err
	}
	return s.withLockedPayment(ctx, paymentID, "refund", func(ctx context.Context, pay *domain.Payment) (*domain.Payment, error) {
		pay, err := s.expireOnTouch(ctx, pay)
		if err != nil {
			return nil, err
		}
		if pay.Status != domain.StatusConfirmed && pay.Status != domain.StatusPartialRefunded {
			return nil, apperror.ErrIllegalState(string(pay.Status))
		}
		if amount > pay.RemainingRefundable() {
			return nil, apperror.ErrAmountExceedsAuthorized()
		}
		return s.refundLocked(ctx, pay, amount, "merchant refund")
	})
}

// refundLocked runs the refund leg under an already held payment lock.
func (s *LifecycleService) refundLocked(ctx context.Context, pay *domain.Payment, amount int64, reason string) (*domain.Payment, error) {
	pay, err := s.apply(ctx, pay, domain.EventRefundRequested, domain.ActorMerchant, reason, nil)
	if err != nil {
		return nil, err
	}

	key := idempotencyKey(pay.PaymentID, pay.Version)
	if cerr := s.callAcquirer(ctx, func(ctx context.Context) error {
		return s.acquirer.Refund(ctx, key, pay.PaymentID, amount)
	}); cerr != nil {
		_, _ = s.apply(ctx, pay, domain.EventUnrecoverableError, domain.ActorSystem, "refund failed: "+cerr.Error(), nil)
		return nil, apperror.ErrAcquirerRejected(cerr.Error())
	}

	event := domain.EventRefundCompleted
	if pay.RefundedAmount+amount < pay.Amount {
		event = domain.EventPartialRefundComplete
	}
	return s.apply(ctx, pay, event, domain.ActorAcquirer, "refund settled", func(tp *ports.TransitionParams) {
		tp.RefundDelta = amount
	})
}

// --- plumbing ---

// loadForTeam fetches a payment and verifies merchant ownership. A foreign
// payment reads as not found so merchants cannot probe each other's ids.
func (s *LifecycleService) loadForTeam(ctx context.Context, team *domain.Team, paymentID string) (*domain.Payment, error) {
	p, err := s.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if p == nil || p.TeamSlug != team.Slug {
		return nil, apperror.ErrPaymentNotFound()
	}
	return p, nil
}

// expireOnTouch moves a lapsed, non-terminal payment to DEADLINE_EXPIRED.
// There is no background sweeper; expiry is enforced whenever the payment is
// read or mutated.
func (s *LifecycleService) expireOnTouch(ctx context.Context, p *domain.Payment) (*domain.Payment, error) {
	if p.IsTerminal() || !p.IsExpired(time.Now().UTC()) {
		return p, nil
	}
	expired, err := s.apply(ctx, p, domain.EventDeadlineExpired, domain.ActorSystem, "payment deadline elapsed", nil)
	if err != nil {
		// A concurrent transition beat us; the fresh row wins.
		if errors.Is(err, ports.ErrVersionConflict) {
			return s.reload(ctx, p.PaymentID)
		}
		return nil, err
	}
	return expired, nil
}

// withLockedPayment runs fn with the per-payment lock held and the freshest
// payment row, retrying version conflicts within the configured budget.
func (s *LifecycleService) withLockedPayment(
	ctx context.Context,
	paymentID string,
	op string,
	fn func(ctx context.Context, p *domain.Payment) (*domain.Payment, error),
) (*domain.Payment, error) {
	lease, err := s.acquireLock(ctx, "payment:"+paymentID, op)
	if err != nil {
		return nil, err
	}
	defer s.locks.Release(lease)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxUpdateRetries; attempt++ {
		p, err := s.reload(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		updated, err := fn(ctx, p)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, apperror.ErrDatabaseError(lastErr)
}

func (s *LifecycleService) reload(ctx context.Context, paymentID string) (*domain.Payment, error) {
	p, err := s.payments.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if p == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	return p, nil
}

// apply validates the event against the state machine, persists the change
// with a version check and fans out metrics and the merchant webhook.
func (s *LifecycleService) apply(
	ctx context.Context,
	p *domain.Payment,
	event domain.Event,
	actor domain.Actor,
	reason string,
	customize func(*ports.TransitionParams),
) (*domain.Payment, error) {
	next, err := domain.Propose(p.Status, event)
	if err != nil {
		return nil, apperror.ErrIllegalState(string(p.Status))
	}

	params := ports.TransitionParams{
		PaymentRef:      p.ID,
		ExpectedVersion: p.Version,
		NewStatus:       next,
		Actor:           actor,
		Reason:          reason,
		CorrelationID:   correlation.FromContext(ctx),
	}
	if customize != nil {
		customize(&params)
	}

	updated, err := s.payments.Transition(ctx, params)
	if err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, err
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	s.metrics.PaymentTransition(updated.Status)
	s.log.Info().
		Str("payment_id", updated.PaymentID).
		Str("from", string(p.Status)).
		Str("to", string(updated.Status)).
		Str("actor", string(actor)).
		Msg("payment transition")

	if _, notify := notifiableStatuses[updated.Status]; notify && updated.NotificationURL != "" {
		tr := domain.PaymentTransition{
			PaymentRef:    updated.ID,
			FromStatus:    p.Status,
			ToStatus:      updated.Status,
			Actor:         actor,
			Reason:        reason,
			CorrelationID: params.CorrelationID,
			CreatedAt:     updated.UpdatedAt,
		}
		if nerr := s.notifier.EnqueueStateChange(ctx, updated, tr); nerr != nil {
			// Delivery is best effort beyond the persisted transition row.
			s.log.Error().Err(nerr).Str("payment_id", updated.PaymentID).Msg("webhook enqueue failed")
		}
	}
	return updated, nil
}

func (s *LifecycleService) acquireLock(ctx context.Context, key, op string) (*ports.Lease, error) {
	holder := op + "#" + uuid.NewString()[:8]
	start := time.Now()
	lease, err := s.locks.Acquire(ctx, key, holder, s.cfg.LockLease, s.cfg.LockWait)
	s.metrics.LockWaitObserved(time.Since(start))
	if err != nil {
		if errors.Is(err, ports.ErrLockWaitTimeout) {
			return nil, apperror.ErrLockTimeout(err)
		}
		return nil, apperror.InternalError(err)
	}
	return lease, nil
}

// callAcquirer retries transport failures within the configured budget.
// Business declines come back through the result, never as an error here.
func (s *LifecycleService) callAcquirer(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.AcquirerRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.AcquirerRetryWait):
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrAcquirerUnavailable) {
			return err
		}
	}
	return err
}

// idempotencyKey derives the acquirer deduplication key from the payment and
// the version that initiated the operation, so retries replay rather than
// double-charge.
func idempotencyKey(paymentID string, version int64) string {
	return paymentID + ":" + strconv.FormatInt(version, 10)
}

// newPaymentID returns a 20-char hex external identifier.
func newPaymentID() string {
	var b [10]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the process is in no state to take money.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// validateCard checks the form input without ever logging or storing it.
func validateCard(pan, expDate, cvv string) error {
	digits := strings.TrimSpace(strings.ReplaceAll(pan, " ", ""))
	if digits == "" {
		return apperror.ErrMissingField("CardNumber")
	}
	if len(digits) < 13 || len(digits) > 19 || !allDigits(digits) || !luhnValid(digits) {
		return apperror.ErrValidation("Invalid card number")
	}
	if len(expDate) != 4 || !allDigits(expDate) {
		return apperror.ErrValidation("ExpDate must be MMYY")
	}
	month, _ := strconv.Atoi(expDate[:2])
	year, _ := strconv.Atoi(expDate[2:])
	if month < 1 || month > 12 {
		return apperror.ErrValidation("ExpDate must be MMYY")
	}
	now := time.Now().UTC()
	endOfMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !endOfMonth.After(now) {
		return apperror.ErrValidation("Card is expired")
	}
	if len(cvv) < 3 || len(cvv) > 4 || !allDigits(cvv) {
		return apperror.ErrValidation("Invalid CVV")
	}
	return nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// luhnValid implements the standard mod-10 check.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
