package metrics

import (
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink exports gateway counters to a prometheus registry.
type Sink struct {
	transitions     *prometheus.CounterVec
	rateLimitDenied *prometheus.CounterVec
	lockWait        prometheus.Histogram
	queueDepth      prometheus.Gauge
	webhookAttempts *prometheus.CounterVec
}

// NewSink registers the gateway metrics on reg and returns the sink.
func NewSink(reg prometheus.Registerer) *Sink {
	s := &Sink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "payment_transitions_total",
			Help:      "Payment state transitions by target status.",
		}, []string{"status"}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "rate_limit_denied_total",
			Help:      "Requests rejected by rate limiting, by policy.",
		}, []string{"policy"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for payment locks.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the background queue.",
		}),
		webhookAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "webhook_attempts_total",
			Help:      "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(s.transitions, s.rateLimitDenied, s.lockWait, s.queueDepth, s.webhookAttempts)
	return s
}

func (s *Sink) PaymentTransition(to domain.Status) {
	s.transitions.WithLabelValues(string(to)).Inc()
}

func (s *Sink) RateLimitDenied(policy string) {
	s.rateLimitDenied.WithLabelValues(policy).Inc()
}

func (s *Sink) LockWaitObserved(d time.Duration) {
	s.lockWait.Observe(d.Seconds())
}

func (s *Sink) QueueDepth(depth int) {
	s.queueDepth.Set(float64(depth))
}

func (s *Sink) WebhookAttempt(delivered bool) {
	outcome := "failed"
	if delivered {
		outcome = "delivered"
	}
	s.webhookAttempts.WithLabelValues(outcome).Inc()
}

// Nop discards all observations. Used in tests and as a default when metrics
// are disabled.
type Nop struct{}

func (Nop) PaymentTransition(domain.Status) {}
func (Nop) RateLimitDenied(string)          {}
func (Nop) LockWaitObserved(time.Duration)  {}
func (Nop) QueueDepth(int)                  {}
func (Nop) WebhookAttempt(bool)             {}
