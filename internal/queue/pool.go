package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/rs/zerolog"
)

// Config tunes the background worker pool.
type Config struct {
	Capacity    int           // queued job limit before ErrQueueFull
	Workers     int           // concurrent workers
	JobTimeout  time.Duration // per-attempt deadline
	MaxRetries  int           // additional attempts for idempotent jobs
	BackoffBase time.Duration // first retry delay, doubled per attempt
}

// DefaultConfig returns the production pool settings.
func DefaultConfig() Config {
	return Config{
		Capacity:    10000,
		Workers:     50,
		JobTimeout:  5 * time.Minute,
		MaxRetries:  3,
		BackoffBase: 30 * time.Second,
	}
}

type job struct {
	name       string
	idempotent bool
	fn         func(ctx context.Context) error
}

// Pool is a bounded FIFO queue drained by a fixed worker set. Admission is
// non-blocking: a full queue rejects with ports.ErrQueueFull so callers can
// surface backpressure instead of piling up goroutines.
type Pool struct {
	cfg     Config
	log     zerolog.Logger
	metrics ports.MetricsSink

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
	depth  atomic.Int64
}

// NewPool creates and starts the worker pool.
func NewPool(cfg Config, metrics ports.MetricsSink, log zerolog.Logger) *Pool {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 50
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		jobs:    make(chan job, cfg.Capacity),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Enqueue admits a job, or rejects immediately when the queue is full or the
// pool is shutting down.
func (p *Pool) Enqueue(name string, idempotent bool, fn func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ports.ErrQueueFull
	}
	select {
	case p.jobs <- job{name: name, idempotent: idempotent, fn: fn}:
		p.metrics.QueueDepth(int(p.depth.Add(1)))
		return nil
	default:
		p.log.Warn().Str("job", name).Msg("queue full, job rejected")
		return ports.ErrQueueFull
	}
}

// Depth reports the number of queued, not yet started jobs.
func (p *Pool) Depth() int {
	return int(p.depth.Load())
}

// Shutdown stops admission, cancels running jobs and waits for workers to
// exit or ctx to elapse. Queued jobs that never started are dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closed.Store(true)
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if n := p.depth.Load(); n > 0 {
			p.log.Warn().Int64("dropped", n).Msg("queued jobs dropped on shutdown")
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.jobs:
			p.metrics.QueueDepth(int(p.depth.Add(-1)))
			p.run(j)
		}
	}
}

// run executes a job with per-attempt deadlines. Idempotent jobs retry with
// exponential backoff; a failure after the last attempt is logged and dropped.
func (p *Pool) run(j job) {
	backoff := p.cfg.BackoffBase
	attempts := 1
	if j.idempotent {
		attempts += p.cfg.MaxRetries
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(p.ctx, p.cfg.JobTimeout)
		err := j.fn(ctx)
		cancel()
		if err == nil {
			return
		}
		if p.ctx.Err() != nil {
			p.log.Warn().Str("job", j.name).Msg("job cancelled by shutdown")
			return
		}
		p.log.Error().Err(err).Str("job", j.name).Int("attempt", attempt).Msg("job failed")
		if attempt == attempts {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
