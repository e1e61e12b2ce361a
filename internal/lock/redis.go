package lock

import (
	"context"
	"sync"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript extends the lease only while it still carries our token.
var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLockService implements ports.LockService on a Redis conditional set
// (SET NX PX) with background lease renewal. Waiters poll; ordering under
// contention is best-effort rather than strictly FIFO. Holder and waiter
// metadata reflects this process's view, which is what the in-process
// deadlock detector needs.
type RedisLockService struct {
	client       *goredis.Client
	prefix       string
	pollInterval time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	held    map[string]heldLease // key -> live lease owned by this process
	waiting map[string][]string  // key -> holder ids polling for it
}

type heldLease struct {
	info ports.LeaseInfo
	stop chan struct{}
}

// NewRedisLockService creates a Redis-backed lock service.
func NewRedisLockService(client *goredis.Client, log zerolog.Logger) *RedisLockService {
	return &RedisLockService{
		client:       client,
		prefix:       "lock:",
		pollInterval: 50 * time.Millisecond,
		log:          log,
	}
}

// Acquire polls SET NX until granted or wait elapses.
func (s *RedisLockService) Acquire(ctx context.Context, key, holder string, lease, wait time.Duration) (*ports.Lease, error) {
	deadline := time.Now().Add(wait)
	redisKey := s.prefix + key

	s.addWaiter(key, holder)
	defer s.removeWaiter(key, holder)

	for {
		token := uuid.New().String()
		ok, err := s.client.SetNX(ctx, redisKey, token, lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			now := time.Now()
			l := &ports.Lease{
				Key:        key,
				Holder:     holder,
				Token:      token,
				AcquiredAt: now,
				ExpiresAt:  now.Add(lease),
			}
			s.startRenewal(l, lease)
			return l, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ports.ErrLockWaitTimeout
		}
		sleep := s.pollInterval
		if sleep > remaining {
			sleep = remaining
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// Release drops the lease if this process still owns it.
func (s *RedisLockService) Release(lease *ports.Lease) {
	if lease == nil {
		return
	}
	s.stopRenewal(lease.Key)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + lease.Key}, lease.Token).Err(); err != nil && err != goredis.Nil {
		s.log.Warn().Err(err).Str("key", lease.Key).Msg("lock release failed")
	}
}

// ForceRelease deletes the key unconditionally.
func (s *RedisLockService) ForceRelease(key string) bool {
	s.mu.Lock()
	if h, ok := s.held[key]; ok {
		close(h.stop)
		delete(s.held, key)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := s.client.Del(ctx, s.prefix+key).Result()
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("lock force-release failed")
		return false
	}
	return n > 0
}

// Snapshot returns this process's holder/waiter view.
func (s *RedisLockService) Snapshot() ports.LockSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ports.LockSnapshot{
		Holders: make(map[string]ports.LeaseInfo, len(s.held)),
		Waiters: make(map[string][]string, len(s.waiting)),
	}
	for key, h := range s.held {
		snap.Holders[key] = h.info
	}
	for key, ws := range s.waiting {
		snap.Waiters[key] = append([]string(nil), ws...)
	}
	return snap
}

func (s *RedisLockService) startRenewal(l *ports.Lease, lease time.Duration) {
	stop := make(chan struct{})

	s.mu.Lock()
	if s.held == nil {
		s.held = make(map[string]heldLease)
	}
	s.held[l.Key] = heldLease{
		info: ports.LeaseInfo{Holder: l.Holder, AcquiredAt: l.AcquiredAt, ExpiresAt: l.ExpiresAt},
		stop: stop,
	}
	s.mu.Unlock()

	interval := lease / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				res, err := renewScript.Run(ctx, s.client, []string{s.prefix + l.Key}, l.Token, lease.Milliseconds()).Int()
				cancel()
				if err != nil || res == 0 {
					// Lease lost (expired or force-released elsewhere).
					s.stopRenewal(l.Key)
					return
				}
			}
		}
	}()
}

func (s *RedisLockService) stopRenewal(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.held[key]; ok {
		select {
		case <-h.stop:
			// already stopped
		default:
			close(h.stop)
		}
		delete(s.held, key)
	}
}

func (s *RedisLockService) addWaiter(key, holder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waiting == nil {
		s.waiting = make(map[string][]string)
	}
	s.waiting[key] = append(s.waiting[key], holder)
}

func (s *RedisLockService) removeWaiter(key, holder string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.waiting[key]
	for i, w := range ws {
		if w == holder {
			s.waiting[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(s.waiting[key]) == 0 {
		delete(s.waiting, key)
	}
}
