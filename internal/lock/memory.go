package lock

import (
	"context"
	"sync"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/google/uuid"
)

// MemoryLockService implements ports.LockService with a single-process keyed
// lease table. Waiters are queued in arrival order, so grants are FIFO per
// key. Expired leases are evicted by a timer and the next waiter is granted
// immediately.
type MemoryLockService struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

type lockState struct {
	lease *ports.Lease
	timer *time.Timer
	queue []*waiter
}

type waiter struct {
	holder   string
	leaseDur time.Duration
	granted  chan *ports.Lease // buffered, capacity 1
	gone     bool              // waiter gave up (timeout/cancel)
}

// NewMemoryLockService creates an empty in-memory lock table.
func NewMemoryLockService() *MemoryLockService {
	return &MemoryLockService{locks: make(map[string]*lockState)}
}

// Acquire blocks up to wait for an exclusive lease on key.
func (s *MemoryLockService) Acquire(ctx context.Context, key, holder string, lease, wait time.Duration) (*ports.Lease, error) {
	s.mu.Lock()

	st := s.locks[key]
	if st == nil {
		st = &lockState{}
		s.locks[key] = st
	}
	s.reapExpiredLocked(key, st)

	// Fast path: key free and nobody queued ahead.
	if st.lease == nil && len(st.queue) == 0 {
		l := s.grantLocked(key, st, holder, lease)
		s.mu.Unlock()
		return l, nil
	}

	w := &waiter{holder: holder, leaseDur: lease, granted: make(chan *ports.Lease, 1)}
	st.queue = append(st.queue, w)
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case l := <-w.granted:
		return l, nil
	case <-timer.C:
		s.abandon(key, w)
		// A grant may have raced the timeout; surrender it.
		select {
		case l := <-w.granted:
			return l, nil
		default:
		}
		return nil, ports.ErrLockWaitTimeout
	case <-ctx.Done():
		s.abandon(key, w)
		select {
		case l := <-w.granted:
			return l, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// Release returns the lease. Foreign or stale tokens are ignored.
func (s *MemoryLockService) Release(lease *ports.Lease) {
	if lease == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.locks[lease.Key]
	if st == nil || st.lease == nil || st.lease.Token != lease.Token {
		return
	}
	s.evictLocked(lease.Key, st)
}

// ForceRelease evicts whatever lease is live on key.
func (s *MemoryLockService) ForceRelease(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.locks[key]
	if st == nil || st.lease == nil {
		return false
	}
	s.evictLocked(key, st)
	return true
}

// Snapshot exposes holder and waiter metadata for the deadlock detector.
func (s *MemoryLockService) Snapshot() ports.LockSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ports.LockSnapshot{
		Holders: make(map[string]ports.LeaseInfo),
		Waiters: make(map[string][]string),
	}
	now := time.Now()
	for key, st := range s.locks {
		if st.lease != nil && st.lease.ExpiresAt.After(now) {
			snap.Holders[key] = ports.LeaseInfo{
				Holder:     st.lease.Holder,
				AcquiredAt: st.lease.AcquiredAt,
				ExpiresAt:  st.lease.ExpiresAt,
			}
		}
		for _, w := range st.queue {
			if !w.gone {
				snap.Waiters[key] = append(snap.Waiters[key], w.holder)
			}
		}
	}
	return snap
}

// grantLocked installs a lease for holder and schedules its expiry.
func (s *MemoryLockService) grantLocked(key string, st *lockState, holder string, dur time.Duration) *ports.Lease {
	now := time.Now()
	l := &ports.Lease{
		Key:        key,
		Holder:     holder,
		Token:      uuid.New().String(),
		AcquiredAt: now,
		ExpiresAt:  now.Add(dur),
	}
	st.lease = l
	token := l.Token
	st.timer = time.AfterFunc(dur, func() {
		s.expire(key, token)
	})
	return l
}

// evictLocked clears the live lease and hands the key to the next waiter.
func (s *MemoryLockService) evictLocked(key string, st *lockState) {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.lease = nil

	for len(st.queue) > 0 {
		w := st.queue[0]
		st.queue = st.queue[1:]
		if w.gone {
			continue
		}
		l := s.grantLocked(key, st, w.holder, w.leaseDur)
		w.granted <- l
		return
	}
	if len(st.queue) == 0 {
		delete(s.locks, key)
	}
}

// reapExpiredLocked drops a lease whose deadline has passed without the
// expiry timer having fired yet.
func (s *MemoryLockService) reapExpiredLocked(key string, st *lockState) {
	if st.lease != nil && !st.lease.ExpiresAt.After(time.Now()) {
		s.evictLocked(key, st)
	}
}

func (s *MemoryLockService) expire(key, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.locks[key]
	if st == nil || st.lease == nil || st.lease.Token != token {
		return
	}
	s.evictLocked(key, st)
}

func (s *MemoryLockService) abandon(key string, w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.gone = true
	if st := s.locks[key]; st != nil && st.lease == nil && len(st.queue) > 0 {
		// The abandoned waiter may be blocking the head of the queue.
		s.evictLocked(key, st)
	}
}
