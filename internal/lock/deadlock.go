package lock

import (
	"context"
	"sync"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/rs/zerolog"
)

// CycleRecord documents one detected wait-for cycle.
type CycleRecord struct {
	DetectedAt time.Time
	Members    []string // holder ids participating in the cycle
	Victim     string   // holder whose lease was released, empty without auto-resolve
	VictimKeys []string
	Resolved   bool
}

// DetectorConfig tunes the deadlock detector.
type DetectorConfig struct {
	Interval    time.Duration
	AutoResolve bool
	HistoryCap  int
}

// Detector periodically walks the lock service's wait-for graph and breaks
// cycles by evicting the youngest participant's lease. One instance runs per
// process.
type Detector struct {
	locks ports.LockService
	cfg   DetectorConfig
	log   zerolog.Logger

	mu      sync.Mutex
	history []CycleRecord
}

// NewDetector creates a deadlock detector over the given lock service.
func NewDetector(locks ports.LockService, cfg DetectorConfig, log zerolog.Logger) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 100
	}
	return &Detector{locks: locks, cfg: cfg, log: log}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}

// Sweep performs one detection pass and returns the cycles found.
func (d *Detector) Sweep() []CycleRecord {
	snap := d.locks.Snapshot()

	// heldBy: holder -> keys it holds; edges: waiter -> holder blocking it.
	heldBy := make(map[string][]string)
	keyHolder := make(map[string]string)
	for key, info := range snap.Holders {
		heldBy[info.Holder] = append(heldBy[info.Holder], key)
		keyHolder[key] = info.Holder
	}

	edges := make(map[string][]string)
	for key, waiters := range snap.Waiters {
		holder, ok := keyHolder[key]
		if !ok {
			continue
		}
		for _, w := range waiters {
			if w == holder {
				continue
			}
			edges[w] = append(edges[w], holder)
		}
	}

	var found []CycleRecord
	state := make(map[string]int) // 0 unvisited, 1 on stack, 2 done
	var stack []string

	var visit func(node string)
	visit = func(node string) {
		state[node] = 1
		stack = append(stack, node)
		for _, next := range edges[node] {
			switch state[next] {
			case 0:
				visit(next)
			case 1:
				// Cycle: slice of the stack from next onwards.
				var members []string
				for i := len(stack) - 1; i >= 0; i-- {
					members = append(members, stack[i])
					if stack[i] == next {
						break
					}
				}
				found = append(found, d.resolve(members, snap, heldBy))
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = 2
	}

	for node := range edges {
		if state[node] == 0 {
			visit(node)
		}
	}

	if len(found) > 0 {
		d.mu.Lock()
		d.history = append(d.history, found...)
		if over := len(d.history) - d.cfg.HistoryCap; over > 0 {
			d.history = d.history[over:]
		}
		d.mu.Unlock()
	}
	return found
}

// History returns recorded cycles, oldest first.
func (d *Detector) History() []CycleRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]CycleRecord(nil), d.history...)
}

// resolve logs a cycle and, when enabled, evicts the youngest participant.
func (d *Detector) resolve(members []string, snap ports.LockSnapshot, heldBy map[string][]string) CycleRecord {
	rec := CycleRecord{DetectedAt: time.Now(), Members: members}

	d.log.Error().Strs("members", members).Msg("lock wait-for cycle detected")

	if !d.cfg.AutoResolve {
		return rec
	}

	// Youngest participant: latest lease acquisition time.
	var victim string
	var victimAt time.Time
	for _, m := range members {
		for _, key := range heldBy[m] {
			if info, ok := snap.Holders[key]; ok && info.AcquiredAt.After(victimAt) {
				victim = m
				victimAt = info.AcquiredAt
			}
		}
	}
	if victim == "" {
		return rec
	}

	rec.Victim = victim
	for _, key := range heldBy[victim] {
		if d.locks.ForceRelease(key) {
			rec.VictimKeys = append(rec.VictimKeys, key)
			rec.Resolved = true
		}
	}
	d.log.Warn().Str("victim", victim).Strs("keys", rec.VictimKeys).Msg("deadlock resolved by lease eviction")
	return rec
}
