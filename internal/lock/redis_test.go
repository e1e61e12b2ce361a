package lock

import (
	"context"
	"testing"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLock(t *testing.T) (*RedisLockService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLockService(client, zerolog.Nop()), mr
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	s, _ := newRedisLock(t)
	ctx := context.Background()

	lease, err := s.Acquire(ctx, "payment:1", "op-a", time.Minute, time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)

	_, err = s.Acquire(ctx, "payment:1", "op-b", time.Minute, 120*time.Millisecond)
	assert.ErrorIs(t, err, ports.ErrLockWaitTimeout)

	s.Release(lease)

	lease2, err := s.Acquire(ctx, "payment:1", "op-b", time.Minute, time.Second)
	require.NoError(t, err)
	s.Release(lease2)
}

func TestRedisLock_ExpiryGrantsWaiter(t *testing.T) {
	s, mr := newRedisLock(t)
	ctx := context.Background()

	lease, err := s.Acquire(ctx, "payment:1", "op-a", 100*time.Millisecond, time.Second)
	require.NoError(t, err)
	// Stop renewal so the lease actually lapses.
	s.stopRenewal(lease.Key)

	mr.FastForward(150 * time.Millisecond)

	lease2, err := s.Acquire(ctx, "payment:1", "op-b", time.Minute, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "op-b", lease2.Holder)
	s.Release(lease2)
}

func TestRedisLock_StaleReleaseKeepsNewHolder(t *testing.T) {
	s, mr := newRedisLock(t)
	ctx := context.Background()

	old, err := s.Acquire(ctx, "payment:1", "op-a", 100*time.Millisecond, time.Second)
	require.NoError(t, err)
	s.stopRenewal(old.Key)
	mr.FastForward(150 * time.Millisecond)

	fresh, err := s.Acquire(ctx, "payment:1", "op-b", time.Minute, time.Second)
	require.NoError(t, err)

	// The stale token must not delete op-b's lease.
	s.Release(old)
	_, err = s.Acquire(ctx, "payment:1", "op-c", time.Minute, 120*time.Millisecond)
	assert.ErrorIs(t, err, ports.ErrLockWaitTimeout)
	s.Release(fresh)
}

func TestRedisLock_ForceRelease(t *testing.T) {
	s, _ := newRedisLock(t)
	ctx := context.Background()

	_, err := s.Acquire(ctx, "payment:1", "op-a", time.Minute, time.Second)
	require.NoError(t, err)

	assert.True(t, s.ForceRelease("payment:1"))
	assert.False(t, s.ForceRelease("payment:1"))

	lease, err := s.Acquire(ctx, "payment:1", "op-b", time.Minute, time.Second)
	require.NoError(t, err)
	s.Release(lease)
}

func TestRedisLock_Snapshot(t *testing.T) {
	s, _ := newRedisLock(t)
	ctx := context.Background()

	lease, err := s.Acquire(ctx, "payment:1", "op-a", time.Minute, time.Second)
	require.NoError(t, err)
	defer s.Release(lease)

	snap := s.Snapshot()
	require.Contains(t, snap.Holders, "payment:1")
	assert.Equal(t, "op-a", snap.Holders["payment:1"].Holder)
}
