package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStore(rdb, ttl), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t, time.Minute)
	key := s.Key("disburse", "paid.txt")
	assert.Equal(t, "idem:disburse:paid.txt", key)

	lease, err := s.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = s.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrHeld)

	require.NoError(t, lease.Release(ctx))

	again, err := s.Acquire(ctx, key)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestLeaseExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t, time.Minute)
	key := s.Key("disburse", "ledger")

	stale, err := s.Acquire(ctx, key)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	fresh, err := s.Acquire(ctx, key)
	require.NoError(t, err)

	// The expired lease must not release the new holder's key.
	require.NoError(t, stale.Release(ctx))
	_, err = s.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrHeld)

	require.NoError(t, fresh.Release(ctx))
}
