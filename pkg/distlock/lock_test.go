package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestLock_TryAcquire_SecondHolderBlocked(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	first := New(rdb, "outbox-order", time.Minute)
	second := New(rdb, "outbox-order", time.Minute)

	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire a lock already held")
}

func TestLock_ReleaseThenReacquire(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	first := New(rdb, "outbox-payment", time.Minute)
	ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, first.Release(ctx))

	second := New(rdb, "outbox-payment", time.Minute)
	ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "lock must be acquirable again after release")
}

func TestLock_RenewFailsForNonHolder(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	first := New(rdb, "outbox-shipping", time.Minute)
	_, err := first.TryAcquire(ctx)
	require.NoError(t, err)

	second := New(rdb, "outbox-shipping", time.Minute)
	err = second.Renew(ctx)
	assert.ErrorIs(t, err, ErrNotHeld)
}

func TestLock_RunWhileHeld_StopsOnContextCancel(t *testing.T) {
	rdb := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	l := New(rdb, "outbox-inventory", 200*time.Millisecond)

	ran := make(chan struct{})
	go l.RunWhileHeld(ctx, 10*time.Millisecond, func(runCtx context.Context) {
		close(ran)
		<-runCtx.Done()
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fn was never invoked")
	}

	cancel()
}
