package runlock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/george-bobby/app-opencats-sub001/pkg/errors"
)

const testKey = "spree-seeder:lock:spree"

func setupTestRedis(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, time.Minute), mr
}

// ---------------------------------------------------------------------------
// Acquire
// ---------------------------------------------------------------------------

func TestAcquire_StoresTokenWithTTL(t *testing.T) {
	locker, mr := setupTestRedis(t)

	lock, err := locker.Acquire(context.Background(), testKey, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", lock.Token())

	got, err := mr.Get(testKey)
	require.NoError(t, err)
	assert.Equal(t, "run-1", got)
	assert.Equal(t, time.Minute, mr.TTL(testKey))
}

func TestAcquire_GeneratesTokenWithoutRunID(t *testing.T) {
	locker, _ := setupTestRedis(t)

	lock, err := locker.Acquire(context.Background(), testKey, "")
	require.NoError(t, err)
	assert.NotEmpty(t, lock.Token())
}

func TestAcquire_HeldByAnotherRun(t *testing.T) {
	locker, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, testKey, "run-1")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, testKey, "run-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHeld))
	assert.True(t, errors.Is(err, apperrors.ErrConflict))
	assert.Contains(t, err.Error(), "run-1")
}

func TestAcquire_AfterExpiry(t *testing.T) {
	locker, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := locker.Acquire(ctx, testKey, "run-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	lock, err := locker.Acquire(ctx, testKey, "run-2")
	require.NoError(t, err)
	assert.Equal(t, "run-2", lock.Token())
}

// ---------------------------------------------------------------------------
// Release / Refresh
// ---------------------------------------------------------------------------

func TestRelease_DeletesOwnLock(t *testing.T) {
	locker, mr := setupTestRedis(t)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, testKey, "run-1")
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists(testKey))
}

func TestRelease_LeavesForeignLock(t *testing.T) {
	locker, mr := setupTestRedis(t)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, testKey, "run-1")
	require.NoError(t, err)

	// The lock expired and another run took it.
	require.NoError(t, mr.Set(testKey, "run-2"))

	require.NoError(t, lock.Release(ctx))
	got, err := mr.Get(testKey)
	require.NoError(t, err)
	assert.Equal(t, "run-2", got)
}

func TestRefresh(t *testing.T) {
	locker, mr := setupTestRedis(t)
	ctx := context.Background()

	lock, err := locker.Acquire(ctx, testKey, "run-1")
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)

	require.NoError(t, lock.Refresh(ctx))
	assert.Equal(t, time.Minute, mr.TTL(testKey))

	mr.Del(testKey)
	err = lock.Refresh(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock lost")
}
