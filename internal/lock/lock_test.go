package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, "intake", time.Second)
}

func TestWithLockReleases(t *testing.T) {
	mr, locker := setupLocker(t)
	ctx := context.Background()

	ran := false
	err := locker.WithLock(ctx, "+2348012345678", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:intake:+2348012345678"))
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:intake:+2348012345678"))
}

func TestWithLockContention(t *testing.T) {
	mr, locker := setupLocker(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("lock:intake:+2348012345678", "someone-else"))

	err := locker.WithLock(ctx, "+2348012345678", func(context.Context) error {
		t.Fatal("fn must not run while the lock is held")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// a foreign holder's key is left alone
	got, err := mr.Get("lock:intake:+2348012345678")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestWithLockPropagatesError(t *testing.T) {
	mr, locker := setupLocker(t)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:intake:k"))
}

func TestWithLockRedisDown(t *testing.T) {
	mr, locker := setupLocker(t)
	mr.Close()

	err := locker.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}
