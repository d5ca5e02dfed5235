package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestWithLock_HoldsKeyAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, 10*time.Second)
	key := AppointmentKey(uuid.New())

	called := false
	err := locker.WithLock(context.Background(), key, func(ctx context.Context) error {
		called = true
		assert.True(t, mr.Exists("lock:"+key))
		assert.Equal(t, 10*time.Second, mr.TTL("lock:"+key))
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, mr.Exists("lock:"+key))
}

func TestWithLock_Contended(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	key := AppointmentKey(uuid.New())
	require.NoError(t, mr.Set("lock:"+key, "other-holder"))

	err := locker.WithLock(context.Background(), key, func(context.Context) error {
		t.Fatal("fn must not run without the lock")
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	got, _ := mr.Get("lock:" + key)
	assert.Equal(t, "other-holder", got)
}

func TestWithLock_KeepsNextHoldersLock(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	key := AppointmentKey(uuid.New())

	// The first holder's TTL lapses mid-flight and someone else takes the key.
	err := locker.WithLock(context.Background(), key, func(context.Context) error {
		mr.Del("lock:" + key)
		return mr.Set("lock:"+key, "next-holder")
	})

	require.NoError(t, err)
	got, err := mr.Get("lock:" + key)
	require.NoError(t, err)
	assert.Equal(t, "next-holder", got)
}

func TestWithLock_ReturnsFnErrorAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	key := AppointmentKey(uuid.New())
	boom := errors.New("insert failed")

	err := locker.WithLock(context.Background(), key, func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:"+key))
}

func TestWithLock_RedisDown(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	mr.Close()

	err := locker.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}
