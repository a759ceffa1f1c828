package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestNightLock_AcquireRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewNightLock(client, time.Minute, nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "2025-03-14", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "2025-03-14", "token-b")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	// another night is independent
	ok, err = l.Acquire(ctx, "2025-03-15", "token-b")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Release(ctx, "2025-03-14", "token-a"))

	ok, err = l.Acquire(ctx, "2025-03-14", "token-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNightLock_ReleaseOnlyOwnToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewNightLock(client, time.Minute, nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "2025-03-14", "owner")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "2025-03-14", "intruder"))

	holder, err := mr.Get(keyPrefix + "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, "owner", holder)

	require.NoError(t, l.Release(ctx, "2025-03-14", "owner"))
	assert.False(t, mr.Exists(keyPrefix+"2025-03-14"))

	// releasing a free night is a no-op
	assert.NoError(t, l.Release(ctx, "2025-03-14", "owner"))
}

func TestNightLock_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewNightLock(client, 5*time.Second, nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "2025-03-14", "crashed-writer")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, err = l.Acquire(ctx, "2025-03-14", "next-writer")
	require.NoError(t, err)
	assert.True(t, ok, "expired lock must not block the night")
}

func TestNightLock_ExpiredOwnerCannotReleaseSuccessor(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewNightLock(client, 5*time.Second, nil)
	ctx := context.Background()

	ok, err := l.Acquire(ctx, "2025-03-14", "slow-writer")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	ok, err = l.Acquire(ctx, "2025-03-14", "next-writer")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "2025-03-14", "slow-writer"))

	holder, err := mr.Get(keyPrefix + "2025-03-14")
	require.NoError(t, err)
	assert.Equal(t, "next-writer", holder)

	ok, err = l.Acquire(ctx, "2025-03-14", "third-writer")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNightLock_DefaultTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewNightLock(client, 0, nil)
	assert.Equal(t, DefaultLockTTL, l.TTL)

	ok, err := l.Acquire(context.Background(), "2025-03-14", "t")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultLockTTL, mr.TTL(keyPrefix+"2025-03-14"))
}

func TestNightLock_ConcurrentAcquire(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewNightLock(client, time.Minute, nil)

	const attempts = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := l.Acquire(context.Background(), "2025-03-14", fmt.Sprintf("token-%d", n))
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners, "exactly one writer may hold the night")
}

func TestNightLock_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewNightLock(client, time.Minute, nil)
	mr.Close()

	_, err = l.Acquire(context.Background(), "2025-03-14", "t")
	assert.Error(t, err)
}
