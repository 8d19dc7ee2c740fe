package xredis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要真实 redis：REDIS_ADDR=127.0.0.1:6379 go test ./pkg/xredis
func testRedis(t *testing.T) *Config {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	return &Config{Addr: addr}
}

func TestNewRedis_Disabled(t *testing.T) {
	rdb, err := NewRedis(&Config{})
	assert.NoError(t, err)
	assert.Nil(t, rdb)

	rdb, err = NewRedis(nil)
	assert.NoError(t, err)
	assert.Nil(t, rdb)
}

func TestRunLock_Exclusive(t *testing.T) {
	rdb, err := NewRedis(testRedis(t))
	require.NoError(t, err)
	defer rdb.Close()

	ctx := context.Background()
	key := "recorder:lock:test:" + uuid.NewString()
	a, b := NewRunLock(rdb), NewRunLock(rdb)

	ok, err := a.TryAcquire(ctx, key, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx, key, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// 自己再抢一次算续期
	ok, err = a.TryAcquire(ctx, key, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	// 别人释放不掉
	require.NoError(t, b.Release(ctx, key))
	ok, _ = b.TryAcquire(ctx, key, time.Second)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx, key))
	ok, err = b.TryAcquire(ctx, key, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	_ = b.Release(ctx, key)
}

func TestRunLock_Hold(t *testing.T) {
	rdb, err := NewRedis(testRedis(t))
	require.NoError(t, err)
	defer rdb.Close()

	ctx := context.Background()
	key := "recorder:lock:test:" + uuid.NewString()
	a, b := NewRunLock(rdb), NewRunLock(rdb)

	err = a.Hold(ctx, key, 300*time.Millisecond, func(ctx context.Context) error {
		// 续期保证超过 ttl 之后锁还在
		time.Sleep(500 * time.Millisecond)
		return b.Hold(ctx, key, time.Second, func(context.Context) error { return nil })
	})
	assert.ErrorIs(t, err, ErrLockHeld)

	// 结束后释放
	called := false
	require.NoError(t, b.Hold(ctx, key, time.Second, func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
