package xredis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("run lock held by another node")

// 只有持有者才能续期/释放
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// RunLock 同一个 recorder 同一时刻只允许一个节点在跑
type RunLock struct {
	rdb *redis.Client
	id  string
}

func NewRunLock(rdb *redis.Client) *RunLock {
	return &RunLock{
		rdb: rdb,
		id:  fmt.Sprintf("%s-%d", uuid.New().String(), time.Now().UnixNano()),
	}
}

func (l *RunLock) ID() string { return l.id }

// TryAcquire SETNX 抢锁；如果锁本来就是自己的则续期
func (l *RunLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, key, l.id, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	renewed, err := renewScript.Run(ctx, l.rdb, []string{key}, l.id, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return renewed == 1, nil
}

func (l *RunLock) Release(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, l.rdb, []string{key}, l.id).Err()
}

// Hold 拿到锁后执行 fn，期间按 ttl/3 续期，结束释放
func (l *RunLock) Hold(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	ok, err := l.TryAcquire(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return ErrLockHeld
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if ok, err := l.TryAcquire(runCtx, key, ttl); err == nil && !ok {
					// 锁被抢走，停止当前任务
					cancel()
					return
				}
			}
		}
	}()

	runErr := fn(runCtx)
	cancel()
	<-done
	_ = l.Release(context.WithoutCancel(ctx), key)
	return runErr
}
