package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"datahouse.com/internal/config"
	"datahouse.com/internal/progress"
	"datahouse.com/internal/recorder"
	"datahouse.com/pkg/orm"
	"datahouse.com/pkg/xredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCfg(t *testing.T) *config.Cfg {
	return &config.Cfg{
		Name: "recorder-test",
		Databases: map[string]orm.Config{
			"default": {Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared", MaxOpen: 1},
		},
		AutoMigrate: true,
		Progress:    progress.Config{Driver: "mem", Topic: "recorder.progress", Key: "stock_trade_day"},
	}
}

// fakeLocker 同 key 已持有返回 ErrLockHeld；during 在第一次持锁期间调用一次
type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	keys   []string
	during func()
}

func (l *fakeLocker) Hold(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.held[key] {
		l.mu.Unlock()
		return xredis.ErrLockHeld
	}
	l.held[key] = true
	l.keys = append(l.keys, key)
	during := l.during
	l.during = nil
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}()
	if during != nil {
		during()
	}
	return fn(ctx)
}

func TestApp_RunLockKeyedByRecorderTable(t *testing.T) {
	ctx := context.Background()
	cfg := testCfg(t)
	cfg.Lock = config.Lock{Prefix: "recorder:lock:", TTL: time.Minute}
	l := &fakeLocker{held: map[string]bool{}}
	a, err := New(ctx, cfg, WithLocker(l))
	require.NoError(t, err)
	defer a.Close()

	opts := recorder.Options{StartTimestamp: "2024-01-02", EndTimestamp: "2024-01-05"}
	var nested error
	l.during = func() {
		_, nested = a.Run(ctx, config.Job{Name: "calendar_backfill", Recorder: "yahoo_trade_day", Options: opts})
	}

	sum, err := a.Run(ctx, config.Job{Name: "calendar_daily", Recorder: "yahoo_trade_day", Options: opts})
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Rows)
	assert.ErrorIs(t, nested, xredis.ErrLockHeld)
	assert.Equal(t, []string{"recorder:lock:us_yahoo|stock_trade_day"}, l.keys)

	last, ok := a.History().Last("calendar_backfill")
	require.True(t, ok)
	assert.NotEmpty(t, last.Error)

	// 锁放掉之后另一个名字的 job 可以跑
	_, err = a.Run(ctx, config.Job{Name: "calendar_backfill", Recorder: "yahoo_trade_day", Options: opts})
	require.NoError(t, err)
	assert.Len(t, l.keys, 2)
}

func TestApp_RunLocalCalendar(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testCfg(t))
	require.NoError(t, err)
	defer a.Close()

	sub, ok := a.Broker().(progress.Subscriber)
	require.True(t, ok)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	msgs, err := sub.Subscribe(subCtx, []string{"recorder.progress"})
	require.NoError(t, err)

	job := config.Job{Recorder: "yahoo_trade_day", Options: recorder.Options{
		StartTimestamp: "2024-01-02",
		EndTimestamp:   "2024-01-05",
	}}
	sum, err := a.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Total)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 4, sum.Rows)

	msg := <-msgs
	ev, err := progress.Decode(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.ProcessedCount)
	assert.Equal(t, "stock_trade_day", ev.TopicKey)

	last, ok := a.History().Last("yahoo_trade_day")
	require.True(t, ok)
	assert.Equal(t, sum.RunID, last.Summary.RunID)
	assert.Empty(t, last.Error)
}

func TestApp_RunUnknownRecorder(t *testing.T) {
	a, err := New(context.Background(), testCfg(t))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Run(context.Background(), config.Job{Name: "broken", Recorder: "nope"})
	require.Error(t, err)
	last, ok := a.History().Last("broken")
	require.True(t, ok)
	assert.NotEmpty(t, last.Error)
}

func TestApp_SchedulerWithoutRedis(t *testing.T) {
	a, err := New(context.Background(), testCfg(t))
	require.NoError(t, err)
	defer a.Close()

	s := a.Scheduler(nil)
	require.NoError(t, s.Trigger(context.Background(), config.Job{Recorder: "yahoo_trade_day", Options: recorder.Options{
		StartTimestamp: "2024-07-01",
		EndTimestamp:   "2024-07-05",
	}}))
	last, ok := a.History().Last("yahoo_trade_day")
	require.True(t, ok)
	// 7/4 休市
	assert.Equal(t, 4, last.Summary.Rows)
}

func TestNew_BadDatabase(t *testing.T) {
	cfg := testCfg(t)
	cfg.Databases["default"] = orm.Config{Driver: "oracle"}
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}
