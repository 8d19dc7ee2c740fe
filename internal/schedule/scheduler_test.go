package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"datahouse.com/internal/config"
	"datahouse.com/pkg/xredis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_Runs(t *testing.T) {
	var got string
	s := New(func(ctx context.Context, job config.Job) error {
		got = job.ID()
		return nil
	})
	require.NoError(t, s.Trigger(context.Background(), config.Job{Recorder: "baostock_kdata"}))
	assert.Equal(t, "baostock_kdata", got)
}

func TestTrigger_SkipsWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	s := New(func(ctx context.Context, job config.Job) error {
		close(started)
		<-release
		return nil
	})
	job := config.Job{Name: "kdata_daily", Recorder: "baostock_kdata"}

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), job) }()
	<-started

	assert.ErrorIs(t, s.Trigger(context.Background(), job), ErrRunning)
	close(release)
	require.NoError(t, <-done)

	// 跑完之后可以再次触发
	s.run = func(ctx context.Context, job config.Job) error { return nil }
	assert.NoError(t, s.Trigger(context.Background(), job))
}

func TestTrigger_LockHeldPassesThrough(t *testing.T) {
	s := New(func(ctx context.Context, job config.Job) error { return xredis.ErrLockHeld })
	assert.ErrorIs(t, s.Trigger(context.Background(), config.Job{Recorder: "yahoo_detail"}), xredis.ErrLockHeld)

	// 透传之后本机不再认为它在跑
	s.run = func(ctx context.Context, job config.Job) error { return nil }
	assert.NoError(t, s.Trigger(context.Background(), config.Job{Recorder: "yahoo_detail"}))
}

func TestTrigger_RecoversPanic(t *testing.T) {
	s := New(func(ctx context.Context, job config.Job) error { panic("boom") })
	err := s.Trigger(context.Background(), config.Job{Recorder: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestTrigger_PropagatesError(t *testing.T) {
	want := errors.New("db down")
	s := New(func(ctx context.Context, job config.Job) error { return want })
	assert.ErrorIs(t, s.Trigger(context.Background(), config.Job{Recorder: "x"}), want)
}

func TestAdd(t *testing.T) {
	s := New(func(ctx context.Context, job config.Job) error { return nil }, WithLocation(time.UTC))

	require.NoError(t, s.Add(config.Job{Recorder: "manual_only"}))
	assert.True(t, s.Next("manual_only").IsZero())

	err := s.Add(config.Job{Recorder: "bad", Cron: "not a cron"})
	assert.Error(t, err)

	require.NoError(t, s.Add(config.Job{Recorder: "kdata", Cron: "0 30 16 * * MON-FRI"}))
	s.Start(context.Background())
	defer s.Stop()
	next := s.Next("kdata")
	require.False(t, next.IsZero())
	assert.Equal(t, 16, next.Hour())
	assert.Equal(t, 30, next.Minute())
	assert.NotEqual(t, time.Saturday, next.Weekday())
	assert.NotEqual(t, time.Sunday, next.Weekday())
}

func TestScheduledRun(t *testing.T) {
	fired := make(chan string, 4)
	s := New(func(ctx context.Context, job config.Job) error {
		select {
		case fired <- job.ID():
		default:
		}
		return nil
	})
	require.NoError(t, s.Add(config.Job{Recorder: "tick", Cron: "* * * * * *"}))
	s.Start(context.Background())
	defer s.Stop()

	select {
	case id := <-fired:
		assert.Equal(t, "tick", id)
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
}
