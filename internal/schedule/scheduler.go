package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"datahouse.com/internal/config"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/safe"
	"datahouse.com/pkg/xredis"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrRunning 同一个 job 上一次还没跑完
var ErrRunning = errors.New("job already running")

// RunFunc 真正执行一个 job
type RunFunc func(ctx context.Context, job config.Job) error

// Scheduler 按 cron 表达式触发 job，同一个 job 不重叠
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	run  RunFunc

	mu      sync.Mutex
	ctx     context.Context
	running map[string]struct{}
	entries map[string]cron.EntryID
}

type Option func(*Scheduler)

// WithLocation cron 表达式按哪个时区解释，nil 用本地时区
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		loc:     time.Local,
		run:     run,
		ctx:     context.Background(),
		running: make(map[string]struct{}),
		entries: make(map[string]cron.EntryID),
	}
	for _, o := range opts {
		o(s)
	}
	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(s.loc), cron.WithLogger(cronLogger{}))
	return s
}

// Add 注册 job；Cron 为空的 job 忽略
func (s *Scheduler) Add(job config.Job) error {
	if job.Cron == "" {
		return nil
	}
	id, err := s.cron.AddFunc(job.Cron, func() {
		if err := s.Trigger(s.context(), job); err != nil && !errors.Is(err, ErrRunning) && !errors.Is(err, xredis.ErrLockHeld) {
			logger.Error(s.context(), "scheduled job failed", zap.String("job", job.ID()), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: bad cron %q: %w", job.ID(), job.Cron, err)
	}
	s.mu.Lock()
	s.entries[job.ID()] = id
	s.mu.Unlock()
	return nil
}

// Next job 下一次触发时间；没有调度返回零值
func (s *Scheduler) Next(jobID string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[jobID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start ctx 取消时正在跑的 job 也会收到取消
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop 停止触发新的 job，等正在跑的结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Trigger 立即执行一次；本机正在跑时返回 ErrRunning，run 返回的错误原样透传
func (s *Scheduler) Trigger(ctx context.Context, job config.Job) error {
	id := job.ID()
	s.mu.Lock()
	if _, ok := s.running[id]; ok {
		s.mu.Unlock()
		logger.Warn(ctx, "job still running, skip", zap.String("job", id))
		return ErrRunning
	}
	s.running[id] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	return safe.Do(ctx, func(ctx context.Context) error { return s.run(ctx, job) })
}

// cronLogger cron 内部日志转到 zap
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	logger.Log.Sugar().Debugw("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	logger.Log.Sugar().Errorw("cron: "+msg, append(kv, "error", err)...)
}
