package recorder

import (
	"context"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/progress"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/safe"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Orchestrator 一个 adapter 的一次运行：目录 -> 有界并发 -> 进度 -> OnFinish
type Orchestrator struct {
	engine   *Engine
	opts     Options
	reporter *progress.Reporter
	onResult func(Outcome)
}

type OrchestratorOption func(*Orchestrator)

// WithReporter 进度发布；不设置时只计数
func WithReporter(r *progress.Reporter) OrchestratorOption {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithResultHook 每个实体最终结果的回调，会被多个 worker 并发调用
func WithResultHook(fn func(Outcome)) OrchestratorOption {
	return func(o *Orchestrator) { o.onResult = fn }
}

func NewOrchestrator(engine *Engine, opts Options, oopts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{engine: engine, opts: opts}
	for _, fn := range oopts {
		fn(o)
	}
	return o
}

// progressFlushTimeout 运行结束后等进度事件发完的上限，broker 再慢也不拖住运行
const progressFlushTimeout = 5 * time.Second

type job struct {
	idx int
	ent domain.Entity
}

// Run 单个实体失败不影响整体；只有拿不到实体目录才返回错误
// ctx 取消后停止派发，已经在跑的实体自己在下一次 I/O 处结束
func (o *Orchestrator) Run(ctx context.Context, a Adapter) (Summary, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	ctx = logger.With(ctx, zap.String("recorder", a.Name()))

	sum := Summary{RunID: runID, Recorder: a.Name(), StartedAt: time.Now()}

	entities, err := a.InitEntities(ctx)
	if err != nil {
		logger.Error(ctx, "init entities failed", zap.Error(err))
		return sum, err
	}
	sum.Total = len(entities)
	logger.Info(ctx, "recorder run start",
		zap.Int("entities", len(entities)),
		zap.Int("batch_size", o.opts.BatchSize),
		zap.Duration("sleep", o.opts.Sleep()))

	tracker := o.reporter.Track(runID, a.Name(), len(entities))
	outcomes := make([]Outcome, len(entities))
	ran := make([]bool, len(entities))
	policy := RetryPolicy{}
	if r, ok := a.(Retrier); ok {
		policy = r.RetryPolicy()
	}

	workers := min(max(o.opts.BatchSize, 1), max(len(entities), 1))
	jobs := make(chan job)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			first := true
			for j := range jobs {
				// sleep_time 是每个 worker 自己的节奏，两次实体之间生效
				// 拿到时已经取消或者睡的时候被取消，这个实体算没派发
				if ctx.Err() != nil || (!first && sleepCtx(ctx, o.opts.Sleep()) != nil) {
					continue
				}
				first = false
				ran[j.idx] = true
				outcomes[j.idx] = o.process(ctx, a, j.ent, policy)
				n := tracker.Done(ctx)
				metrics.ObserveRunProgress(a.Name(), n, len(entities))
			}
			return nil
		})
	}

dispatch:
	for i, ent := range entities {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- job{idx: i, ent: ent}:
		}
	}
	close(jobs)
	_ = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressFlushTimeout)
	if err := tracker.Close(flushCtx); err != nil {
		logger.Warn(flushCtx, "progress flush timed out", zap.Error(err))
	}
	cancel()

	for i, out := range outcomes {
		if ran[i] {
			sum.add(out)
		}
	}
	sum.Canceled = ctx.Err() != nil
	sum.EndedAt = time.Now()

	// 取消了也要收尾
	finishCtx := context.WithoutCancel(ctx)
	if err := safe.Do(finishCtx, func(ctx context.Context) error {
		return a.OnFinish(ctx, entities, sum)
	}); err != nil {
		logger.Warn(finishCtx, "on_finish failed", zap.Error(err))
	}

	logger.Info(finishCtx, "recorder run done",
		zap.Int("total", sum.Total),
		zap.Int("completed", sum.Completed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("rows", sum.Rows),
		zap.Bool("canceled", sum.Canceled),
		zap.Duration("cost", sum.EndedAt.Sub(sum.StartedAt)))

	if sum.Canceled {
		return sum, ctx.Err()
	}
	return sum, nil
}

func (o *Orchestrator) process(ctx context.Context, a Adapter, ent domain.Entity, policy RetryPolicy) Outcome {
	out := withRetry(ctx, policy,
		func(int) Outcome { return o.engine.Pass(ctx, a, ent) },
		func(prev Outcome, wait time.Duration) {
			metrics.RetryTotal.WithLabelValues(string(a.Route().Provider)).Inc()
			logger.Warn(ctx, "transient failure, retrying",
				zap.String("entity_id", ent.ID),
				zap.Int("attempt", prev.Attempts),
				zap.Duration("wait", wait),
				zap.Error(prev.Err))
		})
	o.engine.Finish(ctx, a, out)
	if o.onResult != nil {
		o.onResult(out)
	}
	return out
}
