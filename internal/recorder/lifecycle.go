package recorder

import (
	"context"
	"errors"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/safe"
	"datahouse.com/pkg/xerr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "datahouse.com/internal/recorder"

// Engine 驱动单个实体走完生命周期
// eval -> window -> record -> format -> persist -> on_finish_entity
// 引擎内部不重试
type Engine struct {
	wm     WatermarkReader
	opts   Options
	now    func() time.Time
	tracer trace.Tracer
}

type EngineOption func(*Engine)

// WithClock 测试里固定 now
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(wm WatermarkReader, opts Options, eopts ...EngineOption) *Engine {
	e := &Engine{
		wm:     wm,
		opts:   opts,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range eopts {
		o(e)
	}
	return e
}

// Run 完整的一次：Pass + Finish
func (e *Engine) Run(ctx context.Context, a Adapter, ent domain.Entity) Outcome {
	out := e.Pass(ctx, a, ent)
	e.Finish(ctx, a, out)
	return out
}

// Pass 前五步；任何 panic / error 都变成 Outcome，不往外抛
func (e *Engine) Pass(ctx context.Context, a Adapter, ent domain.Entity) (out Outcome) {
	start := time.Now()
	ctx = logger.With(ctx,
		zap.String("recorder", a.Name()),
		zap.String("entity_id", ent.ID),
		zap.String("region", string(a.Route().Region)),
		zap.String("provider", string(a.Route().Provider)),
	)
	ctx, span := e.tracer.Start(ctx, "recorder.entity", trace.WithAttributes(
		attribute.String("recorder", a.Name()),
		attribute.String("entity_id", ent.ID),
		attribute.String("table", a.Table()),
	))
	defer func() {
		out.Duration = time.Since(start)
		span.SetAttributes(attribute.String("outcome", out.Status.String()), attribute.Int("rows", out.Rows))
		if out.Status == StatusFailed {
			span.SetStatus(codes.Error, out.Reason)
			if out.Err != nil {
				span.RecordError(out.Err)
			}
		}
		span.End()
	}()

	err := safe.Do(ctx, func(ctx context.Context) error {
		out = e.pass(ctx, a, ent)
		return nil
	})
	if err != nil {
		out = failed(ent, "panic", err)
	}

	switch out.Status {
	case StatusFailed:
		logger.Error(ctx, "entity failed", zap.String("reason", out.Reason), zap.Error(out.Err))
	case StatusSkipped:
		logger.Debug(ctx, "entity skipped", zap.String("reason", out.Reason), zap.Error(out.Err))
	default:
		logger.Info(ctx, "entity completed",
			zap.Int("rows", out.Rows),
			zap.Time("start", out.Window.Start),
			zap.Time("end", out.Window.End))
	}
	return out
}

func (e *Engine) pass(ctx context.Context, a Adapter, ent domain.Entity) Outcome {
	if skip, reason := a.Eval(ctx, ent); skip {
		return skipped(ent, reason, nil)
	}

	// 2. window
	var (
		w      Window
		caught bool
	)
	err := e.step(ctx, a, "window", func(ctx context.Context) error {
		var err error
		w, caught, err = e.window(ctx, a, ent)
		return err
	})
	if err != nil {
		return classify(ent, "window", err)
	}
	if caught {
		out := skipped(ent, ReasonCaughtUp, nil)
		out.Window = w
		return out
	}

	// 3. record
	var (
		done bool
		raw  any
	)
	err = e.step(ctx, a, "record", func(ctx context.Context) error {
		var err error
		done, raw, err = a.Record(ctx, ent, w)
		return err
	})
	if err != nil {
		return withWindow(classify(ent, "record", err), w)
	}
	if done && raw == nil {
		return withWindow(skipped(ent, ReasonNoData, nil), w)
	}

	// 4. format
	var batch domain.Batch
	err = e.step(ctx, a, "format", func(ctx context.Context) error {
		var err error
		if batch, err = a.Format(ctx, ent, raw); err != nil {
			return err
		}
		if batch == nil || batch.Len() == 0 {
			return nil
		}
		return batch.Validate()
	})
	if err != nil {
		return withWindow(classify(ent, "format", err), w)
	}
	if batch == nil || batch.Len() == 0 {
		return withWindow(skipped(ent, ReasonEmptyBatch, nil), w)
	}

	// 5. persist
	var (
		committed bool
		rows      int
	)
	err = e.step(ctx, a, "persist", func(ctx context.Context) error {
		var err error
		committed, rows, err = a.Persist(ctx, ent, batch)
		return err
	})
	if err != nil {
		// 写库失败一律 Failed，水位不动，下次重跑
		if xerr.IsValidation(err) {
			err = xerr.NewPersistence(err, "persist")
		}
		return withWindow(classify(ent, "persist", err), w)
	}
	if !committed {
		return withWindow(skipped(ent, "not committed", nil), w)
	}
	metrics.RowsWrittenTotal.WithLabelValues(string(a.Route().Provider), a.Table()).Add(float64(rows))
	return Outcome{Entity: ent, Status: StatusCompleted, Wrote: rows > 0, Rows: rows, Window: w}
}

// Finish 第 6 步；钩子报错只记日志，不改变结果
func (e *Engine) Finish(ctx context.Context, a Adapter, out Outcome) {
	ctx = logger.With(ctx, zap.String("recorder", a.Name()), zap.String("entity_id", out.Entity.ID))
	err := safe.Do(ctx, func(ctx context.Context) error {
		return a.OnFinishEntity(ctx, out.Entity, out)
	})
	if err != nil {
		logger.Warn(ctx, "on_finish_entity failed", zap.Error(err))
	}
	metrics.EntitiesTotal.WithLabelValues(string(a.Route().Provider), a.Table(), out.Status.String()).Inc()
}

func (e *Engine) step(ctx context.Context, a Adapter, name string, fn func(ctx context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "recorder."+name)
	defer span.End()
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	metrics.StepDuration.WithLabelValues(string(a.Route().Provider), name).Observe(elapsed.Seconds())
	logger.Debug(ctx, "step done", zap.String("step", name), zap.Duration("cost", elapsed))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// classify DataValidation 当作没有数据，其余都是 Failed
func classify(ent domain.Entity, step string, err error) Outcome {
	if xerr.IsValidation(err) {
		return skipped(ent, step+": invalid data", err)
	}
	var pe *safe.PanicError
	if errors.As(err, &pe) {
		return failed(ent, step+": panic", err)
	}
	return failed(ent, step, err)
}

func withWindow(o Outcome, w Window) Outcome {
	o.Window = w
	return o
}
