package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"datahouse.com/pkg/logger"
	"go.uber.org/zap"
)

// PanicError 被 recover 住的 panic
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Do 同步执行 fn，panic 转成 *PanicError 返回
// 用在适配器回调外层：单个 entity 的 panic 不能拖垮整个 worker
func Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &PanicError{Value: r, Stack: string(debug.Stack())}
			logger.Error(ctx, "🚨 PANIC RECOVERED", zap.Any("panic", r), zap.String("stack", pe.Stack))
			err = pe
		}
	}()
	return fn(ctx)
}

// Go 安全启动协程
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx 安全启动携带 context 的协程，日志中保留 run_id 等上下文
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "🚨 GOROUTINE PANIC RECOVERED",
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())),
				)
			}
		}()

		fn(ctx)
	}()
}
