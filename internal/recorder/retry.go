package recorder

import (
	"context"
	"math/rand"
	"time"

	"datahouse.com/pkg/xerr"
)

// RetryPolicy 运行内对 Transient 失败的重试；MaxAttempts<=1 不重试
// 不重试时失败实体水位不变，下一次调度自然会重跑
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// backoff 指数退避 + jitter，避免一批实体同时重试造成尖峰
func (p RetryPolicy) backoff(attempt int) time.Duration {
	base, ceiling := p.BaseBackoff, p.MaxBackoff
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	if ceiling <= 0 {
		ceiling = 5 * time.Second
	}
	d := base
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	d += time.Duration(rand.Int63n(int64(d/2 + 1)))
	if d > ceiling {
		d = ceiling
	}
	return d
}

func (p RetryPolicy) retryable(o Outcome) bool {
	return o.Status == StatusFailed && xerr.IsTransient(o.Err)
}

// withRetry onRetry 在每次重试前调用
func withRetry(ctx context.Context, p RetryPolicy, pass func(attempt int) Outcome, onRetry func(o Outcome, wait time.Duration)) Outcome {
	limit := p.attempts()
	var out Outcome
	for attempt := 1; ; attempt++ {
		out = pass(attempt)
		out.Attempts = attempt
		if attempt >= limit || !p.retryable(out) {
			return out
		}
		wait := p.backoff(attempt)
		if onRetry != nil {
			onRetry(out, wait)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return out
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
