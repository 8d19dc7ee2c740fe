package recorder

import (
	"context"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/store"
)

// Window 一次 record 要覆盖的时间范围，Start 含
type Window struct {
	Start time.Time
	End   time.Time
	// Watermark 库里已有的最新时间；没有水位时为零值
	Watermark time.Time
	// Override 起止时间来自 start/end 参数，没有查水位
	Override bool
}

func (w Window) HasWatermark() bool { return !w.Watermark.IsZero() }

// Adapter 一个数据源的录制实现
// Record 返回 done=true 且 raw=nil 表示没有新数据；raw 由 Format 解释
type Adapter interface {
	Name() string
	Route() store.Route
	Table() string
	Epoch() time.Time

	InitEntities(ctx context.Context) ([]domain.Entity, error)
	Eval(ctx context.Context, e domain.Entity) (skip bool, reason string)
	Record(ctx context.Context, e domain.Entity, w Window) (done bool, raw any, err error)
	Format(ctx context.Context, e domain.Entity, raw any) (domain.Batch, error)
	Persist(ctx context.Context, e domain.Entity, b domain.Batch) (committed bool, rows int, err error)
	OnFinishEntity(ctx context.Context, e domain.Entity, o Outcome) error
	OnFinish(ctx context.Context, entities []domain.Entity, s Summary) error
}

// Retrier 适配器声明自己的重试策略；没实现就是不重试
type Retrier interface {
	RetryPolicy() RetryPolicy
}

// Base 默认实现：Persist 走 Gateway，钩子都是空操作
type Base struct {
	name    string
	route   store.Route
	table   string
	epoch   time.Time
	Opts    Options
	Gateway *store.Gateway
}

func NewBase(name string, route store.Route, table string, epoch time.Time, gw *store.Gateway, opts Options) Base {
	return Base{name: name, route: route, table: table, epoch: epoch, Gateway: gw, Opts: opts}
}

func (b *Base) Name() string       { return b.name }
func (b *Base) Route() store.Route { return b.route }
func (b *Base) Table() string      { return b.table }
func (b *Base) Epoch() time.Time   { return b.epoch }

func (b *Base) Eval(context.Context, domain.Entity) (bool, string) { return false, "" }

func (b *Base) Persist(ctx context.Context, _ domain.Entity, batch domain.Batch) (bool, int, error) {
	n, err := b.Gateway.Write(ctx, b.route, b.table, batch, b.Opts.Dedup())
	if err != nil {
		return false, 0, err
	}
	return true, n, nil
}

func (b *Base) OnFinishEntity(context.Context, domain.Entity, Outcome) error { return nil }

func (b *Base) OnFinish(context.Context, []domain.Entity, Summary) error { return nil }

func (b *Base) RetryPolicy() RetryPolicy { return b.Opts.Retry }

// MustBeAnchor 给只处理锚点实体的适配器用
func MustBeAnchor(e domain.Entity) (bool, string) {
	if !e.IsAnchor() {
		return true, "expects anchor entity, got " + e.Kind.String()
	}
	return false, ""
}

// MustBeConcrete 给只处理目录实体的适配器用
func MustBeConcrete(e domain.Entity) (bool, string) {
	if !e.IsConcrete() {
		return true, "expects concrete entity, got " + e.Kind.String()
	}
	return false, ""
}
