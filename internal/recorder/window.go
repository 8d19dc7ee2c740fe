package recorder

import (
	"context"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/store"
)

// WatermarkReader 读某个实体的最新水位
type WatermarkReader interface {
	Latest(ctx context.Context, route store.Route, table, entityID string) (time.Time, bool, error)
}

// window 计算抓取窗口；caught=true 表示水位已追平 now，不需要再抓
func (e *Engine) window(ctx context.Context, a Adapter, ent domain.Entity) (w Window, caught bool, err error) {
	now := e.now().In(a.Route().Region.Location())
	w.End = now
	if end := e.opts.End(); !end.IsZero() {
		w.End = end
	}

	if start := e.opts.Start(); !start.IsZero() {
		w.Start = start
		w.Override = true
		return w, false, nil
	}

	wm, ok, err := e.wm.Latest(ctx, a.Route(), a.Table(), ent.ID)
	if err != nil {
		return w, false, err
	}
	if !ok {
		w.Start = a.Epoch()
		return w, false, nil
	}

	w.Start = wm
	w.Watermark = wm
	if !e.opts.ForceUpdate && now.Sub(wm) < e.opts.CaughtUpInterval() {
		return w, true, nil
	}
	return w, false, nil
}
