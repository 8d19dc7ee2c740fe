package store

import (
	"context"
	"time"

	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/xerr"
)

// Watermarks 每次都直接查库，不做缓存：别的 worker 可能正在推进兄弟实体的水位
type Watermarks struct {
	router *Router
}

func NewWatermarks(router *Router) *Watermarks {
	return &Watermarks{router: router}
}

// Latest 某个实体在 table 里最新一行的 timestamp；表不存在或没有行返回 ok=false
func (w *Watermarks) Latest(ctx context.Context, route Route, table, entityID string) (ts time.Time, ok bool, err error) {
	start := time.Now()
	defer func() { metrics.ObserveDB("watermark", start, err) }()

	db, err := w.router.DB(route)
	if err != nil {
		return time.Time{}, false, err
	}
	db = db.WithContext(ctx)
	if !db.Migrator().HasTable(table) {
		return time.Time{}, false, nil
	}

	var stamps []time.Time
	err = db.Table(table).
		Where("entity_id = ? AND provider = ?", entityID, string(route.Provider)).
		Order("timestamp DESC").
		Limit(1).
		Pluck("timestamp", &stamps).Error
	if err != nil {
		return time.Time{}, false, xerr.NewTransient(err, "query watermark "+table)
	}
	if len(stamps) == 0 {
		return time.Time{}, false, nil
	}
	return stamps[0], true, nil
}
