package store

import (
	"context"
	"sync"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/xerr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	insertChunk = 500
	lookupChunk = 900 // sqlite 默认 999 个参数上限
)

// Derive 从主批次生成派生表的批次
type Derive func(domain.Batch) (domain.Batch, error)

// Gateway 批次写入：一个批次一个事务，失败整批回滚
type Gateway struct {
	router      *Router
	autoMigrate bool
	migrated    sync.Map // route|table -> struct{}
}

type GatewayOption func(*Gateway)

// WithAutoMigrate 第一次写某张表前先建表
func WithAutoMigrate(on bool) GatewayOption {
	return func(g *Gateway) { g.autoMigrate = on }
}

func NewGateway(router *Router, opts ...GatewayOption) *Gateway {
	g := &Gateway{router: router}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Router() *Router { return g.router }

// Write 按 policy 写入 batch，返回真正写入的行数
// ignore: 只插入库里不存在的 id；overwrite: 冲突的行整行覆盖
func (g *Gateway) Write(ctx context.Context, route Route, table string, batch domain.Batch, policy domain.DedupPolicy) (n int, err error) {
	if batch == nil || batch.Len() == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() { metrics.ObserveDB("write_"+string(policy), start, err) }()

	db, err := g.router.DB(route)
	if err != nil {
		return 0, err
	}
	db = db.WithContext(ctx)
	if err := g.ensureTable(db, route, table, batch); err != nil {
		return 0, err
	}

	batch = batch.Dedup()
	err = db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		switch policy {
		case domain.DedupOverwrite:
			n, txErr = overwrite(tx, table, batch)
		case domain.DedupIgnore, "":
			n, txErr = insertNew(tx, table, batch)
		default:
			return xerr.Fatalf("unknown dedup policy %q", policy)
		}
		return txErr
	})
	if err != nil {
		if xerr.IsFatal(err) {
			return 0, err
		}
		return 0, xerr.NewPersistence(err, "write "+route.Key()+"."+table)
	}
	return n, nil
}

// WriteDerived 派生表独立一个事务，和主批次的成败互不影响
func (g *Gateway) WriteDerived(ctx context.Context, route Route, table string, batch domain.Batch, derive Derive, policy domain.DedupPolicy) (int, error) {
	if batch == nil || batch.Len() == 0 {
		return 0, nil
	}
	derived, err := derive(batch)
	if err != nil {
		return 0, xerr.NewValidation(err, "derive "+table)
	}
	return g.Write(ctx, route, table, derived, policy)
}

func (g *Gateway) ensureTable(db *gorm.DB, route Route, table string, batch domain.Batch) error {
	if !g.autoMigrate {
		return nil
	}
	key := route.Key() + "|" + table
	if _, ok := g.migrated.Load(key); ok {
		return nil
	}
	if err := db.Table(table).AutoMigrate(batch.Proto()); err != nil {
		return xerr.NewPersistence(err, "migrate "+table)
	}
	g.migrated.Store(key, struct{}{})
	return nil
}

func insertNew(tx *gorm.DB, table string, batch domain.Batch) (int, error) {
	existing, err := existingIDs(tx, table, batch.IDs())
	if err != nil {
		return 0, err
	}
	fresh := batch.Exclude(existing)
	if fresh.Len() == 0 {
		return 0, nil
	}
	// 并发写同一个 id 时以先提交的为准
	err = tx.Table(table).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		CreateInBatches(fresh.Model(), insertChunk).Error
	if err != nil {
		return 0, err
	}
	return fresh.Len(), nil
}

func overwrite(tx *gorm.DB, table string, batch domain.Batch) (int, error) {
	err := tx.Table(table).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, UpdateAll: true}).
		CreateInBatches(batch.Model(), insertChunk).Error
	if err != nil {
		return 0, err
	}
	return batch.Len(), nil
}

func existingIDs(tx *gorm.DB, table string, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	for i := 0; i < len(ids); i += lookupChunk {
		end := min(i+lookupChunk, len(ids))
		var found []string
		if err := tx.Table(table).Where("id IN ?", ids[i:end]).Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		for _, id := range found {
			out[id] = struct{}{}
		}
	}
	return out, nil
}
