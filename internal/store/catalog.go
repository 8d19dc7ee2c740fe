package store

import (
	"context"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/xerr"
	"gorm.io/gorm"
)

// StockFilter 实体目录过滤条件，空切片表示不过滤
type StockFilter struct {
	Exchanges  []string
	Codes      []string
	EntityIDs  []string
	ActiveOnly bool
}

func (f StockFilter) apply(db *gorm.DB) *gorm.DB {
	if len(f.Exchanges) > 0 {
		db = db.Where("exchange IN ?", f.Exchanges)
	}
	if len(f.Codes) > 0 {
		db = db.Where("code IN ?", f.Codes)
	}
	if len(f.EntityIDs) > 0 {
		db = db.Where("id IN ?", f.EntityIDs)
	}
	if f.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	return db
}

// Catalog 实体目录：stock / stock_detail 两张表
type Catalog struct {
	router *Router
}

func NewCatalog(router *Router) *Catalog {
	return &Catalog{router: router}
}

func (c *Catalog) db(ctx context.Context, route Route, table string) (*gorm.DB, bool, error) {
	db, err := c.router.DB(route)
	if err != nil {
		return nil, false, err
	}
	db = db.WithContext(ctx)
	return db, db.Migrator().HasTable(table), nil
}

// Stocks 按过滤条件列出股票，按 id 排序
func (c *Catalog) Stocks(ctx context.Context, route Route, f StockFilter) ([]domain.Stock, error) {
	db, ok, err := c.db(ctx, route, domain.TableStock)
	if err != nil || !ok {
		return nil, err
	}
	var out []domain.Stock
	if err := f.apply(db.Model(&domain.Stock{})).Order("id").Find(&out).Error; err != nil {
		return nil, xerr.NewTransient(err, "query stocks")
	}
	return out, nil
}

// PendingDetails 还没补全的详情：market_cap 为 0，sector/country 都为空
func (c *Catalog) PendingDetails(ctx context.Context, route Route, codes []string) ([]*domain.StockDetail, error) {
	db, ok, err := c.db(ctx, route, domain.TableStockDetail)
	if err != nil || !ok {
		return nil, err
	}
	q := db.Model(&domain.StockDetail{}).
		Where("market_cap = 0 OR market_cap IS NULL").
		Where("sector IS NULL OR sector = ''").
		Where("country IS NULL OR country = ''")
	if len(codes) > 0 {
		q = q.Where("code IN ?", codes)
	}
	var out []*domain.StockDetail
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, xerr.NewTransient(err, "query pending details")
	}
	return out, nil
}

// Deactivate 把股票标记为不活跃，下次目录查询不再返回
func (c *Catalog) Deactivate(ctx context.Context, route Route, entityID string) error {
	db, ok, err := c.db(ctx, route, domain.TableStock)
	if err != nil || !ok {
		return err
	}
	err = db.Model(&domain.Stock{}).Where("id = ?", entityID).Update("is_active", false).Error
	if err != nil {
		return xerr.NewPersistence(err, "deactivate "+entityID)
	}
	return nil
}
