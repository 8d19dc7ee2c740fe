package yahoo

import (
	"context"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/plugins/exchange"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/xerr"
	"go.uber.org/zap"
)

const infoAttempts = 3

// DetailRecorder 补全交易所列表里缺行业/市值的股票详情
// 详情和列表在同一个库（exchange.Route），按 overwrite 写回
type DetailRecorder struct {
	recorder.Base

	client    *Client
	catalog   *store.Catalog
	retryWait time.Duration
}

func NewDetailRecorder(gw *store.Gateway, catalog *store.Catalog, client *Client, opts recorder.Options) *DetailRecorder {
	return &DetailRecorder{
		Base:      recorder.NewBase("yahoo_detail", Route, domain.TableStockDetail, calendarEpoch, gw, opts),
		client:    client,
		catalog:   catalog,
		retryWait: time.Second,
	}
}

// DetailDefaults yahoo 限流严格，默认每个 worker 两次请求之间停 5 秒
func DetailDefaults(o *recorder.Options) {
	if o.SleepTime == 0 {
		o.SleepTime = 5
	}
}

func (r *DetailRecorder) InitEntities(ctx context.Context) ([]domain.Entity, error) {
	pending, err := r.catalog.PendingDetails(ctx, exchange.Route, r.Opts.Codes)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(pending))
	for _, d := range pending {
		out = append(out, domain.EntityFromDetail(domain.RegionUS, d))
	}
	return out, nil
}

func (r *DetailRecorder) Eval(_ context.Context, e domain.Entity) (bool, string) {
	if skip, reason := recorder.MustBeConcrete(e); skip {
		return skip, reason
	}
	if e.Detail == nil {
		return true, "entity has no detail payload"
	}
	return false, ""
}

// Record 就地补全 e.Detail；Format 再把它变成一行
func (r *DetailRecorder) Record(ctx context.Context, e domain.Entity, _ recorder.Window) (bool, any, error) {
	info, err := r.info(ctx, e.Code)
	if err != nil {
		return false, nil, err
	}
	if info == nil {
		return true, nil, nil
	}
	enrich(e.Detail, info)
	return false, nil, nil
}

func (r *DetailRecorder) info(ctx context.Context, code string) (*Info, error) {
	var err error
	for attempt := 1; attempt <= infoAttempts; attempt++ {
		var info *Info
		info, err = r.client.QuoteSummary(ctx, code)
		if err == nil || !xerr.IsTransient(err) {
			return info, err
		}
		logger.Warn(ctx, "quote summary failed", zap.String("code", code), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < infoAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryWait):
			}
		}
	}
	return nil, err
}

// enrich 列表里已有的 sector/industry/market_cap 不覆盖
func enrich(d *domain.StockDetail, info *Info) {
	if d.Sector == "" {
		d.Sector = info.Sector
	}
	if d.Industry == "" {
		d.Industry = info.Industry
	}
	if d.Country == "" {
		d.Country = info.Country
	}
	if d.MarketCap.IsZero() {
		d.MarketCap = info.MarketCap
	}
	d.Profile = info.Profile
	d.State = info.State
	d.City = info.City
	d.ZipCode = info.Zip
	d.LastSale = info.PreviousClose
}

func (r *DetailRecorder) Format(_ context.Context, e domain.Entity, _ any) (domain.Batch, error) {
	if e.Detail == nil {
		return nil, xerr.Validationf("%s: no detail", e.ID)
	}
	return domain.Rows[domain.StockDetail]{*e.Detail}, nil
}

func (r *DetailRecorder) Persist(ctx context.Context, _ domain.Entity, b domain.Batch) (bool, int, error) {
	n, err := r.Gateway.Write(ctx, exchange.Route, domain.TableStockDetail, b, domain.DedupOverwrite)
	if err != nil {
		return false, 0, err
	}
	return true, n, nil
}
