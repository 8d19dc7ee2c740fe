package exchange

import (
	"context"
	"strconv"
	"strings"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/xerr"
	"github.com/shopspring/decimal"
)

// Route 美股目录（stock / stock_detail）所在的库
var Route = store.Route{Region: domain.RegionUS, Provider: domain.ProviderExchange}

// 没有 ipoyear 的股票按这个上市日期
var defaultListDate = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// StockListRecorder 从交易所下载美股列表，写 stock，同时派生 stock_detail
type StockListRecorder struct {
	recorder.Base
	client *Client
}

func NewStockListRecorder(gw *store.Gateway, client *Client, opts recorder.Options) *StockListRecorder {
	return &StockListRecorder{
		Base:   recorder.NewBase("exchange_stock_list", Route, domain.TableStock, defaultListDate, gw, opts),
		client: client,
	}
}

func (r *StockListRecorder) InitEntities(context.Context) ([]domain.Entity, error) {
	out := make([]domain.Entity, 0, len(domain.UsExchanges))
	for _, ex := range domain.UsExchanges {
		out = append(out, domain.NewAnchor(domain.RegionUS, domain.EntityExchange, ex, ex))
	}
	return out, nil
}

func (r *StockListRecorder) Eval(_ context.Context, e domain.Entity) (bool, string) {
	return recorder.MustBeAnchor(e)
}

func (r *StockListRecorder) Record(ctx context.Context, e domain.Entity, _ recorder.Window) (bool, any, error) {
	rows, err := r.client.Screener(ctx, e.Code)
	if err != nil {
		return false, nil, err
	}
	if len(rows) == 0 {
		return true, nil, nil
	}
	return false, rows, nil
}

// Format 产出 stock_detail 行，stock 行在 Persist 时从它派生
func (r *StockListRecorder) Format(_ context.Context, e domain.Entity, raw any) (domain.Batch, error) {
	rows, ok := raw.([]Row)
	if !ok {
		return nil, xerr.Validationf("unexpected payload %T", raw)
	}
	out := make(domain.Rows[domain.StockDetail], 0, len(rows))
	for _, row := range rows {
		code := strings.TrimSpace(row.Symbol)
		if code == "" {
			continue
		}
		listDate := parseListDate(row.IPOYear)
		id := domain.StockID(domain.EntityStock, e.Code, code)
		out = append(out, domain.StockDetail{
			Mixin: domain.Mixin{
				ID:        id,
				EntityID:  id,
				Provider:  string(domain.ProviderExchange),
				Timestamp: listDate,
			},
			StockMeta: domain.StockMeta{
				EntityType: string(domain.EntityStock),
				Exchange:   e.Code,
				Code:       code,
				Name:       strings.TrimSpace(row.Name),
				ListDate:   &listDate,
				IsActive:   true,
			},
			Industry:  row.Industry,
			Sector:    row.Sector,
			Country:   row.Country,
			MarketCap: money(row.MarketCap),
			LastSale:  money(row.LastSale),
		})
	}
	return out, nil
}

// Persist stock 用 ignore 写；stock_detail 也用 ignore，已经补全过的详情不被列表覆盖
func (r *StockListRecorder) Persist(ctx context.Context, _ domain.Entity, b domain.Batch) (bool, int, error) {
	n, err := r.Gateway.WriteDerived(ctx, Route, domain.TableStock, b, ToStocks, domain.DedupIgnore)
	if err != nil {
		return false, 0, err
	}
	if _, err := r.Gateway.Write(ctx, Route, domain.TableStockDetail, b, domain.DedupIgnore); err != nil {
		return false, 0, err
	}
	return true, n, nil
}

// ToStocks stock_detail -> stock
func ToStocks(b domain.Batch) (domain.Batch, error) {
	details, ok := b.(domain.Rows[domain.StockDetail])
	if !ok {
		return nil, xerr.Validationf("expect stock_detail rows, got %T", b)
	}
	out := make(domain.Rows[domain.Stock], 0, len(details))
	for _, d := range details {
		out = append(out, domain.Stock{Mixin: d.Mixin, StockMeta: d.StockMeta})
	}
	return out, nil
}

func parseListDate(ipoYear string) time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(ipoYear))
	if err != nil || y < 1800 {
		return defaultListDate
	}
	return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
}

// money "$1,234.50" -> 1234.50；解析不了按 0
func money(s string) decimal.Decimal {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
