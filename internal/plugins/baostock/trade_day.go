package baostock

import (
	"context"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
)

// CalendarAnchor 交易日历挂在平安银行下面
const CalendarAnchor = "stock_sz_000001"

var Route = store.Route{Region: domain.RegionCHN, Provider: domain.ProviderBaoStock}

// TradeDayRecorder A 股交易日历
type TradeDayRecorder struct {
	recorder.Base
	client *Client
}

func NewTradeDayRecorder(gw *store.Gateway, client *Client, opts recorder.Options) *TradeDayRecorder {
	return &TradeDayRecorder{
		Base:   recorder.NewBase("baostock_trade_day", Route, domain.TableStockTradeDay, dayEpoch, gw, opts),
		client: client,
	}
}

func (r *TradeDayRecorder) InitEntities(context.Context) ([]domain.Entity, error) {
	return []domain.Entity{
		domain.NewAnchor(domain.RegionCHN, domain.EntityStock, "000001", CalendarAnchor),
	}, nil
}

func (r *TradeDayRecorder) Eval(_ context.Context, e domain.Entity) (bool, string) {
	return recorder.MustBeAnchor(e)
}

func (r *TradeDayRecorder) Record(ctx context.Context, _ domain.Entity, w recorder.Window) (bool, any, error) {
	rs, err := r.client.TradeDates(ctx, w.Start, w.End)
	if err != nil {
		return false, nil, err
	}
	var days []time.Time
	for _, row := range rs.Rows() {
		if row["is_trading_day"] != "1" {
			continue
		}
		d, err := time.Parse(time.DateOnly, row["calendar_date"])
		if err != nil {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return true, nil, nil
	}
	return false, days, nil
}

func (r *TradeDayRecorder) Format(_ context.Context, e domain.Entity, raw any) (domain.Batch, error) {
	days, _ := raw.([]time.Time)
	rows := make(domain.Rows[domain.StockTradeDay], 0, len(days))
	for _, d := range days {
		rows = append(rows, domain.StockTradeDay{Mixin: domain.Mixin{
			ID:        e.ID + "_" + d.Format(time.DateOnly),
			EntityID:  e.ID,
			Provider:  string(domain.ProviderBaoStock),
			Timestamp: d,
		}})
	}
	return rows, nil
}
