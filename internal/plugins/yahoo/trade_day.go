package yahoo

import (
	"context"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
)

var (
	Route = store.Route{Region: domain.RegionUS, Provider: domain.ProviderYahoo}

	calendarEpoch = time.Date(2003, 10, 11, 0, 0, 0, 0, time.UTC)
)

// TradeDayRecorder 美股交易日历，本地按 NYSE 规则计算，不访问网络
type TradeDayRecorder struct {
	recorder.Base
}

func NewTradeDayRecorder(gw *store.Gateway, opts recorder.Options) *TradeDayRecorder {
	return &TradeDayRecorder{
		Base: recorder.NewBase("yahoo_trade_day", Route, domain.TableStockTradeDay, calendarEpoch, gw, opts),
	}
}

func (r *TradeDayRecorder) InitEntities(context.Context) ([]domain.Entity, error) {
	return []domain.Entity{
		domain.NewAnchor(domain.RegionUS, domain.EntityExchange, domain.ExchangeNYSE, domain.ExchangeNYSE),
	}, nil
}

func (r *TradeDayRecorder) Eval(_ context.Context, e domain.Entity) (bool, string) {
	return recorder.MustBeAnchor(e)
}

func (r *TradeDayRecorder) Record(_ context.Context, _ domain.Entity, w recorder.Window) (bool, any, error) {
	days := Sessions(w.Start, w.End)
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
			Provider:  string(domain.ProviderYahoo),
			Timestamp: d,
		}})
	}
	return rows, nil
}
