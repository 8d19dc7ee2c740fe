package baostock

import (
	"context"
	"fmt"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/xerr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// staleAfter 水位超过这么久还拉不到数据，认为已经退市
const staleAfter = 90 * 24 * time.Hour

// KdataRecorder A 股 K 线，表按 level x adjust 选
type KdataRecorder struct {
	recorder.Base

	client  *Client
	catalog *store.Catalog
	mirror  *store.BarMirror

	level  domain.Level
	adjust domain.AdjustType
	freq   string
	now    func() time.Time
}

func NewKdataRecorder(gw *store.Gateway, catalog *store.Catalog, mirror *store.BarMirror, client *Client, opts recorder.Options) (*KdataRecorder, error) {
	level, err := domain.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	adjust, err := domain.ParseAdjust(opts.AdjustType)
	if err != nil {
		return nil, err
	}
	freq, err := toFrequency(level)
	if err != nil {
		return nil, err
	}
	table, err := domain.KdataTable(domain.EntityStock, level, adjust)
	if err != nil {
		return nil, err
	}
	return &KdataRecorder{
		Base:    recorder.NewBase("baostock_kdata", Route, table, epochOf(freq), gw, opts),
		client:  client,
		catalog: catalog,
		mirror:  mirror,
		level:   level,
		adjust:  adjust,
		freq:    freq,
		now:     time.Now,
	}, nil
}

// Defaults 没配置 level 时录周线前复权
func Defaults(o *recorder.Options) {
	if o.Level == "" {
		o.Level = string(domain.Level1Week)
	}
	if o.AdjustType == "" {
		o.AdjustType = string(domain.AdjustQfq)
	}
}

func (r *KdataRecorder) InitEntities(ctx context.Context) ([]domain.Entity, error) {
	stocks, err := r.catalog.Stocks(ctx, Route, store.StockFilter{
		Exchanges:  domain.ChnExchanges,
		Codes:      r.Opts.Codes,
		EntityIDs:  r.Opts.EntityIDs,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, domain.EntityFromStock(domain.RegionCHN, s))
	}
	return out, nil
}

func (r *KdataRecorder) Eval(_ context.Context, e domain.Entity) (bool, string) {
	return recorder.MustBeConcrete(e)
}

func (r *KdataRecorder) Record(ctx context.Context, e domain.Entity, w recorder.Window) (bool, any, error) {
	start := w.Start
	if epoch := epochOf(r.freq); start.Before(epoch) {
		start = epoch
	}
	rs, err := r.client.HistoryKData(ctx, BarsQuery{
		Code:       toCode(e),
		Start:      start,
		End:        w.End,
		Frequency:  r.freq,
		AdjustFlag: toAdjustFlag(r.adjust),
		Fields:     fieldsOf(r.freq),
	})
	if err != nil {
		return false, nil, err
	}
	if len(rs.Data) == 0 {
		return true, nil, nil
	}
	return false, rs, nil
}

func (r *KdataRecorder) Format(_ context.Context, e domain.Entity, raw any) (domain.Batch, error) {
	rs, ok := raw.(*ResultSet)
	if !ok {
		return nil, xerr.Validationf("unexpected payload %T", raw)
	}
	intraday := r.level.Intraday()
	idLayout := time.DateOnly
	if intraday {
		idLayout = "2006-01-02T15:04:05"
	}

	rows := make(domain.Rows[domain.Kdata], 0, len(rs.Data))
	for i, row := range rs.Rows() {
		ts, err := barTime(row, intraday)
		if err != nil {
			return nil, xerr.NewValidation(err, fmt.Sprintf("row %d", i))
		}
		bar := domain.Kdata{
			Mixin: domain.Mixin{
				ID:        e.ID + "_" + ts.Format(idLayout),
				EntityID:  e.ID,
				Provider:  string(domain.ProviderBaoStock),
				Timestamp: ts,
			},
			Code:       e.Code,
			Name:       e.Name,
			Level:      string(r.level),
			AdjustFlag: fromAdjustFlag(row["adjustflag"]),
			IsST:       row["isST"] == "1",
			Suspended:  row["tradestatus"] == "0",
		}
		for _, f := range []struct {
			col string
			dst *decimal.Decimal
		}{
			{"open", &bar.Open},
			{"close", &bar.Close},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"preclose", &bar.PreClose},
			{"volume", &bar.Volume},
			{"amount", &bar.Turnover},
			{"turn", &bar.TurnoverRate},
			{"pctChg", &bar.ChangePct},
		} {
			v, err := num(row[f.col])
			if err != nil {
				return nil, xerr.NewValidation(err, fmt.Sprintf("row %d column %s", i, f.col))
			}
			*f.dst = v
		}
		rows = append(rows, bar)
	}
	return rows, nil
}

// Persist 写库成功后镜像到 influx
func (r *KdataRecorder) Persist(ctx context.Context, e domain.Entity, b domain.Batch) (bool, int, error) {
	ok, n, err := r.Base.Persist(ctx, e, b)
	if err != nil || !ok {
		return ok, n, err
	}
	if bars, isBars := b.(domain.Rows[domain.Kdata]); isBars && n > 0 {
		r.mirror.Mirror(r.Table(), r.adjust, bars)
	}
	return ok, n, nil
}

// OnFinishEntity 很久没有新 K 线的股票标记为不活跃
func (r *KdataRecorder) OnFinishEntity(ctx context.Context, e domain.Entity, o recorder.Outcome) error {
	if o.Status != recorder.StatusSkipped || o.Reason != recorder.ReasonNoData || !o.Window.HasWatermark() {
		return nil
	}
	if r.now().Sub(o.Window.Watermark) < staleAfter {
		return nil
	}
	logger.Info(ctx, "no bars for a long time, deactivate",
		zap.String("entity_id", e.ID),
		zap.Time("watermark", o.Window.Watermark))
	return r.catalog.Deactivate(ctx, Route, e.ID)
}
