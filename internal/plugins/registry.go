package plugins

import (
	"sort"

	"datahouse.com/internal/plugins/baostock"
	"datahouse.com/internal/plugins/exchange"
	"datahouse.com/internal/plugins/yahoo"
	"datahouse.com/internal/recorder"
	"datahouse.com/internal/store"
	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/xerr"
)

// Endpoints 各数据源的地址，空表示用默认值
type Endpoints struct {
	BaoStock string `mapstructure:"baostock"`
	Yahoo    string `mapstructure:"yahoo"`
	Exchange string `mapstructure:"exchange"`
}

// Deps main 里创建的共享句柄
type Deps struct {
	Gateway   *store.Gateway
	Catalog   *store.Catalog
	HTTP      *fetch.Client
	Mirror    *store.BarMirror
	Endpoints Endpoints
}

type Factory struct {
	Name        string
	Description string
	// Defaults 在 Normalize 之前填适配器自己的默认参数
	Defaults func(*recorder.Options)
	New      func(Deps, recorder.Options) (recorder.Adapter, error)
}

var factories = map[string]Factory{}

func register(f Factory) { factories[f.Name] = f }

func init() {
	register(Factory{
		Name:        "baostock_trade_day",
		Description: "A 股交易日历 (baostock)",
		New: func(d Deps, o recorder.Options) (recorder.Adapter, error) {
			return baostock.NewTradeDayRecorder(d.Gateway, baostock.NewClient(d.HTTP, d.Endpoints.BaoStock), o), nil
		},
	})
	register(Factory{
		Name:        "baostock_kdata",
		Description: "A 股 K 线，level x adjust_type 选表 (baostock)",
		Defaults:    baostock.Defaults,
		New: func(d Deps, o recorder.Options) (recorder.Adapter, error) {
			r, err := baostock.NewKdataRecorder(d.Gateway, d.Catalog, d.Mirror, baostock.NewClient(d.HTTP, d.Endpoints.BaoStock), o)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	})
	register(Factory{
		Name:        "yahoo_trade_day",
		Description: "美股交易日历，本地 NYSE 规则",
		New: func(d Deps, o recorder.Options) (recorder.Adapter, error) {
			return yahoo.NewTradeDayRecorder(d.Gateway, o), nil
		},
	})
	register(Factory{
		Name:        "yahoo_detail",
		Description: "补全美股详情：行业、市值、简介 (yahoo)",
		Defaults:    yahoo.DetailDefaults,
		New: func(d Deps, o recorder.Options) (recorder.Adapter, error) {
			return yahoo.NewDetailRecorder(d.Gateway, d.Catalog, yahoo.NewClient(d.HTTP, d.Endpoints.Yahoo), o), nil
		},
	})
	register(Factory{
		Name:        "exchange_stock_list",
		Description: "美股列表 nasdaq/nyse/amex，派生 stock_detail",
		New: func(d Deps, o recorder.Options) (recorder.Adapter, error) {
			return exchange.NewStockListRecorder(d.Gateway, exchange.NewClient(d.HTTP, d.Endpoints.Exchange), o), nil
		},
	})
}

// Names 已注册的适配器，按名字排序
func Names() []string {
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func Lookup(name string) (Factory, bool) {
	f, ok := factories[name]
	return f, ok
}

// Build 填默认值 -> 校验参数 -> 创建适配器；返回的 Options 给引擎和编排器用
func Build(name string, deps Deps, opts recorder.Options) (recorder.Adapter, recorder.Options, error) {
	f, ok := factories[name]
	if !ok {
		return nil, opts, xerr.Fatalf("unknown recorder %q", name)
	}
	if f.Defaults != nil {
		f.Defaults(&opts)
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, opts, err
	}
	a, err := f.New(deps, opts)
	if err != nil {
		return nil, opts, err
	}
	return a, opts, nil
}
