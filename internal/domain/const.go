package domain

import (
	"strings"
	"time"

	"datahouse.com/pkg/xerr"
)

type Region string

const (
	RegionCHN Region = "chn"
	RegionUS  Region = "us"
)

// Location 区域本地时区，"now" 按这个算
func (r Region) Location() *time.Location {
	name := "UTC"
	switch r {
	case RegionCHN:
		name = "Asia/Shanghai"
	case RegionUS:
		name = "America/New_York"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Provider string

const (
	ProviderBaoStock Provider = "baostock"
	ProviderYahoo    Provider = "yahoo"
	ProviderExchange Provider = "exchange"
)

type EntityType string

const (
	EntityStock       EntityType = "stock"
	EntityStockDetail EntityType = "stock_detail"
	EntityExchange    EntityType = "exchange"
)

// 交易所
const (
	ExchangeSH     = "sh"
	ExchangeSZ     = "sz"
	ExchangeNASDAQ = "nasdaq"
	ExchangeNYSE   = "nyse"
	ExchangeAMEX   = "amex"
)

var (
	ChnExchanges = []string{ExchangeSH, ExchangeSZ}
	UsExchanges  = []string{ExchangeNASDAQ, ExchangeNYSE, ExchangeAMEX}
)

// DedupPolicy 主键冲突时的处理方式
type DedupPolicy string

const (
	DedupIgnore    DedupPolicy = "ignore"    // 已有的行保留
	DedupOverwrite DedupPolicy = "overwrite" // 新行覆盖
)

func ParseDedup(s string) (DedupPolicy, error) {
	switch DedupPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DedupIgnore:
		return DedupIgnore, nil
	case DedupOverwrite:
		return DedupOverwrite, nil
	}
	return "", xerr.Fatalf("unknown fix_duplicate_way %q", s)
}
