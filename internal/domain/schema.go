package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableStockTradeDay = "stock_trade_day"
	TableStock         = "stock"
	TableStockDetail   = "stock_detail"
)

// StockTradeDay 交易日历，一行一个交易日
type StockTradeDay struct {
	Mixin
}

func (StockTradeDay) TableName() string { return TableStockTradeDay }

// StockMeta stock / stock_detail 共有的列
type StockMeta struct {
	EntityType string     `gorm:"size:32" json:"entity_type"`
	Exchange   string     `gorm:"size:16;index" json:"exchange"`
	Code       string     `gorm:"size:32;index" json:"code"`
	Name       string     `gorm:"size:255" json:"name"`
	ListDate   *time.Time `json:"list_date"`
	EndDate    *time.Time `json:"end_date"`
	IsActive   bool       `gorm:"index" json:"is_active"`
}

type Stock struct {
	Mixin
	StockMeta
}

func (Stock) TableName() string { return TableStock }

// StockDetail 详情，由 stock list 派生、再由 yahoo 补全
type StockDetail struct {
	Mixin
	StockMeta

	Industry  string          `gorm:"size:255" json:"industry"`
	Sector    string          `gorm:"size:255" json:"sector"`
	Country   string          `gorm:"size:64" json:"country"`
	State     string          `gorm:"size:64" json:"state"`
	City      string          `gorm:"size:64" json:"city"`
	ZipCode   string          `gorm:"size:32" json:"zip_code"`
	Profile   string          `gorm:"type:text" json:"profile"`
	MarketCap decimal.Decimal `gorm:"type:decimal(24,4)" json:"market_cap"`
	LastSale  decimal.Decimal `gorm:"type:decimal(20,4)" json:"last_sale"`
}

func (StockDetail) TableName() string { return TableStockDetail }

// Kdata K 线，表名由 KdataTable 决定
type Kdata struct {
	Mixin

	Code         string          `gorm:"size:32" json:"code"`
	Name         string          `gorm:"size:255" json:"name"`
	Level        string          `gorm:"size:8" json:"level"`
	Open         decimal.Decimal `gorm:"type:decimal(20,4)" json:"open"`
	Close        decimal.Decimal `gorm:"type:decimal(20,4)" json:"close"`
	High         decimal.Decimal `gorm:"type:decimal(20,4)" json:"high"`
	Low          decimal.Decimal `gorm:"type:decimal(20,4)" json:"low"`
	PreClose     decimal.Decimal `gorm:"type:decimal(20,4)" json:"pre_close"`
	Volume       decimal.Decimal `gorm:"type:decimal(24,2)" json:"volume"`
	// Turnover 成交额，TurnoverRate 换手率(%)；分钟线没有换手率
	Turnover     decimal.Decimal `gorm:"type:decimal(24,4)" json:"turnover"`
	TurnoverRate decimal.Decimal `gorm:"type:decimal(12,6)" json:"turnover_rate"`
	ChangePct    decimal.Decimal `gorm:"type:decimal(12,6)" json:"change_pct"`
	AdjustFlag   string          `gorm:"size:8" json:"adjustflag"`
	Suspended    bool            `json:"suspended"` // tradestatus=0 停牌
	IsST         bool            `json:"is_st"`
}
