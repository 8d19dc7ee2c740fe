package baostock

import (
	"fmt"
	"strings"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/xerr"
	"github.com/shopspring/decimal"
)

var (
	// 日/周/月线最早的数据
	dayEpoch = time.Date(1990, 12, 19, 0, 0, 0, 0, time.UTC)
	// 分钟线最早的数据
	minuteEpoch = time.Date(1999, 7, 26, 0, 0, 0, 0, time.UTC)
)

const (
	dayFields    = "date,code,open,high,low,close,preclose,volume,amount,adjustflag,turn,tradestatus,pctChg,isST"
	periodFields = "date,code,open,high,low,close,volume,amount,adjustflag,turn,pctChg"
	minuteFields = "date,time,code,open,high,low,close,volume,amount,adjustflag"
)

// toFrequency baostock 不支持 1 分钟线
func toFrequency(l domain.Level) (string, error) {
	switch l {
	case domain.Level1Day:
		return "d", nil
	case domain.Level1Week:
		return "w", nil
	case domain.Level1Mon:
		return "m", nil
	case domain.Level5Min:
		return "5", nil
	case domain.Level15Min:
		return "15", nil
	case domain.Level30Min:
		return "30", nil
	case domain.Level1Hour:
		return "60", nil
	}
	return "", xerr.Fatalf("baostock does not support level %q", l)
}

func fieldsOf(freq string) string {
	switch freq {
	case "d":
		return dayFields
	case "w", "m":
		return periodFields
	default:
		return minuteFields
	}
}

func epochOf(freq string) time.Time {
	switch freq {
	case "d", "w", "m":
		return dayEpoch
	default:
		return minuteEpoch
	}
}

// toAdjustFlag 1 后复权 2 前复权 3 不复权
func toAdjustFlag(a domain.AdjustType) string {
	switch a {
	case domain.AdjustHfq:
		return "1"
	case domain.AdjustBfq:
		return "3"
	default:
		return "2"
	}
}

func fromAdjustFlag(s string) string {
	switch s {
	case "1":
		return "hfq"
	case "2":
		return "qfq"
	case "3":
		return "normal"
	}
	return s
}

// toCode stock_sz_000001 -> sz.000001
func toCode(e domain.Entity) string {
	return fmt.Sprintf("%s.%s", e.Exchange, e.Code)
}

// num 空白当 0
func num(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// barTime 日线 2006-01-02；分钟线 20060102150405000
func barTime(row map[string]string, minute bool) (time.Time, error) {
	if !minute {
		return time.Parse(time.DateOnly, row["date"])
	}
	s := row["time"]
	if len(s) < 14 {
		return time.Time{}, fmt.Errorf("bad bar time %q", s)
	}
	return time.Parse("20060102150405", s[:14])
}
