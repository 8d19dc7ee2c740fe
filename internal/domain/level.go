package domain

import (
	"fmt"
	"strings"
	"time"

	"datahouse.com/pkg/xerr"
)

// Level K 线周期
type Level string

const (
	Level1Min  Level = "1m"
	Level5Min  Level = "5m"
	Level15Min Level = "15m"
	Level30Min Level = "30m"
	Level1Hour Level = "1h"
	Level1Day  Level = "1d"
	Level1Week Level = "1wk"
	Level1Mon  Level = "1mon"
)

var levelInterval = map[Level]time.Duration{
	Level1Min:  time.Minute,
	Level5Min:  5 * time.Minute,
	Level15Min: 15 * time.Minute,
	Level30Min: 30 * time.Minute,
	Level1Hour: time.Hour,
	Level1Day:  24 * time.Hour,
	Level1Week: 7 * 24 * time.Hour,
	Level1Mon:  30 * 24 * time.Hour,
}

func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if _, ok := levelInterval[l]; !ok {
		return "", xerr.Fatalf("unknown level %q", s)
	}
	return l, nil
}

// Interval 一个周期的时长；未知周期按一天
func (l Level) Interval() time.Duration {
	if d, ok := levelInterval[l]; ok {
		return d
	}
	return 24 * time.Hour
}

// Intraday 日内周期，id 用完整时间
func (l Level) Intraday() bool {
	return l.Interval() < 24*time.Hour
}

// AdjustType 复权方式
type AdjustType string

const (
	AdjustQfq AdjustType = "qfq" // 前复权
	AdjustHfq AdjustType = "hfq" // 后复权
	AdjustBfq AdjustType = "bfq" // 不复权
)

// ParseAdjust 空串按 qfq；normal 是 bfq 的别名，和 baostock adjustflag=3 的叫法一致
func ParseAdjust(s string) (AdjustType, error) {
	switch a := AdjustType(strings.ToLower(s)); a {
	case "":
		return AdjustQfq, nil
	case "normal":
		return AdjustBfq, nil
	case AdjustQfq, AdjustHfq, AdjustBfq:
		return a, nil
	}
	return "", xerr.Fatalf("unknown adjust type %q", s)
}

// KdataTable 表名：qfq 省略复权后缀，stock_1d_kdata / stock_1d_hfq_kdata
func KdataTable(entityType EntityType, level Level, adjust AdjustType) (string, error) {
	if _, ok := levelInterval[level]; !ok {
		return "", xerr.Fatalf("unknown level %q", level)
	}
	switch adjust {
	case "", AdjustQfq:
		return fmt.Sprintf("%s_%s_kdata", entityType, level), nil
	case AdjustHfq, AdjustBfq:
		return fmt.Sprintf("%s_%s_%s_kdata", entityType, level, adjust), nil
	}
	return "", xerr.Fatalf("unknown adjust type %q", adjust)
}
