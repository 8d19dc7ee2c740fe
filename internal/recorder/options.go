package recorder

import (
	"strings"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/xerr"
)

const DefaultBatchSize = 10

// Options 一个 recorder 任务的参数，来自配置文件或命令行
type Options struct {
	BatchSize       int         `mapstructure:"batch_size"`
	ForceUpdate     bool        `mapstructure:"force_update"`
	SleepTime       float64     `mapstructure:"sleep_time"` // 秒
	FixDuplicateWay string      `mapstructure:"fix_duplicate_way"`
	StartTimestamp  string      `mapstructure:"start_timestamp"`
	EndTimestamp    string      `mapstructure:"end_timestamp"`
	Level           string      `mapstructure:"level"`
	AdjustType      string      `mapstructure:"adjust_type"`
	Codes           []string    `mapstructure:"codes"`
	EntityIDs       []string    `mapstructure:"entity_ids"`
	Retry           RetryPolicy `mapstructure:"retry"`

	dedup domain.DedupPolicy
	start time.Time
	end   time.Time
	level domain.Level
}

// Normalize 校验并填默认值，任何不合法的参数都是 FatalConfiguration
func (o Options) Normalize() (Options, error) {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.SleepTime < 0 {
		return o, xerr.Fatalf("sleep_time must be >= 0, got %v", o.SleepTime)
	}
	var err error
	if o.dedup, err = domain.ParseDedup(o.FixDuplicateWay); err != nil {
		return o, err
	}
	if o.start, err = parseTimestamp(o.StartTimestamp); err != nil {
		return o, err
	}
	if o.end, err = parseTimestamp(o.EndTimestamp); err != nil {
		return o, err
	}
	if !o.start.IsZero() && !o.end.IsZero() && o.end.Before(o.start) {
		return o, xerr.Fatalf("end_timestamp %s before start_timestamp %s", o.EndTimestamp, o.StartTimestamp)
	}
	if o.Level != "" {
		if o.level, err = domain.ParseLevel(o.Level); err != nil {
			return o, err
		}
	}
	return o, nil
}

func (o Options) Dedup() domain.DedupPolicy {
	if o.dedup == "" {
		return domain.DedupIgnore
	}
	return o.dedup
}

func (o Options) Sleep() time.Duration {
	return time.Duration(o.SleepTime * float64(time.Second))
}

func (o Options) Start() time.Time { return o.start }
func (o Options) End() time.Time   { return o.end }

// CaughtUpInterval 水位离 now 小于这个间隔就算追平；没有 level 按一天
func (o Options) CaughtUpInterval() time.Duration {
	if o.level == "" {
		return 24 * time.Hour
	}
	return o.level.Interval()
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, xerr.Fatalf("bad timestamp %q", s)
}
