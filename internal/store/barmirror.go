package store

import (
	"context"
	"fmt"
	"time"

	"datahouse.com/internal/domain"
	"datahouse.com/pkg/logger"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"
)

type InfluxConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`

	BatchSize     uint          `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	UseGzip       bool          `mapstructure:"use_gzip"`
}

func (c InfluxConfig) String() string {
	return fmt.Sprintf("url=%s org=%s bucket=%s batch=%d flush=%s gzip=%v",
		c.URL, c.Org, c.Bucket, c.BatchSize, c.FlushInterval, c.UseGzip)
}

// PointWriter influx 异步写接口的子集
type PointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// BarMirror 已提交的 K 线镜像一份到 influx，给看板画图
// 异步写，失败只打日志，不影响主库
type BarMirror struct {
	client influxdb2.Client
	w      PointWriter
}

// NewBarMirror URL 为空返回 nil（未启用）；nil 的 *BarMirror 所有方法都是空操作
func NewBarMirror(c InfluxConfig) *BarMirror {
	if c.URL == "" {
		return nil
	}
	if c.BatchSize == 0 {
		c.BatchSize = 2000
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = time.Second
	}
	opt := influxdb2.DefaultOptions().
		SetBatchSize(c.BatchSize).
		SetFlushInterval(uint(c.FlushInterval.Milliseconds())).
		SetUseGZip(c.UseGzip)

	client := influxdb2.NewClientWithOptions(c.URL, c.Token, opt)
	w := client.WriteAPI(c.Org, c.Bucket)

	// 必须消费 Errors()，否则异步写入会阻塞
	go func() {
		for err := range w.Errors() {
			logger.Warn(context.Background(), "influx write error", zap.Error(err))
		}
	}()
	return &BarMirror{client: client, w: w}
}

// NewBarMirrorWith 测试里注入假的 writer
func NewBarMirrorWith(w PointWriter) *BarMirror {
	return &BarMirror{w: w}
}

// Mirror measurement 用表名，tag: entity_id/level/adjust/provider
func (m *BarMirror) Mirror(table string, adjust domain.AdjustType, bars []domain.Kdata) int {
	if m == nil || m.w == nil {
		return 0
	}
	for _, b := range bars {
		tags := map[string]string{
			"entity_id": b.EntityID,
			"level":     b.Level,
			"adjust":    string(adjust),
			"provider":  b.Provider,
		}
		fields := map[string]interface{}{
			"o":   b.Open.InexactFloat64(),
			"h":   b.High.InexactFloat64(),
			"l":   b.Low.InexactFloat64(),
			"c":   b.Close.InexactFloat64(),
			"v":   b.Volume.InexactFloat64(),
			"amt": b.Turnover.InexactFloat64(),
		}
		m.w.WritePoint(write.NewPoint(table, tags, fields, b.Timestamp))
	}
	return len(bars)
}

// Close flush 之后关闭
func (m *BarMirror) Close() {
	if m == nil {
		return
	}
	if m.w != nil {
		m.w.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
}
