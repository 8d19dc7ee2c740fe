package progress

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"datahouse.com/pkg/logger"
	"datahouse.com/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Config struct {
	Driver  string   `mapstructure:"driver"` // mem | nats | redis | kafka | none
	URL     string   `mapstructure:"url"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Key     string   `mapstructure:"key"`
	MaxLen  int64    `mapstructure:"max_len"`
}

// NewBroker 按配置创建 broker；redis 驱动复用外部传入的客户端
func NewBroker(c Config, rdb *redis.Client) (Broker, error) {
	switch strings.ToLower(c.Driver) {
	case "", "none":
		return nil, nil
	case "mem":
		return NewMemBroker(), nil
	case "nats":
		b, err := NewNatsBroker(c.URL)
		if err != nil {
			return nil, fmt.Errorf("progress: connect nats: %w", err)
		}
		return b, nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("progress: redis driver needs redis config")
		}
		return NewRedisBroker(rdb, c.MaxLen), nil
	case "kafka":
		if len(c.Brokers) == 0 {
			return nil, fmt.Errorf("progress: kafka driver needs brokers")
		}
		return NewKafkaBroker(c.Brokers, c.Key), nil
	}
	return nil, fmt.Errorf("progress: unknown driver %q", c.Driver)
}

// Reporter 进度事件发布：发不出去只打日志，不影响录制结果
type Reporter struct {
	broker Broker
	topic  string
	key    string
}

// NewReporter broker 可以为 nil，此时只计数不发布
func NewReporter(b Broker, topic, key string) *Reporter {
	return &Reporter{broker: b, topic: topic, key: key}
}

func (r *Reporter) Publish(ctx context.Context, ev Event) {
	if r == nil || r.broker == nil {
		return
	}
	ev.TopicKey = r.key
	payload, err := ev.Marshal()
	if err == nil {
		err = r.broker.Publish(ctx, r.topic, payload)
	}
	if err != nil {
		metrics.ProgressPublishErrors.WithLabelValues(r.topic).Inc()
		logger.Warn(ctx, "progress publish failed",
			zap.String("topic", r.topic),
			zap.Int("processed", ev.ProcessedCount),
			zap.Error(err))
	}
}

// queueCap 单次运行在途事件的上限，超出的中间计数直接丢弃
const queueCap = 4096

// Track 一次运行一个 Tracker；有 broker 时启动一个发布协程，用完必须 Close
func (r *Reporter) Track(runID, recorder string, total int) *Tracker {
	t := &Tracker{r: r, runID: runID, recorder: recorder, total: total}
	if r == nil || r.broker == nil {
		return t
	}
	t.queue = make(chan tick, min(max(total, 1), queueCap))
	t.done = make(chan struct{})
	go t.loop()
	return t
}

type tick struct {
	ctx context.Context
	n   int
}

// Tracker 计数器原子递增，worker 不碰 broker；
// 事件交给单个发布协程按计数顺序发出，订阅方看到的 processed_count 不会倒退
type Tracker struct {
	r         *Reporter
	runID     string
	recorder  string
	total     int
	processed atomic.Int64

	queue chan tick
	done  chan struct{}
	once  sync.Once
}

// Done 一个实体处理完，返回递增后的计数；队列满时丢掉这次事件，不阻塞调用方
func (t *Tracker) Done(ctx context.Context) int {
	n := int(t.processed.Add(1))
	if t.queue == nil {
		return n
	}
	select {
	case t.queue <- tick{ctx: context.WithoutCancel(ctx), n: n}:
	default:
		metrics.ProgressPublishErrors.WithLabelValues(t.r.topic).Inc()
	}
	return n
}

// loop worker 之间的入队顺序不固定，按计数重新排好再发
func (t *Tracker) loop() {
	defer close(t.done)
	pending := make(map[int]context.Context)
	next := 1
	last := context.Background()
	for tk := range t.queue {
		pending[tk.n] = tk.ctx
		for ctx, ok := pending[next]; ok; ctx, ok = pending[next] {
			delete(pending, next)
			t.publish(ctx, next)
			last = ctx
			next++
		}
	}
	// 有事件被丢掉时序列会断，收尾补发最终计数
	if final := t.Processed(); final >= next {
		t.publish(last, final)
	}
}

func (t *Tracker) publish(ctx context.Context, n int) {
	t.r.Publish(ctx, Event{
		ProcessedCount: n,
		TotalCount:     t.total,
		RunID:          t.runID,
		Recorder:       t.recorder,
	})
}

// Close 不再接受 Done，等发布协程把剩余事件发完或 ctx 到期；可重复调用
func (t *Tracker) Close(ctx context.Context) error {
	if t.queue == nil {
		return nil
	}
	t.once.Do(func() { close(t.queue) })
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) Processed() int { return int(t.processed.Load()) }
func (t *Tracker) Total() int     { return t.total }
