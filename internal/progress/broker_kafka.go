package progress

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaBroker 只负责写，key 用 topic_key 保证同一个 recorder 的事件进同一个分区
type KafkaBroker struct {
	w   *kafka.Writer
	key []byte
}

func NewKafkaBroker(brokers []string, key string) *KafkaBroker {
	return &KafkaBroker{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			BatchTimeout:           50 * time.Millisecond,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
		key: []byte(key),
	}
}

func (b *KafkaBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: b.key, Value: payload})
}

func (b *KafkaBroker) Close() error { return b.w.Close() }
