package progress

import (
	"context"
	"errors"
	"time"

	"datahouse.com/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const payloadField = "payload"

// RedisBroker 写 Redis Stream，看板用 XREAD 读
type RedisBroker struct {
	rdb    *redis.Client
	maxLen int64
}

func NewRedisBroker(rdb *redis.Client, maxLen int64) *RedisBroker {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisBroker{rdb: rdb, maxLen: maxLen}
}

func (b *RedisBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{payloadField: payload},
	}).Err()
}

// Subscribe 从订阅时刻之后的消息开始读
func (b *RedisBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	out := make(chan Message, 1024)
	last := make([]string, 0, len(topics)*2)
	last = append(last, topics...)
	for range topics {
		last = append(last, "$")
	}

	go func() {
		defer close(out)
		for ctx.Err() == nil {
			res, err := b.rdb.XRead(ctx, &redis.XReadArgs{Streams: last, Block: time.Second, Count: 100}).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn(ctx, "progress xread failed", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			for _, stream := range res {
				for _, m := range stream.Messages {
					for i, t := range topics {
						if t == stream.Stream {
							last[len(topics)+i] = m.ID
						}
					}
					payload, _ := m.Values[payloadField].(string)
					select {
					case out <- Message{Topic: stream.Stream, Payload: []byte(payload)}:
					default:
					}
				}
			}
		}
	}()
	return out, nil
}

// Close 连接由外部持有
func (b *RedisBroker) Close() error { return nil }
