package progress

import "context"

type Message struct {
	Topic   string
	Payload []byte
}

type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}

// Subscriber 不是所有 broker 都要实现（kafka 只写）
type Subscriber interface {
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
}
