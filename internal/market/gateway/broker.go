package gateway

import "context"

// Message topic 形如 market:crypto
type Message struct {
	Topic   string
	Payload []byte
}

// Broker 跨节点分发。单机用 MemBroker，多机用 NatsBroker。
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe ctx 结束后 channel 关闭
	Subscribe(ctx context.Context, topics []string) (<-chan Message, error)
	Close() error
}
