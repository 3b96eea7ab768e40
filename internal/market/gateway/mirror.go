package gateway

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"traderhub.com/internal/market/hub"
	"traderhub.com/pkg/logger"
)

const DefaultTopicPrefix = "market"

// Mirror 像普通客户端一样订阅 hub，把每条消息原样转发到 broker，给其它节点和下游消费者用
type Mirror struct {
	hub    *hub.Hub
	broker Broker
	prefix string
	buffer int
}

func NewMirror(h *hub.Hub, b Broker, prefix string) *Mirror {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Mirror{hub: h, broker: b, prefix: prefix, buffer: 4096}
}

// Topic market:snapshot / market:crypto / market:chat ...
func (m *Mirror) Topic(msg hub.Message) string {
	switch msg.Kind {
	case hub.KindSnapshot:
		return m.prefix + ":snapshot"
	case hub.KindChat:
		return m.prefix + ":chat"
	default:
		return m.prefix + ":" + string(msg.Category)
	}
}

// Run 阻塞直到 ctx 结束或 hub 关闭；被 hub 踢掉会重新订阅（重订阅时先补一份快照）
func (m *Mirror) Run(ctx context.Context) error {
	for {
		sub := m.hub.Subscribe(hub.WithID("mirror:"+m.prefix), hub.WithBuffer(m.buffer))
		err := m.pump(ctx, sub)
		m.hub.Unsubscribe(sub)

		switch {
		case ctx.Err() != nil, errors.Is(err, hub.ErrHubClosed):
			return nil
		case errors.Is(err, hub.ErrSubscriberDelivery):
			logger.Warn(ctx, "mirror fell behind, resubscribing")
			continue
		default:
			return err
		}
	}
}

func (m *Mirror) pump(ctx context.Context, sub *hub.Subscriber) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-sub.C():
			if !ok {
				return m.hub.Err(sub)
			}
			b, err := msg.Bytes()
			if err != nil {
				logger.Error(ctx, "mirror encode failed", zap.Error(err))
				continue
			}
			topic := m.Topic(msg)
			if err := m.broker.Publish(ctx, topic, b); err != nil {
				logger.Warn(ctx, "mirror publish failed", zap.String("topic", topic), zap.Error(err))
			}
		}
	}
}
