package gateway

import (
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"traderhub.com/internal/market/hub"
	"traderhub.com/internal/market/model"
	"traderhub.com/pkg/logger"
)

// Applier 把一个分类的新值写进本节点（scheduler.Sink）
type Applier interface {
	Apply(ctx context.Context, cat model.Category, value any, src model.DataSource) error
}

// Follower 跟随节点：不自己拉数据，从 broker 收 Mirror 发出的快照和更新写进本地。
// 跟随节点不能再开 Mirror 发到同一个 prefix，否则会回环。聊天各节点独立，不跟随。
type Follower struct {
	broker Broker
	sink   Applier
	prefix string
}

func NewFollower(b Broker, sink Applier, prefix string) *Follower {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Follower{broker: b, sink: sink, prefix: prefix}
}

func (f *Follower) Topics() []string {
	topics := []string{f.prefix + ":snapshot", f.prefix + ":" + string(model.CategoryNews)}
	for _, c := range model.PriceCategories {
		topics = append(topics, f.prefix+":"+string(c))
	}
	return topics
}

// Run 阻塞直到 ctx 结束
func (f *Follower) Run(ctx context.Context) error {
	in, err := f.broker.Subscribe(ctx, f.Topics())
	if err != nil {
		return fmt.Errorf("follow %s: %w", f.prefix, err)
	}
	logger.Info(ctx, "following upstream hub", zap.String("prefix", f.prefix))
	for msg := range in {
		if err := f.handle(ctx, msg.Payload); err != nil {
			logger.Warn(ctx, "follow apply failed", zap.String("topic", msg.Topic), zap.Error(err))
		}
	}
	return nil
}

type rawEnvelope struct {
	Type hub.Kind        `json:"type"`
	Data json.RawMessage `json:"data"`
}

type rawUpdate struct {
	Category   model.Category   `json:"category"`
	Payload    json.RawMessage  `json:"payload"`
	DataSource model.DataSource `json:"dataSource"`
}

func (f *Follower) handle(ctx context.Context, frame []byte) error {
	var env rawEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case hub.KindSnapshot:
		var snap model.MarketSnapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		return f.applySnapshot(ctx, snap)
	case hub.KindUpdate:
		var upd rawUpdate
		if err := json.Unmarshal(env.Data, &upd); err != nil {
			return fmt.Errorf("decode update: %w", err)
		}
		value, err := decodePayload(upd.Category, upd.Payload)
		if err != nil {
			return err
		}
		return f.sink.Apply(ctx, upd.Category, value, upd.DataSource)
	default:
		return nil
	}
}

// applySnapshot 上游的空分类跳过，本地已有值不会被清掉
func (f *Follower) applySnapshot(ctx context.Context, snap model.MarketSnapshot) error {
	if len(snap.News) > 0 {
		if err := f.sink.Apply(ctx, model.CategoryNews, snap.News, snap.DataSource[model.CategoryNews]); err != nil {
			return err
		}
	}
	for _, c := range model.PriceCategories {
		m := snap.Prices.Get(c)
		if len(m) == 0 {
			continue
		}
		if err := f.sink.Apply(ctx, c, m, snap.DataSource[c]); err != nil {
			return err
		}
	}
	return nil
}

func decodePayload(cat model.Category, raw json.RawMessage) (any, error) {
	switch {
	case cat == model.CategoryNews:
		var news []model.NewsArticle
		if err := json.Unmarshal(raw, &news); err != nil {
			return nil, fmt.Errorf("decode news: %w", err)
		}
		return news, nil
	case cat.IsPrice():
		var m model.QuoteMap
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", cat, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown category %q", cat)
	}
}
