package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/encoding/json"
	"traderhub.com/internal/market/model"
)

const DefaultMirrorPrefix = "market:snapshot"

type mirrorRecord struct {
	Category   model.Category   `json:"category"`
	DataSource model.DataSource `json:"dataSource"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	Payload    json.RawMessage  `json:"payload"`
}

// RedisMirror 每个分类替换后写一份到 redis，重启时用它预热，只保留当前值
type RedisMirror struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisMirror(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisMirror {
	if prefix == "" {
		prefix = DefaultMirrorPrefix
	}
	return &RedisMirror{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (m *RedisMirror) key(cat model.Category) string {
	return m.prefix + ":" + string(cat)
}

func (m *RedisMirror) Save(ctx context.Context, cat model.Category, payload any, src model.DataSource, at time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", cat, err)
	}
	rec, err := json.Marshal(mirrorRecord{Category: cat, DataSource: src, UpdatedAt: at.UTC(), Payload: raw})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", cat, err)
	}
	return m.rdb.Set(ctx, m.key(cat), rec, m.ttl).Err()
}

// Load 读出所有分类；一个都没有时 found=false
func (m *RedisMirror) Load(ctx context.Context) (snap model.MarketSnapshot, found bool, err error) {
	snap.LastUpdated = make(map[model.Category]time.Time)
	snap.DataSource = make(map[model.Category]model.DataSource)

	cats := append([]model.Category{model.CategoryNews}, model.PriceCategories...)
	for _, cat := range cats {
		raw, err := m.rdb.Get(ctx, m.key(cat)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return snap, found, fmt.Errorf("load %s: %w", cat, err)
		}

		var rec mirrorRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return snap, found, fmt.Errorf("decode %s record: %w", cat, err)
		}
		if cat == model.CategoryNews {
			if err := json.Unmarshal(rec.Payload, &snap.News); err != nil {
				return snap, found, fmt.Errorf("decode news: %w", err)
			}
		} else {
			var qm model.QuoteMap
			if err := json.Unmarshal(rec.Payload, &qm); err != nil {
				return snap, found, fmt.Errorf("decode %s: %w", cat, err)
			}
			snap.Prices.Set(cat, qm)
		}
		snap.LastUpdated[cat] = rec.UpdatedAt
		snap.DataSource[cat] = rec.DataSource
		found = true
	}
	return snap, found, nil
}
