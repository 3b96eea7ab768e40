package snapshot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"traderhub.com/internal/market/model"
)

var (
	// ErrEmptyCategory 已有数据的分类不允许被空值覆盖
	ErrEmptyCategory   = errors.New("refusing to replace category with empty value")
	ErrUnknownCategory = errors.New("unknown category")
)

// Store 唯一的当前快照。整类替换，读的时候给深拷贝。
type Store struct {
	mu    sync.RWMutex
	snap  model.MarketSnapshot
	clock clockwork.Clock
}

func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock: clock,
		snap: model.MarketSnapshot{
			LastUpdated: make(map[model.Category]time.Time),
			DataSource:  make(map[model.Category]model.DataSource),
		},
	}
}

// Read 一致的完整快照
func (s *Store) Read() model.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *Store) News() []model.NewsArticle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneNews(s.snap.News)
}

func (s *Store) Prices(cat model.Category) model.QuoteMap {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Prices.Get(cat).Clone()
}

func (s *Store) AllPrices() model.Prices {
	return s.Read().Prices
}

// Payload 某个分类的当前值，用于广播
func (s *Store) Payload(cat model.Category) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cat == model.CategoryNews {
		return model.CloneNews(s.snap.News), s.snap.News != nil
	}
	m := s.snap.Prices.Get(cat)
	return m.Clone(), m != nil
}

func (s *Store) Source(cat model.Category) model.DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.DataSource[cat]
}

// Updated 分类最后一次替换的时间；没有值时为零
func (s *Store) Updated(cat model.Category) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.LastUpdated[cat]
}

func (s *Store) ReplaceNews(news []model.NewsArticle, src model.DataSource) error {
	if len(news) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyCategory, model.CategoryNews)
	}
	cp := model.CloneNews(news)

	s.mu.Lock()
	s.snap.News = cp
	s.touch(model.CategoryNews, src)
	s.mu.Unlock()
	return nil
}

func (s *Store) ReplacePrices(cat model.Category, m model.QuoteMap, src model.DataSource) error {
	if !cat.IsPrice() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}
	if len(m) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyCategory, cat)
	}
	cp := m.Clone()

	s.mu.Lock()
	s.snap.Prices.Set(cat, cp)
	s.touch(cat, src)
	s.mu.Unlock()
	return nil
}

// ReplaceCategory value 必须是 []NewsArticle 或 QuoteMap
func (s *Store) ReplaceCategory(cat model.Category, value any, src model.DataSource) error {
	switch v := value.(type) {
	case []model.NewsArticle:
		if cat != model.CategoryNews {
			return fmt.Errorf("%w: news payload for %q", ErrUnknownCategory, cat)
		}
		return s.ReplaceNews(v, src)
	case model.QuoteMap:
		return s.ReplacePrices(cat, v, src)
	default:
		return fmt.Errorf("%w: unsupported payload %T for %q", ErrUnknownCategory, value, cat)
	}
}

// Seed 启动时整体灌入（demo 数据或 redis 里的上次快照）；空分类跳过
func (s *Store) Seed(snap model.MarketSnapshot, src model.DataSource) {
	snap = snap.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(snap.News) > 0 {
		s.snap.News = snap.News
		s.seedMeta(snap, model.CategoryNews, src)
	}
	for _, cat := range model.PriceCategories {
		if m := snap.Prices.Get(cat); len(m) > 0 {
			s.snap.Prices.Set(cat, m)
			s.seedMeta(snap, cat, src)
		}
	}
}

func (s *Store) seedMeta(snap model.MarketSnapshot, cat model.Category, src model.DataSource) {
	at, ok := snap.LastUpdated[cat]
	if !ok {
		at = s.clock.Now()
	}
	s.snap.LastUpdated[cat] = at
	if ds, ok := snap.DataSource[cat]; ok {
		src = ds
	}
	s.snap.DataSource[cat] = src
}

func (s *Store) touch(cat model.Category, src model.DataSource) {
	if src == "" {
		src = model.DataSourceLive
	}
	s.snap.LastUpdated[cat] = s.clock.Now()
	s.snap.DataSource[cat] = src
}
