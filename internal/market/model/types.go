package model

import (
	"maps"
	"slices"
	"time"
)

type Category string

const (
	CategoryNews        Category = "news"
	CategoryCrypto      Category = "crypto"
	CategoryForex       Category = "forex"
	CategoryCommodities Category = "commodities"
)

// PriceCategories 价格类 category，顺序固定
var PriceCategories = []Category{CategoryCrypto, CategoryForex, CategoryCommodities}

func ParseCategory(s string) (Category, bool) {
	switch c := Category(s); c {
	case CategoryNews, CategoryCrypto, CategoryForex, CategoryCommodities:
		return c, true
	}
	return "", false
}

func (c Category) IsPrice() bool {
	return c == CategoryCrypto || c == CategoryForex || c == CategoryCommodities
}

// DataSource 标记数据是真实行情还是模拟出来的
type DataSource string

const (
	DataSourceLive       DataSource = "live"
	DataSourceSimulation DataSource = "simulation"
)

// Quote 的 ChangePercent 是百分比（1.2 表示 +1.2%），不是比例
type Quote struct {
	Symbol        string  `json:"symbol,omitempty"`
	Price         float64 `json:"price"`
	ChangePercent float64 `json:"change"`
	Name          string  `json:"name,omitempty"`
	MarketCap     float64 `json:"marketCap,omitempty"`
	Volume24h     float64 `json:"volume24h,omitempty"`
}

type QuoteMap map[string]Quote

func (m QuoteMap) Clone() QuoteMap {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

type NewsAnalysis struct {
	Sentiment      string   `json:"sentiment"` // bullish/bearish/neutral
	ImpactScore    int      `json:"impactScore"`
	AffectedAssets []string `json:"affectedAssets"`
	Opinion        string   `json:"opinion"`
}

type NewsArticle struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Source      string        `json:"source"`
	PublishedAt time.Time     `json:"publishedAt"`
	URL         string        `json:"url"`
	ImageURL    string        `json:"imageUrl,omitempty"`
	Analysis    *NewsAnalysis `json:"aiAnalysis,omitempty"`
}

func (a NewsArticle) clone() NewsArticle {
	if a.Analysis != nil {
		an := *a.Analysis
		an.AffectedAssets = slices.Clone(an.AffectedAssets)
		a.Analysis = &an
	}
	return a
}

func CloneNews(in []NewsArticle) []NewsArticle {
	if in == nil {
		return nil
	}
	out := make([]NewsArticle, len(in))
	for i, a := range in {
		out[i] = a.clone()
	}
	return out
}

type Prices struct {
	Crypto      QuoteMap `json:"crypto"`
	Forex       QuoteMap `json:"forex"`
	Commodities QuoteMap `json:"commodities"`
}

func (p Prices) Get(c Category) QuoteMap {
	switch c {
	case CategoryCrypto:
		return p.Crypto
	case CategoryForex:
		return p.Forex
	case CategoryCommodities:
		return p.Commodities
	}
	return nil
}

func (p *Prices) Set(c Category, m QuoteMap) {
	switch c {
	case CategoryCrypto:
		p.Crypto = m
	case CategoryForex:
		p.Forex = m
	case CategoryCommodities:
		p.Commodities = m
	}
}

type MarketSnapshot struct {
	News        []NewsArticle           `json:"news"`
	Prices      Prices                  `json:"prices"`
	LastUpdated map[Category]time.Time  `json:"lastUpdated,omitempty"`
	DataSource  map[Category]DataSource `json:"dataSource,omitempty"`
}

// Clone 深拷贝，调用方拿到的副本可以随便改
func (s MarketSnapshot) Clone() MarketSnapshot {
	return MarketSnapshot{
		News: CloneNews(s.News),
		Prices: Prices{
			Crypto:      s.Prices.Crypto.Clone(),
			Forex:       s.Prices.Forex.Clone(),
			Commodities: s.Prices.Commodities.Clone(),
		},
		LastUpdated: maps.Clone(s.LastUpdated),
		DataSource:  maps.Clone(s.DataSource),
	}
}

type ChatMessage struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSubmit 客户端发上来的聊天
type ChatSubmit struct {
	Content  string `json:"content"`
	Username string `json:"username"`
}
