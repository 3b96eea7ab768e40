package synth

import (
	"context"
	"strings"

	"traderhub.com/internal/market/provider"
)

// DefaultAnchors 拿不到实时价时的静态锚定价
var DefaultAnchors = map[string]float64{
	"BTC":     98450.23,
	"ETH":     3890.45,
	"SOL":     245.67,
	"XRP":     2.34,
	"ADA":     1.12,
	"DOGE":    0.30,
	"BNB":     710.00,
	"AVAX":    42.00,
	"LINK":    24.50,
	"DOT":     7.80,
	"MATIC":   0.55,
	"ATOM":    6.90,
	"EUR-USD": 1.0350,
	"GBP-USD": 1.2580,
	"USD-JPY": 157.50,
	"USD-CHF": 0.9030,
	"AUD-USD": 0.6240,
	"USD-CAD": 1.4350,
	"NZD-USD": 0.5620,
	"XAU-USD": 4400.00,
	"XAG-USD": 52.00,
}

// 完全没见过的 symbol 用这个，保证总能生成
const fallbackAnchor = 100.0

type Anchor struct {
	Price  float64
	Source string // 实时源名字，或 "default"
	Live   bool
}

// Anchors 先查实时现价，失败再用静态表
type Anchors struct {
	spot     *provider.Chain[float64]
	defaults map[string]float64
}

func NewAnchors(spot *provider.Chain[float64], defaults map[string]float64) *Anchors {
	if defaults == nil {
		defaults = DefaultAnchors
	}
	return &Anchors{spot: spot, defaults: defaults}
}

func (a *Anchors) Resolve(ctx context.Context, symbol, assetType string) Anchor {
	if a.spot != nil {
		res := a.spot.Fetch(ctx, provider.Params{Symbol: symbol, AssetType: assetType})
		if res.OK() {
			return Anchor{Price: res.Data, Source: res.Source, Live: true}
		}
	}
	return Anchor{Price: a.Default(symbol), Source: "default"}
}

func (a *Anchors) Default(symbol string) float64 {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", "-"))
	if v, ok := a.defaults[key]; ok {
		return v
	}
	return fallbackAnchor
}
