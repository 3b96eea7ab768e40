package datasource

import (
	"context"

	"github.com/shopspring/decimal"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
	"traderhub.com/internal/market/synth"
)

type simBase struct {
	Key   string
	Name  string
	Price float64
}

var forexBases = []simBase{
	{"USD/JPY", "US Dollar / Japanese Yen", 157.50},
	{"EUR/USD", "Euro / US Dollar", 1.0350},
	{"GBP/USD", "British Pound / US Dollar", 1.2580},
	{"USD/CHF", "US Dollar / Swiss Franc", 0.9030},
	{"AUD/USD", "Australian Dollar / US Dollar", 0.6240},
}

var commodityBases = []simBase{
	{"GOLD", "Gold", 4400},
	{"SILVER", "Silver", 52},
	{"OIL", "Crude Oil", 75},
}

// Simulated 链条最后一环：围绕基准价抖动，永远成功
type Simulated struct {
	name     string
	bases    []simBase
	jitter   float64 // 价格相对抖动幅度，±jitter
	change   float64 // 涨跌幅范围 ±change
	decimals int32
	rnd      synth.Rand
}

// NewSimulatedForex ±0.1% 抖动，4 位小数
func NewSimulatedForex(rnd synth.Rand) *Simulated {
	return newSimulated("simulated-forex", forexBases, 0.001, 0.25, 4, rnd)
}

// NewSimulatedCommodities ±0.5% 抖动，2 位小数
func NewSimulatedCommodities(rnd synth.Rand) *Simulated {
	return newSimulated("simulated-commodities", commodityBases, 0.005, 1, 2, rnd)
}

func newSimulated(name string, bases []simBase, jitter, change float64, decimals int32, rnd synth.Rand) *Simulated {
	if rnd == nil {
		rnd = synth.NewTimeRand()
	}
	return &Simulated{name: name, bases: bases, jitter: jitter, change: change, decimals: decimals, rnd: rnd}
}

func (s *Simulated) Name() string { return s.name }

func (s *Simulated) Simulated() bool { return true }

func (s *Simulated) Fetch(ctx context.Context, _ provider.Params) (model.QuoteMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(model.QuoteMap, len(s.bases))
	for _, b := range s.bases {
		price := b.Price * (1 + (s.rnd.Float64()*2-1)*s.jitter)
		chg := (s.rnd.Float64()*2 - 1) * s.change
		out[b.Key] = model.Quote{
			Symbol:        b.Key,
			Price:         decimal.NewFromFloat(price).Round(s.decimals).InexactFloat64(),
			ChangePercent: decimal.NewFromFloat(chg).Round(2).InexactFloat64(),
			Name:          b.Name,
		}
	}
	return out, nil
}
