package insight

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/synth"
)

var ErrNoCandles = errors.New("no candles to analyze")

type pattern struct {
	name, desc, structure string
}

var patterns = map[Signal][]pattern{
	SignalBuy: {
		{"Bullish Flag", "Tight consolidation after an impulsive leg up, buyers defending the flag low.", "Higher highs and higher lows"},
		{"Double Bottom", "Two tests of the same support with a weaker second push down.", "Base forming after a downtrend"},
		{"Ascending Triangle", "Flat resistance with rising lows, pressure building under the ceiling.", "Compression with bullish bias"},
	},
	SignalSell: {
		{"Bearish Flag", "Weak bounce after a sharp drop, sellers capping each rally.", "Lower highs and lower lows"},
		{"Double Top", "Two rejections at the same resistance with fading momentum.", "Distribution near range highs"},
		{"Rising Wedge", "Converging highs and lows sloping up while momentum declines.", "Exhaustion of the uptrend"},
	},
	SignalWait: {
		{"Range", "Price rotating between well defined support and resistance.", "Sideways, no clear trend"},
		{"Symmetrical Triangle", "Contracting swings with no directional commitment yet.", "Indecision, breakout pending"},
	},
}

// Mock 由 K 线统计量 + 固定 seed 推出来的分析。同样的输入永远得到同样的结果
type Mock struct {
	clock clockwork.Clock
}

func NewMock(clock clockwork.Clock) *Mock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Mock{clock: clock}
}

func (m *Mock) Analyze(req Request) (Analysis, error) {
	if len(req.Candles) == 0 {
		return Analysis{}, ErrNoCandles
	}
	last := req.Candles[len(req.Candles)-1]
	price := last.Close
	if price <= 0 {
		return Analysis{}, fmt.Errorf("%w: last close %v", ErrNoCandles, price)
	}

	high, low := last.High, last.Low
	for _, c := range req.Candles {
		high = max(high, c.High)
		low = min(low, c.Low)
	}
	span := high - low
	if span <= 0 {
		span = price * 0.01
	}

	rnd := synth.NewRand(seed(req))
	roll := rnd.Float64()
	signal := SignalWait
	switch {
	case roll < 0.4:
		signal = SignalBuy
	case roll < 0.7:
		signal = SignalSell
	}

	// 风险距离取区间的 15%，但至少 0.2%
	risk := max(span*0.15, price*0.002)
	var stop, target float64
	var confidence int
	switch signal {
	case SignalBuy:
		stop, target = price-risk, price+2*risk
		confidence = 55 + int(rnd.Float64()*30)
	case SignalSell:
		stop, target = price+risk, price-2*risk
		confidence = 55 + int(rnd.Float64()*30)
	default:
		stop, target = price-risk, price+risk
		confidence = 35 + int(rnd.Float64()*25)
	}
	if target <= 0 {
		target = price / 2
	}
	if stop <= 0 {
		stop = price / 2
	}

	list := patterns[signal]
	p := list[int(rnd.Float64()*float64(len(list)))%len(list)]
	dp := decimals(price)
	rr := math.Abs(target-price) / math.Abs(price-stop)

	a := Analysis{
		Signal:             signal,
		Confidence:         confidence,
		CurrentPrice:       round(price, dp),
		Entry:              round(price, dp),
		StopLoss:           round(stop, dp),
		TakeProfit:         round(target, dp),
		RiskRewardRatio:    "1:" + strconv.FormatFloat(rr, 'f', 1, 64),
		Pattern:            p.name,
		PatternDescription: p.desc,
		MarketStructure:    p.structure,
		KeyLevels: KeyLevels{
			Support:    []float64{round(low, dp), round(low+span*0.25, dp)},
			Resistance: []float64{round(high-span*0.25, dp), round(high, dp)},
		},
		RiskFactors: []string{
			"Generated without the analysis service, treat as indicative only",
			fmt.Sprintf("Recent range %.2f%% of price", span/price*100),
		},
		TechnicalNotes: fmt.Sprintf("%d candles, range %s to %s", len(req.Candles), fmtPrice(low, dp), fmtPrice(high, dp)),
		DataSource:     model.DataSourceSimulation,
		Timestamp:      m.clock.Now().UTC().Truncate(time.Millisecond),
	}
	switch signal {
	case SignalBuy:
		a.WhyEnter = fmt.Sprintf("%s on %s %s with price holding above %s.", p.name, req.Symbol, req.Timeframe, fmtPrice(a.KeyLevels.Support[1], dp))
	case SignalSell:
		a.WhyEnter = fmt.Sprintf("%s on %s %s with price capped below %s.", p.name, req.Symbol, req.Timeframe, fmtPrice(a.KeyLevels.Resistance[0], dp))
	default:
		a.WhyEnter = "No entry. Wait for a break of the range."
	}
	a.Reasoning = fmt.Sprintf("%s. %s Current price %s, stop %s, target %s.",
		p.structure, p.desc, fmtPrice(price, dp), fmtPrice(stop, dp), fmtPrice(target, dp))
	return a, nil
}

// seed 只依赖 symbol/timeframe/最后一根 K 线
func seed(req Request) uint64 {
	h := fnv.New64a()
	last := req.Candles[len(req.Candles)-1]
	fmt.Fprintf(h, "%s|%s|%d|%g", req.Symbol, req.Timeframe, last.Time, last.Close)
	return h.Sum64()
}

// decimals 按价格量级决定小数位；0.001 以下保留 5 位有效数字，最多 12 位
func decimals(price float64) int32 {
	switch {
	case price >= 1000:
		return 2
	case price >= 10:
		return 3
	case price >= 1:
		return 4
	case price >= 0.001 || price <= 0:
		return 6
	default:
		return min(int32(-math.Floor(math.Log10(price)))+4, 12)
	}
}

func round(v float64, dp int32) float64 {
	return decimal.NewFromFloat(v).Round(dp).InexactFloat64()
}

func fmtPrice(v float64, dp int32) string {
	return decimal.NewFromFloat(v).StringFixed(dp)
}
