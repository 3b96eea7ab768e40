package synth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"traderhub.com/internal/market/model"
)

const (
	DefaultPoints = 60
	startDiscount = 0.98
	noiseClamp    = 2.0
	// 最后几根逐步收窄噪声，保证收盘落在锚定价附近
	taperSteps = 5
)

type AssetClass string

const (
	AssetCrypto    AssetClass = "crypto"
	AssetForex     AssetClass = "forex"
	AssetCommodity AssetClass = "commodity"
)

type classParams struct {
	volatility float64 // 每步波动 = price * volatility
	baseVolume float64
}

var params = map[AssetClass]classParams{
	AssetCrypto:    {volatility: 0.008, baseVolume: 1_000},
	AssetForex:     {volatility: 0.001, baseVolume: 10_000},
	AssetCommodity: {volatility: 0.004, baseVolume: 5_000},
}

func ParseAssetClass(s string) AssetClass {
	switch AssetClass(s) {
	case AssetForex:
		return AssetForex
	case AssetCommodity, "commodities":
		return AssetCommodity
	default:
		return AssetCrypto
	}
}

var ErrInvalidAnchor = errors.New("synthetic anchor must be a positive finite price")

// Generator 所有真实 K 线源都失败时，生成一段贴着锚定价的 K 线
type Generator struct {
	rnd    Rand
	clock  clockwork.Clock
	points int
}

func NewGenerator(rnd Rand, clock clockwork.Clock) *Generator {
	if rnd == nil {
		rnd = NewTimeRand()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{rnd: rnd, clock: clock, points: DefaultPoints}
}

// Generate 从 anchor*0.98 出发，每步线性漂移向 anchor，最后一根收盘在 anchor 1% 以内
func (g *Generator) Generate(anchor float64, class AssetClass, interval time.Duration) ([]model.Candle, error) {
	if anchor <= 0 || math.IsNaN(anchor) || math.IsInf(anchor, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnchor, anchor)
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	cp, ok := params[class]
	if !ok {
		cp = params[AssetCrypto]
	}

	n := g.points
	floor := anchor * 1e-6
	end := g.clock.Now().Truncate(interval)
	out := make([]model.Candle, n)

	price := anchor * startDiscount
	for i := 0; i < n; i++ {
		remaining := n - i
		vol := price * cp.volatility
		drift := (anchor - price) / float64(remaining)

		open := price
		noise := g.noise() * vol * taper(remaining)
		closeP := math.Max(open+drift+noise, floor)

		hi := math.Max(open, closeP) + math.Abs(g.noise())*vol*0.5
		lo := math.Min(open, closeP) - math.Abs(g.noise())*vol*0.5
		// low 不能 <= 0
		lo = math.Max(lo, math.Min(open, closeP)*0.5)

		out[i] = model.Candle{
			Time:   end.Add(-time.Duration(n-1-i) * interval).UnixMilli(),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  closeP,
			Volume: cp.baseVolume * (0.5 + g.rnd.Float64()),
		}
		price = closeP
	}
	return out, nil
}

// noise 截断到 ±2σ 的正态噪声
func (g *Generator) noise() float64 {
	return math.Max(-noiseClamp, math.Min(noiseClamp, g.rnd.NormFloat64()))
}

func taper(remaining int) float64 {
	if remaining > taperSteps {
		return 1
	}
	return float64(remaining-1)/float64(taperSteps) + 0.1
}
