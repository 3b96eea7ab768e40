package insight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"traderhub.com/internal/market/model"
)

type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalWait Signal = "WAIT"
)

type KeyLevels struct {
	Support    []float64 `json:"support"`
	Resistance []float64 `json:"resistance"`
}

// Analysis 单个品种某个周期的交易观点
type Analysis struct {
	Signal             Signal           `json:"signal"`
	Confidence         int              `json:"confidence"` // 1-100
	CurrentPrice       float64          `json:"currentPrice"`
	Entry              float64          `json:"entry"`
	StopLoss           float64          `json:"stopLoss"`
	TakeProfit         float64          `json:"takeProfit"`
	RiskRewardRatio    string           `json:"riskRewardRatio"`
	Pattern            string           `json:"pattern"`
	PatternDescription string           `json:"patternDescription"`
	MarketStructure    string           `json:"marketStructure"`
	KeyLevels          KeyLevels        `json:"keyLevels"`
	WhyEnter           string           `json:"whyEnter"`
	RiskFactors        []string         `json:"riskFactors"`
	TechnicalNotes     string           `json:"technicalNotes"`
	Reasoning          string           `json:"reasoning"`
	DataSource         model.DataSource `json:"dataSource"`
	Timestamp          time.Time        `json:"timestamp"`
}

var ErrInvalidAnalysis = errors.New("invalid analysis")

// Validate 外部生成的结果必须过这一关，否则用 mock
func (a Analysis) Validate() error {
	switch a.Signal {
	case SignalBuy, SignalSell, SignalWait:
	default:
		return fmt.Errorf("%w: signal %q", ErrInvalidAnalysis, a.Signal)
	}
	if a.Confidence < 1 || a.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d", ErrInvalidAnalysis, a.Confidence)
	}
	for name, v := range map[string]float64{"entry": a.Entry, "stopLoss": a.StopLoss, "takeProfit": a.TakeProfit} {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %v", ErrInvalidAnalysis, name, v)
		}
	}
	return nil
}

type Request struct {
	Symbol    string         `json:"symbol"`
	Timeframe string         `json:"timeframe"`
	AssetType string         `json:"assetType"`
	Candles   []model.Candle `json:"candles"`
}

// Collaborator 外部的分析生成器（LLM 之类），可能慢、可能挂
type Collaborator interface {
	Analyze(ctx context.Context, req Request) (Analysis, error)
}

type CollaboratorFunc func(ctx context.Context, req Request) (Analysis, error)

func (f CollaboratorFunc) Analyze(ctx context.Context, req Request) (Analysis, error) {
	return f(ctx, req)
}
