package candles

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"traderhub.com/internal/market/datasource"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
	"traderhub.com/internal/market/synth"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/metrics"
)

var (
	ErrUnknownTimeframe = errors.New("unknown timeframe")
	ErrEmptySymbol      = errors.New("symbol is required")
)

const DefaultLimit = 60

// Series 一次 K 线查询的结果；Source 为真实源名字，或 "synthetic"
type Series struct {
	Symbol     string           `json:"symbol"`
	Timeframe  string           `json:"timeframe"`
	AssetType  string           `json:"assetType"`
	Candles    []model.Candle   `json:"candles"`
	Source     string           `json:"source"`
	DataSource model.DataSource `json:"dataSource"`
}

const SourceSynthetic = "synthetic"

// Service 先走 K 线 chain，全挂了就用锚定价生成连续性 K 线，保证总有数据
type Service struct {
	chains  map[string]*provider.Chain[[]model.Candle] // key: asset type
	anchors *synth.Anchors
	gen     *synth.Generator
	limit   int

	sf singleflight.Group
}

// NewService chains 缺的 asset type 直接走合成
func NewService(chains map[string]*provider.Chain[[]model.Candle], anchors *synth.Anchors, gen *synth.Generator) *Service {
	if anchors == nil {
		anchors = synth.NewAnchors(nil, nil)
	}
	if gen == nil {
		gen = synth.NewGenerator(nil, nil)
	}
	return &Service{chains: chains, anchors: anchors, gen: gen, limit: DefaultLimit}
}

func (s *Service) Candles(ctx context.Context, symbol, timeframe, assetType string) (Series, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Series{}, ErrEmptySymbol
	}
	if _, ok := datasource.Timeframes[timeframe]; !ok {
		return Series{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, timeframe)
	}
	if assetType != datasource.AssetForex {
		assetType = datasource.AssetCrypto
	}

	// 同一时刻相同的查询只打一次上游
	key := symbol + "|" + timeframe + "|" + assetType
	v, err, _ := s.sf.Do(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), symbol, timeframe, assetType)
	})
	if err != nil {
		return Series{}, err
	}
	out := v.(Series)
	out.Candles = slices.Clone(out.Candles)
	return out, nil
}

func (s *Service) load(ctx context.Context, symbol, timeframe, assetType string) (Series, error) {
	series := Series{Symbol: symbol, Timeframe: timeframe, AssetType: assetType}

	if chain, ok := s.chains[assetType]; ok {
		res := chain.Fetch(ctx, provider.Params{Symbol: symbol, Interval: timeframe, AssetType: assetType, Limit: s.limit})
		if res.OK() {
			series.Candles = res.Data
			series.Source = res.Source
			series.DataSource = model.DataSourceLive
			return series, nil
		}
		logger.Warn(ctx, "candle chain exhausted, generating synthetic series",
			zap.String("symbol", symbol),
			zap.String("timeframe", timeframe),
			zap.Error(res.Err()),
		)
	}

	anchor := s.anchors.Resolve(ctx, symbol, assetType)
	class := assetClass(symbol, assetType)
	cs, err := s.gen.Generate(anchor.Price, class, datasource.Timeframes[timeframe])
	if err != nil {
		return Series{}, err
	}
	metrics.SyntheticSeriesTotal.WithLabelValues(string(class)).Inc()
	logger.Info(ctx, "synthetic candles generated",
		zap.String("symbol", symbol),
		zap.Float64("anchor", anchor.Price),
		zap.String("anchor_source", anchor.Source),
	)
	series.Candles = cs
	series.Source = SourceSynthetic
	series.DataSource = model.DataSourceSimulation
	return series, nil
}

// 贵金属按商品的波动率生成
func assetClass(symbol, assetType string) synth.AssetClass {
	if strings.HasPrefix(symbol, "XAU") || strings.HasPrefix(symbol, "XAG") {
		return synth.AssetCommodity
	}
	return synth.ParseAssetClass(assetType)
}
