package insight

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"traderhub.com/internal/market/candles"
	"traderhub.com/internal/market/model"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/metrics"
)

// CandleSource candles.Service 满足它
type CandleSource interface {
	Candles(ctx context.Context, symbol, timeframe, assetType string) (candles.Series, error)
}

// Report 给 /api/insights 的完整返回
type Report struct {
	Symbol       string           `json:"symbol"`
	Timeframe    string           `json:"timeframe"`
	AssetType    string           `json:"assetType"`
	Candles      []model.Candle   `json:"candles"`
	CandleSource string           `json:"candleSource"`
	DataSource   model.DataSource `json:"dataSource"` // K 线的来源
	Analysis     Analysis         `json:"analysis"`
}

const DefaultCollaboratorTimeout = 25 * time.Second

// Service 拿 K 线，交给外部分析；外部不在、报错、超时或者返回不合法，都用 Mock 顶上。永远不返回空分析
type Service struct {
	candles CandleSource
	collab  Collaborator // 可以为 nil
	mock    *Mock
	timeout time.Duration
}

func NewService(src CandleSource, collab Collaborator, mock *Mock) *Service {
	if mock == nil {
		mock = NewMock(nil)
	}
	return &Service{candles: src, collab: collab, mock: mock, timeout: DefaultCollaboratorTimeout}
}

func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *Service) Insight(ctx context.Context, symbol, timeframe, assetType string) (Report, error) {
	series, err := s.candles.Candles(ctx, symbol, timeframe, assetType)
	if err != nil {
		return Report{}, err
	}
	rep := Report{
		Symbol:       series.Symbol,
		Timeframe:    series.Timeframe,
		AssetType:    series.AssetType,
		Candles:      series.Candles,
		CandleSource: series.Source,
		DataSource:   series.DataSource,
	}
	req := Request{Symbol: series.Symbol, Timeframe: series.Timeframe, AssetType: series.AssetType, Candles: series.Candles}

	a, reason := s.ask(ctx, req)
	if reason == "" {
		rep.Analysis = a
		return rep, nil
	}

	metrics.InsightFallbackTotal.WithLabelValues(reason).Inc()
	rep.Analysis, err = s.mock.Analyze(req)
	if err != nil {
		return Report{}, err
	}
	return rep, nil
}

// ask 返回空 reason 表示外部结果可用
func (s *Service) ask(ctx context.Context, req Request) (Analysis, string) {
	if s.collab == nil {
		return Analysis{}, "absent"
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.collab.Analyze(cctx, req)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		logger.Warn(ctx, "insight collaborator failed, using mock",
			zap.String("symbol", req.Symbol),
			zap.String("timeframe", req.Timeframe),
			zap.Error(err),
		)
		return Analysis{}, reason
	}
	if err := a.Validate(); err != nil {
		logger.Warn(ctx, "insight collaborator returned bad analysis, using mock",
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		return Analysis{}, "invalid"
	}
	if a.DataSource == "" {
		a.DataSource = model.DataSourceLive
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.mock.clock.Now().UTC()
	}
	return a, ""
}
