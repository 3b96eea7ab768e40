package insight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"traderhub.com/internal/market/candles"
	"traderhub.com/internal/market/model"
	"traderhub.com/pkg/metrics"
)

var t0 = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func series(symbol string, price float64) candles.Series {
	cs := make([]model.Candle, 20)
	for i := range cs {
		p := price * (1 + float64(i%5-2)*0.004)
		cs[i] = model.Candle{
			Time:   t0.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Open:   p,
			High:   p * 1.003,
			Low:    p * 0.997,
			Close:  p,
			Volume: 100,
		}
	}
	return candles.Series{Symbol: symbol, Timeframe: "1h", AssetType: "crypto", Candles: cs, Source: "binance", DataSource: model.DataSourceLive}
}

type fakeCandles struct {
	s   candles.Series
	err error
}

func (f fakeCandles) Candles(_ context.Context, symbol, timeframe, assetType string) (candles.Series, error) {
	if f.err != nil {
		return candles.Series{}, f.err
	}
	return f.s, nil
}

func req(symbol string, price float64) Request {
	s := series(symbol, price)
	return Request{Symbol: s.Symbol, Timeframe: s.Timeframe, AssetType: s.AssetType, Candles: s.Candles}
}

func TestMock_Deterministic(t *testing.T) {
	m := NewMock(clockwork.NewFakeClockAt(t0))

	a, err := m.Analyze(req("BTC", 98000))
	require.NoError(t, err)
	b, err := m.Analyze(req("BTC", 98000))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, model.DataSourceSimulation, a.DataSource)
	assert.Equal(t, t0, a.Timestamp)
}

func TestMock_LevelsConsistentWithSignal(t *testing.T) {
	m := NewMock(nil)
	seen := map[Signal]int{}

	for i := 0; i < 600; i++ {
		price := 0.5 + float64(i)*37.3
		a, err := m.Analyze(req(fmt.Sprintf("SYM%d", i), price))
		require.NoError(t, err)
		require.NoError(t, a.Validate())
		seen[a.Signal]++

		switch a.Signal {
		case SignalBuy:
			assert.Less(t, a.StopLoss, a.Entry)
			assert.Greater(t, a.TakeProfit, a.Entry)
		case SignalSell:
			assert.Greater(t, a.StopLoss, a.Entry)
			assert.Less(t, a.TakeProfit, a.Entry)
		}
		assert.LessOrEqual(t, a.KeyLevels.Support[0], a.KeyLevels.Support[1])
		assert.LessOrEqual(t, a.KeyLevels.Resistance[0], a.KeyLevels.Resistance[1])
		assert.NotEmpty(t, a.Reasoning)
	}

	// 40/30/30，留足余量
	assert.InDelta(t, 0.4, float64(seen[SignalBuy])/600, 0.08)
	assert.InDelta(t, 0.3, float64(seen[SignalSell])/600, 0.08)
	assert.InDelta(t, 0.3, float64(seen[SignalWait])/600, 0.08)
}

func TestMock_NoCandles(t *testing.T) {
	_, err := NewMock(nil).Analyze(Request{Symbol: "BTC"})
	assert.ErrorIs(t, err, ErrNoCandles)
}

func TestMock_RoundsByMagnitude(t *testing.T) {
	a, err := NewMock(nil).Analyze(req("EURUSD", 1.0842))
	require.NoError(t, err)
	assert.Equal(t, a.Entry, round(a.Entry, 4))

	b, err := NewMock(nil).Analyze(req("BTC", 98450.237))
	require.NoError(t, err)
	assert.Equal(t, b.Entry, round(b.Entry, 2))
}

func TestMock_SubMicroPricesKeepLevels(t *testing.T) {
	assert.Equal(t, int32(6), decimals(0.5))
	assert.Equal(t, int32(6), decimals(0.001))
	assert.Equal(t, int32(9), decimals(0.00001234))
	assert.Equal(t, int32(12), decimals(1e-12))

	for i, price := range []float64{0.00001234, 0.0000004567, 0.00098} {
		a, err := NewMock(nil).Analyze(req(fmt.Sprintf("PEPE%d", i), price))
		require.NoError(t, err)
		require.NoError(t, a.Validate())
		assert.Greater(t, a.StopLoss, 0.0)
		assert.Greater(t, a.TakeProfit, 0.0)
		assert.NotEqual(t, a.StopLoss, a.Entry)
		assert.NotEqual(t, a.TakeProfit, a.Entry)
		assert.Greater(t, a.KeyLevels.Support[0], 0.0)
		assert.Less(t, a.KeyLevels.Support[0], a.KeyLevels.Resistance[1])
	}
}

func TestService_NoCollaboratorUsesMock(t *testing.T) {
	before := testutil.ToFloat64(metrics.InsightFallbackTotal.WithLabelValues("absent"))
	svc := NewService(fakeCandles{s: series("ETH", 3400)}, nil, nil)

	rep, err := svc.Insight(context.Background(), "ETH", "1h", "crypto")
	require.NoError(t, err)
	assert.Equal(t, "ETH", rep.Symbol)
	assert.Len(t, rep.Candles, 20)
	assert.Equal(t, "binance", rep.CandleSource)
	assert.Equal(t, model.DataSourceSimulation, rep.Analysis.DataSource)
	assert.NoError(t, rep.Analysis.Validate())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.InsightFallbackTotal.WithLabelValues("absent")))
}

func TestService_CollaboratorFailures(t *testing.T) {
	cases := []struct {
		name   string
		reason string
		fn     CollaboratorFunc
	}{
		{"error", "error", func(context.Context, Request) (Analysis, error) { return Analysis{}, errors.New("quota exceeded") }},
		{"invalid", "invalid", func(context.Context, Request) (Analysis, error) { return Analysis{Signal: "HODL", Confidence: 90}, nil }},
		{"timeout", "timeout", func(ctx context.Context, _ Request) (Analysis, error) {
			<-ctx.Done()
			return Analysis{}, ctx.Err()
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.InsightFallbackTotal.WithLabelValues(tc.reason))
			svc := NewService(fakeCandles{s: series("BTC", 98000)}, tc.fn, nil).WithTimeout(20 * time.Millisecond)

			rep, err := svc.Insight(context.Background(), "BTC", "1h", "crypto")
			require.NoError(t, err)
			assert.Equal(t, model.DataSourceSimulation, rep.Analysis.DataSource)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.InsightFallbackTotal.WithLabelValues(tc.reason)))
		})
	}
}

func TestService_CollaboratorAnswer(t *testing.T) {
	fn := CollaboratorFunc(func(_ context.Context, r Request) (Analysis, error) {
		assert.Len(t, r.Candles, 20)
		return Analysis{Signal: SignalSell, Confidence: 72, Entry: 98000, StopLoss: 99000, TakeProfit: 96000, Reasoning: "lower highs"}, nil
	})
	svc := NewService(fakeCandles{s: series("BTC", 98000)}, fn, NewMock(clockwork.NewFakeClockAt(t0)))

	rep, err := svc.Insight(context.Background(), "BTC", "1h", "crypto")
	require.NoError(t, err)
	assert.Equal(t, SignalSell, rep.Analysis.Signal)
	assert.Equal(t, "lower highs", rep.Analysis.Reasoning)
	assert.Equal(t, model.DataSourceLive, rep.Analysis.DataSource)
	assert.Equal(t, t0, rep.Analysis.Timestamp)
}

func TestService_CandleErrorPropagates(t *testing.T) {
	svc := NewService(fakeCandles{err: candles.ErrUnknownTimeframe}, nil, nil)
	_, err := svc.Insight(context.Background(), "BTC", "7m", "crypto")
	assert.ErrorIs(t, err, candles.ErrUnknownTimeframe)
}

func TestHTTPCollaborator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var in Request
		require.NoError(t, json.Unmarshal(body, &in))

		switch in.Symbol {
		case "BTC":
			_, _ = w.Write([]byte(`{"signal":"BUY","confidence":81,"entry":98000,"stopLoss":97000,"takeProfit":100000}`))
		case "ETH":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	c := NewHTTPCollaborator(srv.URL, time.Second)

	a, err := c.Analyze(context.Background(), req("BTC", 98000))
	require.NoError(t, err)
	assert.Equal(t, SignalBuy, a.Signal)
	assert.Equal(t, model.DataSourceLive, a.DataSource)

	_, err = c.Analyze(context.Background(), req("ETH", 3400))
	assert.Error(t, err)

	_, err = c.Analyze(context.Background(), req("SOL", 180))
	assert.ErrorIs(t, err, ErrInvalidAnalysis)
}

func TestAnalysis_Validate(t *testing.T) {
	ok := Analysis{Signal: SignalWait, Confidence: 50, Entry: 1, StopLoss: 0.9, TakeProfit: 1.1}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Confidence = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAnalysis)

	bad = ok
	bad.StopLoss = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAnalysis)
}

func TestRuleBased(t *testing.T) {
	cases := []struct {
		title, desc string
		sentiment   string
		impact      int
		assets      []string
	}{
		{"Bitcoin rally extends as ETF inflows hit record high", "", "bullish", 6, []string{"BTC"}},
		{"Oil prices plunge on demand crisis", "OPEC output rises", "bearish", 6, []string{"OIL"}},
		{"Quiet session", "Traders wait for data", "neutral", 3, []string{"USD"}},
		{"Gold, bitcoin and the euro", "Fed speakers, oil and pound watch", "neutral", 3, []string{"BTC", "GOLD", "OIL"}},
	}
	for _, tc := range cases {
		t.Run(tc.title, func(t *testing.T) {
			got := RuleBased{}.Analyze(model.NewsArticle{Title: tc.title, Description: tc.desc})
			assert.Equal(t, tc.sentiment, got.Sentiment)
			assert.Equal(t, tc.impact, got.ImpactScore)
			assert.Equal(t, tc.assets, got.AffectedAssets)
			assert.Contains(t, got.Opinion, tc.assets[0])
		})
	}
}

func TestRuleBased_ImpactClamped(t *testing.T) {
	got := RuleBased{}.Analyze(model.NewsArticle{
		Title: "surge rally gain rise bullish growth profit record high breakthrough inflows",
	})
	assert.Equal(t, 10, got.ImpactScore)
}

func TestRuleBased_StableOpinion(t *testing.T) {
	a := model.NewsArticle{Title: "Euro slips as ECB signals pause"}
	assert.Equal(t, RuleBased{}.Analyze(a).Opinion, RuleBased{}.Analyze(a).Opinion)
}
