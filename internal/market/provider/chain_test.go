package provider

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"traderhub.com/internal/market/model"
)

func quotesOK(q model.QuoteMap) Provider[model.QuoteMap] {
	return NewFunc("C", func(ctx context.Context, p Params) (model.QuoteMap, error) { return q, nil })
}

func TestChain_FallsThroughToFirstSuccess(t *testing.T) {
	// A 超时，B 返回坏 JSON，C 成功
	slow := NewFunc("A", func(ctx context.Context, p Params) (model.QuoteMap, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	malformed := NewFunc("B", func(ctx context.Context, p Params) (model.QuoteMap, error) {
		return nil, Malformed(errors.New("invalid character '<' looking for beginning of value"))
	})
	want := model.QuoteMap{"BTC": {Price: 50000, ChangePercent: 1.2}}

	chain := NewQuoteChain(ClassCrypto,
		Member[model.QuoteMap]{Provider: slow, Timeout: 20 * time.Millisecond},
		Member[model.QuoteMap]{Provider: malformed},
		Member[model.QuoteMap]{Provider: quotesOK(want)},
	)

	res := chain.Fetch(context.Background(), Params{})
	require.True(t, res.OK())
	assert.Equal(t, "C", res.Source)
	assert.Equal(t, want, res.Data)
	require.NoError(t, res.Err())

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "A", res.Attempts[0].Provider)
	assert.ErrorIs(t, res.Attempts[0].Err, ErrProviderTimeout)
	assert.Equal(t, "B", res.Attempts[1].Provider)
	assert.ErrorIs(t, res.Attempts[1].Err, ErrMalformedResponse)
}

func TestChain_StopsAtFirstSuccess(t *testing.T) {
	var calls atomic.Int32
	second := NewFunc("second", func(ctx context.Context, p Params) (model.QuoteMap, error) {
		calls.Add(1)
		return model.QuoteMap{"X": {Price: 1}}, nil
	})
	chain := NewQuoteChain(ClassForex,
		Member[model.QuoteMap]{Provider: NewFunc("first", func(ctx context.Context, p Params) (model.QuoteMap, error) {
			return model.QuoteMap{"EUR/USD": {Price: 1.03}}, nil
		})},
		Member[model.QuoteMap]{Provider: second},
	)
	res := chain.Fetch(context.Background(), Params{})
	assert.Equal(t, "first", res.Source)
	assert.Zero(t, calls.Load())
}

func TestChain_Exhausted(t *testing.T) {
	empty := NewFunc("empty", func(ctx context.Context, p Params) ([]model.NewsArticle, error) {
		return nil, nil
	})
	failing := NewFunc("down", func(ctx context.Context, p Params) ([]model.NewsArticle, error) {
		return nil, StatusError(502)
	})
	res := NewNewsChain(
		Member[[]model.NewsArticle]{Provider: empty},
		Member[[]model.NewsArticle]{Provider: failing},
	).Fetch(context.Background(), Params{})

	require.True(t, res.Exhausted())
	err := res.Err()
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Nil(t, res.Data)
}

func TestChain_LateResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	// 不理会 ctx 的源：超时后才返回
	stubborn := NewFunc("stubborn", func(ctx context.Context, p Params) (model.QuoteMap, error) {
		<-release
		return model.QuoteMap{"LATE": {Price: 1}}, nil
	})
	res := NewQuoteChain(ClassCrypto,
		Member[model.QuoteMap]{Provider: stubborn, Timeout: 10 * time.Millisecond},
	).Fetch(context.Background(), Params{})
	close(release)

	assert.True(t, res.Exhausted())
	assert.ErrorIs(t, res.Err(), ErrProviderTimeout)
}

func TestChain_ValidatorRejectsBadCandles(t *testing.T) {
	bad := NewFunc("bad", func(ctx context.Context, p Params) ([]model.Candle, error) {
		return []model.Candle{{Time: 1, Open: 10, High: 9, Low: 8, Close: 10}}, nil
	})
	good := NewFunc("good", func(ctx context.Context, p Params) ([]model.Candle, error) {
		return []model.Candle{{Time: 1, Open: 10, High: 11, Low: 9, Close: 10}}, nil
	})
	res := NewCandleChain(
		Member[[]model.Candle]{Provider: bad},
		Member[[]model.Candle]{Provider: good},
	).Fetch(context.Background(), Params{Symbol: "BTC"})

	assert.Equal(t, "good", res.Source)
	require.Len(t, res.Attempts, 1)
	assert.ErrorIs(t, res.Attempts[0].Err, ErrMalformedResponse)
}

func TestChain_PanicIsContained(t *testing.T) {
	panicky := NewFunc("panicky", func(ctx context.Context, p Params) (float64, error) {
		panic("nil map")
	})
	fallback := NewFunc("fallback", func(ctx context.Context, p Params) (float64, error) { return 0.3, nil })

	res := NewSpotChain(Member[float64]{Provider: panicky}, Member[float64]{Provider: fallback}).
		Fetch(context.Background(), Params{Symbol: "DOGE"})
	assert.Equal(t, "fallback", res.Source)
	assert.Equal(t, 0.3, res.Data)
	assert.ErrorIs(t, res.Attempts[0].Err, ErrProviderFailed)
}

func TestChain_ParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	p := NewFunc("p", func(ctx context.Context, _ Params) (float64, error) {
		calls.Add(1)
		return 1, nil
	})
	res := NewSpotChain(Member[float64]{Provider: p}).Fetch(ctx, Params{})
	assert.True(t, res.Exhausted())
	assert.Zero(t, calls.Load())
}

func TestKind(t *testing.T) {
	assert.Equal(t, ErrProviderTimeout, Kind(context.DeadlineExceeded))
	assert.Equal(t, ErrMalformedResponse, Kind(Malformed(errors.New("x"))))
	assert.Equal(t, ErrProviderUnavailable, Kind(Unavailable("no api key")))
	assert.Equal(t, ErrProviderFailed, Kind(errors.New("dial tcp: refused")))
	assert.Nil(t, Kind(nil))
}
