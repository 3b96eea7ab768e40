package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestStore_AllowBurstThenBlock(t *testing.T) {
	s := NewStore("test", rate.Every(time.Hour), 2, time.Minute)

	assert.True(t, s.Allow("coingecko"))
	assert.True(t, s.Allow("coingecko"))
	assert.False(t, s.Allow("coingecko"), "burst exhausted")

	// 不同 key 互不影响
	assert.True(t, s.Allow("newsapi"))
}

func TestStore_SetLimitOverride(t *testing.T) {
	s := NewStore("test", rate.Every(time.Hour), 1, time.Minute)
	s.SetLimit("binance", rate.Inf, 1)

	for i := 0; i < 10; i++ {
		require.True(t, s.Allow("binance"))
	}
	assert.True(t, s.Allow("yahoo"))
	assert.False(t, s.Allow("yahoo"))
}

func TestStore_Cleanup(t *testing.T) {
	s := NewStore("test", rate.Inf, 1, time.Minute)
	s.Allow("a")
	s.Allow("b")
	require.Equal(t, 2, s.Len())

	s.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, s.Len())
}

func TestManager_TripsAfterConsecutiveFailures(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 2, Timeout: time.Hour}, nil)
	boom := errors.New("upstream 502")

	assert.ErrorIs(t, m.Execute("newsdata", func() error { return boom }), boom)
	assert.ErrorIs(t, m.Execute("newsdata", func() error { return boom }), boom)

	called := false
	err := m.Execute("newsdata", func() error { called = true; return nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called, "open breaker must not call the provider")

	// 其它名字的熔断器独立
	assert.NoError(t, m.Execute("newsapi", func() error { return nil }))
}

func TestManager_CanceledNotCounted(t *testing.T) {
	m := NewManager(Rule{TripConsecutiveFailures: 1, Timeout: time.Hour}, nil)

	_ = m.Execute("coingecko", func() error { return context.Canceled })
	assert.Equal(t, gobreaker.StateClosed, m.Get("coingecko").State())
}

func TestManager_CustomClassifier(t *testing.T) {
	empty := errors.New("empty")
	m := NewManager(Rule{TripConsecutiveFailures: 1, Timeout: time.Hour}, nil).
		WithSuccessClassifier(func(err error) bool { return err == nil || errors.Is(err, empty) })

	_ = m.Execute("yahoo", func() error { return empty })
	assert.Equal(t, gobreaker.StateClosed, m.Get("yahoo").State())
}
