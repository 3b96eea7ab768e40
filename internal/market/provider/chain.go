package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"traderhub.com/internal/market/model"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/metrics"
)

const DefaultTimeout = 10 * time.Second

type Member[T any] struct {
	Provider Provider[T]
	Timeout  time.Duration // <=0 用 DefaultTimeout
}

type Attempt struct {
	Provider string
	Err      error
	Elapsed  time.Duration
}

// Result 要么 Source 非空（Success），要么 Exhausted
type Result[T any] struct {
	Class     Class
	Source    string
	Data      T
	Attempts  []Attempt // 失败的尝试，按顺序
	Simulated bool      // 答复来自兜底的模拟源
}

func (r Result[T]) OK() bool { return r.Source != "" }

func (r Result[T]) Exhausted() bool { return !r.OK() }

// Err 成功时为 nil；否则 errors.Is(err, ErrAllProvidersExhausted) 成立，并带上每次尝试的错误
func (r Result[T]) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Attempts)+1)
	errs = append(errs, fmt.Errorf("%w: class %s", ErrAllProvidersExhausted, r.Class))
	for _, a := range r.Attempts {
		errs = append(errs, a.Err)
	}
	return errors.Join(errs...)
}

// Chain 按声明顺序依次尝试，第一个成功的赢，前面的失败只记日志
type Chain[T any] struct {
	class    Class
	members  []Member[T]
	size     func(T) int
	validate func(T) error
}

// NewChain size 返回 0 视为空结果
func NewChain[T any](class Class, size func(T) int, members ...Member[T]) *Chain[T] {
	return &Chain[T]{class: class, members: members, size: size}
}

// WithValidator 校验不过的结果按 malformed 处理
func (c *Chain[T]) WithValidator(fn func(T) error) *Chain[T] {
	c.validate = fn
	return c
}

func (c *Chain[T]) Class() Class { return c.class }

func (c *Chain[T]) Names() []string {
	out := make([]string, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m.Provider.Name())
	}
	return out
}

func (c *Chain[T]) Fetch(ctx context.Context, p Params) Result[T] {
	res := Result[T]{Class: c.class}
	class := string(c.class)

	for _, m := range c.members {
		name := m.Provider.Name()
		if err := ctx.Err(); err != nil {
			// 上层取消了，后面的不用试了
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Err: &AttemptError{Provider: name, Kind: ErrProviderUnavailable, Err: err}})
			break
		}

		start := time.Now()
		data, err := c.attempt(ctx, m, p)
		elapsed := time.Since(start)
		metrics.ProviderLatency.WithLabelValues(class, name).Observe(elapsed.Seconds())

		if err == nil {
			metrics.ProviderAttemptsTotal.WithLabelValues(class, name, outcome(nil)).Inc()
			logger.Debug(ctx, "provider answered",
				zap.String("class", class),
				zap.String("provider", name),
				zap.Duration("elapsed", elapsed),
			)
			res.Source = name
			res.Data = data
			res.Simulated = isSimulated(m.Provider)
			return res
		}

		var ae *AttemptError
		if errors.As(err, &ae) {
			ae.Elapsed = elapsed
		}
		metrics.ProviderAttemptsTotal.WithLabelValues(class, name, outcome(Kind(err))).Inc()
		logger.Warn(ctx, "provider attempt failed",
			zap.String("class", class),
			zap.String("provider", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		res.Attempts = append(res.Attempts, Attempt{Provider: name, Err: err, Elapsed: elapsed})
	}

	metrics.ChainExhaustedTotal.WithLabelValues(class).Inc()
	return res
}

// Simulator 模拟数据源实现它，结果会被标成 simulation
type Simulator interface {
	Simulated() bool
}

func isSimulated(p any) bool {
	s, ok := p.(Simulator)
	return ok && s.Simulated()
}

type attemptOut[T any] struct {
	data T
	err  error
}

// attempt 在独立 goroutine 里跑 provider；超时后直接放弃，晚到的结果丢进缓冲 channel 后被 GC
func (c *Chain[T]) attempt(ctx context.Context, m Member[T], p Params) (T, error) {
	var zero T
	name := m.Provider.Name()
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan attemptOut[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- attemptOut[T]{err: fmt.Errorf("%w: panic: %v", ErrProviderFailed, r)}
			}
		}()
		d, err := m.Provider.Fetch(actx, p)
		ch <- attemptOut[T]{data: d, err: err}
	}()

	select {
	case <-actx.Done():
		if ctx.Err() != nil {
			return zero, &AttemptError{Provider: name, Kind: ErrProviderUnavailable, Err: ctx.Err()}
		}
		return zero, &AttemptError{Provider: name, Kind: ErrProviderTimeout, Err: actx.Err()}
	case o := <-ch:
		if o.err != nil {
			return zero, &AttemptError{Provider: name, Kind: Kind(o.err), Err: o.err}
		}
		if c.size != nil && c.size(o.data) == 0 {
			return zero, &AttemptError{Provider: name, Kind: ErrEmptyResult}
		}
		if c.validate != nil {
			if err := c.validate(o.data); err != nil {
				return zero, &AttemptError{Provider: name, Kind: ErrMalformedResponse, Err: err}
			}
		}
		return o.data, nil
	}
}

// 常用的 chain 构造

func NewQuoteChain(class Class, members ...Member[model.QuoteMap]) *Chain[model.QuoteMap] {
	return NewChain(class, func(m model.QuoteMap) int { return len(m) }, members...).
		WithValidator(validateQuotes)
}

func NewNewsChain(members ...Member[[]model.NewsArticle]) *Chain[[]model.NewsArticle] {
	return NewChain(ClassNews, func(n []model.NewsArticle) int { return len(n) }, members...)
}

func NewCandleChain(members ...Member[[]model.Candle]) *Chain[[]model.Candle] {
	return NewChain(ClassCandles, func(c []model.Candle) int { return len(c) }, members...).
		WithValidator(model.ValidateCandles)
}

func NewSpotChain(members ...Member[float64]) *Chain[float64] {
	return NewChain(ClassSpot, func(v float64) int {
		if v > 0 {
			return 1
		}
		return 0
	}, members...)
}

func validateQuotes(m model.QuoteMap) error {
	for sym, q := range m {
		if q.Price < 0 || math.IsNaN(q.Price) || math.IsInf(q.Price, 0) {
			return fmt.Errorf("quote %s: bad price %v", sym, q.Price)
		}
	}
	return nil
}
