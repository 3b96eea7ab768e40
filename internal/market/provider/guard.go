package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
	"traderhub.com/pkg/ratelimit"
)

type guarded[T any] struct {
	inner    Provider[T]
	breakers *ratelimit.Manager
	limits   *ratelimit.Store
}

// Guard 给 provider 套上限流和熔断：挂掉或被限流的源直接跳过，不再打过去
func Guard[T any](p Provider[T], breakers *ratelimit.Manager, limits *ratelimit.Store) Provider[T] {
	return &guarded[T]{inner: p, breakers: breakers, limits: limits}
}

func (g *guarded[T]) Name() string { return g.inner.Name() }

func (g *guarded[T]) Simulated() bool { return isSimulated(g.inner) }

func (g *guarded[T]) Fetch(ctx context.Context, p Params) (T, error) {
	var zero T
	name := g.inner.Name()
	if g.limits != nil && !g.limits.Allow(name) {
		return zero, Unavailable("rate limited")
	}
	if g.breakers == nil {
		return g.inner.Fetch(ctx, p)
	}

	var out T
	err := g.breakers.Execute(name, func() error {
		d, err := g.inner.Fetch(ctx, p)
		if err != nil {
			return err
		}
		out = d
		return nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%w: circuit %v", ErrProviderUnavailable, err)
	}
	if err != nil {
		return zero, err
	}
	return out, nil
}

// BreakerSuccess 给 ratelimit.Manager 用：空结果、没配置、调用方取消都不算源不健康
func BreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrEmptyResult) ||
		errors.Is(err, ErrProviderUnavailable)
}
