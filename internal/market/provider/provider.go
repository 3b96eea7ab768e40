package provider

import "context"

// Class 数据类别；每个 class 一条 Chain
type Class string

const (
	ClassNews        Class = "news"
	ClassCrypto      Class = "crypto"
	ClassForex       Class = "forex"
	ClassCommodities Class = "commodities"
	ClassCandles     Class = "candles"
	ClassSpot        Class = "spot"
)

// Params 按 class 取用：行情类一般为空，K 线用 Symbol/Interval/Limit
type Params struct {
	Symbol    string
	Interval  string
	AssetType string
	Limit     int
}

// Provider 一个外部数据源。Fetch 只做一次请求，不自己重试。
type Provider[T any] interface {
	Name() string
	Fetch(ctx context.Context, p Params) (T, error)
}

type funcProvider[T any] struct {
	name string
	fn   func(ctx context.Context, p Params) (T, error)
}

// NewFunc 用函数包一个 Provider，测试和模拟源都用它
func NewFunc[T any](name string, fn func(ctx context.Context, p Params) (T, error)) Provider[T] {
	return funcProvider[T]{name: name, fn: fn}
}

func (f funcProvider[T]) Name() string { return f.name }

func (f funcProvider[T]) Fetch(ctx context.Context, p Params) (T, error) {
	return f.fn(ctx, p)
}
