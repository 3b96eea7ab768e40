package scheduler

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/synth"
)

const DefaultFluctuationInterval = 30 * time.Second

type wobble struct {
	price  float64 // q.Price *= 1 + (r-0.5)*w.price
	change float64 // q.ChangePercent = (r-0.5)*w.change
}

var wobbles = map[model.Category]wobble{
	model.CategoryCrypto:      {price: 0.002, change: 5},
	model.CategoryForex:       {price: 0.0005, change: 0.5},
	model.CategoryCommodities: {price: 0.001, change: 2},
}

// Fluctuator 演示模式下让价格每隔一段时间小幅波动。和真实刷新一样是整类替换，后写的赢。
type Fluctuator struct {
	sink *Sink
	rnd  synth.Rand
}

func NewFluctuator(sink *Sink, rnd synth.Rand) *Fluctuator {
	if rnd == nil {
		rnd = synth.NewTimeRand()
	}
	return &Fluctuator{sink: sink, rnd: rnd}
}

func (f *Fluctuator) Tick(ctx context.Context) error {
	var errs []error
	for _, cat := range model.PriceCategories {
		w := wobbles[cat]
		err := f.sink.Mutate(ctx, cat, func(cur any) (any, model.DataSource, bool) {
			m, ok := cur.(model.QuoteMap)
			if !ok || len(m) == 0 {
				return nil, "", false
			}
			// 按 symbol 排序取随机数，同一个种子结果稳定
			next := make(model.QuoteMap, len(m))
			for _, sym := range slices.Sorted(maps.Keys(m)) {
				q := m[sym]
				q.Price *= 1 + (f.rnd.Float64()-0.5)*w.price
				q.ChangePercent = (f.rnd.Float64() - 0.5) * w.change
				next[sym] = q
			}
			return next, model.DataSourceSimulation, true
		})
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (f *Fluctuator) Job(every time.Duration) Job {
	if every <= 0 {
		every = DefaultFluctuationInterval
	}
	return Job{Class: "fluctuation", Interval: every, Run: f.Tick}
}
