package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/metrics"
)

const (
	DefaultNewsInterval  = 5 * time.Minute
	DefaultPriceInterval = 30 * time.Second
	DefaultAnalyzeTop    = 10
)

// NewsAnalyzer 给新闻打情绪/影响分
type NewsAnalyzer interface {
	Analyze(a model.NewsArticle) model.NewsAnalysis
}

// Refresher chain -> store -> hub。全部源失败时保留上一版数据。
type Refresher struct {
	sink       *Sink
	news       *provider.Chain[[]model.NewsArticle]
	quotes     map[model.Category]*provider.Chain[model.QuoteMap]
	analyzer   NewsAnalyzer
	analyzeTop int
	tracer     trace.Tracer
}

func NewRefresher(sink *Sink, news *provider.Chain[[]model.NewsArticle], quotes map[model.Category]*provider.Chain[model.QuoteMap], analyzer NewsAnalyzer) *Refresher {
	return &Refresher{
		sink:       sink,
		news:       news,
		quotes:     quotes,
		analyzer:   analyzer,
		analyzeTop: DefaultAnalyzeTop,
		tracer:     otel.Tracer("traderhub.com/internal/market/scheduler"),
	}
}

func (r *Refresher) RefreshNews(ctx context.Context) error {
	if r.news == nil {
		return nil
	}
	return r.cycle(ctx, model.CategoryNews, func(ctx context.Context) (string, error) {
		res := r.news.Fetch(ctx, provider.Params{})
		if !res.OK() {
			return "", res.Err()
		}
		news := r.analyze(res.Data)
		return res.Source, r.sink.Apply(ctx, model.CategoryNews, news, source(res.Simulated))
	})
}

func (r *Refresher) RefreshCategory(ctx context.Context, cat model.Category) error {
	chain, ok := r.quotes[cat]
	if !ok {
		return fmt.Errorf("no provider chain for %q", cat)
	}
	return r.cycle(ctx, cat, func(ctx context.Context) (string, error) {
		res := chain.Fetch(ctx, provider.Params{})
		if !res.OK() {
			return "", res.Err()
		}
		return res.Source, r.sink.Apply(ctx, cat, res.Data, source(res.Simulated))
	})
}

// RefreshPrices 三个价格分类并发刷新，互不影响
func (r *Refresher) RefreshPrices(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(model.PriceCategories))
	for i, cat := range model.PriceCategories {
		if _, ok := r.quotes[cat]; !ok {
			continue
		}
		g.Go(func() error {
			errs[i] = r.RefreshCategory(ctx, cat)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Jobs 每个分类一个独立任务
func (r *Refresher) Jobs(newsEvery, pricesEvery time.Duration) []Job {
	if newsEvery <= 0 {
		newsEvery = DefaultNewsInterval
	}
	if pricesEvery <= 0 {
		pricesEvery = DefaultPriceInterval
	}
	var jobs []Job
	if r.news != nil {
		jobs = append(jobs, Job{Class: string(model.CategoryNews), Interval: newsEvery, RunOnStart: true, Run: r.RefreshNews})
	}
	for _, cat := range model.PriceCategories {
		if _, ok := r.quotes[cat]; !ok {
			continue
		}
		jobs = append(jobs, Job{
			Class:      string(cat),
			Interval:   pricesEvery,
			RunOnStart: true,
			Run:        func(ctx context.Context) error { return r.RefreshCategory(ctx, cat) },
		})
	}
	return jobs
}

func (r *Refresher) cycle(ctx context.Context, cat model.Category, fn func(ctx context.Context) (string, error)) error {
	ctx, span := r.tracer.Start(ctx, "refresh "+string(cat), trace.WithAttributes(attribute.String("market.category", string(cat))))
	defer span.End()

	start := time.Now()
	src, err := fn(ctx)
	result := "ok"
	if err != nil {
		result = "exhausted"
		if !errors.Is(err, provider.ErrAllProvidersExhausted) {
			result = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		logger.Warn(ctx, "refresh failed, keeping previous data",
			zap.String("category", string(cat)),
			zap.Error(err),
		)
	} else {
		span.SetAttributes(attribute.String("market.provider", src))
		logger.Info(ctx, "category refreshed",
			zap.String("category", string(cat)),
			zap.String("provider", src),
		)
	}
	metrics.RefreshDuration.WithLabelValues(string(cat), result).Observe(time.Since(start).Seconds())
	return err
}

// analyze 只给前 N 条打分，已有分析的不覆盖
func (r *Refresher) analyze(news []model.NewsArticle) []model.NewsArticle {
	if r.analyzer == nil {
		return news
	}
	out := model.CloneNews(news)
	for i := range out {
		if i >= r.analyzeTop {
			break
		}
		if out[i].Analysis != nil {
			continue
		}
		a := r.analyzer.Analyze(out[i])
		out[i].Analysis = &a
	}
	return out
}

func source(simulated bool) model.DataSource {
	if simulated {
		return model.DataSourceSimulation
	}
	return model.DataSourceLive
}
