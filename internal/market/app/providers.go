package app

import (
	"time"

	"golang.org/x/time/rate"
	"traderhub.com/internal/market/config"
	"traderhub.com/internal/market/datasource"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
	"traderhub.com/internal/market/synth"
	"traderhub.com/pkg/ratelimit"
)

// chains 每类数据一条降级链
type chains struct {
	news    *provider.Chain[[]model.NewsArticle]
	quotes  map[model.Category]*provider.Chain[model.QuoteMap]
	candles map[string]*provider.Chain[[]model.Candle]
	spot    *provider.Chain[float64]
}

func buildChains(cfg config.ProvidersConfig, br config.BreakerConfig, rnd synth.Rand) chains {
	client := datasource.NewClient(cfg.Timeout)

	breakers := ratelimit.NewManager(ratelimit.Rule{
		TripConsecutiveFailures: br.ConsecutiveFailures,
		Timeout:                 br.OpenTimeout,
	}, nil).WithSuccessClassifier(provider.BreakerSuccess)

	perMin := max(cfg.RequestPerMin, 1)
	limits := ratelimit.NewStore("provider", rate.Every(time.Minute/time.Duration(perMin)), perMin, time.Hour)
	if cfg.NewsPerDay > 0 {
		// 免费档按天给配额，平摊到每次
		limits.SetLimit("newsdata", rate.Every(24*time.Hour/time.Duration(cfg.NewsPerDay)), 2)
	}

	newsTimeout := cfg.NewsTimeout
	if newsTimeout <= 0 {
		newsTimeout = 15 * time.Second
	}

	c := chains{
		news: provider.NewNewsChain(
			member(provider.Guard[[]model.NewsArticle](datasource.NewNewsData(client, cfg.NewsDataURL, cfg.NewsDataKey), breakers, limits), newsTimeout),
			member(provider.Guard[[]model.NewsArticle](datasource.NewNewsAPI(client, cfg.NewsAPIURL, cfg.NewsAPIKey), breakers, limits), 10*time.Second),
		),
		quotes: map[model.Category]*provider.Chain[model.QuoteMap]{
			model.CategoryCrypto: provider.NewQuoteChain(provider.ClassCrypto,
				member(provider.Guard[model.QuoteMap](datasource.NewCoinGecko(client, cfg.CoinGeckoURL), breakers, limits), cfg.Timeout),
				member(provider.Guard[model.QuoteMap](datasource.NewCoinMarketCap(client, cfg.CMCURL, cfg.CMCKey), breakers, limits), cfg.Timeout),
			),
			model.CategoryForex: provider.NewQuoteChain(provider.ClassForex,
				member(provider.Guard[model.QuoteMap](datasource.NewYahooQuotes("yahoo-forex", client, cfg.YahooURL, datasource.ForexSymbols), breakers, limits), cfg.Timeout),
				member[model.QuoteMap](datasource.NewSimulatedForex(rnd), time.Second),
			),
			model.CategoryCommodities: provider.NewQuoteChain(provider.ClassCommodities,
				member(provider.Guard[model.QuoteMap](datasource.NewYahooQuotes("yahoo-commodities", client, cfg.YahooURL, datasource.CommoditySymbols), breakers, limits), cfg.Timeout),
				member[model.QuoteMap](datasource.NewSimulatedCommodities(rnd), time.Second),
			),
		},
		spot: provider.NewSpotChain(
			member(provider.Guard[float64](datasource.NewBinanceSpot(client, cfg.BinanceURL), breakers, limits), 5*time.Second),
			member(provider.Guard[float64](datasource.NewYahooSpot(client, cfg.YahooURL), breakers, limits), 5*time.Second),
		),
	}

	klines := member(provider.Guard[[]model.Candle](datasource.NewBinanceKlines(client, cfg.BinanceURL), breakers, limits), cfg.Timeout)
	chart := member(provider.Guard[[]model.Candle](datasource.NewYahooChart(client, cfg.YahooURL), breakers, limits), cfg.Timeout)
	c.candles = map[string]*provider.Chain[[]model.Candle]{
		datasource.AssetCrypto: provider.NewCandleChain(klines, chart),
		datasource.AssetForex:  provider.NewCandleChain(chart),
	}
	return c
}

func member[T any](p provider.Provider[T], timeout time.Duration) provider.Member[T] {
	return provider.Member[T]{Provider: p, Timeout: timeout}
}
