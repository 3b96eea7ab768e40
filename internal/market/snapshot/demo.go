package snapshot

import (
	"time"

	"traderhub.com/internal/market/model"
)

// DemoSnapshot 启动时的演示数据，真实源拿到数据后逐类覆盖
func DemoSnapshot(now time.Time) model.MarketSnapshot {
	now = now.UTC()
	news := []model.NewsArticle{
		{
			ID:          "1",
			Title:       "Federal Reserve Signals Potential Rate Cuts in 2025",
			Description: "The Fed hints at monetary policy easing as inflation shows signs of cooling.",
			Source:      "Financial Times",
			PublishedAt: now,
			URL:         "#",
			Analysis: &model.NewsAnalysis{
				Sentiment:      "bullish",
				ImpactScore:    8,
				AffectedAssets: []string{"USD", "S&P500", "BTC"},
				Opinion:        "Rate cuts could lift equities and crypto. Expect USD to soften, potentially boosting BTC by 5-10%. Gold may see safe-haven flows.",
			},
		},
		{
			ID:          "2",
			Title:       "OPEC+ Announces Surprise Oil Production Cut",
			Description: "Major oil producers agree to reduce output by 1 million barrels per day.",
			Source:      "Reuters",
			PublishedAt: now.Add(-1 * time.Hour),
			URL:         "#",
			Analysis: &model.NewsAnalysis{
				Sentiment:      "bullish",
				ImpactScore:    7,
				AffectedAssets: []string{"OIL", "GOLD", "CAD"},
				Opinion:        "Production cuts should push oil prices up 3-5% short-term. Energy stocks float higher. Watch CAD for positive correlation.",
			},
		},
		{
			ID:          "3",
			Title:       "Major Tech Company Announces AI Breakthrough",
			Description: "New AI model demonstrates unprecedented capabilities in reasoning and problem-solving.",
			Source:      "TechCrunch",
			PublishedAt: now.Add(-2 * time.Hour),
			URL:         "#",
			Analysis: &model.NewsAnalysis{
				Sentiment:      "bullish",
				ImpactScore:    6,
				AffectedAssets: []string{"NASDAQ", "NVDA", "META"},
				Opinion:        "AI momentum continues. Tech heavyweights could see a 2-4% pop, led by semiconductors.",
			},
		},
		{
			ID:          "4",
			Title:       "European Central Bank Holds Rates Steady",
			Description: "ECB maintains current policy stance amid mixed economic signals.",
			Source:      "Bloomberg",
			PublishedAt: now.Add(-3 * time.Hour),
			URL:         "#",
			Analysis: &model.NewsAnalysis{
				Sentiment:      "neutral",
				ImpactScore:    4,
				AffectedAssets: []string{"EUR", "DAX", "EURUSD"},
				Opinion:        "Neutral hold creates stability. EUR/USD hovering in equilibrium. European equities may drift sideways.",
			},
		},
		{
			ID:          "5",
			Title:       "Bitcoin ETF Sees Record Inflows",
			Description: "Institutional investors pour billions into spot Bitcoin ETFs.",
			Source:      "CoinDesk",
			PublishedAt: now.Add(-4 * time.Hour),
			URL:         "#",
			Analysis: &model.NewsAnalysis{
				Sentiment:      "bullish",
				ImpactScore:    9,
				AffectedAssets: []string{"BTC", "ETH", "COIN"},
				Opinion:        "Strong signal for crypto. BTC could push to a new ATH. ETH follows with a 5-8% sympathy rally.",
			},
		},
	}

	sim := map[model.Category]model.DataSource{
		model.CategoryNews:        model.DataSourceSimulation,
		model.CategoryCrypto:      model.DataSourceSimulation,
		model.CategoryForex:       model.DataSourceSimulation,
		model.CategoryCommodities: model.DataSourceSimulation,
	}
	updated := make(map[model.Category]time.Time, len(sim))
	for cat := range sim {
		updated[cat] = now
	}

	return model.MarketSnapshot{
		News: news,
		Prices: model.Prices{
			Crypto: model.QuoteMap{
				"BTC": {Symbol: "BTC", Price: 98450.23, ChangePercent: 2.34},
				"ETH": {Symbol: "ETH", Price: 3890.45, ChangePercent: 1.87},
				"SOL": {Symbol: "SOL", Price: 245.67, ChangePercent: -0.45},
				"XRP": {Symbol: "XRP", Price: 2.34, ChangePercent: 5.67},
				"ADA": {Symbol: "ADA", Price: 1.12, ChangePercent: -1.23},
			},
			Forex: model.QuoteMap{
				"USD/JPY": {Symbol: "USD/JPY", Price: 157.45, ChangePercent: 0.23},
				"EUR/USD": {Symbol: "EUR/USD", Price: 1.0345, ChangePercent: -0.12},
				"GBP/USD": {Symbol: "GBP/USD", Price: 1.2567, ChangePercent: 0.08},
				"USD/CHF": {Symbol: "USD/CHF", Price: 0.9023, ChangePercent: 0.05},
				"AUD/USD": {Symbol: "AUD/USD", Price: 0.6234, ChangePercent: -0.34},
			},
			Commodities: model.QuoteMap{
				"GOLD":   {Symbol: "GOLD", Price: 4428.50, ChangePercent: 0.67, Name: "Gold"},
				"OIL":    {Symbol: "OIL", Price: 74.23, ChangePercent: -1.23, Name: "Crude Oil"},
				"SILVER": {Symbol: "SILVER", Price: 52.45, ChangePercent: 1.12, Name: "Silver"},
			},
		},
		LastUpdated: updated,
		DataSource:  sim,
	}
}
