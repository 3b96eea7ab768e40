package datasource

import (
	"context"
	"net/url"
	"strings"

	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
)

const CoinGeckoBaseURL = "https://api.coingecko.com"

// CoinGecko 免费接口，不需要 key
type CoinGecko struct {
	BaseURL string
	client  *Client
	coins   []coin
}

func NewCoinGecko(client *Client, baseURL string) *CoinGecko {
	if baseURL == "" {
		baseURL = CoinGeckoBaseURL
	}
	return &CoinGecko{BaseURL: strings.TrimRight(baseURL, "/"), client: client, coins: Coins}
}

func (c *CoinGecko) Name() string { return "coingecko" }

type geckoPrice struct {
	USD       *float64 `json:"usd"`
	Change24h float64  `json:"usd_24h_change"`
	MarketCap float64  `json:"usd_market_cap"`
	Vol24h    float64  `json:"usd_24h_vol"`
}

func (c *CoinGecko) Fetch(ctx context.Context, _ provider.Params) (model.QuoteMap, error) {
	ids := make([]string, 0, len(c.coins))
	for _, cn := range c.coins {
		ids = append(ids, cn.ID)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")
	q.Set("include_market_cap", "true")
	q.Set("include_24hr_vol", "true")

	var body map[string]geckoPrice
	if err := c.client.getJSON(ctx, c.BaseURL+"/api/v3/simple/price", q, nil, &body); err != nil {
		return nil, err
	}

	out := make(model.QuoteMap, len(body))
	for _, cn := range c.coins {
		p, ok := body[cn.ID]
		if !ok || p.USD == nil {
			continue
		}
		out[cn.Symbol] = model.Quote{
			Symbol:        cn.Symbol,
			Price:         *p.USD,
			ChangePercent: p.Change24h,
			Name:          cn.Name,
			MarketCap:     p.MarketCap,
			Volume24h:     p.Vol24h,
		}
	}
	return out, nil
}
