package datasource

import (
	"context"
	"net/url"
	"strings"

	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
)

const CoinMarketCapBaseURL = "https://pro-api.coinmarketcap.com"

type CoinMarketCap struct {
	BaseURL string
	APIKey  string
	client  *Client
	symbols []string
}

func NewCoinMarketCap(client *Client, baseURL, apiKey string) *CoinMarketCap {
	if baseURL == "" {
		baseURL = CoinMarketCapBaseURL
	}
	return &CoinMarketCap{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  client,
		symbols: []string{"BTC", "ETH", "SOL", "XRP", "ADA", "BNB", "DOGE"},
	}
}

func (c *CoinMarketCap) Name() string { return "coinmarketcap" }

type cmcResponse struct {
	Data map[string]struct {
		Name  string `json:"name"`
		Quote map[string]struct {
			Price            *float64 `json:"price"`
			PercentChange24h float64  `json:"percent_change_24h"`
			MarketCap        float64  `json:"market_cap"`
			Volume24h        float64  `json:"volume_24h"`
		} `json:"quote"`
	} `json:"data"`
}

func (c *CoinMarketCap) Fetch(ctx context.Context, _ provider.Params) (model.QuoteMap, error) {
	if c.APIKey == "" {
		return nil, provider.Unavailable("coinmarketcap api key not configured")
	}
	q := url.Values{}
	q.Set("symbol", strings.Join(c.symbols, ","))
	q.Set("convert", "USD")

	var body cmcResponse
	headers := map[string]string{"X-CMC_PRO_API_KEY": c.APIKey}
	if err := c.client.getJSON(ctx, c.BaseURL+"/v1/cryptocurrency/quotes/latest", q, headers, &body); err != nil {
		return nil, err
	}
	if body.Data == nil {
		return nil, provider.Malformed(errMissing("data"))
	}

	out := make(model.QuoteMap, len(body.Data))
	for sym, d := range body.Data {
		usd, ok := d.Quote["USD"]
		if !ok || usd.Price == nil {
			continue
		}
		out[sym] = model.Quote{
			Symbol:        sym,
			Price:         *usd.Price,
			ChangePercent: usd.PercentChange24h,
			Name:          d.Name,
			MarketCap:     usd.MarketCap,
			Volume24h:     usd.Volume24h,
		}
	}
	return out, nil
}
