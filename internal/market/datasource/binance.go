package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/segmentio/encoding/json"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
)

const BinanceBaseURL = "https://api.binance.com"

// BinanceKlines /api/v3/klines，只有加密货币
type BinanceKlines struct {
	BaseURL string
	client  *Client
}

func NewBinanceKlines(client *Client, baseURL string) *BinanceKlines {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	return &BinanceKlines{BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (b *BinanceKlines) Name() string { return "binance-klines" }

func (b *BinanceKlines) Fetch(ctx context.Context, p provider.Params) ([]model.Candle, error) {
	if p.AssetType != "" && p.AssetType != AssetCrypto {
		return nil, provider.Unavailable("binance only serves crypto")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 60
	}
	q := url.Values{}
	q.Set("symbol", BinanceSymbol(p.Symbol))
	q.Set("interval", p.Interval)
	q.Set("limit", strconv.Itoa(limit))

	// [[openTime,"o","h","l","c","v",closeTime,...], ...]
	var rows [][]json.RawMessage
	if err := b.client.getJSON(ctx, b.BaseURL+"/api/v3/klines", q, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseKline(row)
		if err != nil {
			return nil, provider.Malformed(fmt.Errorf("kline %d: %w", i, err))
		}
		out = append(out, c)
	}
	return model.NormalizeCandles(out), nil
}

func parseKline(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("expected >=6 fields, got %d", len(row))
	}
	var c model.Candle
	if err := json.Unmarshal(row[0], &c.Time); err != nil {
		return c, fmt.Errorf("open time: %w", err)
	}
	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume}
	for i, dst := range fields {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return c, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return c, err
		}
		*dst = v
	}
	return c, nil
}

// BinanceSpot /api/v3/ticker/price
type BinanceSpot struct {
	BaseURL string
	client  *Client
}

func NewBinanceSpot(client *Client, baseURL string) *BinanceSpot {
	if baseURL == "" {
		baseURL = BinanceBaseURL
	}
	return &BinanceSpot{BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (b *BinanceSpot) Name() string { return "binance-spot" }

func (b *BinanceSpot) Fetch(ctx context.Context, p provider.Params) (float64, error) {
	if p.AssetType != "" && p.AssetType != AssetCrypto {
		return 0, provider.Unavailable("binance only serves crypto")
	}
	q := url.Values{}
	q.Set("symbol", BinanceSymbol(p.Symbol))

	var body struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := b.client.getJSON(ctx, b.BaseURL+"/api/v3/ticker/price", q, nil, &body); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(body.Price, 64)
	if err != nil {
		return 0, provider.Malformed(err)
	}
	return v, nil
}
