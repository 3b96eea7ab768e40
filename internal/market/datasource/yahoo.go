package datasource

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
)

const YahooBaseURL = "https://query1.finance.yahoo.com"

// YahooQuotes v7 quote 接口，forex 和大宗商品都走它，只是 symbol 表不同
type YahooQuotes struct {
	BaseURL string
	name    string
	client  *Client
	symbols map[string]yahooSymbol
}

func NewYahooQuotes(name string, client *Client, baseURL string, symbols map[string]yahooSymbol) *YahooQuotes {
	if baseURL == "" {
		baseURL = YahooBaseURL
	}
	return &YahooQuotes{BaseURL: strings.TrimRight(baseURL, "/"), name: name, client: client, symbols: symbols}
}

func (y *YahooQuotes) Name() string { return y.name }

type yahooQuoteResponse struct {
	QuoteResponse *struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			ShortName                  string   `json:"shortName"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketChangePercent float64  `json:"regularMarketChangePercent"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

func (y *YahooQuotes) Fetch(ctx context.Context, _ provider.Params) (model.QuoteMap, error) {
	syms := slices.Sorted(maps.Keys(y.symbols))
	q := url.Values{}
	q.Set("symbols", strings.Join(syms, ","))
	q.Set("fields", "regularMarketPrice,regularMarketChangePercent,shortName")

	var body yahooQuoteResponse
	if err := y.client.getJSON(ctx, y.BaseURL+"/v7/finance/quote", q, nil, &body); err != nil {
		return nil, err
	}
	if body.QuoteResponse == nil {
		return nil, provider.Malformed(errMissing("quoteResponse"))
	}

	out := make(model.QuoteMap, len(body.QuoteResponse.Result))
	for _, r := range body.QuoteResponse.Result {
		info, ok := y.symbols[r.Symbol]
		if !ok || r.RegularMarketPrice == nil {
			continue
		}
		out[info.Key] = model.Quote{
			Symbol:        info.Key,
			Price:         *r.RegularMarketPrice,
			ChangePercent: r.RegularMarketChangePercent,
			Name:          info.Name,
		}
	}
	return out, nil
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var yahooIntervals = map[string]struct{ interval, rng string }{
	"15m": {"15m", "5d"},
	"30m": {"30m", "5d"},
	"1h":  {"60m", "1mo"},
}

// YahooChart v8 chart 接口取 K 线，任何资产都能用；4h yahoo 不支持
type YahooChart struct {
	BaseURL string
	client  *Client
}

func NewYahooChart(client *Client, baseURL string) *YahooChart {
	if baseURL == "" {
		baseURL = YahooBaseURL
	}
	return &YahooChart{BaseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (y *YahooChart) Name() string { return "yahoo-chart" }

func (y *YahooChart) chart(ctx context.Context, symbol, interval, rng string) (*yahooChartResponse, error) {
	q := url.Values{}
	q.Set("interval", interval)
	q.Set("range", rng)
	var body yahooChartResponse
	if err := y.client.getJSON(ctx, y.BaseURL+"/v8/finance/chart/"+url.PathEscape(symbol), q, nil, &body); err != nil {
		return nil, err
	}
	if body.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", provider.ErrProviderFailed, body.Chart.Error.Code, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 {
		return nil, provider.ErrEmptyResult
	}
	return &body, nil
}

func (y *YahooChart) Fetch(ctx context.Context, p provider.Params) ([]model.Candle, error) {
	iv, ok := yahooIntervals[p.Interval]
	if !ok {
		return nil, provider.Unavailable("yahoo does not serve interval " + p.Interval)
	}
	body, err := y.chart(ctx, YahooSymbol(p.Symbol, p.AssetType), iv.interval, iv.rng)
	if err != nil {
		return nil, err
	}
	r := body.Chart.Result[0]
	if len(r.Indicators.Quote) == 0 {
		return nil, provider.Malformed(errMissing("indicators.quote"))
	}
	qt := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	if len(qt.Open) != n || len(qt.High) != n || len(qt.Low) != n || len(qt.Close) != n {
		return nil, provider.Malformed(fmt.Errorf("ragged ohlc arrays for %d timestamps", n))
	}

	out := make([]model.Candle, 0, n)
	for i, ts := range r.Timestamp {
		// yahoo 停牌/未成交的点是 null，跳过
		if qt.Open[i] == nil || qt.High[i] == nil || qt.Low[i] == nil || qt.Close[i] == nil {
			continue
		}
		var vol float64
		if i < len(qt.Volume) && qt.Volume[i] != nil {
			vol = *qt.Volume[i]
		}
		out = append(out, model.Candle{
			Time:   ts * 1000,
			Open:   *qt.Open[i],
			High:   *qt.High[i],
			Low:    *qt.Low[i],
			Close:  *qt.Close[i],
			Volume: vol,
		})
	}
	out = model.NormalizeCandles(out)
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[len(out)-p.Limit:]
	}
	return out, nil
}

// YahooSpot 用 chart meta 里的 regularMarketPrice 做锚定价
type YahooSpot struct {
	chart *YahooChart
}

func NewYahooSpot(client *Client, baseURL string) *YahooSpot {
	return &YahooSpot{chart: NewYahooChart(client, baseURL)}
}

func (y *YahooSpot) Name() string { return "yahoo-spot" }

func (y *YahooSpot) Fetch(ctx context.Context, p provider.Params) (float64, error) {
	body, err := y.chart.chart(ctx, YahooSymbol(p.Symbol, p.AssetType), "1d", "1d")
	if err != nil {
		return 0, err
	}
	price := body.Chart.Result[0].Meta.RegularMarketPrice
	if price == nil {
		return 0, provider.Malformed(errMissing("meta.regularMarketPrice"))
	}
	return *price, nil
}
