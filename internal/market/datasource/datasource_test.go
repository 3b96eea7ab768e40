package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/provider"
	"traderhub.com/internal/market/synth"
)

func serve(t *testing.T, path, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *Client { return NewClient(2 * time.Second) }

func TestCoinGecko_Fetch(t *testing.T) {
	srv := serve(t, "/api/v3/simple/price", `{
		"bitcoin": {"usd": 98450.23, "usd_24h_change": 2.45, "usd_market_cap": 1.9e12, "usd_24h_vol": 3.2e10},
		"dogecoin": {"usd": 0.3, "usd_24h_change": -1.1},
		"ethereum": {}
	}`, func(r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("ids"), "bitcoin")
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
	})

	got, err := NewCoinGecko(testClient(), srv.URL).Fetch(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Len(t, got, 2, "coins without a usd price are skipped")
	assert.Equal(t, model.Quote{Symbol: "BTC", Price: 98450.23, ChangePercent: 2.45, Name: "Bitcoin", MarketCap: 1.9e12, Volume24h: 3.2e10}, got["BTC"])
	assert.Equal(t, 0.3, got["DOGE"].Price)
}

func TestCoinGecko_Errors(t *testing.T) {
	t.Run("bad json", func(t *testing.T) {
		srv := serve(t, "/api/v3/simple/price", `<html>rate limited</html>`, nil)
		_, err := NewCoinGecko(testClient(), srv.URL).Fetch(context.Background(), provider.Params{})
		assert.ErrorIs(t, err, provider.ErrMalformedResponse)
	})
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()
		_, err := NewCoinGecko(testClient(), srv.URL).Fetch(context.Background(), provider.Params{})
		assert.ErrorIs(t, err, provider.ErrProviderFailed)
	})
	t.Run("context canceled", func(t *testing.T) {
		srv := serve(t, "/api/v3/simple/price", `{}`, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewCoinGecko(testClient(), srv.URL).Fetch(ctx, provider.Params{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCoinMarketCap(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		_, err := NewCoinMarketCap(testClient(), "http://127.0.0.1:1", "").Fetch(context.Background(), provider.Params{})
		assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
	})
	t.Run("ok", func(t *testing.T) {
		srv := serve(t, "/v1/cryptocurrency/quotes/latest", `{"data":{
			"ETH":{"name":"Ethereum","quote":{"USD":{"price":3890.45,"percent_change_24h":1.5,"market_cap":4.6e11,"volume_24h":1.8e10}}},
			"SOL":{"name":"Solana","quote":{}}
		}}`, func(r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("X-CMC_PRO_API_KEY"))
		})
		got, err := NewCoinMarketCap(testClient(), srv.URL, "secret").Fetch(context.Background(), provider.Params{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 3890.45, got["ETH"].Price)
		assert.Equal(t, "Ethereum", got["ETH"].Name)
	})
	t.Run("missing data", func(t *testing.T) {
		srv := serve(t, "/v1/cryptocurrency/quotes/latest", `{"status":{"error_code":1002}}`, nil)
		_, err := NewCoinMarketCap(testClient(), srv.URL, "k").Fetch(context.Background(), provider.Params{})
		assert.ErrorIs(t, err, provider.ErrMalformedResponse)
	})
}

func TestNewsData(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	srv := serve(t, "/api/1/news", `{"status":"success","results":[
		{"article_id":"a1","title":"Bitcoin ETF inflows","description":"","content":"body","source_id":"coindesk","pubDate":"2025-01-01 10:00:00","link":"https://x/1"},
		{"article_id":"a1","title":"Fed holds rates","description":"d","pubDate":"garbage"},
		{"article_id":"a3","title":"   "}
	]}`, func(r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
	})
	nd := NewNewsData(testClient(), srv.URL, "key")
	nd.now = func() time.Time { return now }

	got, err := nd.Fetch(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Len(t, got, 2, "blank titles are dropped")

	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "body", got[0].Description)
	assert.Equal(t, "coindesk", got[0].Source)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), got[0].PublishedAt)

	assert.NotEqual(t, "a1", got[1].ID, "duplicate ids are re-keyed")
	assert.Equal(t, unknownSource, got[1].Source)
	assert.Equal(t, now, got[1].PublishedAt)
}

func TestNewsData_BadStatus(t *testing.T) {
	srv := serve(t, "/api/1/news", `{"status":"error","results":[]}`, nil)
	_, err := NewNewsData(testClient(), srv.URL, "key").Fetch(context.Background(), provider.Params{})
	assert.ErrorIs(t, err, provider.ErrMalformedResponse)

	_, err = NewNewsData(testClient(), srv.URL, "").Fetch(context.Background(), provider.Params{})
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}

func TestNewsAPI(t *testing.T) {
	srv := serve(t, "/v2/everything", `{"status":"ok","articles":[
		{"source":{"name":"Reuters"},"title":"Dollar rallies","description":"","url":"https://r/1","urlToImage":"https://r/1.png","publishedAt":"2025-01-02T08:00:00Z"}
	]}`, func(r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("pageSize"))
	})
	got, err := NewNewsAPI(testClient(), srv.URL, "key").Fetch(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, noDescription, got[0].Description)
	assert.Equal(t, "Reuters", got[0].Source)
	assert.Equal(t, "https://r/1.png", got[0].ImageURL)
}

func TestYahooQuotes(t *testing.T) {
	srv := serve(t, "/v7/finance/quote", `{"quoteResponse":{"result":[
		{"symbol":"EURUSD=X","regularMarketPrice":1.0352,"regularMarketChangePercent":0.12},
		{"symbol":"JPY=X","regularMarketPrice":157.45,"regularMarketChangePercent":-0.08},
		{"symbol":"ZZZ","regularMarketPrice":1}
	]}}`, nil)

	got, err := NewYahooQuotes("yahoo-forex", testClient(), srv.URL, ForexSymbols).Fetch(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0352, got["EUR/USD"].Price)
	assert.Equal(t, -0.08, got["USD/JPY"].ChangePercent)

	srv2 := serve(t, "/v7/finance/quote", `{"finance":{"error":"Unauthorized"}}`, nil)
	_, err = NewYahooQuotes("yahoo-forex", testClient(), srv2.URL, ForexSymbols).Fetch(context.Background(), provider.Params{})
	assert.ErrorIs(t, err, provider.ErrMalformedResponse)
}

func TestYahooChart(t *testing.T) {
	srv := serve(t, "/v8/finance/chart/EURUSD=X", `{"chart":{"result":[{
		"meta":{"regularMarketPrice":1.04},
		"timestamp":[1700000900,1700000000,1700001800],
		"indicators":{"quote":[{
			"open":[1.02,1.01,null],"high":[1.03,1.02,1.04],"low":[1.01,1.00,1.02],"close":[1.025,1.015,1.03],"volume":[10,null,5]
		}]}
	}],"error":null}}`, func(r *http.Request) {
		assert.Contains(t, []string{"15m", "1d"}, r.URL.Query().Get("interval"))
	})
	y := NewYahooChart(testClient(), srv.URL)

	got, err := y.Fetch(context.Background(), provider.Params{Symbol: "EUR-USD", AssetType: AssetForex, Interval: "15m"})
	require.NoError(t, err)
	require.Len(t, got, 2, "null rows are skipped")
	assert.Equal(t, int64(1700000000000), got[0].Time, "sorted ascending")
	assert.Equal(t, 0.0, got[0].Volume)
	assert.NoError(t, model.ValidateCandles(got))

	_, err = y.Fetch(context.Background(), provider.Params{Symbol: "EUR-USD", AssetType: AssetForex, Interval: "4h"})
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)

	spot, err := NewYahooSpot(testClient(), srv.URL).Fetch(context.Background(), provider.Params{Symbol: "EUR-USD", AssetType: AssetForex})
	require.NoError(t, err)
	assert.Equal(t, 1.04, spot)
}

func TestYahooChart_Error(t *testing.T) {
	srv := serve(t, "/v8/finance/chart/NOPE-USD", `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, nil)
	_, err := NewYahooChart(testClient(), srv.URL).Fetch(context.Background(), provider.Params{Symbol: "nope", Interval: "1h"})
	assert.ErrorIs(t, err, provider.ErrProviderFailed)
}

func TestBinanceKlines(t *testing.T) {
	srv := serve(t, "/api/v3/klines", `[
		[1700000000000,"97000.1","97500.0","96800.0","97200.5","12.5",1700000899999,"0",1,"0","0","0"],
		[1700000900000,"97200.5","97600.0","97100.0","97550.0","8.25",1700001799999,"0",1,"0","0","0"]
	]`, func(r *http.Request) {
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "60", r.URL.Query().Get("limit"))
	})
	b := NewBinanceKlines(testClient(), srv.URL)

	got, err := b.Fetch(context.Background(), provider.Params{Symbol: "btc", Interval: "15m", AssetType: AssetCrypto})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.Candle{Time: 1700000000000, Open: 97000.1, High: 97500, Low: 96800, Close: 97200.5, Volume: 12.5}, got[0])

	_, err = b.Fetch(context.Background(), provider.Params{Symbol: "EUR-USD", Interval: "15m", AssetType: AssetForex})
	assert.ErrorIs(t, err, provider.ErrProviderUnavailable)
}

func TestBinanceKlines_Malformed(t *testing.T) {
	srv := serve(t, "/api/v3/klines", `[[1700000000000,"x","1","1","1","1"]]`, nil)
	_, err := NewBinanceKlines(testClient(), srv.URL).Fetch(context.Background(), provider.Params{Symbol: "BTC", Interval: "1h"})
	assert.ErrorIs(t, err, provider.ErrMalformedResponse)
}

func TestBinanceSpot(t *testing.T) {
	srv := serve(t, "/api/v3/ticker/price", `{"symbol":"DOGEUSDT","price":"0.30120000"}`, nil)
	got, err := NewBinanceSpot(testClient(), srv.URL).Fetch(context.Background(), provider.Params{Symbol: "DOGE"})
	require.NoError(t, err)
	assert.Equal(t, 0.3012, got)
}

func TestSimulated(t *testing.T) {
	fx, err := NewSimulatedForex(synth.NewRand(1)).Fetch(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Len(t, fx, len(forexBases))
	for _, b := range forexBases {
		q := fx[b.Key]
		assert.InEpsilon(t, b.Price, q.Price, 0.0011, b.Key)
		assert.LessOrEqual(t, q.ChangePercent, 0.25)
		assert.GreaterOrEqual(t, q.ChangePercent, -0.25)
	}

	cm, err := NewSimulatedCommodities(synth.NewRand(1)).Fetch(context.Background(), provider.Params{})
	require.NoError(t, err)
	require.Contains(t, cm, "GOLD")
	assert.InEpsilon(t, 4400.0, cm["GOLD"].Price, 0.0051)
	assert.Equal(t, "Gold", cm["GOLD"].Name)
}

func TestSymbols(t *testing.T) {
	assert.Equal(t, "BTCUSDT", BinanceSymbol("btc"))
	assert.Equal(t, "BTCUSDT", BinanceSymbol("BTCUSDT"))

	assert.Equal(t, "BTC-USD", YahooSymbol("btc", AssetCrypto))
	assert.Equal(t, "EURUSD=X", YahooSymbol("EUR-USD", AssetForex))
	assert.Equal(t, "JPY=X", YahooSymbol("USD/JPY", AssetForex))
	assert.Equal(t, "GC=F", YahooSymbol("XAU-USD", AssetForex))
}

func slowNews(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","results":[{"article_id":"n1","title":"Bitcoin rallies"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_MemberTimeoutWins(t *testing.T) {
	srv := slowNews(t, 150*time.Millisecond)
	client := NewClient(50 * time.Millisecond)

	t.Run("member timeout longer than fallback", func(t *testing.T) {
		chain := provider.NewNewsChain(provider.Member[[]model.NewsArticle]{
			Provider: NewNewsData(client, srv.URL, "key"),
			Timeout:  500 * time.Millisecond,
		})
		res := chain.Fetch(context.Background(), provider.Params{})
		require.True(t, res.OK(), "attempts: %v", res.Attempts)
		assert.Equal(t, "n1", res.Data[0].ID)
	})

	t.Run("member timeout shorter than the answer", func(t *testing.T) {
		chain := provider.NewNewsChain(provider.Member[[]model.NewsArticle]{
			Provider: NewNewsData(client, srv.URL, "key"),
			Timeout:  40 * time.Millisecond,
		})
		res := chain.Fetch(context.Background(), provider.Params{})
		require.True(t, res.Exhausted())
		require.Len(t, res.Attempts, 1)
		assert.Equal(t, provider.ErrProviderTimeout, provider.Kind(res.Attempts[0].Err))
	})

	t.Run("no deadline uses fallback", func(t *testing.T) {
		_, err := NewNewsData(client, srv.URL, "key").Fetch(context.Background(), provider.Params{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, provider.ErrProviderTimeout, provider.Kind(err))
	})
}

func TestClient_TransportTimeoutIsTimeout(t *testing.T) {
	srv := slowNews(t, 300*time.Millisecond)
	client := NewClient(0)
	client.HTTP.Timeout = 30 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := NewNewsData(client, srv.URL, "key").Fetch(ctx, provider.Params{})
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrProviderTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, provider.ErrProviderTimeout, provider.Kind(err))
}
