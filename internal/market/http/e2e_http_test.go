package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"traderhub.com/internal/market/candles"
	"traderhub.com/internal/market/handler"
	"traderhub.com/internal/market/hub"
	"traderhub.com/internal/market/insight"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/snapshot"
	"traderhub.com/internal/market/synth"
	"traderhub.com/internal/market/ws"
)

func init() { gin.SetMode(gin.TestMode) }

var t0 = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

type response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func startServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	store := snapshot.NewStore(clock)
	store.Seed(snapshot.DemoSnapshot(t0), model.DataSourceSimulation)
	h := hub.New(store, hub.WithClock(clock))

	gen := synth.NewGenerator(synth.NewRand(7), clock)
	svc := insight.NewService(candles.NewService(nil, nil, gen), nil, insight.NewMock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	wsSrv := ws.NewServer(ctx, h, hub.NewChatRelay(h))
	eng := NewEngine(ctx, Options{RPS: 1000, Burst: 1000}, &handler.Market{Store: store, Hub: h, Insights: svc, Clock: clock}, wsSrv)

	ts := httptest.NewServer(eng)
	t.Cleanup(func() {
		cancel()
		h.Close()
		ts.Close()
	})
	return ts, h
}

func get(t *testing.T, url string) (*http.Response, response) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out response
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out))
	}
	return resp, out
}

func TestHTTP_Health(t *testing.T) {
	ts, _ := startServer(t)
	resp, out := get(t, ts.URL+"/api/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var h struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, t0, h.Timestamp)
}

func TestHTTP_NewsAndPrices(t *testing.T) {
	ts, _ := startServer(t)

	resp, out := get(t, ts.URL+"/api/news")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var news []model.NewsArticle
	require.NoError(t, json.Unmarshal(out.Data, &news))
	assert.Len(t, news, 5)
	assert.NotNil(t, news[0].Analysis)

	resp, out = get(t, ts.URL+"/api/prices")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prices struct {
		Crypto     model.QuoteMap                      `json:"crypto"`
		Forex      model.QuoteMap                      `json:"forex"`
		DataSource map[model.Category]model.DataSource `json:"dataSource"`
	}
	require.NoError(t, json.Unmarshal(out.Data, &prices))
	assert.Equal(t, 98450.23, prices.Crypto["BTC"].Price)
	assert.Equal(t, model.DataSourceSimulation, prices.DataSource[model.CategoryCrypto])

	resp, out = get(t, ts.URL+"/api/prices/forex")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "simulation", resp.Header.Get(handler.HeaderDataSource))
	var forex model.QuoteMap
	require.NoError(t, json.Unmarshal(out.Data, &forex))
	assert.Equal(t, 157.45, forex["USD/JPY"].Price)
}

func TestHTTP_UnknownPriceType(t *testing.T) {
	ts, _ := startServer(t)
	for _, typ := range []string{"stocks", "news"} {
		resp, out := get(t, ts.URL+"/api/prices/"+typ)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, typ)
		assert.Equal(t, 404, out.Code)
	}
}

func TestHTTP_Insight(t *testing.T) {
	ts, _ := startServer(t)

	resp, out := get(t, ts.URL+"/api/insights/DOGE/1h?type=crypto")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep insight.Report
	require.NoError(t, json.Unmarshal(out.Data, &rep))
	assert.Equal(t, "DOGE", rep.Symbol)
	assert.Len(t, rep.Candles, candles.DefaultLimit)
	assert.Equal(t, candles.SourceSynthetic, rep.CandleSource)
	assert.Equal(t, model.DataSourceSimulation, rep.Analysis.DataSource)
	assert.NoError(t, rep.Analysis.Validate())

	resp, out = get(t, ts.URL+"/api/insights/DOGE/7m")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 400, out.Code)
}

func TestHTTP_Metrics(t *testing.T) {
	ts, _ := startServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestHTTP_WebSocketChat(t *testing.T) {
	ts, h := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	var env envelope
	require.NoError(t, wsjson.Read(ctx, c, &env))
	require.Equal(t, "snapshot", env.Type)
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, wsjson.Write(ctx, c, map[string]string{"type": "chat", "content": "gm", "username": "ana"}))
	require.NoError(t, wsjson.Read(ctx, c, &env))
	require.Equal(t, "chat", env.Type)

	var msg model.ChatMessage
	require.NoError(t, json.Unmarshal(env.Data, &msg))
	assert.Equal(t, "gm", msg.Content)
	assert.Equal(t, "ana", msg.Username)
	assert.Equal(t, t0, msg.Timestamp)
}
