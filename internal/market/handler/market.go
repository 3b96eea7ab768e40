package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"traderhub.com/internal/market/candles"
	"traderhub.com/internal/market/hub"
	"traderhub.com/internal/market/insight"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/scheduler"
	"traderhub.com/internal/market/snapshot"
	"traderhub.com/pkg/common"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/xerr"
)

const HeaderDataSource = "X-Data-Source"

type Market struct {
	Store    *snapshot.Store
	Hub      *hub.Hub
	Insights *insight.Service
	Jobs     func() map[string]scheduler.State // 可以为 nil
	Clock    clockwork.Clock
}

type health struct {
	Status      string                     `json:"status"`
	Timestamp   time.Time                  `json:"timestamp"`
	Subscribers int                        `json:"subscribers"`
	Jobs        map[string]scheduler.State `json:"jobs,omitempty"`
}

func (m *Market) Health(ctx *gin.Context) {
	out := health{Status: "ok", Timestamp: m.now()}
	if m.Hub != nil {
		out.Subscribers = m.Hub.Len()
	}
	if m.Jobs != nil {
		out.Jobs = m.Jobs()
	}
	common.Success(ctx, out)
}

func (m *Market) News(ctx *gin.Context) {
	ctx.Header(HeaderDataSource, string(m.Store.Source(model.CategoryNews)))
	news := m.Store.News()
	if news == nil {
		news = []model.NewsArticle{}
	}
	common.Success(ctx, news)
}

type pricesView struct {
	model.Prices
	DataSource  map[model.Category]model.DataSource `json:"dataSource"`
	LastUpdated map[model.Category]time.Time        `json:"lastUpdated"`
}

func (m *Market) Prices(ctx *gin.Context) {
	snap := m.Store.Read()
	common.Success(ctx, pricesView{
		Prices:      snap.Prices,
		DataSource:  snap.DataSource,
		LastUpdated: snap.LastUpdated,
	})
}

func (m *Market) PricesByType(ctx *gin.Context) {
	cat, ok := model.ParseCategory(strings.ToLower(ctx.Param("type")))
	if !ok || !cat.IsPrice() {
		common.Fail(ctx, http.StatusNotFound, xerr.RecordNotFound, "price type not found")
		return
	}
	quotes := m.Store.Prices(cat)
	if quotes == nil {
		quotes = model.QuoteMap{}
	}
	ctx.Header(HeaderDataSource, string(m.Store.Source(cat)))
	common.Success(ctx, quotes)
}

// Insight GET /api/insights/:symbol/:timeframe?type=crypto
func (m *Market) Insight(ctx *gin.Context) {
	symbol := ctx.Param("symbol")
	timeframe := ctx.Param("timeframe")
	assetType := ctx.DefaultQuery("type", "crypto")

	rep, err := m.Insights.Insight(ctx.Request.Context(), symbol, timeframe, assetType)
	if err != nil {
		if errors.Is(err, candles.ErrUnknownTimeframe) || errors.Is(err, candles.ErrEmptySymbol) {
			common.FailErr(ctx, xerr.Wrap(err, xerr.RequestParamsError, err.Error()))
			return
		}
		common.FailErr(ctx, err)
		return
	}
	logger.Debug(ctx.Request.Context(), "insight served",
		zap.String("symbol", rep.Symbol),
		zap.String("timeframe", rep.Timeframe),
		zap.String("signal", string(rep.Analysis.Signal)),
		zap.String("data_source", string(rep.Analysis.DataSource)),
	)
	common.Success(ctx, rep)
}

func (m *Market) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock.Now().UTC()
}
