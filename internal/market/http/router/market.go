package router

import (
	"github.com/gin-gonic/gin"
	"traderhub.com/internal/market/handler"
)

func Market(api *gin.RouterGroup, h *handler.Market) {
	api.GET("/health", h.Health)
	api.GET("/news", h.News)

	prices := api.Group("/prices")
	{
		prices.GET("", h.Prices)
		prices.GET("/:type", h.PricesByType)
	}
	api.GET("/insights/:symbol/:timeframe", h.Insight)
}
