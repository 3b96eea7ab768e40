package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprom "github.com/zsais/go-gin-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
	"traderhub.com/internal/market/handler"
	"traderhub.com/internal/market/http/router"
	"traderhub.com/internal/market/ws"
	"traderhub.com/pkg/middleware"
	"traderhub.com/pkg/ratelimit"
)

type Options struct {
	Service string
	Addr    string
	RPS     float64 // 每个 ip+route
	Burst   int
}

// NewEngine 路由 + 中间件；/metrics 由 ginprom 挂上
func NewEngine(ctx context.Context, opt Options, h *handler.Market, wsSrv *ws.Server) *gin.Engine {
	if opt.Service == "" {
		opt.Service = "market-hub"
	}
	if opt.RPS <= 0 {
		opt.RPS = 50
	}
	if opt.Burst <= 0 {
		opt.Burst = 100
	}
	// 限流
	store := ratelimit.NewStore("http", rate.Limit(opt.RPS), opt.Burst, 10*time.Minute)
	store.StartJanitor(ctx, time.Minute)

	r := gin.New()
	// 监控
	p := ginprom.NewPrometheus("traderhub")
	p.Use(r)
	r.Use(
		otelgin.Middleware(opt.Service),
		middleware.ReqId(),
		cors.Default(),
		middleware.Recover(),
		middleware.RateLimit(store),
	)

	api := r.Group("/api")
	router.Market(api, h)
	if wsSrv != nil {
		r.GET("/ws", gin.WrapF(wsSrv.ServeWS))
	}
	return r
}

// NewServer 长连接走 /ws，所以不设 WriteTimeout，由 ws 自己管写超时
func NewServer(ctx context.Context, opt Options, h *handler.Market, wsSrv *ws.Server) *http.Server {
	return &http.Server{
		Addr:              opt.Addr,
		Handler:           NewEngine(ctx, opt, h, wsSrv),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
