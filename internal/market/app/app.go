package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"traderhub.com/internal/market/candles"
	"traderhub.com/internal/market/config"
	"traderhub.com/internal/market/gateway"
	"traderhub.com/internal/market/handler"
	mhttp "traderhub.com/internal/market/http"
	"traderhub.com/internal/market/hub"
	"traderhub.com/internal/market/insight"
	"traderhub.com/internal/market/model"
	"traderhub.com/internal/market/scheduler"
	"traderhub.com/internal/market/snapshot"
	"traderhub.com/internal/market/synth"
	"traderhub.com/internal/market/ws"
	vipConfig "traderhub.com/pkg/config"
	"traderhub.com/pkg/logger"
	"traderhub.com/pkg/metrics"
	"traderhub.com/pkg/trace"
	"traderhub.com/pkg/xredis"
)

type App struct {
	cfg   config.Config
	clock clockwork.Clock

	store     *snapshot.Store
	hub       *hub.Hub
	sched     *scheduler.Scheduler
	sink      *scheduler.Sink
	handler   *handler.Market
	wsSrv     *ws.Server
	srv       *http.Server
	rdb       *redis.Client
	broker    gateway.Broker
	mirror    *snapshot.RedisMirror
	traceDown func(context.Context) error
}

func New(configName string) (*App, error) {
	if configName == "" {
		configName = "market-hub"
	}
	// 加载配置
	var cfg config.Config
	if _, err := vipConfig.LoadAndWatch(configName, &cfg, config.Defaults()); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &App{cfg: cfg, clock: clockwork.NewRealClock()}, nil
}

func (app *App) Config() config.Config { return app.cfg }

// StartService 初始化日志、trace、指标和所有组件，返回清理函数
func (app *App) StartService(ctx context.Context) (func(), error) {
	cfg := app.cfg
	logger.InitWithFile(cfg.Name, cfg.Log.Level, cfg.Log.File)
	metrics.MustRegister(nil)

	shutdown, err := trace.InitTrace(cfg.Name, cfg.Trace.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	app.traceDown = shutdown

	app.startRedis(ctx)
	app.startStore(ctx)
	app.hub = hub.New(app.store, hub.WithClock(app.clock), hub.WithSendBuffer(cfg.Hub.SendBuffer))
	if err := app.startScheduler(); err != nil {
		return nil, err
	}
	if err := app.startBroker(); err != nil {
		return nil, err
	}
	app.startHTTP(ctx)

	cleanUp := func() {
		app.sched.Stop()
		app.hub.Close()
		if app.broker != nil {
			_ = app.broker.Close()
		}
		if app.rdb != nil {
			_ = app.rdb.Close()
		}
		downCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.traceDown(downCtx)
		logger.Sync()
	}
	return cleanUp, nil
}

// Run 跑到 ctx 结束；任何一个组件失败都会让整体退出
func (app *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := app.sched.Start(gctx); err != nil {
		return err
	}
	switch {
	case app.broker != nil && app.cfg.Nats.Following():
		f := gateway.NewFollower(app.broker, app.sink, app.cfg.Nats.Prefix)
		g.Go(func() error { return f.Run(gctx) })
	case app.broker != nil:
		m := gateway.NewMirror(app.hub, app.broker, app.cfg.Nats.Prefix)
		g.Go(func() error { return m.Run(gctx) })
	}

	g.Go(func() error {
		logger.Info(gctx, "http listening", zap.String("addr", app.srv.Addr))
		if err := app.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "http shutdown", zap.Error(err))
		}
		// 最后一份快照落到 redis
		app.sink.Wait()
		return nil
	})
	return g.Wait()
}

// startRedis 连不上就不开镜像，不影响启动
func (app *App) startRedis(ctx context.Context) {
	rc := app.cfg.Redis
	if !rc.Enabled {
		return
	}
	rdb, err := xredis.NewRedis(ctx, &rc.Config)
	if err != nil {
		logger.Warn(ctx, "redis unavailable, snapshot mirror disabled", zap.Error(err))
		return
	}
	app.rdb = rdb
	app.mirror = snapshot.NewRedisMirror(rdb, rc.Prefix, rc.TTL)
}

// startStore 先放演示数据，再用 redis 里上次的值覆盖
func (app *App) startStore(ctx context.Context) {
	app.store = snapshot.NewStore(app.clock)
	if app.cfg.Demo.Enabled {
		app.store.Seed(snapshot.DemoSnapshot(app.clock.Now()), model.DataSourceSimulation)
	}
	if app.mirror == nil {
		return
	}
	snap, found, err := app.mirror.Load(ctx)
	if err != nil {
		logger.Warn(ctx, "snapshot warm start failed", zap.Error(err))
		return
	}
	if found {
		app.store.Seed(snap, model.DataSourceLive)
		logger.Info(ctx, "snapshot restored from redis")
	}
}

func (app *App) startScheduler() error {
	cfg := app.cfg
	rnd := synth.NewTimeRand()
	ch := buildChains(cfg.Providers, cfg.Breaker, rnd)

	var mirror scheduler.Mirror
	if app.mirror != nil {
		mirror = app.mirror
	}
	sink := scheduler.NewSink(app.store, app.hub, mirror)
	app.sink = sink
	refresher := scheduler.NewRefresher(sink, ch.news, ch.quotes, insight.RuleBased{})

	app.sched = scheduler.New(app.clock)
	var jobs []scheduler.Job
	if !cfg.Nats.Following() {
		jobs = refresher.Jobs(cfg.Schedule.News, cfg.Schedule.Prices)
	}
	if cfg.Demo.Enabled && !cfg.Nats.Following() {
		jobs = append(jobs, scheduler.NewFluctuator(sink, rnd).Job(cfg.Schedule.Fluctuation))
	}
	for _, j := range jobs {
		if err := app.sched.Add(j); err != nil {
			return fmt.Errorf("add job %s: %w", j.Class, err)
		}
	}

	gen := synth.NewGenerator(rnd, app.clock)
	candleSvc := candles.NewService(ch.candles, synth.NewAnchors(ch.spot, nil), gen)
	var collab insight.Collaborator
	if cfg.Insight.Endpoint != "" {
		collab = insight.NewHTTPCollaborator(cfg.Insight.Endpoint, cfg.Insight.Timeout)
	}
	insights := insight.NewService(candleSvc, collab, insight.NewMock(app.clock)).WithTimeout(cfg.Insight.Timeout)

	app.handler = &handler.Market{
		Store:    app.store,
		Hub:      app.hub,
		Insights: insights,
		Jobs:     app.sched.States,
		Clock:    app.clock,
	}
	return nil
}

func (app *App) startBroker() error {
	if app.cfg.Nats.URL == "" {
		return nil
	}
	b, err := gateway.NewNatsBroker(app.cfg.Nats.URL, app.cfg.Name)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	app.broker = b
	return nil
}

func (app *App) startHTTP(ctx context.Context) {
	wc := app.cfg.WS
	app.wsSrv = ws.NewServer(ctx, app.hub, hub.NewChatRelay(app.hub))
	if app.cfg.Hub.SendBuffer > 0 {
		app.wsSrv.SendBuf = app.cfg.Hub.SendBuffer
	}
	if wc.PongWait > 0 {
		app.wsSrv.PongWait = wc.PongWait
	}
	if wc.PingPeriod > 0 && wc.PingPeriod < app.wsSrv.PongWait {
		app.wsSrv.PingPeriod = wc.PingPeriod
	}
	if wc.WriteWait > 0 {
		app.wsSrv.WriteWait = wc.WriteWait
	}
	if wc.ReadLimit > 0 {
		app.wsSrv.ReadLimit = wc.ReadLimit
	}

	app.srv = mhttp.NewServer(ctx, mhttp.Options{
		Service: app.cfg.Name,
		Addr:    app.cfg.HTTP.Addr,
		RPS:     app.cfg.RateLimit.RPS,
		Burst:   app.cfg.RateLimit.Burst,
	}, app.handler, app.wsSrv)
}
