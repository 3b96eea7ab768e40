package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"traderhub.com/internal/market/app"
)

func main() {
	configName := flag.String("config", "market-hub", "config/<name>.yaml")
	flag.Parse()

	// 1. 支持 Ctrl+C / kubernetes 停止信号的 context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化 App
	hubApp, err := app.New(*configName)
	if err != nil {
		log.Fatalf("init market-hub error: %v", err)
	}
	cleanUp, err := hubApp.StartService(ctx)
	if err != nil {
		log.Fatalf("start market-hub error: %v", err)
	}
	defer cleanUp()

	// 3. 阻塞到收到信号或某个组件出错
	if err := hubApp.Run(ctx); err != nil {
		log.Printf("market-hub stopped with error: %v", err)
		return
	}
	log.Println("market-hub exit")
}
