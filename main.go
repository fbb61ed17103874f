package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lotto-server/common"
	"lotto-server/common/logger"
	"lotto-server/internal/config"
	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"
	"lotto-server/internal/service"
	"lotto-server/internal/worker"
	_ "lotto-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// 日志最先初始化
	logger.InitLogger()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 加载配置（Nacos 优先，失败回退本地文件）
	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatalf("load config failed", zap.Error(err))
	}
	config.SetCurrent(cfg)
	logger.SetLevel(cfg.Server.LogLevel)

	// 配置热更新（仅动态项生效）
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		logger.Info("config reloaded")
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// MySQL
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db.DB)

	// Redis（地址为空则跳过，相关功能自动降级）
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(ctx, 3*time.Second); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
	}

	// 后台 worker：Outbox 分发 / 支付事件消费 / 局生命周期调度
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartDepositConsumer(ctx, &wg, service.NewWalletService(nil))
	worker.StartRoundScheduler(ctx, &wg, service.NewRoundService(service.NewSettlementService(nil)))

	// Prometheus 指标端口（独立于业务端口）
	if cfg.Observability.EnableProm && cfg.Observability.PromAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("prometheus exporter started", zap.String("addr", cfg.Observability.PromAddr))
			if err := http.ListenAndServe(cfg.Observability.PromAddr, mux); err != nil {
				logger.Error("prometheus exporter exited", zap.Error(err))
			}
		}()
	}

	// 信号处理：优雅退出
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
		wg.Wait()
		logger.Sync()
		os.Exit(0)
	}()

	beego.BConfig.CopyRequestBody = true
	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	beego.Run()
}
