package worker

import (
	"context"
	"sync"

	"lotto-server/common/logger"
	"lotto-server/internal/service"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// StartRoundScheduler 启动局生命周期调度器：每5秒触发一次 Tick
// cron 配置 SkipIfStillRunning，叠加 RoundService 内部互斥锁，保证 Tick 串行
func StartRoundScheduler(ctx context.Context, wg *sync.WaitGroup, rounds service.RoundService) *cron.Cron {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc("*/5 * * * * *", func() {
		traceID := uuid.New().String()
		action, err := rounds.Tick(ctx, "scheduler", traceID)
		if err != nil {
			logger.Error("round tick failed", zap.String("trace_id", traceID), zap.Error(err))
			return
		}
		if action != "noop" {
			logger.Info("round tick", zap.String("action", action), zap.String("trace_id", traceID))
		}
	})
	if err != nil {
		logger.Error("round scheduler register failed", zap.Error(err))
		return nil
	}

	c.Start()
	logger.Info("round scheduler started")

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		logger.Info("round scheduler stopped")
	}()

	return c
}
