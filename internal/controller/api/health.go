package api

import (
	"time"

	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"

	beego "github.com/beego/beego/v2/server/web"
)

// HealthController 提供健康检查端点：/healthz 与 /readyz

type HealthController struct{ beego.Controller }

// Healthz 存活探针：仅返回进程存活
func (c *HealthController) Healthz() {
	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ok"))
}

// Readyz 就绪探针：探测 MySQL 与 Redis 连通性
// Redis 未配置时视为就绪（相关功能自动降级）
func (c *HealthController) Readyz() {
	ctx := c.Ctx.Request.Context()

	if db := infmysql.DB(); db != nil {
		if err := db.PingContext(ctx); err != nil {
			c.Ctx.Output.SetStatus(503)
			_ = c.Ctx.Output.Body([]byte("mysql not ready"))
			return
		}
	}
	if err := infrds.Ping(ctx, 2*time.Second); err != nil {
		c.Ctx.Output.SetStatus(503)
		_ = c.Ctx.Output.Body([]byte("redis not ready"))
		return
	}

	c.Ctx.Output.SetStatus(200)
	_ = c.Ctx.Output.Body([]byte("ready"))
}
