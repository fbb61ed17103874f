package routers

import (
	"lotto-server/internal/controller/api"
	"lotto-server/internal/metrics"
	"lotto-server/internal/middleware"

	beego "github.com/beego/beego/v2/server/web"
)

// init 注册HTTP路由与全局过滤器
// 注意：init 在 main 加载配置之前执行，过滤器一律无条件安装，
// 开关类过滤器（CORS/限流/管理认证）在每次请求时自行读取配置判断
func init() {
	// 全局过滤器（按执行顺序）
	// 1. Panic Recovery（最先执行，捕获所有 panic）
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RecoveryFilter)

	// 2. 请求ID注入
	beego.InsertFilter("/*", beego.BeforeRouter, middleware.RequestIDFilter)

	// 3. CORS 处理（未启用时过滤器内部直接放行）
	beego.InsertFilter("/*", beego.BeforeExec, middleware.CORSFilter)

	// 4. HTTP 指标收集
	beego.InsertFilter("/*", beego.BeforeExec, metrics.HTTPMetricsFilter)
	beego.InsertFilter("/*", beego.FinishRouter, metrics.HTTPMetricsAfter)

	// 健康检查（无需认证）
	beego.Router("/healthz", &api.HealthController{}, "get:Healthz")
	beego.Router("/readyz", &api.HealthController{}, "get:Readyz")

	// ========== 公开查询 API ==========

	// 局状态与开奖结果：无需登录
	beego.Router("/api/round/current", &api.RoundController{}, "get:Current")
	beego.Router("/api/round/:round_id", &api.RoundController{}, "get:Result")

	// ========== 业务 API（需要用户认证） ==========

	// 购票接口：用户认证 + 限流（未启用时过滤器内部直接放行）
	beego.InsertFilter("/api/play", beego.BeforeExec, middleware.UserAuthFilter)
	beego.InsertFilter("/api/play", beego.BeforeExec, middleware.RateLimitFilter)
	beego.Router("/api/play", &api.PlayController{}, "post:Play")

	// 用户查询接口：用户只能查询自己的数据
	beego.InsertFilter("/api/user/*", beego.BeforeExec, middleware.UserAuthFilter)
	beego.Router("/api/user/tickets", &api.PlayController{}, "get:MyTickets")

	beego.InsertFilter("/api/ticket/*", beego.BeforeExec, middleware.UserAuthFilter)
	beego.Router("/api/ticket/:ticket_code", &api.PlayController{}, "get:TicketByCode")

	// 钱包接口：余额/流水/充值
	beego.InsertFilter("/api/wallet/*", beego.BeforeExec, middleware.UserAuthFilter)
	beego.Router("/api/wallet/balance", &api.WalletController{}, "get:Balance")
	beego.Router("/api/wallet/ledger", &api.WalletController{}, "get:Ledger")
	beego.Router("/api/wallet/deposit", &api.WalletController{}, "post:Deposit")
	beego.Router("/api/wallet/transactions", &api.WalletController{}, "get:Transactions")

	// 提现接口：银行信息 + 申请
	beego.InsertFilter("/api/withdrawal*", beego.BeforeExec, middleware.UserAuthFilter)
	beego.Router("/api/withdrawal/bank-info", &api.WithdrawalController{}, "post:SubmitBankInfo")
	beego.Router("/api/withdrawal", &api.WithdrawalController{}, "post:Request")

	// ========== 管理 API（需要管理员认证） ==========

	beego.InsertFilter("/api/admin/*", beego.BeforeExec, middleware.AdminAuthFilter)
	beego.Router("/api/admin/round/tick", &api.AdminController{}, "post:Tick")
	beego.Router("/api/admin/round/:round_id/finalize", &api.AdminController{}, "post:Finalize")
	beego.Router("/api/admin/withdrawals", &api.AdminController{}, "get:Withdrawals")
	beego.Router("/api/admin/withdrawal/:id/approve", &api.AdminController{}, "post:ApproveWithdrawal")
	beego.Router("/api/admin/withdrawal/:id/reject", &api.AdminController{}, "post:RejectWithdrawal")
	beego.Router("/api/admin/user/:user_id/withdraw-approve", &api.AdminController{}, "post:ApproveUser")
}
