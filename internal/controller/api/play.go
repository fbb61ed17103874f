package api

import (
	"database/sql"
	"errors"
	"strings"

	helper "lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"

	mysqlerr "github.com/go-sql-driver/mysql"
)

var newTicketService = service.NewTicketService

type PlayController struct{ beego.Controller }

// 购票请求参数
type PlayRequestParam struct {
	Numbers []int  `json:"numbers"` // 去重后恰好6个 1..90 整数
	Amount  string `json:"amount"`  // 票价金额
	/*
		幂等键：客户端生成并随请求传入，用于在网络重试/超时重发/服务端重试时保证"同一业务请求只生效一次"。
		使用约定：
		- 对于"同一次购票"的所有重试，请传相同的 idempotency_key；
		- 业务语义不同（如号码/金额/用户不同）的请求必须使用不同的 key；
		- 建议生成方式：UUID（推荐）或对 user_id+numbers+amount 做哈希。
		服务端幂等保证（多层防护）：
		1) Redis 进行中锁（约45秒）：并发重复请求直接返回 202，并携带 Retry-After: 1；
		2) MySQL 唯一键：事务内先插入 idempotency_keys(idempotency_key)，若已存在则视为重复请求，返回首次请求的结果；
		3) 结果缓存：首次成功结果写入 Redis（短期缓存），后续重复直接读缓存快速返回。
	*/
	IdempotencyKey string `json:"idempotency_key"`
}

// Play 处理购票接口：POST /api/play
func (c *PlayController) Play() {
	// 1) 解析入参与基本校验
	// 这里必须要对业务参数严格校验，后续service不再重复校验
	pp, ok, msg := helper.ParseAndValidatePlay(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, helper.GetTraceID(c.Ctx))
		return
	}

	svc := newTicketService()
	traceID := helper.GetTraceID(c.Ctx)

	// 用户ID由认证中间件注入
	userID := int64(0)
	if v := c.Ctx.Input.GetData("user_id"); v != nil {
		if uid, ok := v.(int64); ok {
			userID = uid
		}
	}
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	// 进行购票业务逻辑处理
	out, err := svc.Buy(c.Ctx.Request.Context(), service.BuyInput{
		UserID:         userID,
		Numbers:        pp.Numbers,
		Amount:         pp.Amount,
		IdempotencyKey: pp.IdempotencyKey,
		TraceID:        traceID,
	})
	if err != nil {
		// MySQL 唯一键冲突
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			response.Conflict(&c.Controller, response.CodeDuplicateKey, traceID)
			return
		}
		// 重复请求进行中
		if errors.Is(err, service.ErrDuplicateInFlight) {
			response.Accepted(&c.Controller, "重复请求进行中，请稍后重试", traceID)
			return
		}
		// 当前无售票中的局
		if errors.Is(err, service.ErrNoActiveRound) {
			response.Conflict(&c.Controller, response.CodeNoActiveRound, traceID)
			return
		}
		// 售票窗口已关闭
		if errors.Is(err, service.ErrRoundWindowClosed) {
			response.Conflict(&c.Controller, response.CodeRoundWindowClosed, traceID)
			return
		}
		// 号码不合法
		if errors.Is(err, service.ErrInvalidNumbers) {
			response.Error(&c.Controller, 400, response.CodeInvalidNumbers, traceID)
			return
		}
		// 余额不足
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
			return
		}
		// 金额验证失败
		errMsg := err.Error()
		if strings.Contains(errMsg, "invalid ticket amount") ||
			strings.Contains(errMsg, "amount must be positive") ||
			strings.Contains(errMsg, "below minimum limit") ||
			strings.Contains(errMsg, "exceeds maximum limit") {
			response.BadRequest(&c.Controller, errMsg, traceID)
			return
		}
		// 用户状态异常
		if strings.Contains(errMsg, "user disabled") {
			response.BadRequest(&c.Controller, "用户状态异常", traceID)
			return
		}
		// 系统错误
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 成功响应
	response.Success(&c.Controller, map[string]interface{}{
		"ticket_code":   out.TicketCode,
		"round_id":      out.RoundID,
		"remain_amount": out.RemainAmount,
	}, traceID)
}

// MyTickets 查询我的票列表：GET /api/user/tickets?limit=20
func (c *PlayController) MyTickets() {
	traceID := helper.GetTraceID(c.Ctx)

	userID := int64(0)
	if v := c.Ctx.Input.GetData("user_id"); v != nil {
		if uid, ok := v.(int64); ok {
			userID = uid
		}
	}
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	limit, _ := c.GetInt("limit", 10)
	tickets, err := newTicketService().ListMine(c.Ctx.Request.Context(), userID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, map[string]interface{}{
			"ticket_code": t.TicketCode,
			"round_id":    t.RoundID,
			"numbers":     t.NumbersList(),
			"amount":      t.Amount,
			"winning":     t.Winning,
			"win_amount":  t.WinAmount,
			"created_at":  t.CreatedAt,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{"tickets": items}, traceID)
}

// TicketByCode 按票码查询单张票：GET /api/ticket/:ticket_code
func (c *PlayController) TicketByCode() {
	traceID := helper.GetTraceID(c.Ctx)

	code := strings.TrimSpace(c.Ctx.Input.Param(":ticket_code"))
	if code == "" {
		response.BadRequest(&c.Controller, "ticket_code is required", traceID)
		return
	}

	t, err := newTicketService().GetByCode(c.Ctx.Request.Context(), code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			response.NotFound(&c.Controller, "票不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	// 票归属校验：仅本人可查
	if v := c.Ctx.Input.GetData("user_id"); v != nil {
		if uid, ok := v.(int64); ok && uid != t.UserID {
			response.NotFound(&c.Controller, "票不存在", traceID)
			return
		}
	}

	response.Success(&c.Controller, map[string]interface{}{
		"ticket_code": t.TicketCode,
		"round_id":    t.RoundID,
		"numbers":     t.NumbersList(),
		"amount":      t.Amount,
		"winning":     t.Winning,
		"win_amount":  t.WinAmount,
		"created_at":  t.CreatedAt,
	}, traceID)
}
