package api

import (
	"database/sql"
	"errors"
	"strconv"

	helper "lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// 管理接口（AdminAuthFilter 保护）
// POST /api/admin/round/tick                  手动推进局生命周期（开局/截止结算）
// POST /api/admin/round/:round_id/finalize    强制结算指定局（幂等）
// GET  /api/admin/withdrawals?status=0        按状态拉取提现单
// POST /api/admin/withdrawal/:id/approve      审批通过并触发打款
// POST /api/admin/withdrawal/:id/reject       驳回并退款
// POST /api/admin/user/:user_id/withdraw-approve 授予提现资格

// 与定时调度器各自持有实例：并发 Tick 由 DB 的双开守卫与结算幂等兜底
var adminRoundService = service.NewRoundService(service.NewSettlementService(nil))

type AdminController struct{ beego.Controller }

// Tick 手动推进局生命周期（与定时调度器等价，便于联调和应急）
func (c *AdminController) Tick() {
	traceID := helper.GetTraceID(c.Ctx)

	action, err := adminRoundService.Tick(c.Ctx.Request.Context(), "admin", traceID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"action": action}, traceID)
}

// Finalize 强制结算指定局：窗口未到也会结算，仅限应急使用
func (c *AdminController) Finalize() {
	traceID := helper.GetTraceID(c.Ctx)

	roundID, err := strconv.ParseInt(c.Ctx.Input.Param(":round_id"), 10, 64)
	if err != nil || roundID <= 0 {
		response.BadRequest(&c.Controller, "round_id must be a positive integer", traceID)
		return
	}

	if err := service.NewSettlementService(nil).FinalizeRound(c.Ctx.Request.Context(), roundID, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrAlreadyFinalized) {
			response.Conflict(&c.Controller, response.CodeAlreadyFinalized, traceID)
			return
		}
		if errors.Is(err, sql.ErrNoRows) {
			response.NotFound(&c.Controller, "局不存在", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, nil, traceID)
}

// Withdrawals 按状态拉取提现单（默认 PENDING）
func (c *AdminController) Withdrawals() {
	traceID := helper.GetTraceID(c.Ctx)

	status, _ := c.GetInt8("status", 0)
	limit, _ := c.GetInt("limit", 50)

	rows, err := newWithdrawalService().ListByStatus(c.Ctx.Request.Context(), status, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, w := range rows {
		items = append(items, map[string]interface{}{
			"withdrawal_id":  w.ID,
			"user_id":        w.UserID,
			"amount":         w.Amount,
			"currency":       w.Currency,
			"account_number": w.AccountNumber,
			"bank_name":      w.BankName,
			"status":         w.Status,
			"fail_reason":    w.FailReason,
			"created_at":     w.CreatedAt,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{"withdrawals": items}, traceID)
}

// ApproveWithdrawal 审批通过：CAS PENDING->APPROVED 后触发网关打款
func (c *AdminController) ApproveWithdrawal() {
	traceID := helper.GetTraceID(c.Ctx)

	id, err := strconv.ParseInt(c.Ctx.Input.Param(":id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(&c.Controller, "withdrawal id must be a positive integer", traceID)
		return
	}

	if err := newWithdrawalService().Approve(c.Ctx.Request.Context(), id, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrWithdrawalNotFound) {
			response.NotFound(&c.Controller, "提现单不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrInvalidWithdrawState) {
			response.Conflict(&c.Controller, response.CodeInvalidWithdrawal, traceID)
			return
		}
		// 打款失败已自动退款，向管理端透出网关错误
		response.ErrorWithMessage(&c.Controller, 502, response.CodeGatewayError, err.Error(), traceID)
		return
	}
	response.Success(&c.Controller, nil, traceID)
}

// RejectWithdrawal 驳回：CAS PENDING->REJECTED 并退款
func (c *AdminController) RejectWithdrawal() {
	traceID := helper.GetTraceID(c.Ctx)

	id, err := strconv.ParseInt(c.Ctx.Input.Param(":id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(&c.Controller, "withdrawal id must be a positive integer", traceID)
		return
	}
	reason := c.GetString("reason", "rejected by operator")

	if err := newWithdrawalService().Reject(c.Ctx.Request.Context(), id, reason, "admin", traceID); err != nil {
		if errors.Is(err, service.ErrWithdrawalNotFound) {
			response.NotFound(&c.Controller, "提现单不存在", traceID)
			return
		}
		if errors.Is(err, service.ErrInvalidWithdrawState) {
			response.Conflict(&c.Controller, response.CodeInvalidWithdrawal, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, nil, traceID)
}

// ApproveUser 授予用户提现资格
func (c *AdminController) ApproveUser() {
	traceID := helper.GetTraceID(c.Ctx)

	userID, err := strconv.ParseInt(c.Ctx.Input.Param(":user_id"), 10, 64)
	if err != nil || userID <= 0 {
		response.BadRequest(&c.Controller, "user_id must be a positive integer", traceID)
		return
	}

	if err := newWithdrawalService().GrantEligibility(c.Ctx.Request.Context(), userID, "admin", traceID); err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"approved": true}, traceID)
}
