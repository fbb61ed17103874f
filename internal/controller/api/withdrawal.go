package api

import (
	"errors"
	"strings"

	helper "lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newWithdrawalService = func() service.WithdrawalService { return service.NewWithdrawalService(nil) }

type WithdrawalController struct{ beego.Controller }

// SubmitBankInfo 提交收款银行信息：POST /api/withdrawal/bank-info
// 仅允许提交一次，提交时刻开始冷静期计时
func (c *WithdrawalController) SubmitBankInfo() {
	traceID := helper.GetTraceID(c.Ctx)

	bp, ok, msg := helper.ParseAndValidateBankInfo(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	userID := currentUserID(&c.Controller)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	err := newWithdrawalService().SubmitBankInfo(c.Ctx.Request.Context(), userID, bp.AccountNumber, bp.BankName, traceID)
	if err != nil {
		if errors.Is(err, service.ErrBankInfoAlreadySet) {
			response.ErrorWithMessage(&c.Controller, 409, response.CodeBusinessError, "银行信息已提交，如需修改请联系客服", traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{"submitted": true}, traceID)
}

// Request 申请提现：POST /api/withdrawal
// 资格校验（银行信息/冷静期/审批/在途单）后冻结扣款并落 PENDING 单
func (c *WithdrawalController) Request() {
	traceID := helper.GetTraceID(c.Ctx)

	wp, ok, msg := helper.ParseAndValidateWithdraw(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	userID := currentUserID(&c.Controller)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	w, err := newWithdrawalService().Request(c.Ctx.Request.Context(), userID, wp.Amount, traceID)
	if err != nil {
		// 资格不满足
		if errors.Is(err, service.ErrWithdrawNotEligible) {
			response.Conflict(&c.Controller, response.CodeWithdrawNotEligible, traceID)
			return
		}
		// 已有在途提现单
		if errors.Is(err, service.ErrPendingWithdrawExists) {
			response.Conflict(&c.Controller, response.CodeInvalidWithdrawal, traceID)
			return
		}
		// 余额不足
		if errors.Is(err, service.ErrInsufficientBalance) {
			response.Error(&c.Controller, 400, response.CodeInsufficientBalance, traceID)
			return
		}
		// 金额验证失败
		errMsg := err.Error()
		if strings.Contains(errMsg, "invalid withdrawal amount") ||
			strings.Contains(errMsg, "below minimum") {
			response.BadRequest(&c.Controller, errMsg, traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"withdrawal_id":  w.ID,
		"amount":         w.Amount,
		"currency":       w.Currency,
		"account_number": w.AccountNumber,
		"bank_name":      w.BankName,
		"status":         w.Status,
	}, traceID)
}
