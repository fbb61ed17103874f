package api

import (
	"errors"

	helper "lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/model"
	"lotto-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

var newWalletService = func() service.WalletService { return service.NewWalletService(nil) }

type WalletController struct{ beego.Controller }

// currentUserID 从认证中间件注入的数据中取用户ID，未注入返回0
func currentUserID(c *beego.Controller) int64 {
	if v := c.Ctx.Input.GetData("user_id"); v != nil {
		if uid, ok := v.(int64); ok {
			return uid
		}
	}
	return 0
}

// Balance 查询余额：GET /api/wallet/balance
func (c *WalletController) Balance() {
	traceID := helper.GetTraceID(c.Ctx)

	userID := currentUserID(&c.Controller)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	bal, err := newWalletService().Balance(c.Ctx.Request.Context(), userID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, map[string]interface{}{"balance": bal}, traceID)
}

// Ledger 查询账本流水：GET /api/wallet/ledger?limit=20
func (c *WalletController) Ledger() {
	traceID := helper.GetTraceID(c.Ctx)

	userID := currentUserID(&c.Controller)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	limit, _ := c.GetInt("limit", 10)
	rows, err := newWalletService().Ledger(c.Ctx.Request.Context(), userID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, l := range rows {
		items = append(items, map[string]interface{}{
			"biz_type":      l.BizTypeStr,
			"amount":        l.Amount,
			"before_amount": l.BeforeAmount,
			"after_amount":  l.AfterAmount,
			"currency":      l.Currency,
			"ref_no":        l.RefNo,
			"remark":        l.Remark,
			"created_at":    l.CreatedAt,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{"ledger": items}, traceID)
}

// Deposit 发起充值：POST /api/wallet/deposit
// 成功返回网关支付链接，入账由 MQ 消费侧异步完成
func (c *WalletController) Deposit() {
	traceID := helper.GetTraceID(c.Ctx)

	dp, ok, msg := helper.ParseAndValidateDeposit(c.Ctx)
	if !ok {
		response.BadRequest(&c.Controller, msg, traceID)
		return
	}

	userID := currentUserID(&c.Controller)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	out, err := newWalletService().InitiateDeposit(c.Ctx.Request.Context(), userID, dp.Amount, dp.Gateway, traceID)
	if err != nil {
		if errors.Is(err, service.ErrGatewayUnavailable) {
			response.Error(&c.Controller, 502, response.CodeGatewayError, traceID)
			return
		}
		if err.Error() == "invalid deposit amount" {
			response.BadRequest(&c.Controller, err.Error(), traceID)
			return
		}
		response.InternalError(&c.Controller, traceID)
		return
	}

	response.Success(&c.Controller, map[string]interface{}{
		"reference": out.Reference,
		"pay_url":   out.PayURL,
	}, traceID)
}

// Transactions 查询充值记录：GET /api/wallet/transactions?limit=20
func (c *WalletController) Transactions() {
	traceID := helper.GetTraceID(c.Ctx)

	userID := currentUserID(&c.Controller)
	if userID == 0 {
		response.Error(&c.Controller, 401, response.CodeUnauthorized, traceID)
		return
	}

	limit, _ := c.GetInt("limit", 10)
	rows, err := model.ListUserTransactions(c.Ctx.Request.Context(), infmysql.SQLX(), userID, limit)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, t := range rows {
		items = append(items, map[string]interface{}{
			"reference":  t.Reference,
			"amount":     t.Amount,
			"currency":   t.Currency,
			"gateway":    t.Gateway,
			"status":     t.Status,
			"created_at": t.CreatedAt,
		})
	}
	response.Success(&c.Controller, map[string]interface{}{"transactions": items}, traceID)
}
