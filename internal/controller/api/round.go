package api

import (
	"strconv"

	helper "lotto-server/internal/common/helper"
	"lotto-server/internal/common/response"
	"lotto-server/internal/service"

	beego "github.com/beego/beego/v2/server/web"
)

// 局查询接口（公开，无需登录）
// GET /api/round/current  当前局状态（Redis 缓存优先，DB 回源）
// GET /api/round/:round_id 某局开奖结果

var newRoundService = func() service.RoundService {
	return service.NewRoundService(service.NewSettlementService(nil))
}

type RoundController struct{ beego.Controller }

// Current 查询当前局状态
func (c *RoundController) Current() {
	traceID := helper.GetTraceID(c.Ctx)

	st, err := newRoundService().CurrentStatus(c.Ctx.Request.Context())
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	response.Success(&c.Controller, st, traceID)
}

// Result 查询某局开奖结果
func (c *RoundController) Result() {
	traceID := helper.GetTraceID(c.Ctx)

	roundIDStr := c.Ctx.Input.Param(":round_id")
	roundID, err := strconv.ParseInt(roundIDStr, 10, 64)
	if err != nil || roundID <= 0 {
		response.BadRequest(&c.Controller, "round_id must be a positive integer", traceID)
		return
	}

	r, err := newRoundService().Result(c.Ctx.Request.Context(), roundID)
	if err != nil {
		response.InternalError(&c.Controller, traceID)
		return
	}
	if r == nil {
		response.NotFound(&c.Controller, "局不存在", traceID)
		return
	}

	state := "accepting"
	if r.IsFinished == 1 {
		state = "finalized"
	} else if r.IsAccepting == 0 {
		state = "closed"
	}

	data := map[string]interface{}{
		"round_id":     r.ID,
		"state":        state,
		"accept_until": r.AcceptUntil,
	}
	if r.IsFinished == 1 {
		data["draw"] = r.DrawNumbers()
	}
	response.Success(&c.Controller, data, traceID)
}
