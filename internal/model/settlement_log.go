package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettlementLog 结算日志表（防止重复结算）
// round_id 上有唯一索引，插入冲突即表示该局已结算过
type SettlementLog struct {
	ID           int64   `db:"id"`            // 自增ID
	RoundID      int64   `db:"round_id"`      // 局ID（唯一）
	Draw         string  `db:"draw"`          // 开奖号码 JSON
	WinnerTicket string  `db:"winner_ticket"` // 中奖票码（无中奖为空串）
	TotalTickets int     `db:"total_tickets"` // 结算票数
	TotalPayout  float64 `db:"total_payout"`  // 总派彩金额
	CycleCounter int     `db:"cycle_counter"` // 本局结算前的周期计数器值
	Operator     string  `db:"operator"`      // 操作人（定时器为 scheduler）
	TraceID      string  `db:"trace_id"`      // 链路追踪ID
	CreatedAt    int64   `db:"created_at"`    // 创建时间（13位毫秒时间戳）
}

// CreateSettlementLog 创建结算日志（利用唯一索引防止重复结算）
// 如果返回唯一键冲突错误，说明该局已经结算过
func CreateSettlementLog(ctx context.Context, exec sqlx.ExtContext, log *SettlementLog) error {
	now := time.Now().UnixMilli()
	log.CreatedAt = now

	sqlStr := `INSERT INTO settlement_log (round_id, draw, winner_ticket, total_tickets, total_payout, cycle_counter, operator, trace_id, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := exec.ExecContext(ctx, sqlStr,
		log.RoundID, log.Draw, log.WinnerTicket, log.TotalTickets, log.TotalPayout, log.CycleCounter, log.Operator, log.TraceID, log.CreatedAt)

	if err != nil {
		return err
	}

	id, _ := result.LastInsertId()
	log.ID = id

	return nil
}
