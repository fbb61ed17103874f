package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// 局审计事件类型
const (
	RoundEventOpen     int8 = 1 // 开局
	RoundEventExpire   int8 = 2 // 售票截止
	RoundEventFinalize int8 = 3 // 开奖结算
)

// RoundAudit 对应 round_audit 表（局生命周期审计）
// prev_state/next_state 使用字符串快照，便于直观查询
type RoundAudit struct {
	ID        int64  `db:"id"`
	RoundID   int64  `db:"round_id"`
	EventType int8   `db:"event_type"`
	PrevState string `db:"prev_state"`
	NextState string `db:"next_state"`
	Operator  string `db:"operator"` // scheduler / admin
	Payload   string `db:"payload"`  // 事件附加信息 JSON
	TraceID   string `db:"trace_id"`
	CreatedAt int64  `db:"created_at"`
}

// Insert
func (e *RoundAudit) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO round_audit (round_id, event_type, prev_state, next_state, operator, payload, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, e.RoundID, e.EventType, e.PrevState, e.NextState, e.Operator, e.Payload, e.TraceID, now)
	return err
}
