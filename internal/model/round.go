package model

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// Round 对应 rounds 表
// 说明：时间为毫秒时间戳；draw 为 JSON 数组字符串（结算前为空串）
// 不变量：任意时刻至多一条 is_accepting=1 AND is_finished=0 的记录
// no_match_draws 为历史遗留计数字段，保留兼容，业务不读取
type Round struct {
	ID           int64  `db:"id"`
	IsAccepting  int8   `db:"is_accepting"`   // 1=售票中 0=已截止
	IsFinished   int8   `db:"is_finished"`    // 1=已结算
	AcceptUntil  int64  `db:"accept_until"`   // 售票截止时间（毫秒）
	Draw         string `db:"draw"`           // 开奖号码 JSON，如 "[3,17,42,56,70,88]"
	NoMatchDraws int    `db:"no_match_draws"` // 遗留字段
	TraceID      string `db:"trace_id"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

// DrawNumbers 反序列化开奖号码；未开奖返回空切片
func (r *Round) DrawNumbers() []int {
	if r.Draw == "" {
		return []int{}
	}
	var out []int
	if err := json.Unmarshal([]byte(r.Draw), &out); err != nil {
		return []int{}
	}
	return out
}

// InsertRound 创建新一局（售票中）
func InsertRound(ctx context.Context, exec sqlx.ExtContext, acceptUntilMs int64, traceID string) (int64, error) {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO rounds (is_accepting, is_finished, accept_until, draw, no_match_draws, trace_id, created_at, updated_at) VALUES (1, 0, ?, '', 0, ?, ?, ?)"
	res, err := exec.ExecContext(ctx, sqlStr, acceptUntilMs, traceID, now, now)
	if err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// GetAcceptingRound 查询当前唯一售票中的一局；不存在返回 nil（无错误）
func GetAcceptingRound(ctx context.Context, exec sqlx.ExtContext) (*Round, error) {
	sqlStr := `SELECT id, is_accepting, is_finished, accept_until, draw, no_match_draws, trace_id, created_at, updated_at
		FROM rounds WHERE is_accepting = 1 AND is_finished = 0 ORDER BY id DESC LIMIT 1`
	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetAcceptingRoundForUpdate 在事务中加锁查询售票中的一局（购票路径使用）
func GetAcceptingRoundForUpdate(ctx context.Context, exec sqlx.ExtContext) (*Round, error) {
	sqlStr := `SELECT id, is_accepting, is_finished, accept_until, draw, no_match_draws, trace_id, created_at, updated_at
		FROM rounds WHERE is_accepting = 1 AND is_finished = 0 ORDER BY id DESC LIMIT 1 FOR UPDATE`
	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetRound 按ID查询（无锁）
func GetRound(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*Round, error) {
	sqlStr := `SELECT id, is_accepting, is_finished, accept_until, draw, no_match_draws, trace_id, created_at, updated_at
		FROM rounds WHERE id = ? LIMIT 1`
	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// GetRoundForUpdate 在事务中按ID加锁（结算路径使用）
func GetRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) (*Round, error) {
	sqlStr := `SELECT id, is_accepting, is_finished, accept_until, draw, no_match_draws, trace_id, created_at, updated_at
		FROM rounds WHERE id = ? FOR UPDATE`
	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr, roundID); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetLastFinishedRound 查询最近一条已结算的局（用于休息间隔判断）
func GetLastFinishedRound(ctx context.Context, exec sqlx.ExtContext) (*Round, error) {
	sqlStr := `SELECT id, is_accepting, is_finished, accept_until, draw, no_match_draws, trace_id, created_at, updated_at
		FROM rounds WHERE is_finished = 1 ORDER BY id DESC LIMIT 1`
	var r Round
	if err := sqlx.GetContext(ctx, exec, &r, sqlStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// FinalizeRoundWrite 写入开奖号码并翻转标志位（单条 UPDATE）
func FinalizeRoundWrite(ctx context.Context, exec sqlx.ExtContext, roundID int64, drawJSON string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE rounds SET draw = ?, is_finished = 1, is_accepting = 0, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, drawJSON, now, roundID)
	return err
}

// CountTicketsByRound 统计某局已接受的票数（状态查询接口使用）
func CountTicketsByRound(ctx context.Context, exec sqlx.ExtContext, roundID int64) (int, error) {
	var cnt int
	if err := sqlx.GetContext(ctx, exec, &cnt, "SELECT COUNT(1) FROM tickets WHERE round_id = ?", roundID); err != nil {
		return 0, err
	}
	return cnt, nil
}
