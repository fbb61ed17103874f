package model

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
)

// Ticket 对应 tickets 表
// 说明：numbers 以升序 JSON 数组入库（恰好6个互不相同的 1..90 整数）
// ticket_code 为8位大写字母+数字短码（唯一键），便于用户查询/打印
// winning/win_amount 仅在结算时由 SettlementService 写入一次
type Ticket struct {
	ID         int64   `db:"id"`          // 自增ID
	TicketCode string  `db:"ticket_code"` // 票码(唯一)
	UserID     int64   `db:"user_id"`     // 用户ID
	RoundID    int64   `db:"round_id"`    // 局ID
	Numbers    string  `db:"numbers"`     // 所选号码 JSON（升序）
	Amount     float64 `db:"amount"`      // 投注金额(非负)
	Winning    int8    `db:"winning"`     // 1=中奖
	WinAmount  float64 `db:"win_amount"`  // 派彩金额
	Currency   string  `db:"currency"`    // 币种
	TraceID    string  `db:"trace_id"`    // 链路追踪ID
	CreatedAt  int64   `db:"created_at"`  // 创建时间
	UpdatedAt  int64   `db:"updated_at"`  // 更新时间
}

// NumbersList 反序列化所选号码
func (t *Ticket) NumbersList() []int {
	var out []int
	if err := json.Unmarshal([]byte(t.Numbers), &out); err != nil {
		return nil
	}
	return out
}

// EncodeNumbers 将号码升序排序并序列化为入库格式
func EncodeNumbers(nums []int) string {
	cp := make([]int, len(nums))
	copy(cp, nums)
	sort.Ints(cp)
	b, _ := json.Marshal(cp)
	return string(b)
}

// Insert 插入一张票
func (t *Ticket) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO tickets (ticket_code, user_id, round_id, numbers, amount, winning, win_amount, currency, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr, t.TicketCode, t.UserID, t.RoundID, t.Numbers, t.Amount, t.Currency, t.TraceID, now, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	return nil
}

// TicketCodeExists 检查票码是否已被占用（生成时碰撞重试用）
func TicketCodeExists(ctx context.Context, exec sqlx.ExtContext, code string) (bool, error) {
	var cnt int
	if err := sqlx.GetContext(ctx, exec, &cnt, "SELECT COUNT(1) FROM tickets WHERE ticket_code = ?", code); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// GetTicketByCode 按票码查询（查询接口使用，无锁）
func GetTicketByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*Ticket, error) {
	sqlStr := `SELECT id, ticket_code, user_id, round_id, numbers, amount, winning, win_amount, currency, trace_id, created_at, updated_at
		FROM tickets WHERE ticket_code = ? LIMIT 1`
	var t Ticket
	if err := sqlx.GetContext(ctx, exec, &t, sqlStr, code); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTicketsByRoundForUpdate 按局号加锁查询全部票（结算路径，需在事务中调用）
func ListTicketsByRoundForUpdate(ctx context.Context, exec sqlx.ExtContext, roundID int64) ([]Ticket, error) {
	sqlStr := `SELECT id, ticket_code, user_id, round_id, numbers, amount, winning, win_amount, currency, trace_id, created_at, updated_at
		FROM tickets WHERE round_id = ? FOR UPDATE`
	var out []Ticket
	if err := sqlx.SelectContext(ctx, exec, &out, sqlStr, roundID); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTicketWin 写入中奖票的结算结果
func UpdateTicketWin(ctx context.Context, exec sqlx.ExtContext, ticketID int64, winAmount float64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE tickets SET winning = 1, win_amount = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, winAmount, now, ticketID)
	return err
}

// MarkTicketsLost 批量标记未中奖票（排除指定中奖票，excludeID=0 表示无中奖票）
func MarkTicketsLost(ctx context.Context, exec sqlx.ExtContext, roundID, excludeID int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE tickets SET winning = 0, win_amount = 0, updated_at = ? WHERE round_id = ? AND id <> ?"
	_, err := exec.ExecContext(ctx, sqlStr, now, roundID, excludeID)
	return err
}

// ListUserTickets 查询用户近期的票（按创建时间倒序）
func ListUserTickets(ctx context.Context, db *sqlx.DB, userID int64, limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	sqlStr := `SELECT id, ticket_code, user_id, round_id, numbers, amount, winning, win_amount, currency, trace_id, created_at, updated_at
		FROM tickets WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`
	var out []Ticket
	if err := db.SelectContext(ctx, &out, sqlStr, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
