package model

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// WalletLedger 对应 wallet_ledger 表（追加式账本）
// 说明：金额为非负；方向由 before_amount/after_amount 与 biz_type 推导
// biz_type: 1=ticket 购票 2=settle 派彩 3=deposit 充值 4=withdraw 提现 5=refund 退款
// 同时冗余 biz_type_str 便于查询
type WalletLedger struct {
	ID           int64   `db:"id"`
	UserID       int64   `db:"user_id"`
	BizType      int     `db:"biz_type"`
	BizTypeStr   string  `db:"biz_type_str"`
	Amount       float64 `db:"amount"`
	BeforeAmount float64 `db:"before_amount"`
	AfterAmount  float64 `db:"after_amount"`
	Currency     string  `db:"currency"`
	RefNo        string  `db:"ref_no"`   // 业务参考号：票码/充值参考号/提现单号
	RoundID      int64   `db:"round_id"` // 关联局ID（非开奖业务为0）
	Remark       string  `db:"remark"`
	TraceID      string  `db:"trace_id"`
	CreatedAt    int64   `db:"created_at"`
}

// Insert 新增一条账本记录（biz_type 数值码与字符串双写）
func (l *WalletLedger) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	code := l.BizType
	str := l.BizTypeStr
	if code == 0 && str != "" {
		switch strings.ToLower(str) {
		case "ticket":
			code = 1
		case "settle":
			code = 2
		case "deposit":
			code = 3
		case "withdraw":
			code = 4
		case "refund":
			code = 5
		}
	}
	if str == "" && code != 0 {
		switch code {
		case 1:
			str = "ticket"
		case 2:
			str = "settle"
		case 3:
			str = "deposit"
		case 4:
			str = "withdraw"
		case 5:
			str = "refund"
		}
	}
	sqlStr := "INSERT INTO wallet_ledger (user_id, biz_type, biz_type_str, amount, before_amount, after_amount, currency, ref_no, round_id, remark, trace_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	args := []interface{}{l.UserID, code, str, l.Amount, l.BeforeAmount, l.AfterAmount, l.Currency, l.RefNo, l.RoundID, l.Remark, l.TraceID, now}

	_, err := exec.ExecContext(ctx, sqlStr, args...)
	return err
}

// ListUserLedger 查询用户账本流水（倒序）
func ListUserLedger(ctx context.Context, db *sqlx.DB, userID int64, limit int) ([]WalletLedger, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	sqlStr := `SELECT id, user_id, biz_type, biz_type_str, amount, before_amount, after_amount, currency, ref_no, round_id, remark, trace_id, created_at
		FROM wallet_ledger WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	var out []WalletLedger
	if err := db.SelectContext(ctx, &out, sqlStr, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
