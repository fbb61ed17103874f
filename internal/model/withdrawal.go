package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// 提现单状态机: PENDING -> APPROVED -> COMPLETED/FAILED, PENDING -> REJECTED
// 状态推进一律走条件 UPDATE（CAS），affected=0 即竞态落败
const (
	WithdrawStatusPending   int8 = 0
	WithdrawStatusApproved  int8 = 1
	WithdrawStatusCompleted int8 = 2
	WithdrawStatusFailed    int8 = 3
	WithdrawStatusRejected  int8 = 4
)

// BankWithdrawal 对应 bank_withdrawals 表
type BankWithdrawal struct {
	ID            int64   `db:"id"`
	UserID        int64   `db:"user_id"`
	Amount        float64 `db:"amount"`
	Currency      string  `db:"currency"`
	AccountNumber string  `db:"account_number"` // 申请时从档案快照
	BankName      string  `db:"bank_name"`
	Status        int8    `db:"status"`
	FailReason    string  `db:"fail_reason"` // 失败/驳回原因
	TraceID       string  `db:"trace_id"`
	CreatedAt     int64   `db:"created_at"`
	UpdatedAt     int64   `db:"updated_at"`
}

const withdrawalCols = "id, user_id, amount, currency, account_number, bank_name, status, fail_reason, trace_id, created_at, updated_at"

// Insert 创建提现申请（PENDING）
func (w *BankWithdrawal) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO bank_withdrawals (user_id, amount, currency, account_number, bank_name, status, fail_reason, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr, w.UserID, w.Amount, w.Currency, w.AccountNumber, w.BankName, WithdrawStatusPending, w.TraceID, now, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	w.ID = id
	return nil
}

// GetWithdrawal 按ID查询（无锁）
func GetWithdrawal(ctx context.Context, exec sqlx.ExtContext, id int64) (*BankWithdrawal, error) {
	sqlStr := "SELECT " + withdrawalCols + " FROM bank_withdrawals WHERE id = ? LIMIT 1"
	var w BankWithdrawal
	if err := sqlx.GetContext(ctx, exec, &w, sqlStr, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// CasWithdrawalStatus 条件推进状态，返回是否真正推进
// fromStatus 不匹配时不落库，竞态的第二个调用方据此放弃
func CasWithdrawalStatus(ctx context.Context, exec sqlx.ExtContext, id int64, fromStatus, toStatus int8, failReason string) (bool, error) {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE bank_withdrawals SET status = ?, fail_reason = ?, updated_at = ? WHERE id = ? AND status = ?"
	res, err := exec.ExecContext(ctx, sqlStr, toStatus, failReason, now, id, fromStatus)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HasPendingWithdrawal 用户是否已有未完结的提现（PENDING/APPROVED 各占一单）
func HasPendingWithdrawal(ctx context.Context, exec sqlx.ExtContext, userID int64) (bool, error) {
	var cnt int
	sqlStr := "SELECT COUNT(1) FROM bank_withdrawals WHERE user_id = ? AND status IN (?, ?)"
	if err := sqlx.GetContext(ctx, exec, &cnt, sqlStr, userID, WithdrawStatusPending, WithdrawStatusApproved); err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// ListWithdrawalsByStatus 管理端按状态拉取提现单（倒序）
func ListWithdrawalsByStatus(ctx context.Context, db *sqlx.DB, status int8, limit int) ([]BankWithdrawal, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	sqlStr := "SELECT " + withdrawalCols + " FROM bank_withdrawals WHERE status = ? ORDER BY created_at DESC LIMIT ?"
	var out []BankWithdrawal
	if err := db.SelectContext(ctx, &out, sqlStr, status, limit); err != nil {
		return nil, err
	}
	return out, nil
}
