package model

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// 充值单状态
const (
	TxStatusPending   int8 = 0 // 待支付
	TxStatusCompleted int8 = 1 // 已到账
	TxStatusFailed    int8 = 2 // 失败/超时
)

// Transaction 对应 transactions 表（充值单）
// reference 为支付网关侧唯一参考号（唯一键），到账确认以它做幂等
type Transaction struct {
	ID        int64   `db:"id"`
	UserID    int64   `db:"user_id"`
	Reference string  `db:"reference"` // 网关参考号(唯一)
	Amount    float64 `db:"amount"`
	Currency  string  `db:"currency"`
	Gateway   string  `db:"gateway"` // paystack / flutterwave
	Status    int8    `db:"status"`
	TraceID   string  `db:"trace_id"`
	CreatedAt int64   `db:"created_at"`
	UpdatedAt int64   `db:"updated_at"`
}

const transactionCols = "id, user_id, reference, amount, currency, gateway, status, trace_id, created_at, updated_at"

// Insert 创建待支付充值单
func (t *Transaction) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := `INSERT INTO transactions (user_id, reference, amount, currency, gateway, status, trace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := exec.ExecContext(ctx, sqlStr, t.UserID, t.Reference, t.Amount, t.Currency, t.Gateway, TxStatusPending, t.TraceID, now, now)
	if err != nil {
		return err
	}
	id, _ := res.LastInsertId()
	t.ID = id
	return nil
}

// GetTransactionByRefForUpdate 按参考号加锁查询，须在事务中调用（到账确认路径）
func GetTransactionByRefForUpdate(ctx context.Context, exec sqlx.ExtContext, reference string) (*Transaction, error) {
	sqlStr := "SELECT " + transactionCols + " FROM transactions WHERE reference = ? FOR UPDATE"
	var t Transaction
	if err := sqlx.GetContext(ctx, exec, &t, sqlStr, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// MarkTransactionStatus 推进充值单状态（调用方负责持锁并校验前置状态）
func MarkTransactionStatus(ctx context.Context, exec sqlx.ExtContext, id int64, status int8) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, status, now, id)
	return err
}

// ListUserTransactions 查询用户充值记录（倒序）
func ListUserTransactions(ctx context.Context, db *sqlx.DB, userID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	sqlStr := "SELECT " + transactionCols + " FROM transactions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?"
	var out []Transaction
	if err := db.SelectContext(ctx, &out, sqlStr, userID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
