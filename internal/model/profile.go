package model

import (
	"context"
	"database/sql"
	"time"

	"lotto-server/common/logger"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Profile 钱包档案表（与用户一对一）
// balance 非负由业务前置校验保证（扣款前必须在同一事务内加锁校验），无DB约束
// 银行信息与提现审批字段服务于提现资格校验（48小时冷静期）
type Profile struct {
	ID                int64   `db:"id"`                  // 自增ID
	UserID            int64   `db:"user_id"`             // 用户ID（唯一）
	Balance           float64 `db:"balance"`             // 余额
	BankAccountNumber string  `db:"bank_account_number"` // 银行账号
	BankName          string  `db:"bank_name"`           // 银行名称
	BankInfoSubmitted int64   `db:"bank_info_submitted"` // 银行信息提交时间（毫秒, 0=未提交）
	WithdrawApproved  int8    `db:"withdraw_approved"`   // 提现资格: 1=已审批
	WithdrawApprovedAt int64  `db:"withdraw_approved_at"` // 审批时间（毫秒）
	Status            int8    `db:"status"`              // 状态: 1=正常 0=禁用
	CreatedAt         int64   `db:"created_at"`          // 创建时间
	UpdatedAt         int64   `db:"updated_at"`          // 更新时间
}

const profileCols = `id, user_id, balance, bank_account_number, bank_name, bank_info_submitted,
	withdraw_approved, withdraw_approved_at, status, created_at, updated_at`

// GetProfileByUser 按用户ID查询档案（无锁）
func GetProfileByUser(ctx context.Context, db *sqlx.DB, userID int64) (*Profile, error) {
	query := "SELECT " + profileCols + " FROM profiles WHERE user_id = ? LIMIT 1"
	var p Profile
	if err := db.GetContext(ctx, &p, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get profile failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

// GetProfileForUpdate 按用户ID加锁查询档案，必须在事务中调用
// 余额的读-改-写必须全程持有该行锁
func GetProfileForUpdate(ctx context.Context, exec sqlx.ExtContext, userID int64) (*Profile, error) {
	query := "SELECT " + profileCols + " FROM profiles WHERE user_id = ? FOR UPDATE"
	var p Profile
	if err := sqlx.GetContext(ctx, exec, &p, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		logger.Error("get profile for update failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

// UpdateProfileBalance 更新余额（调用方负责持有行锁并已完成校验）
func UpdateProfileBalance(ctx context.Context, exec sqlx.ExtContext, userID int64, newBalance float64) error {
	now := time.Now().UnixMilli()
	query := "UPDATE profiles SET balance = ?, updated_at = ? WHERE user_id = ?"
	if _, err := exec.ExecContext(ctx, query, newBalance, now, userID); err != nil {
		logger.Error("update balance failed",
			zap.Int64("user_id", userID),
			zap.Float64("new_balance", newBalance),
			zap.Error(err))
		return err
	}
	return nil
}

// GetOrCreateProfileForUpdate 在事务中获取档案，不存在则创建后重新加锁
// 并发创建时依赖 user_id 唯一索引，冲突后回退为加锁查询
func GetOrCreateProfileForUpdate(ctx context.Context, exec sqlx.ExtContext, userID int64) (*Profile, error) {
	p, err := GetProfileForUpdate(ctx, exec, userID)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now().UnixMilli()
	query := `INSERT INTO profiles (user_id, balance, bank_account_number, bank_name, bank_info_submitted,
		withdraw_approved, withdraw_approved_at, status, created_at, updated_at)
		VALUES (?, 0.00, '', '', 0, 0, 0, 1, ?, ?)`
	res, err := exec.ExecContext(ctx, query, userID, now, now)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return GetProfileForUpdate(ctx, exec, userID)
		}
		return nil, err
	}
	id, _ := res.LastInsertId()
	return &Profile{ID: id, UserID: userID, Status: 1, CreatedAt: now, UpdatedAt: now}, nil
}

// SubmitBankInfo 提交银行信息（仅允许一次，重复提交由业务层拒绝）
func SubmitBankInfo(ctx context.Context, exec sqlx.ExtContext, userID int64, accountNumber, bankName string) error {
	now := time.Now().UnixMilli()
	query := `UPDATE profiles SET bank_account_number = ?, bank_name = ?, bank_info_submitted = ?,
		withdraw_approved = 0, withdraw_approved_at = 0, updated_at = ? WHERE user_id = ?`
	_, err := exec.ExecContext(ctx, query, accountNumber, bankName, now, now, userID)
	return err
}

// ApproveWithdrawInfo 管理端审批提现资格
func ApproveWithdrawInfo(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	now := time.Now().UnixMilli()
	query := "UPDATE profiles SET withdraw_approved = 1, withdraw_approved_at = ?, updated_at = ? WHERE user_id = ?"
	_, err := exec.ExecContext(ctx, query, now, now, userID)
	return err
}
