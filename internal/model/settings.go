package model

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettingKeyCycleCounter 输赢周期计数器（1..TotalLoseRounds+1，越界回绕到1）
const SettingKeyCycleCounter = "cycle_counter"

// LotterySetting 对应 lottery_settings 表（key/value 运行时配置与计数器）
type LotterySetting struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"` // 唯一键
	Value     string `db:"value"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// GetSettingForUpdate 按名称加锁读取配置项，须在事务中调用
func GetSettingForUpdate(ctx context.Context, exec sqlx.ExtContext, name string) (*LotterySetting, error) {
	sqlStr := "SELECT id, name, value, created_at, updated_at FROM lottery_settings WHERE name = ? FOR UPDATE"
	var s LotterySetting
	if err := sqlx.GetContext(ctx, exec, &s, sqlStr, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpdateSettingValue 写回配置项（调用方持锁）
func UpdateSettingValue(ctx context.Context, exec sqlx.ExtContext, name, value string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE lottery_settings SET value = ?, updated_at = ? WHERE name = ?"
	_, err := exec.ExecContext(ctx, sqlStr, value, now, name)
	return err
}

// GetOrCreateCycleCounterForUpdate 在事务中加锁读取周期计数器，缺行则初始化为1
// 结算事务内调用：读-判-写全程持有该行锁，保证计数器推进串行化
func GetOrCreateCycleCounterForUpdate(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	s, err := GetSettingForUpdate(ctx, exec, SettingKeyCycleCounter)
	if err != nil {
		return 0, err
	}
	if s == nil {
		now := time.Now().UnixMilli()
		sqlStr := "INSERT INTO lottery_settings (name, value, created_at, updated_at) VALUES (?, '1', ?, ?)"
		if _, err := exec.ExecContext(ctx, sqlStr, SettingKeyCycleCounter, now, now); err != nil {
			if isDuplicateKeyErr(err) {
				s, err = GetSettingForUpdate(ctx, exec, SettingKeyCycleCounter)
				if err != nil {
					return 0, err
				}
			} else {
				return 0, err
			}
		} else {
			return 1, nil
		}
	}

	v, err := strconv.Atoi(s.Value)
	if err != nil || v < 1 {
		// 脏值按重新开始处理
		return 1, nil
	}
	return v, nil
}

// UpdateCycleCounter 写回周期计数器（结算事务内调用）
func UpdateCycleCounter(ctx context.Context, exec sqlx.ExtContext, value int) error {
	return UpdateSettingValue(ctx, exec, SettingKeyCycleCounter, strconv.Itoa(value))
}
