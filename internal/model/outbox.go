package model

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

// outbox 状态
const (
	OutboxStatusPending int8 = 1
	OutboxStatusSent    int8 = 2
	OutboxStatusDead    int8 = 3
)

// outboxMaxRetry 投递重试上限，达到后标记为永久失败
const outboxMaxRetry = 10

// Outbox 对应 outbox 表（事务消息表）
// 业务事务内落表，由调度器异步投递到 MQ，保证与业务写同生共死
type Outbox struct {
	ID         int64  `db:"id"`          // 自增ID
	Topic      string `db:"topic"`       // 主题
	BizKey     string `db:"biz_key"`     // 业务键（票码/局ID，消费侧去重用）
	Payload    string `db:"payload"`     // 消息体(JSON字符串)
	Status     int8   `db:"status"`      // 状态
	RetryCount int    `db:"retry_count"` // 重试次数
	LastError  string `db:"last_error"`  // 最后一次错误
	CreatedAt  int64  `db:"created_at"`  // 创建时间
	UpdatedAt  int64  `db:"updated_at"`  // 更新时间
}

// Insert 插入一条 Outbox 记录（状态默认待发送）
func (o *Outbox) Insert(ctx context.Context, exec sqlx.ExtContext) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO outbox (topic, biz_key, payload, status, retry_count, last_error, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"
	_, err := exec.ExecContext(ctx, sqlStr, o.Topic, o.BizKey, o.Payload, OutboxStatusPending, 0, "", now, now)
	return err
}

// OutboxRow 调度器扫描用的轻量投影
type OutboxRow struct {
	ID      int64  `db:"id"`
	Topic   string `db:"topic"`
	BizKey  string `db:"biz_key"`
	Payload string `db:"payload"`
}

// ListOutboxPending 查询待发送记录（重试次数达到上限的不再捞取）
func ListOutboxPending(ctx context.Context, exec sqlx.ExtContext, limit int) ([]OutboxRow, error) {
	sqlStr := "SELECT id, topic, biz_key, payload FROM outbox WHERE status = ? AND retry_count < ? ORDER BY id ASC LIMIT ?"
	var list []OutboxRow
	if err := sqlx.SelectContext(ctx, exec, &list, sqlStr, OutboxStatusPending, outboxMaxRetry, limit); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkOutboxSent 标记一条记录为已发送
func MarkOutboxSent(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE outbox SET status = ?, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, OutboxStatusSent, now, id)
	return err
}

// MarkOutboxFailed 记录一次投递失败
// 重试次数即将达到上限时置为永久失败，否则保持待发送继续重试
func MarkOutboxFailed(ctx context.Context, exec sqlx.ExtContext, id int64, lastError string) error {
	now := time.Now().UnixMilli()
	sqlStr := "UPDATE outbox SET status = CASE WHEN retry_count >= ? THEN ? ELSE ? END, last_error = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?"
	_, err := exec.ExecContext(ctx, sqlStr, outboxMaxRetry-1, OutboxStatusDead, OutboxStatusPending, lastError, now, id)
	return err
}

// CreateOutbox 序列化 payload 后落一条 outbox
func CreateOutbox(ctx context.Context, exec sqlx.ExtContext, topic, bizKey string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return (&Outbox{Topic: topic, BizKey: bizKey, Payload: string(b)}).Insert(ctx, exec)
}
