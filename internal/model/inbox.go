package model

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// Inbox 对应 inbox 表（消费幂等落库表）
// message_id+topic 唯一，支付网关回调消息的天然去重
type Inbox struct {
	ID        int64  `db:"id"`
	MessageID string `db:"message_id"` // MQ 消息ID
	Topic     string `db:"topic"`
	Payload   string `db:"payload"` // 消息体(JSON字符串)
	CreatedAt int64  `db:"created_at"`
}

// UpsertInbox 将消息按 message_id+topic 去重入库（存在则不变更 processed_at）
func UpsertInbox(ctx context.Context, exec sqlx.ExtContext, messageID, topic, payload string, processedAtMs int64) error {
	now := time.Now().UnixMilli()
	sqlStr := "INSERT INTO inbox (message_id, topic, payload, processed_at, created_at) VALUES (?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE processed_at=processed_at"
	_, err := exec.ExecContext(ctx, sqlStr, messageID, topic, payload, processedAtMs, now)
	return err
}
