package worker

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"
	beego "github.com/beego/beego/v2/server/web"

	"lotto-server/common/logger"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/model"
	"lotto-server/internal/service"

	"go.uber.org/zap"
)

// StartDepositConsumer 启动 RocketMQ v5 SimpleConsumer，消费支付网关的到账/失败事件
// 消息先落 inbox 表去重，再按参考号幂等入账（入账本身还有充值单状态守卫兜底）
// 配置项：
// - rocketmq_endpoint 或 rocketmq_namesrv
// - rocketmq_consumer_group
// - rocketmq_consume_topics（可空，默认回退到 rocketmq_producer_topics）
func StartDepositConsumer(ctx context.Context, wg *sync.WaitGroup, wallet service.WalletService) {
	// Ensure RocketMQ SDK logs go to console instead of /logs
	rmq.ResetLogger()

	endpoint, _ := beego.AppConfig.String("rocketmq_endpoint")
	if endpoint == "" {
		endpoint, _ = beego.AppConfig.String("rocketmq_namesrv")
	}
	if endpoint == "" {
		return
	}
	// sanitize endpoint: trim, strip scheme, pick first if contains ',' or ';'
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	logger.Info("[mq] consumer endpoint", zap.String("endpoint", endpoint))

	group, _ := beego.AppConfig.String("rocketmq_consumer_group")
	if group == "" {
		logger.Warn("[mq] consumer not started: empty rocketmq_consumer_group")
		return
	}
	topicsStr, _ := beego.AppConfig.String("rocketmq_consume_topics")
	if topicsStr == "" {
		topicsStr, _ = beego.AppConfig.String("rocketmq_producer_topics")
	}
	if topicsStr == "" {
		logger.Warn("[mq] consumer not started: empty topics")
		return
	}
	ak, _ := beego.AppConfig.String("rocketmq_access_key")
	sk, _ := beego.AppConfig.String("rocketmq_secret_key")
	if strings.TrimSpace(ak) == "" || strings.TrimSpace(sk) == "" {
		logger.Warn("[mq] consumer not started: missing access/secret key")
		return
	}
	cfg := &rmq.Config{Endpoint: endpoint, ConsumerGroup: group}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: ak, AccessSecret: sk}

	// 构造订阅表达式：多个 topic，默认 SUB_ALL
	subs := map[string]*rmq.FilterExpression{}
	for _, t := range strings.Split(topicsStr, ",") {
		t = strings.TrimSpace(strings.ReplaceAll(t, ".", "_"))
		if t == "" {
			continue
		}
		subs[t] = rmq.SUB_ALL
	}

	awaitDuration := 5 * time.Second
	maxMessageNum := int32(16)
	invisibleDuration := 20 * time.Second

	// 尝试启动 SimpleConsumer（带重试，避免容器刚启动未就绪导致一次性失败）
	var sc rmq.SimpleConsumer
	var err error
	for i := 0; i < 6; i++ { // 最长约 6*3s = 18s
		sc, err = rmq.NewSimpleConsumer(cfg,
			rmq.WithSimpleAwaitDuration(awaitDuration),
			rmq.WithSimpleSubscriptionExpressions(subs),
		)
		if err == nil {
			if e := sc.Start(); e == nil {
				break
			} else {
				err = e
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		logger.Error("[mq] start simple consumer failed", zap.Error(err))
		return
	}
	logger.Info("[mq] deposit consumer started", zap.String("group", group), zap.String("topics", topicsStr))

	wg.Add(1)

	go func() {
		defer wg.Done()

		defer sc.GracefulStop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				mvs, err := sc.Receive(ctx, maxMessageNum, invisibleDuration)
				if err != nil {
					// 上下文取消则直接退出
					if ctx.Err() != nil {
						return
					}
					logger.Warn("[mq] receive error", zap.Error(err))
					continue
				}
				for _, mv := range mvs {
					id := mv.GetMessageId()
					topic := mv.GetTopic()
					body := mv.GetBody()
					if err := model.UpsertInbox(ctx, infmysql.SQLX(), id, topic, string(body), time.Now().UnixMilli()); err != nil {
						logger.Warn("[mq] upsert inbox failed", zap.String("id", id), zap.String("topic", topic), zap.Error(err))
						continue
					}
					handleDepositEvent(ctx, wallet, id, body)
					if err := sc.Ack(ctx, mv); err != nil {
						logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
					}
				}
			}
		}
	}()
}

// handleDepositEvent 处理单条支付事件
// event: deposit_completed -> 入账; deposit_failed -> 关单
// 处理失败不阻断 Ack：入账按参考号幂等，网关侧会重推终态
func handleDepositEvent(ctx context.Context, wallet service.WalletService, messageID string, body []byte) {
	var payload struct {
		Event     string `json:"event"`
		Reference string `json:"reference"`
		TraceID   string `json:"trace_id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Warn("[mq] malformed payment event", zap.String("id", messageID), zap.Error(err))
		return
	}
	if payload.Reference == "" {
		return
	}

	switch payload.Event {
	case "deposit_completed":
		if err := wallet.ConfirmDeposit(ctx, payload.Reference, payload.TraceID); err != nil {
			logger.Warn("[mq] confirm deposit failed",
				zap.String("reference", payload.Reference), zap.Error(err))
		}
	case "deposit_failed":
		if err := wallet.FailDeposit(ctx, payload.Reference, payload.TraceID); err != nil {
			logger.Warn("[mq] fail deposit failed",
				zap.String("reference", payload.Reference), zap.Error(err))
		}
	default:
		logger.Info("[mq] ignored payment event", zap.String("event", payload.Event))
	}
}
