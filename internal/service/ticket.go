package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	chelper "lotto-server/common/helper"
	ichelper "lotto-server/internal/common/helper"
	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
)

// 处理购票业务逻辑
const (
	BIZ_TYPE_TICKET = 1
)

// BuyInput 输入参数
// 所有字段均为必填
type BuyInput struct {
	UserID         int64
	Numbers        []int  // 去重后恰好6个 1..90 整数
	Amount         string // 金额字符串（最多两位小数）
	IdempotencyKey string
	TraceID        string
}

type BuyOutput struct {
	TicketCode   string
	RoundID      int64
	RemainAmount string // 剩余金额
}

type TicketService interface {
	Buy(ctx context.Context, in BuyInput) (*BuyOutput, error)
	GetByCode(ctx context.Context, code string) (*model.Ticket, error)
	ListMine(ctx context.Context, userID int64, limit int) ([]model.Ticket, error)
}

type ticketService struct{}

func NewTicketService() TicketService { return &ticketService{} }

const (
	// Redis 进行中锁 TTL：建议小于最短售票窗口，避免长时间阻塞重复请求
	idemLockTTL = 45 * time.Second
	// 结果缓存 TTL：用于重复请求直接返回第一次成功结果；应覆盖到大多数“短时重试”窗口
	idemResultTTL = 1 * time.Minute
)

// 默认事务超时时间，防止长事务占用资源影响并发（若上游已有 deadline，则沿用上游）
const defaultTxTimeout = 3 * time.Second

// ticketCodeAlphabet 票码字符集：大写字母+数字
const ticketCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// ticketCodeLen 票码长度
const ticketCodeLen = 8

// Redis key 构造见 internal/infra/redis/keys.go
var (
	ErrDuplicateInFlight    = errors.New("duplicate request in flight")
	ErrNoActiveRound        = errors.New("no active round accepting tickets")
	ErrRoundWindowClosed    = errors.New("ticket window closed")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidNumbers       = errors.New("invalid numbers")
	ErrTicketCodeExhausted  = errors.New("ticket code generation exhausted retries")
)

// Buy 处理购票主流程：
// 校验号码与金额 -> Redis 幂等快路径 -> 事务内锁局校验窗口 -> 占幂等键 -> 锁钱包扣款 -> 落票 -> Outbox
func (s *ticketService) Buy(ctx context.Context, in BuyInput) (*BuyOutput, error) {

	start := time.Now()
	result := "fail"
	defer func() { metrics.RecordPlay(result, start) }()

	// ========== 购票入参解析和验证==========
	// 1. 校验号码（个数/范围/去重）
	// 2. 解析金额字符串
	// 3. 验证金额为正数
	// 4. 验证最小/最大购票限制
	// ================================================

	nums, ok, msg := ichelper.ValidateNumbers(in.Numbers)
	if !ok {
		fmt.Printf("[Play]  号码不合法: numbers=%v, reason=%s, trace_id=%s\n",
			in.Numbers, msg, in.TraceID)
		return nil, ErrInvalidNumbers
	}
	in.Numbers = nums

	// 解析购票金额
	amtDec, err := decimal.NewFromString(strings.TrimSpace(in.Amount))
	if err != nil {
		fmt.Printf("[Play]  无效的金额格式: amount=%s, error=%v, trace_id=%s\n",
			in.Amount, err, in.TraceID)
		return nil, errors.New("invalid amount format")
	}

	// 验证金额必须大于0
	if amtDec.LessThanOrEqual(decimal.Zero) {
		fmt.Printf("[Play]  金额必须大于0: amount=%s, trace_id=%s\n",
			in.Amount, in.TraceID)
		return nil, errors.New("amount must be positive")
	}

	// 验证最小购票限制（0.01）
	minAmt := decimal.NewFromFloat(0.01)
	if amtDec.LessThan(minAmt) {
		fmt.Printf("[Play]  金额低于最小限制: amount=%s, min=%s, trace_id=%s\n",
			in.Amount, minAmt.String(), in.TraceID)
		return nil, fmt.Errorf("amount below minimum limit: %s", minAmt.String())
	}

	// 验证最大购票限制（1,000,000）
	maxAmt := decimal.NewFromInt(1000000)
	if amtDec.GreaterThan(maxAmt) {
		fmt.Printf("[Play]  金额超过最大限制: amount=%s, max=%s, trace_id=%s\n",
			in.Amount, maxAmt.String(), in.TraceID)
		return nil, fmt.Errorf("amount exceeds maximum limit: %s", maxAmt.String())
	}

	// 打印接收到的购票请求
	fmt.Printf("[Play]  收到购票请求: user_id=%d, numbers=%v, amount=%s, idem_key=%s, trace_id=%s\n",
		in.UserID, in.Numbers, in.Amount, in.IdempotencyKey, in.TraceID)

	// Redis 快路径：若已有结果缓存，直接返回
	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
			var out BuyOutput
			if json.Unmarshal(bs, &out) == nil {
				fmt.Printf("[Play]  Redis 缓存命中: idem_key=%s, ticket_code=%s, trace_id=%s\n",
					in.IdempotencyKey, out.TicketCode, in.TraceID)
				result = "success"
				return &out, nil
			}
		}

		// 生成唯一锁值，防止误删其他请求的锁
		lockValue := uuid.New().String()
		lockKey := infrds.IdemLockKey(in.IdempotencyKey)

		// 进行中锁，吸收瞬时重复
		ok, _ := r.SetNX(ctx, lockKey, lockValue, idemLockTTL).Result()
		if !ok {
			// 检查是否有缓存的结果
			if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
				var out BuyOutput
				if json.Unmarshal(bs, &out) == nil {
					fmt.Printf("[Play] Redis 缓存命中（重复请求）: idem_key=%s, ticket_code=%s, trace_id=%s\n",
						in.IdempotencyKey, out.TicketCode, in.TraceID)
					result = "success"
					return &out, nil
				}
			}
			fmt.Printf("[Play]  重复请求进行中: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			return nil, ErrDuplicateInFlight
		}

		// 使用 Lua 脚本原子释放锁（仅当锁值匹配时删除）
		defer func() {
			script := `
				if redis.call("get", KEYS[1]) == ARGV[1] then
					return redis.call("del", KEYS[1])
				else
					return 0
				end
			`
			res, err := r.Eval(ctx, script, []string{lockKey}, lockValue).Result()
			if err != nil {
				fmt.Printf("[Play] 释放分布式锁失败: idem_key=%s, error=%v, trace_id=%s\n",
					in.IdempotencyKey, err, in.TraceID)
			} else if res == int64(0) {
				fmt.Printf("[Play] 分布式锁已被其他请求释放或过期: idem_key=%s, trace_id=%s\n",
					in.IdempotencyKey, in.TraceID)
			}
		}()
	}

	// 开启 MySQL 事务（带默认超时，防止长事务影响并发）。
	// 若上游 ctx 已设置 deadline，则沿用；否则使用默认 defaultTxTimeout。
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Play] 开启事务失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// 锁定当前售票局并校验窗口
	round, err := model.GetAcceptingRoundForUpdate(txCtx, tx)
	if err != nil {
		fmt.Printf("[Play]  查询售票局失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, fmt.Errorf("failed to get accepting round: %w", err)
	}
	if round == nil {
		fmt.Printf("[Play]  当前无售票中的局: trace_id=%s\n", in.TraceID)
		return nil, ErrNoActiveRound
	}

	// 验证时间窗口：到期但尚未被调度器翻牌的局同样拒绝（accept_until 时刻即关闭）
	now := time.Now().UnixMilli()
	if !state.AcceptingWindowOpen(now, round.AcceptUntil) {
		fmt.Printf("[Play] 售票窗口已关闭: now=%d, accept_until=%d, round_id=%d, trace_id=%s\n",
			now, round.AcceptUntil, round.ID, in.TraceID)
		return nil, ErrRoundWindowClosed
	}

	// 生成票码（8位大写字母+数字，碰撞重试）
	ticketCode, err := generateTicketCode(txCtx, tx)
	if err != nil {
		fmt.Printf("[Play]  生成票码失败: error=%v, trace_id=%s\n", err, in.TraceID)
		return nil, err
	}

	// 幂等：先占幂等键，ref 记录票码
	if err := (&model.IdempotencyKey{IdempotencyKey: in.IdempotencyKey, Purpose: "play", Ref: ticketCode}).Insert(ctx, tx); err != nil {
		// 若幂等冲突：尝试返回上次结果
		if me, ok := err.(*mysqlerr.MySQLError); ok && me.Number == 1062 {
			fmt.Printf("[Play]  幂等键冲突，尝试返回上次结果: idem_key=%s, trace_id=%s\n",
				in.IdempotencyKey, in.TraceID)
			_ = tx.Rollback()
			// Redis 先查
			if r := infrds.Client(); r != nil {
				if bs, _ := r.Get(ctx, infrds.IdemResultKey(in.IdempotencyKey)).Bytes(); len(bs) > 0 {
					var out BuyOutput
					if json.Unmarshal(bs, &out) == nil {
						fmt.Printf("[Play]  从 Redis 返回上次结果: ticket_code=%s, trace_id=%s\n",
							out.TicketCode, in.TraceID)
						result = "success"
						return &out, nil
					}
				}
			}
			// DB 回源：根据幂等键查票码，再查票与余额
			ref, e1 := model.SelectRefByIdemKey(txCtx, infmysql.SQLX(), in.IdempotencyKey)
			if e1 == nil && ref != "" {
				t, e2 := model.GetTicketByCode(txCtx, infmysql.SQLX(), ref)
				if e2 == nil {
					p, e3 := model.GetProfileByUser(txCtx, infmysql.SQLX(), in.UserID)
					if e3 == nil {
						fmt.Printf("[Play]  从数据库返回上次结果: ticket_code=%s, trace_id=%s\n",
							ref, in.TraceID)
						result = "success"
						return &BuyOutput{
							TicketCode:   ref,
							RoundID:      t.RoundID,
							RemainAmount: chelper.TrimDecimal(decimal.NewFromFloat(p.Balance)),
						}, nil
					}
				}
			}
		}
		fmt.Printf("[Play]  插入幂等键失败: error=%v, idem_key=%s, trace_id=%s\n",
			err, in.IdempotencyKey, in.TraceID)
		return nil, fmt.Errorf("idempotency conflict or insert failed: %w", err)
	}

	// 锁定钱包档案并校验余额（decimal 比较）
	profile, err := model.GetOrCreateProfileForUpdate(txCtx, tx, in.UserID)
	if err != nil {
		fmt.Printf("[Play]  获取钱包档案失败: error=%v, user_id=%d, trace_id=%s\n",
			err, in.UserID, in.TraceID)
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile.Status != 1 {
		fmt.Printf("[Play]  用户状态异常: user_id=%d, status=%d, trace_id=%s\n",
			in.UserID, profile.Status, in.TraceID)
		return nil, errors.New("user disabled")
	}
	if decimal.NewFromFloat(profile.Balance).Cmp(amtDec) < 0 {
		return nil, ErrInsufficientBalance
	}

	beforeDec := decimal.NewFromFloat(profile.Balance)
	afterDec := beforeDec.Sub(amtDec)

	// 更新余额（两位小数）
	if err := model.UpdateProfileBalance(txCtx, tx, in.UserID, afterDec.Round(2).InexactFloat64()); err != nil {
		return nil, err
	}

	currency := currentCurrency()

	// 写账本，此处为扣款
	ledger := &model.WalletLedger{
		UserID:       in.UserID,
		BizType:      BIZ_TYPE_TICKET, //1
		BizTypeStr:   "ticket",        // 冗余
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Currency:     currency,
		RefNo:        ticketCode,
		RoundID:      round.ID,
		Remark:       "ticket deduct",
		TraceID:      in.TraceID,
	}
	if err := ledger.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Play]  写入账本失败: error=%v, ticket_code=%s, trace_id=%s\n",
			err, ticketCode, in.TraceID)
		return nil, err
	}

	// 落票（号码升序入库）
	ticket := &model.Ticket{
		TicketCode: ticketCode,
		UserID:     in.UserID,
		RoundID:    round.ID,
		Numbers:    model.EncodeNumbers(in.Numbers),
		Amount:     amtDec.Round(2).InexactFloat64(),
		Currency:   currency,
		TraceID:    in.TraceID,
	}
	if err := ticket.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Play]  创建票失败: error=%v, ticket_code=%s, trace_id=%s\n",
			err, ticketCode, in.TraceID)
		return nil, err
	}

	// Outbox 消息（异步）
	payload := map[string]any{
		"event":       "ticket_purchased",
		"ticket_code": ticketCode,
		"user_id":     in.UserID,
		"round_id":    round.ID,
		"amount":      amtDec.Round(2).InexactFloat64(),
	}
	if err := model.CreateOutbox(txCtx, tx, "ticket_purchased", ticketCode, payload); err != nil {
		fmt.Printf("[Play]  写入 Outbox 失败: error=%v, ticket_code=%s, trace_id=%s\n",
			err, ticketCode, in.TraceID)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Play]  提交事务失败: error=%v, ticket_code=%s, trace_id=%s\n",
			err, ticketCode, in.TraceID)
		return nil, err
	}

	result = "success"
	out := &BuyOutput{TicketCode: ticketCode, RoundID: round.ID, RemainAmount: chelper.TrimDecimal(afterDec)}

	// 写入 Redis 结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		if b, e := json.Marshal(out); e == nil {
			_ = r.Set(ctx, infrds.IdemResultKey(in.IdempotencyKey), b, idemResultTTL).Err()
		}
	}

	return out, nil
}

// GetByCode 按票码查询
func (s *ticketService) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
	return model.GetTicketByCode(ctx, infmysql.SQLX(), code)
}

// ListMine 查询用户近期的票
func (s *ticketService) ListMine(ctx context.Context, userID int64, limit int) ([]model.Ticket, error) {
	return model.ListUserTickets(ctx, infmysql.SQLX(), userID, limit)
}

// generateTicketCode 生成8位大写字母+数字的票码
// 票码上有唯一索引，这里查重后插入仍可能撞键，由事务整体失败兜底
func generateTicketCode(ctx context.Context, tx *sqlx.Tx) (string, error) {
	const maxRetries = 5
	for i := 0; i < maxRetries; i++ {
		b := make([]byte, ticketCodeLen)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		for j := range b {
			b[j] = ticketCodeAlphabet[int(b[j])%len(ticketCodeAlphabet)]
		}
		code := string(b)

		exists, err := model.TicketCodeExists(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		fmt.Printf("[Play] 票码碰撞，重试: code=%s, attempt=%d\n", code, i+1)
	}
	return "", ErrTicketCodeExhausted
}
