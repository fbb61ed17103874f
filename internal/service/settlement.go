package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"

	"github.com/jmoiron/sqlx"
	decimal "github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
)

// 处理开奖结算业务逻辑
const (
	BIZ_TYPE_SETTLE = 2
)

var (
	ErrAlreadyFinalized = errors.New("round already finalized")
)

// 结算事务超时：一局票量可达数千，放宽到10秒
const settleTxTimeout = 10 * time.Second

// 开奖结果缓存 TTL
const roundResultTTL = 24 * time.Hour

// SettlementService 开奖与结算
type SettlementService interface {
	// FinalizeRound 对指定局执行开奖+结算+计数器推进，整体原子。
	// 重复调用幂等：已结算返回 ErrAlreadyFinalized。
	FinalizeRound(ctx context.Context, roundID int64, operator, traceID string) error
}

type settlementService struct {
	rng *rand.Rand
}

// NewSettlementService rng 为开奖随机源，传 nil 使用时间种子
func NewSettlementService(rng *rand.Rand) SettlementService {
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return &settlementService{rng: rng}
}

// FinalizeRound 结算主流程：
// 锁局 -> 已结算守卫 -> 锁票 -> 锁周期计数器 -> 计算开奖 -> 结算日志(唯一键兜底) ->
// 写开奖号码翻转标志 -> 中奖派彩+账本 -> 标记输票 -> 写回计数器 -> 审计 -> Outbox -> 提交
// 三层幂等：is_finished 标志、settlement_log 唯一键、票面 winning 只写一次
func (s *settlementService) FinalizeRound(ctx context.Context, roundID int64, operator, traceID string) error {

	start := time.Now()
	result := "fail"
	outcome := "no_winner"
	defer func() { metrics.RecordSettle(result, outcome, start) }()

	fmt.Printf("[Settle]  开始结算: round_id=%d, operator=%s, trace_id=%s\n", roundID, operator, traceID)

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, settleTxTimeout)
		txCtx = c
		defer cancel()
	}
	tx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		fmt.Printf("[Settle] 开启事务失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// 第一层幂等：锁局并检查标志位
	round, err := model.GetRoundForUpdate(txCtx, tx, roundID)
	if err != nil {
		fmt.Printf("[Settle]  查询局失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return fmt.Errorf("failed to get round: %w", err)
	}
	if round.IsFinished == 1 {
		fmt.Printf("[Settle]  该局已结算，跳过: round_id=%d, trace_id=%s\n", roundID, traceID)
		return ErrAlreadyFinalized
	}

	// 状态机推演：accepting 局（管理端强制结算）先走一次窗口到期
	prevState := state.FromFlags(round.IsAccepting == 1, false)
	cur := prevState
	if cur == state.StateAccepting {
		if cur, err = state.NextState(cur, state.EvtExpire); err != nil {
			return err
		}
	}
	nextState, err := state.NextState(cur, state.EvtSettle)
	if err != nil {
		fmt.Printf("[Settle]  非法状态转换: round_id=%d, state=%s, trace_id=%s\n", roundID, prevState, traceID)
		return err
	}

	// 锁定本局全部票
	tickets, err := model.ListTicketsByRoundForUpdate(txCtx, tx, roundID)
	if err != nil {
		fmt.Printf("[Settle]  锁定票失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return fmt.Errorf("failed to lock tickets: %w", err)
	}

	// 锁定周期计数器（读-判-写全程持锁，推进串行化）
	cycleCounter, err := model.GetOrCreateCycleCounterForUpdate(txCtx, tx)
	if err != nil {
		fmt.Printf("[Settle]  读取周期计数器失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return fmt.Errorf("failed to read cycle counter: %w", err)
	}

	// 计算开奖结果（纯内存）
	dr := ComputeDraw(tickets, cycleCounter, s.rng)
	drawJSON, _ := json.Marshal(dr.Draw)

	winnerCode := ""
	totalPayout := 0.0
	if dr.Winner != nil {
		winnerCode = dr.Winner.TicketCode
		totalPayout = dr.WinAmount
	}

	// 第二层幂等：结算日志唯一键，并发结算的第二个事务在此撞键
	slog := &model.SettlementLog{
		RoundID:      roundID,
		Draw:         string(drawJSON),
		WinnerTicket: winnerCode,
		TotalTickets: len(tickets),
		TotalPayout:  totalPayout,
		CycleCounter: cycleCounter,
		Operator:     operator,
		TraceID:      traceID,
	}
	if err := model.CreateSettlementLog(txCtx, tx, slog); err != nil {
		if model.IsDuplicateKeyErr(err) {
			fmt.Printf("[Settle]  结算日志已存在，跳过: round_id=%d, trace_id=%s\n", roundID, traceID)
			return ErrAlreadyFinalized
		}
		fmt.Printf("[Settle]  写结算日志失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	// 写开奖号码并翻转标志位
	if err := model.FinalizeRoundWrite(txCtx, tx, roundID, string(drawJSON)); err != nil {
		fmt.Printf("[Settle]  写开奖号码失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	// 中奖派彩：锁钱包 -> 加余额 -> 账本；派彩失败整体回滚，绝不半提交
	var winnerID int64
	if dr.Winner != nil {
		winnerID = dr.Winner.ID
		outcome = "winner"
		if err := s.creditWinner(txCtx, tx, dr, roundID, traceID); err != nil {
			fmt.Printf("[Settle]  派彩失败: error=%v, round_id=%d, ticket_code=%s, trace_id=%s\n",
				err, roundID, winnerCode, traceID)
			return err
		}
	}

	// 标记未中奖票（excludeID=0 表示本局无中奖票）
	if err := model.MarkTicketsLost(txCtx, tx, roundID, winnerID); err != nil {
		fmt.Printf("[Settle]  标记输票失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	// 写回周期计数器（与开奖同事务，进程重启不丢）
	if err := model.UpdateCycleCounter(txCtx, tx, dr.NextCounter); err != nil {
		fmt.Printf("[Settle]  写回周期计数器失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	// 审计
	auditPayload, _ := json.Marshal(map[string]any{
		"draw":          dr.Draw,
		"winner_ticket": winnerCode,
		"matched":       dr.Matched,
		"total_payout":  totalPayout,
		"cycle_counter": cycleCounter,
		"next_counter":  dr.NextCounter,
	})
	audit := &model.RoundAudit{
		RoundID:   roundID,
		EventType: model.RoundEventFinalize,
		PrevState: prevState,
		NextState: nextState,
		Operator:  operator,
		Payload:   string(auditPayload),
		TraceID:   traceID,
	}
	if err := audit.Insert(txCtx, tx); err != nil {
		fmt.Printf("[Settle]  写审计失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	// Outbox 消息（异步通知）
	payload := map[string]any{
		"event":         "round_finalized",
		"round_id":      roundID,
		"draw":          dr.Draw,
		"winner_ticket": winnerCode,
		"total_payout":  totalPayout,
	}
	bizKey := fmt.Sprintf("round-%d", roundID)
	if err := model.CreateOutbox(txCtx, tx, "round_finalized", bizKey, payload); err != nil {
		fmt.Printf("[Settle]  写入 Outbox 失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	if err := tx.Commit(); err != nil {
		fmt.Printf("[Settle]  提交事务失败: error=%v, round_id=%d, trace_id=%s\n", err, roundID, traceID)
		return err
	}

	result = "success"
	fmt.Printf("[Settle]  结算完成: round_id=%d, draw=%v, winner=%s, payout=%.2f, cycle=%d->%d, trace_id=%s\n",
		roundID, dr.Draw, winnerCode, totalPayout, cycleCounter, dr.NextCounter, traceID)

	// 写入 Redis 开奖结果缓存（降级容错）
	if r := infrds.Client(); r != nil {
		cached := map[string]any{
			"round_id":      roundID,
			"draw":          dr.Draw,
			"winner_ticket": winnerCode,
			"total_payout":  totalPayout,
			"finalized_at":  time.Now().UnixMilli(),
		}
		if b, e := json.Marshal(cached); e == nil {
			_ = r.Set(ctx, infrds.RoundResultKey(fmt.Sprint(roundID)), b, roundResultTTL).Err()
		}
		_ = r.Del(ctx, infrds.KeyCurrentRound).Err()
	}

	return nil
}

// creditWinner 中奖派彩：锁定钱包档案，加余额并写账本
func (s *settlementService) creditWinner(ctx context.Context, tx *sqlx.Tx, dr DrawResult, roundID int64, traceID string) error {
	winner := dr.Winner

	profile, err := model.GetOrCreateProfileForUpdate(ctx, tx, winner.UserID)
	if err != nil {
		return fmt.Errorf("failed to lock winner profile: %w", err)
	}

	winDec := decimal.NewFromFloat(dr.WinAmount)
	beforeDec := decimal.NewFromFloat(profile.Balance)
	afterDec := beforeDec.Add(winDec)

	if err := model.UpdateProfileBalance(ctx, tx, winner.UserID, afterDec.Round(2).InexactFloat64()); err != nil {
		return err
	}

	ledger := &model.WalletLedger{
		UserID:       winner.UserID,
		BizType:      BIZ_TYPE_SETTLE, //2
		BizTypeStr:   "settle",        // 冗余
		Amount:       winDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Currency:     winner.Currency,
		RefNo:        winner.TicketCode,
		RoundID:      roundID,
		Remark:       fmt.Sprintf("win payout matched=%d", dr.Matched),
		TraceID:      traceID,
	}
	if err := ledger.Insert(ctx, tx); err != nil {
		return err
	}

	return model.UpdateTicketWin(ctx, tx, winner.ID, winDec.Round(2).InexactFloat64())
}
