package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"lotto-server/internal/config"
	infmysql "lotto-server/internal/infra/mysql"
	infrds "lotto-server/internal/infra/redis"
	"lotto-server/internal/metrics"
	"lotto-server/internal/model"
	"lotto-server/internal/state"
)

// 局生命周期推进（由定时器驱动）

// 当前局状态缓存 TTL：略大于调度间隔，调度器每次推进都会重写
const roundStatusTTL = 30 * time.Second

// RoundStatus 对外暴露的局状态快照
type RoundStatus struct {
	RoundID          int64  `json:"round_id"`
	State            string `json:"state"` // accepting | closed | finalized | break
	AcceptUntil      int64  `json:"accept_until,omitempty"`
	SecondsRemaining int64  `json:"seconds_remaining"` // 售票剩余秒数（响应时实时计算，非售票期为0）
	TicketCount      int    `json:"ticket_count,omitempty"`
	Draw             []int  `json:"draw,omitempty"`
	NextRoundETA     int64  `json:"next_round_eta,omitempty"` // 休息期：预计下一局开始时间（毫秒）
}

// fillRemaining 回填剩余秒数；缓存快照的 accept_until 固定，剩余秒数必须按当前时间算
func (st *RoundStatus) fillRemaining(nowMs int64) {
	st.SecondsRemaining = 0
	if st.State == state.StateAccepting && st.AcceptUntil > nowMs {
		st.SecondsRemaining = (st.AcceptUntil - nowMs) / 1000
	}
}

type RoundService interface {
	// Tick 推进一次生命周期，返回本次动作：noop | open | finalize
	// 串行执行：同进程内由互斥锁保证，跨进程由结算幂等守卫兜底
	Tick(ctx context.Context, operator, traceID string) (string, error)
	// CurrentStatus 查询当前局状态（Redis 缓存优先，DB 回源）
	CurrentStatus(ctx context.Context) (*RoundStatus, error)
	// Result 查询某局开奖结果
	Result(ctx context.Context, roundID int64) (*model.Round, error)
}

type roundService struct {
	mu     sync.Mutex
	settle SettlementService
}

func NewRoundService(settle SettlementService) RoundService {
	return &roundService{settle: settle}
}

// Tick 生命周期推进：
// 有售票局且窗口已过 -> 截止审计 + 开奖结算
// 无售票局且休息期已过 -> 开新局
// 其余情况 -> noop
func (s *roundService) Tick(ctx context.Context, operator, traceID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	active, err := model.GetAcceptingRound(ctx, infmysql.SQLX())
	if err != nil {
		metrics.RecordTick("error")
		fmt.Printf("[Tick] 查询售票局失败: error=%v, trace_id=%s\n", err, traceID)
		return "", err
	}

	if active != nil {
		if state.AcceptingWindowOpen(now, active.AcceptUntil) {
			metrics.RecordTick("noop")
			return "noop", nil
		}

		// 窗口已过：截止并结算
		fmt.Printf("[Tick] 售票窗口到期，触发结算: round_id=%d, accept_until=%d, now=%d, trace_id=%s\n",
			active.ID, active.AcceptUntil, now, traceID)

		if err := s.expireAudit(ctx, active.ID, operator, traceID); err != nil {
			// 审计失败不阻断结算
			fmt.Printf("[Tick] 写截止审计失败: error=%v, round_id=%d, trace_id=%s\n", err, active.ID, traceID)
		}

		if err := s.settle.FinalizeRound(ctx, active.ID, operator, traceID); err != nil {
			if err == ErrAlreadyFinalized {
				metrics.RecordTick("noop")
				return "noop", nil
			}
			metrics.RecordTick("error")
			return "", err
		}
		metrics.RecordTick("finalize")
		return "finalize", nil
	}

	// 无售票局：检查休息期（以上一局的售票截止时间为基准）
	last, err := model.GetLastFinishedRound(ctx, infmysql.SQLX())
	if err != nil {
		metrics.RecordTick("error")
		return "", err
	}
	if last != nil {
		cfg := config.GetCurrent()
		breakMS := int64(30_000)
		if cfg != nil {
			breakMS = cfg.BreakMS()
		}
		if now < last.AcceptUntil+breakMS {
			metrics.RecordTick("noop")
			return "noop", nil
		}
	}

	roundID, err := s.openRound(ctx, now, operator, traceID)
	if err != nil {
		metrics.RecordTick("error")
		return "", err
	}
	fmt.Printf("[Tick] 开新局: round_id=%d, trace_id=%s\n", roundID, traceID)
	metrics.RecordTick("open")
	return "open", nil
}

// openRound 创建新一局并刷新状态缓存
func (s *roundService) openRound(ctx context.Context, nowMs int64, operator, traceID string) (int64, error) {
	cfg := config.GetCurrent()
	durMS := int64(180_000)
	if cfg != nil {
		durMS = cfg.RoundDurationMS()
	}
	acceptUntil := nowMs + durMS

	tx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	// 兜底：并发开局时第二个事务在此看到已有售票局，放弃
	existing, err := model.GetAcceptingRoundForUpdate(ctx, tx)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	roundID, err := model.InsertRound(ctx, tx, acceptUntil, traceID)
	if err != nil {
		return 0, err
	}

	audit := &model.RoundAudit{
		RoundID:   roundID,
		EventType: model.RoundEventOpen,
		PrevState: "",
		NextState: state.StateAccepting,
		Operator:  operator,
		Payload:   fmt.Sprintf(`{"accept_until":%d}`, acceptUntil),
		TraceID:   traceID,
	}
	if err := audit.Insert(ctx, tx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	// 刷新状态缓存（降级容错）
	if r := infrds.Client(); r != nil {
		st := RoundStatus{RoundID: roundID, State: state.StateAccepting, AcceptUntil: acceptUntil}
		if b, e := json.Marshal(st); e == nil {
			_ = r.Set(ctx, infrds.KeyCurrentRound, b, roundStatusTTL).Err()
		}
	}

	return roundID, nil
}

// expireAudit 记录售票截止事件
func (s *roundService) expireAudit(ctx context.Context, roundID int64, operator, traceID string) error {
	next, err := state.NextState(state.StateAccepting, state.EvtExpire)
	if err != nil {
		return err
	}
	audit := &model.RoundAudit{
		RoundID:   roundID,
		EventType: model.RoundEventExpire,
		PrevState: state.StateAccepting,
		NextState: next,
		Operator:  operator,
		TraceID:   traceID,
	}
	return audit.Insert(ctx, infmysql.SQLX())
}

// CurrentStatus 查询当前局状态：Redis 缓存优先，DB 回源
func (s *roundService) CurrentStatus(ctx context.Context) (*RoundStatus, error) {
	now := time.Now().UnixMilli()

	if r := infrds.Client(); r != nil {
		if bs, _ := r.Get(ctx, infrds.KeyCurrentRound).Bytes(); len(bs) > 0 {
			var st RoundStatus
			if json.Unmarshal(bs, &st) == nil {
				st.fillRemaining(now)
				return &st, nil
			}
		}
	}

	db := infmysql.SQLX()
	active, err := model.GetAcceptingRound(ctx, db)
	if err != nil {
		return nil, err
	}
	if active != nil {
		cnt, err := model.CountTicketsByRound(ctx, db, active.ID)
		if err != nil {
			return nil, err
		}
		st := &RoundStatus{
			RoundID:     active.ID,
			State:       state.StateAccepting,
			AcceptUntil: active.AcceptUntil,
			TicketCount: cnt,
		}
		if r := infrds.Client(); r != nil {
			if b, e := json.Marshal(st); e == nil {
				_ = r.Set(ctx, infrds.KeyCurrentRound, b, roundStatusTTL).Err()
			}
		}
		st.fillRemaining(now)
		return st, nil
	}

	// 休息期：返回上一局结果与下一局预计开始时间
	last, err := model.GetLastFinishedRound(ctx, db)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return &RoundStatus{State: "break"}, nil
	}
	cfg := config.GetCurrent()
	breakMS := int64(30_000)
	if cfg != nil {
		breakMS = cfg.BreakMS()
	}
	return &RoundStatus{
		RoundID:      last.ID,
		State:        "break",
		Draw:         last.DrawNumbers(),
		NextRoundETA: last.AcceptUntil + breakMS,
	}, nil
}

// Result 查询某局开奖结果
func (s *roundService) Result(ctx context.Context, roundID int64) (*model.Round, error) {
	return model.GetRound(ctx, infmysql.SQLX(), roundID)
}
