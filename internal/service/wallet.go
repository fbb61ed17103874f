package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	chelper "lotto-server/common/helper"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/infra/paygate"
	"lotto-server/internal/model"

	"github.com/google/uuid"
	decimal "github.com/shopspring/decimal"
)

// 处理钱包业务逻辑（充值/余额/流水）
const (
	BIZ_TYPE_DEPOSIT = 3
)

var (
	ErrDepositNotFound    = errors.New("deposit transaction not found")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// DepositInitOutput 充值发起结果
type DepositInitOutput struct {
	Reference string
	PayURL    string
}

type WalletService interface {
	// Balance 查询余额（无锁快照）
	Balance(ctx context.Context, userID int64) (string, error)
	// Ledger 查询账本流水
	Ledger(ctx context.Context, userID int64, limit int) ([]model.WalletLedger, error)
	// InitiateDeposit 创建待支付充值单并向网关发起
	InitiateDeposit(ctx context.Context, userID int64, amount, gateway, traceID string) (*DepositInitOutput, error)
	// ConfirmDeposit 网关到账确认（消费侧调用），按参考号幂等入账
	ConfirmDeposit(ctx context.Context, reference, traceID string) error
	// FailDeposit 网关侧失败/超时，关闭充值单
	FailDeposit(ctx context.Context, reference, traceID string) error
}

type walletService struct {
	gate paygate.Client
}

func NewWalletService(gate paygate.Client) WalletService {
	if gate == nil {
		gate = paygate.New()
	}
	return &walletService{gate: gate}
}

// Balance 查询余额
func (s *walletService) Balance(ctx context.Context, userID int64) (string, error) {
	p, err := model.GetProfileByUser(ctx, infmysql.SQLX(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "0.00", nil
		}
		return "", err
	}
	return chelper.TrimDecimal(decimal.NewFromFloat(p.Balance)), nil
}

// Ledger 查询账本流水
func (s *walletService) Ledger(ctx context.Context, userID int64, limit int) ([]model.WalletLedger, error) {
	return model.ListUserLedger(ctx, infmysql.SQLX(), userID, limit)
}

// InitiateDeposit 充值发起：
// 本地先落 PENDING 单（参考号唯一），再调网关；网关失败则关单
func (s *walletService) InitiateDeposit(ctx context.Context, userID int64, amount, gateway, traceID string) (*DepositInitOutput, error) {
	amtDec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || amtDec.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("invalid deposit amount")
	}

	if gateway == "" {
		gateway = "paystack"
	}
	currency := currentCurrency()
	reference := generateDepositRef(userID)

	fmt.Printf("[Deposit]  发起充值: user_id=%d, amount=%s, gateway=%s, reference=%s, trace_id=%s\n",
		userID, amount, gateway, reference, traceID)

	tx := &model.Transaction{
		UserID:    userID,
		Reference: reference,
		Amount:    amtDec.Round(2).InexactFloat64(),
		Currency:  currency,
		Gateway:   gateway,
		TraceID:   traceID,
	}
	if err := tx.Insert(ctx, infmysql.SQLX()); err != nil {
		fmt.Printf("[Deposit]  创建充值单失败: error=%v, reference=%s, trace_id=%s\n", err, reference, traceID)
		return nil, err
	}

	res, err := s.gate.InitDeposit(userID, tx.Amount, currency, reference)
	if err != nil {
		// 网关失败：关单，不影响核心状态
		fmt.Printf("[Deposit]  网关发起失败，关闭充值单: error=%v, reference=%s, trace_id=%s\n", err, reference, traceID)
		_ = model.MarkTransactionStatus(ctx, infmysql.SQLX(), tx.ID, model.TxStatusFailed)
		return nil, ErrGatewayUnavailable
	}

	return &DepositInitOutput{Reference: res.Reference, PayURL: res.PayURL}, nil
}

// ConfirmDeposit 到账确认：
// 事务内锁充值单 -> 状态守卫（仅 PENDING 可入账）-> 锁钱包加余额 -> 账本 -> 翻状态
// 网关回调/MQ 消息重复投递时，状态守卫保证只入账一次
func (s *walletService) ConfirmDeposit(ctx context.Context, reference, traceID string) error {
	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	dbtx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	txn, err := model.GetTransactionByRefForUpdate(txCtx, dbtx, reference)
	if err != nil {
		return err
	}
	if txn == nil {
		fmt.Printf("[Deposit]  充值单不存在: reference=%s, trace_id=%s\n", reference, traceID)
		return ErrDepositNotFound
	}
	if txn.Status != model.TxStatusPending {
		// 已处理过，幂等返回
		fmt.Printf("[Deposit]  充值单已处理，跳过: reference=%s, status=%d, trace_id=%s\n",
			reference, txn.Status, traceID)
		return nil
	}

	profile, err := model.GetOrCreateProfileForUpdate(txCtx, dbtx, txn.UserID)
	if err != nil {
		return err
	}

	amtDec := decimal.NewFromFloat(txn.Amount)
	beforeDec := decimal.NewFromFloat(profile.Balance)
	afterDec := beforeDec.Add(amtDec)

	if err := model.UpdateProfileBalance(txCtx, dbtx, txn.UserID, afterDec.Round(2).InexactFloat64()); err != nil {
		return err
	}

	ledger := &model.WalletLedger{
		UserID:       txn.UserID,
		BizType:      BIZ_TYPE_DEPOSIT, //3
		BizTypeStr:   "deposit",        // 冗余
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Currency:     txn.Currency,
		RefNo:        reference,
		Remark:       "deposit credit " + txn.Gateway,
		TraceID:      traceID,
	}
	if err := ledger.Insert(txCtx, dbtx); err != nil {
		return err
	}

	if err := model.MarkTransactionStatus(txCtx, dbtx, txn.ID, model.TxStatusCompleted); err != nil {
		return err
	}

	if err := dbtx.Commit(); err != nil {
		return err
	}

	fmt.Printf("[Deposit]  充值入账完成: reference=%s, user_id=%d, amount=%.2f, trace_id=%s\n",
		reference, txn.UserID, txn.Amount, traceID)
	return nil
}

// FailDeposit 关闭未支付的充值单（仅 PENDING 可关闭）
func (s *walletService) FailDeposit(ctx context.Context, reference, traceID string) error {
	dbtx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	txn, err := model.GetTransactionByRefForUpdate(ctx, dbtx, reference)
	if err != nil {
		return err
	}
	if txn == nil {
		return ErrDepositNotFound
	}
	if txn.Status != model.TxStatusPending {
		return nil
	}
	if err := model.MarkTransactionStatus(ctx, dbtx, txn.ID, model.TxStatusFailed); err != nil {
		return err
	}
	return dbtx.Commit()
}

// generateDepositRef 生成充值参考号
// 格式：DP{YYYYMMDDHHmmss}{UserID后4位}{UUID前8位}
func generateDepositRef(userID int64) string {
	now := time.Now().Format("20060102150405")
	userSuffix := fmt.Sprintf("%04d", userID%10000)
	return fmt.Sprintf("DP%s%s%s", now, userSuffix, strings.ToUpper(uuid.New().String()[:8]))
}
