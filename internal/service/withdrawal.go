package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lotto-server/internal/config"
	infmysql "lotto-server/internal/infra/mysql"
	"lotto-server/internal/infra/paygate"
	"lotto-server/internal/model"

	decimal "github.com/shopspring/decimal"
)

// 处理提现业务逻辑
// 状态机：PENDING -> APPROVED -> COMPLETED/FAILED, PENDING -> REJECTED
// 申请时冻结（扣款+账本），驳回/打款失败时退款；所有推进走持久化 CAS
const (
	BIZ_TYPE_WITHDRAW = 4
	BIZ_TYPE_REFUND   = 5
)

var (
	ErrWithdrawNotEligible   = errors.New("withdrawal eligibility not met")
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrInvalidWithdrawState  = errors.New("withdrawal state does not allow this operation")
	ErrPendingWithdrawExists = errors.New("another withdrawal is in progress")
	ErrBankInfoAlreadySet    = errors.New("bank info already submitted")
)

type WithdrawalService interface {
	// SubmitBankInfo 提交银行信息（仅一次），开始冷静期计时
	SubmitBankInfo(ctx context.Context, userID int64, accountNumber, bankName, traceID string) error
	// Request 申请提现：资格校验 + 冻结扣款 + 落 PENDING 单
	Request(ctx context.Context, userID int64, amount, traceID string) (*model.BankWithdrawal, error)
	// Approve 管理端审批：CAS PENDING->APPROVED，随后触发网关打款
	// 打款成功 -> COMPLETED；打款失败 -> FAILED + 退款
	Approve(ctx context.Context, withdrawalID int64, operator, traceID string) error
	// Reject 管理端驳回：CAS PENDING->REJECTED + 退款
	Reject(ctx context.Context, withdrawalID int64, reason, operator, traceID string) error
	// ListByStatus 管理端按状态拉取
	ListByStatus(ctx context.Context, status int8, limit int) ([]model.BankWithdrawal, error)
	// GrantEligibility 管理端授予用户提现资格（审批开关打开时申请需先过此关）
	GrantEligibility(ctx context.Context, userID int64, operator, traceID string) error
}

type withdrawalService struct {
	gate paygate.Client
}

func NewWithdrawalService(gate paygate.Client) WithdrawalService {
	if gate == nil {
		gate = paygate.New()
	}
	return &withdrawalService{gate: gate}
}

// SubmitBankInfo 提交银行信息；重复提交拒绝（改卡需人工）
func (s *withdrawalService) SubmitBankInfo(ctx context.Context, userID int64, accountNumber, bankName, traceID string) error {
	dbtx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	profile, err := model.GetOrCreateProfileForUpdate(ctx, dbtx, userID)
	if err != nil {
		return err
	}
	if profile.BankInfoSubmitted > 0 {
		return ErrBankInfoAlreadySet
	}
	if err := model.SubmitBankInfo(ctx, dbtx, userID, accountNumber, bankName); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return err
	}
	fmt.Printf("[Withdraw]  银行信息已提交: user_id=%d, bank=%s, trace_id=%s\n", userID, bankName, traceID)
	return nil
}

// Request 申请提现主流程：
// 锁钱包 -> 资格校验（银行信息/冷静期/审批/在途单）-> 余额校验 -> 冻结扣款+账本 -> 落 PENDING 单
func (s *withdrawalService) Request(ctx context.Context, userID int64, amount, traceID string) (*model.BankWithdrawal, error) {
	amtDec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || amtDec.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("invalid withdrawal amount")
	}

	cfg := config.GetCurrent()
	if cfg != nil && cfg.Withdrawal.MinAmount > 0 &&
		amtDec.LessThan(decimal.NewFromFloat(cfg.Withdrawal.MinAmount)) {
		return nil, fmt.Errorf("withdrawal amount below minimum: %.2f", cfg.Withdrawal.MinAmount)
	}

	fmt.Printf("[Withdraw]  收到提现申请: user_id=%d, amount=%s, trace_id=%s\n", userID, amount, traceID)

	txCtx := ctx
	if _, has := ctx.Deadline(); !has {
		c, cancel := context.WithTimeout(ctx, defaultTxTimeout)
		txCtx = c
		defer cancel()
	}
	dbtx, err := infmysql.SQLX().BeginTxx(txCtx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dbtx.Rollback() }()

	profile, err := model.GetOrCreateProfileForUpdate(txCtx, dbtx, userID)
	if err != nil {
		return nil, err
	}

	// 资格校验
	if profile.BankInfoSubmitted == 0 {
		return nil, ErrWithdrawNotEligible
	}
	coolingHours := 48
	requireApproval := true
	if cfg != nil {
		if cfg.Withdrawal.CoolingHours > 0 {
			coolingHours = cfg.Withdrawal.CoolingHours
		}
		requireApproval = cfg.Withdrawal.RequireApproval
	}
	now := time.Now().UnixMilli()
	coolingMS := int64(coolingHours) * 3600 * 1000
	if now < profile.BankInfoSubmitted+coolingMS {
		fmt.Printf("[Withdraw]  冷静期未过: user_id=%d, submitted=%d, now=%d, trace_id=%s\n",
			userID, profile.BankInfoSubmitted, now, traceID)
		return nil, ErrWithdrawNotEligible
	}
	if requireApproval && profile.WithdrawApproved != 1 {
		return nil, ErrWithdrawNotEligible
	}

	// 在途单校验：同一用户同时至多一笔未完结提现
	pending, err := model.HasPendingWithdrawal(txCtx, dbtx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrPendingWithdrawExists
	}

	// 余额校验与冻结扣款
	beforeDec := decimal.NewFromFloat(profile.Balance)
	if beforeDec.Cmp(amtDec) < 0 {
		return nil, ErrInsufficientBalance
	}
	afterDec := beforeDec.Sub(amtDec)
	if err := model.UpdateProfileBalance(txCtx, dbtx, userID, afterDec.Round(2).InexactFloat64()); err != nil {
		return nil, err
	}

	w := &model.BankWithdrawal{
		UserID:        userID,
		Amount:        amtDec.Round(2).InexactFloat64(),
		Currency:      currentCurrency(),
		AccountNumber: profile.BankAccountNumber,
		BankName:      profile.BankName,
		TraceID:       traceID,
	}
	if err := w.Insert(txCtx, dbtx); err != nil {
		return nil, err
	}

	ledger := &model.WalletLedger{
		UserID:       userID,
		BizType:      BIZ_TYPE_WITHDRAW, //4
		BizTypeStr:   "withdraw",        // 冗余
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Currency:     w.Currency,
		RefNo:        withdrawRef(w.ID),
		Remark:       "withdrawal hold",
		TraceID:      traceID,
	}
	if err := ledger.Insert(txCtx, dbtx); err != nil {
		return nil, err
	}

	if err := dbtx.Commit(); err != nil {
		return nil, err
	}

	fmt.Printf("[Withdraw]  提现单已创建: withdrawal_id=%d, user_id=%d, amount=%.2f, trace_id=%s\n",
		w.ID, userID, w.Amount, traceID)
	return w, nil
}

// Approve 审批并打款：
// 1. CAS PENDING->APPROVED（竞态的第二个审批在此落败）
// 2. 调网关打款
// 3. 成功 CAS APPROVED->COMPLETED；失败 CAS APPROVED->FAILED 并退款
// 网关调用在事务外执行，避免长事务持锁
func (s *withdrawalService) Approve(ctx context.Context, withdrawalID int64, operator, traceID string) error {
	db := infmysql.SQLX()

	w, err := model.GetWithdrawal(ctx, db, withdrawalID)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrWithdrawalNotFound
	}

	ok, err := model.CasWithdrawalStatus(ctx, db, withdrawalID, model.WithdrawStatusPending, model.WithdrawStatusApproved, "")
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("[Withdraw]  审批CAS失败（已被处理）: withdrawal_id=%d, trace_id=%s\n", withdrawalID, traceID)
		return ErrInvalidWithdrawState
	}

	fmt.Printf("[Withdraw]  已审批，发起打款: withdrawal_id=%d, operator=%s, trace_id=%s\n",
		withdrawalID, operator, traceID)

	ref := withdrawRef(withdrawalID)
	if err := s.gate.Transfer(ref, w.AccountNumber, w.BankName, w.Amount, w.Currency); err != nil {
		fmt.Printf("[Withdraw]  打款失败，退款: withdrawal_id=%d, error=%v, trace_id=%s\n",
			withdrawalID, err, traceID)
		if ferr := s.failAndRefund(ctx, w, err.Error(), traceID); ferr != nil {
			// 退款失败必须暴露，人工介入
			return fmt.Errorf("transfer failed and refund failed: transfer=%v, refund=%w", err, ferr)
		}
		return fmt.Errorf("transfer failed: %w", err)
	}

	ok, err = model.CasWithdrawalStatus(ctx, db, withdrawalID, model.WithdrawStatusApproved, model.WithdrawStatusCompleted, "")
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidWithdrawState
	}

	fmt.Printf("[Withdraw]  提现完成: withdrawal_id=%d, amount=%.2f, trace_id=%s\n",
		withdrawalID, w.Amount, traceID)
	return nil
}

// Reject 驳回：CAS PENDING->REJECTED + 退款
func (s *withdrawalService) Reject(ctx context.Context, withdrawalID int64, reason, operator, traceID string) error {
	db := infmysql.SQLX()

	w, err := model.GetWithdrawal(ctx, db, withdrawalID)
	if err != nil {
		return err
	}
	if w == nil {
		return ErrWithdrawalNotFound
	}

	ok, err := model.CasWithdrawalStatus(ctx, db, withdrawalID, model.WithdrawStatusPending, model.WithdrawStatusRejected, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidWithdrawState
	}

	if err := s.refund(ctx, w, "withdrawal rejected", traceID); err != nil {
		return fmt.Errorf("rejected but refund failed: %w", err)
	}

	fmt.Printf("[Withdraw]  提现已驳回并退款: withdrawal_id=%d, reason=%s, operator=%s, trace_id=%s\n",
		withdrawalID, reason, operator, traceID)
	return nil
}

func (s *withdrawalService) ListByStatus(ctx context.Context, status int8, limit int) ([]model.BankWithdrawal, error) {
	return model.ListWithdrawalsByStatus(ctx, infmysql.SQLX(), status, limit)
}

// GrantEligibility 授予提现资格（幂等：重复授予只刷新时间戳）
func (s *withdrawalService) GrantEligibility(ctx context.Context, userID int64, operator, traceID string) error {
	dbtx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	if _, err := model.GetOrCreateProfileForUpdate(ctx, dbtx, userID); err != nil {
		return err
	}
	if err := model.ApproveWithdrawInfo(ctx, dbtx, userID); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return err
	}
	fmt.Printf("[Withdraw]  提现资格已授予: user_id=%d, operator=%s, trace_id=%s\n", userID, operator, traceID)
	return nil
}

// failAndRefund 打款失败：CAS APPROVED->FAILED 后退款
func (s *withdrawalService) failAndRefund(ctx context.Context, w *model.BankWithdrawal, reason, traceID string) error {
	ok, err := model.CasWithdrawalStatus(ctx, infmysql.SQLX(), w.ID, model.WithdrawStatusApproved, model.WithdrawStatusFailed, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidWithdrawState
	}
	return s.refund(ctx, w, "withdrawal transfer failed", traceID)
}

// refund 退回冻结金额：锁钱包加余额并写账本
func (s *withdrawalService) refund(ctx context.Context, w *model.BankWithdrawal, remark, traceID string) error {
	dbtx, err := infmysql.SQLX().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = dbtx.Rollback() }()

	profile, err := model.GetOrCreateProfileForUpdate(ctx, dbtx, w.UserID)
	if err != nil {
		return err
	}

	amtDec := decimal.NewFromFloat(w.Amount)
	beforeDec := decimal.NewFromFloat(profile.Balance)
	afterDec := beforeDec.Add(amtDec)

	if err := model.UpdateProfileBalance(ctx, dbtx, w.UserID, afterDec.Round(2).InexactFloat64()); err != nil {
		return err
	}

	ledger := &model.WalletLedger{
		UserID:       w.UserID,
		BizType:      BIZ_TYPE_REFUND, //5
		BizTypeStr:   "refund",        // 冗余
		Amount:       amtDec.Round(2).InexactFloat64(),
		BeforeAmount: beforeDec.Round(2).InexactFloat64(),
		AfterAmount:  afterDec.Round(2).InexactFloat64(),
		Currency:     w.Currency,
		RefNo:        withdrawRef(w.ID),
		Remark:       remark,
		TraceID:      traceID,
	}
	if err := ledger.Insert(ctx, dbtx); err != nil {
		return err
	}

	return dbtx.Commit()
}

// withdrawRef 提现参考号（打款与账本共用）
func withdrawRef(id int64) string {
	return fmt.Sprintf("WD%d", id)
}
