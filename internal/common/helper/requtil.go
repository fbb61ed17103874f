package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 金额格式校验：非负，最多两位小数（预编译正则）
var moneyRe = regexp.MustCompile(`^(?:0|[1-9]\d*)(?:\.\d{1,2})?$`)

// IsMoneyFormat 判断金额格式
func IsMoneyFormat(s string) bool {
	return moneyRe.MatchString(strings.TrimSpace(s))
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数，减少重复 if/else 分支
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// -------- Play helpers --------

// 购票号码规则
const (
	playMinNumber = 1
	playMaxNumber = 90
	playPickCount = 6
)

// PlayParsed 为解析后的购票入参（与控制器/服务层解耦）
type PlayParsed struct {
	Numbers        []int  `json:"numbers"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// ParsePlayFromJSON 解析 JSON 到 PlayParsed。失败返回 false 与错误消息。
func ParsePlayFromJSON(r io.Reader) (PlayParsed, bool, string) {
	var out PlayParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return PlayParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

// ParsePlayFromForm 从表单读取字段并做强校验，返回 PlayParsed。
// numbers 接受逗号分隔列表，如 "3,17,42,56,70,88"
func ParsePlayFromForm(ctx *beegocontext.Context) (PlayParsed, bool, string) {
	var out PlayParsed

	numsStr := strings.TrimSpace(ctx.Input.Query("numbers"))
	if numsStr == "" {
		return PlayParsed{}, false, "numbers required"
	}
	for _, part := range strings.Split(numsStr, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return PlayParsed{}, false, "numbers must be integers"
		}
		out.Numbers = append(out.Numbers, n)
	}

	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	if out.Amount == "" || !IsMoneyFormat(out.Amount) {
		return PlayParsed{}, false, "amount must be numeric with up to 2 decimals"
	}

	out.IdempotencyKey = strings.TrimSpace(ctx.Input.Query("idempotency_key"))
	if out.IdempotencyKey == "" {
		return PlayParsed{}, false, "idempotency_key required"
	}

	return out, true, ""
}

// ValidateNumbers 校验并归一化所选号码：先去重（保留首次出现顺序），
// 去重后须恰好6个 1..90 整数。通过时返回去重后的号码
func ValidateNumbers(nums []int) ([]int, bool, string) {
	seen := make(map[int]bool, playPickCount)
	deduped := make([]int, 0, playPickCount)
	for _, n := range nums {
		if n < playMinNumber || n > playMaxNumber {
			return nil, false, fmt.Sprintf("numbers must be within [%d, %d]", playMinNumber, playMaxNumber)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		deduped = append(deduped, n)
	}
	if len(deduped) != playPickCount {
		return nil, false, fmt.Sprintf("numbers must contain exactly %d distinct values", playPickCount)
	}
	return deduped, true, ""
}

// ValidatePlay 对通用字段做二次校验（适用于 JSON 与 FORM）。失败返回 false 与错误消息。
func ValidatePlay(in *PlayParsed) (bool, string) {
	if strings.TrimSpace(in.Amount) == "" || in.IdempotencyKey == "" {
		return false, "missing or invalid fields"
	}
	// 额外长度保护，避免异常超长输入
	if len(in.IdempotencyKey) > 64 || len(in.Amount) > 32 {
		return false, "invalid request"
	}
	if !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	deduped, ok, msg := ValidateNumbers(in.Numbers)
	if !ok {
		return false, msg
	}
	in.Numbers = deduped
	return true, ""
}

// ParseAndValidatePlay 按 Content-Type 自动解析并做统一校验
func ParseAndValidatePlay(ctx *beegocontext.Context) (PlayParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParsePlayFromJSON, ParsePlayFromForm)
	if !ok {
		return PlayParsed{}, false, msg
	}
	if ok, msg := ValidatePlay(&out); !ok {
		return PlayParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Deposit helpers --------

type DepositParsed struct {
	Amount  string `json:"amount"`
	Gateway string `json:"gateway"` // 可选，默认取配置
}

func ParseDepositFromJSON(r io.Reader) (DepositParsed, bool, string) {
	var out DepositParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return DepositParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseDepositFromForm(ctx *beegocontext.Context) (DepositParsed, bool, string) {
	var out DepositParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	out.Gateway = strings.TrimSpace(ctx.Input.Query("gateway"))
	return out, true, ""
}

func ValidateDeposit(in *DepositParsed) (bool, string) {
	if strings.TrimSpace(in.Amount) == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Amount) > 32 || len(in.Gateway) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

// ParseAndValidateDeposit 按 Content-Type 自动解析并校验
func ParseAndValidateDeposit(ctx *beegocontext.Context) (DepositParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseDepositFromJSON, ParseDepositFromForm)
	if !ok {
		return DepositParsed{}, false, msg
	}
	if ok, msg := ValidateDeposit(&out); !ok {
		return DepositParsed{}, false, msg
	}
	return out, true, ""
}

// -------- Withdrawal helpers --------

type WithdrawParsed struct {
	Amount string `json:"amount"`
}

func ParseWithdrawFromJSON(r io.Reader) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return WithdrawParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseWithdrawFromForm(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	var out WithdrawParsed
	out.Amount = strings.TrimSpace(ctx.Input.Query("amount"))
	return out, true, ""
}

func ValidateWithdraw(in *WithdrawParsed) (bool, string) {
	if strings.TrimSpace(in.Amount) == "" || !IsMoneyFormat(in.Amount) {
		return false, "amount must be numeric with up to 2 decimals"
	}
	if len(in.Amount) > 32 {
		return false, "invalid request"
	}
	return true, ""
}

func ParseAndValidateWithdraw(ctx *beegocontext.Context) (WithdrawParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseWithdrawFromJSON, ParseWithdrawFromForm)
	if !ok {
		return WithdrawParsed{}, false, msg
	}
	if ok, msg := ValidateWithdraw(&out); !ok {
		return WithdrawParsed{}, false, msg
	}
	return out, true, ""
}

// -------- BankInfo helpers --------

// 银行账号：6..20位数字
var bankAccountRe = regexp.MustCompile(`^\d{6,20}$`)

type BankInfoParsed struct {
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
}

func ParseBankInfoFromJSON(r io.Reader) (BankInfoParsed, bool, string) {
	var out BankInfoParsed
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return BankInfoParsed{}, false, "invalid json body"
	}
	return out, true, ""
}

func ParseBankInfoFromForm(ctx *beegocontext.Context) (BankInfoParsed, bool, string) {
	var out BankInfoParsed
	out.AccountNumber = strings.TrimSpace(ctx.Input.Query("account_number"))
	out.BankName = strings.TrimSpace(ctx.Input.Query("bank_name"))
	return out, true, ""
}

func ValidateBankInfo(in *BankInfoParsed) (bool, string) {
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.BankName = strings.TrimSpace(in.BankName)
	if !bankAccountRe.MatchString(in.AccountNumber) {
		return false, "account_number must be 6-20 digits"
	}
	if in.BankName == "" || len(in.BankName) > 64 {
		return false, "bank_name required"
	}
	return true, ""
}

func ParseAndValidateBankInfo(ctx *beegocontext.Context) (BankInfoParsed, bool, string) {
	out, ok, msg := parseByContentType(ctx, ParseBankInfoFromJSON, ParseBankInfoFromForm)
	if !ok {
		return BankInfoParsed{}, false, msg
	}
	if ok, msg := ValidateBankInfo(&out); !ok {
		return BankInfoParsed{}, false, msg
	}
	return out, true, ""
}
