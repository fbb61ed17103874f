package paygate

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lotto-server/common/helper"
	"lotto-server/common/logger"
	"lotto-server/internal/config"

	"go.uber.org/zap"
)

// 支付网关客户端（充值发起/提现代付）
// 网关未配置时退化为 stub：充值直接返回本地参考号，代付直接成功，便于本地联调

// InitResult 充值发起结果
type InitResult struct {
	Reference string // 网关参考号
	PayURL    string // 收银台地址
}

// Client 网关门面
type Client interface {
	// InitDeposit 向网关发起充值，返回参考号与收银台地址
	InitDeposit(userID int64, amount float64, currency, reference string) (*InitResult, error)
	// Transfer 发起代付（提现打款）
	Transfer(reference, accountNumber, bankName string, amount float64, currency string) error
}

// New 根据配置构造客户端
func New() Client {
	cfg := config.GetCurrent()
	if cfg == nil || strings.TrimSpace(cfg.Payment.BaseURL) == "" {
		logger.Warn("payment gateway not configured, using stub client")
		return &stubClient{}
	}
	timeout := helper.ThirdPayTimeout
	if cfg.Payment.TimeoutMS > 0 {
		timeout = time.Duration(cfg.Payment.TimeoutMS) * time.Millisecond
	}
	return &httpClient{
		baseURL:   strings.TrimRight(cfg.Payment.BaseURL, "/"),
		secretKey: cfg.Payment.SecretKey,
		timeout:   timeout,
	}
}

type httpClient struct {
	baseURL   string
	secretKey string
	timeout   time.Duration
}

func (c *httpClient) headers() map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + c.secretKey,
	}
}

// gatewayResp 网关统一响应外层
type gatewayResp struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *httpClient) InitDeposit(userID int64, amount float64, currency, reference string) (*InitResult, error) {
	body, _ := json.Marshal(map[string]any{
		"reference": reference,
		"amount":    amount,
		"currency":  currency,
		"metadata":  map[string]any{"user_id": userID},
	})

	respBytes, status, err := helper.HttpDoTimeoutForThirdPay(body, "POST", c.baseURL+"/transaction/initialize", c.headers(), c.timeout)
	if err != nil {
		logger.Error("deposit init request failed", zap.String("reference", reference), zap.Error(err))
		return nil, err
	}
	if status != 200 {
		logger.Error("deposit init bad status", zap.Int("status", status), zap.String("reference", reference))
		return nil, fmt.Errorf("gateway returned status %d", status)
	}

	var outer gatewayResp
	if err := json.Unmarshal(respBytes, &outer); err != nil {
		return nil, fmt.Errorf("gateway response decode failed: %w", err)
	}
	if !outer.Status {
		return nil, fmt.Errorf("gateway rejected deposit: %s", outer.Message)
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(outer.Data, &data); err != nil {
		return nil, fmt.Errorf("gateway data decode failed: %w", err)
	}
	if data.Reference == "" {
		data.Reference = reference
	}
	return &InitResult{Reference: data.Reference, PayURL: data.AuthorizationURL}, nil
}

func (c *httpClient) Transfer(reference, accountNumber, bankName string, amount float64, currency string) error {
	body, _ := json.Marshal(map[string]any{
		"reference":      reference,
		"amount":         amount,
		"currency":       currency,
		"account_number": accountNumber,
		"bank_name":      bankName,
	})

	respBytes, status, err := helper.HttpDoTimeoutForThirdPay(body, "POST", c.baseURL+"/transfer", c.headers(), c.timeout)
	if err != nil {
		logger.Error("transfer request failed", zap.String("reference", reference), zap.Error(err))
		return err
	}
	if status != 200 {
		logger.Error("transfer bad status", zap.Int("status", status), zap.String("reference", reference))
		return fmt.Errorf("gateway returned status %d", status)
	}

	var outer gatewayResp
	if err := json.Unmarshal(respBytes, &outer); err != nil {
		return fmt.Errorf("gateway response decode failed: %w", err)
	}
	if !outer.Status {
		return fmt.Errorf("gateway rejected transfer: %s", outer.Message)
	}
	return nil
}

// stubClient 网关未配置时的兜底实现
type stubClient struct{}

func (s *stubClient) InitDeposit(userID int64, amount float64, currency, reference string) (*InitResult, error) {
	logger.Warn("[paygate disabled] deposit init skipped", zap.String("reference", reference))
	return &InitResult{Reference: reference, PayURL: ""}, nil
}

func (s *stubClient) Transfer(reference, accountNumber, bankName string, amount float64, currency string) error {
	logger.Warn("[paygate disabled] transfer skipped", zap.String("reference", reference))
	return nil
}
