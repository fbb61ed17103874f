package service

import (
	"lotto-server/internal/config"
)

// currentCurrency 计价币种，未配置时取默认
func currentCurrency() string {
	if cfg := config.GetCurrent(); cfg != nil && cfg.Lottery.Currency != "" {
		return cfg.Lottery.Currency
	}
	return "NGN"
}
