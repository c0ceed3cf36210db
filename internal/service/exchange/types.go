package exchange

import (
	"fmt"
	"strings"
)

// TradingPair 交易对
type TradingPair struct {
	Base  string
	Quote string
}

// ParsePair 同时支持 "EUR/USD" 与 "BTCUSDT" 两种写法
func ParsePair(s string) TradingPair {
	s = strings.ToUpper(strings.TrimSpace(s))
	if base, quote, ok := strings.Cut(s, "/"); ok {
		return TradingPair{Base: base, Quote: quote}
	}
	base, quote := SplitSymbol(s)
	return TradingPair{Base: base, Quote: quote}
}

func SplitSymbol(s string) (string, string) {
	s = strings.ToUpper(s)
	// 常见 Quote 列表
	quotes := []string{"USDT", "BUSD", "USDC", "BTC", "ETH", "USD", "JPY", "EUR"}
	for _, q := range quotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	// fallback
	return s, ""
}

func (s TradingPair) IsZero() bool {
	return s.Base == "" || s.Quote == ""
}

func (s TradingPair) ToString() string {
	return fmt.Sprintf("%s%s", s.Base, s.Quote)
}

func (s TradingPair) ToSlashString() string {
	return fmt.Sprintf("%s/%s", s.Base, s.Quote)
}
