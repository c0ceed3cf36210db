package decimalx

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func MustFromString(s string) decimal.Decimal {
	res, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return res
}

// ParsePositive 点值/步长类配置, 必须大于 0
func ParsePositive(s string) (decimal.Decimal, error) {
	res, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !res.IsPositive() {
		return decimal.Zero, fmt.Errorf("expected positive decimal, got %s", s)
	}
	return res, nil
}
