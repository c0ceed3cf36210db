package decimalx

import "github.com/shopspring/decimal"

// Clamp01 概率/强度类数值统一截断到 [0,1]
func Clamp01(f float64) (float64, bool) {
	switch {
	case f != f: // NaN
		return 0, true
	case f < 0:
		return 0, true
	case f > 1:
		return 1, true
	}
	return f, false
}

// NonNegative 负数截断为 0
func NonNegative(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.IsNegative() {
		return decimal.Zero, true
	}
	return d, false
}

// Ratio 返回 a/b, b 为 0 时返回 nil
func Ratio(a, b decimal.Decimal) *float64 {
	if b.IsZero() {
		return nil
	}
	r := a.Div(b).InexactFloat64()
	return &r
}
