package monitor

import (
	"fmt"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/shopspring/decimal"
)

// Facts 决策表的输入
type Facts struct {
	Position   entity.Position
	Price      decimal.Decimal
	Signal     predictor.Signal
	Preference entity.NotificationPreference
	Thresholds Thresholds

	Profit   decimal.Decimal // 按方向计算的价差, 正数为盈利
	Risk     decimal.Decimal
	Reward   decimal.Decimal
	RrRatio  *float64
	Progress float64 // 已走完 entry->TP 的比例
}

func (f Facts) opposes() bool {
	switch f.Signal.TrendDirection {
	case entity.TrendReversal:
		return true
	case entity.TrendDown:
		return f.Position.IsLong()
	case entity.TrendUp:
		return !f.Position.IsLong()
	}
	return false
}

func (f Facts) aligned() bool {
	if f.Position.IsLong() {
		return f.Signal.TrendDirection == entity.TrendUp
	}
	return f.Signal.TrendDirection == entity.TrendDown
}

// riskDistance 开仓时设定的止损距离
func (f Facts) riskDistance() decimal.Decimal {
	return f.Position.EntryPrice.Sub(f.Position.StopLoss).Abs()
}

// toward 沿持仓方向移动 d
func (f Facts) toward(from, d decimal.Decimal) decimal.Decimal {
	if f.Position.IsLong() {
		return from.Add(d)
	}
	return from.Sub(d)
}

type Verdict struct {
	Recommendation      entity.Recommendation
	Confidence          float64
	Reasoning           string
	SuggestedStopLoss   *decimal.Decimal
	SuggestedTakeProfit *decimal.Decimal
}

// Rule 决策表中的一行, 按顺序匹配, 第一条命中生效
type Rule struct {
	Name    string
	Match   func(f Facts) bool
	Outcome func(f Facts) Verdict
}

func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "reversal_exit",
			Match: func(f Facts) bool {
				return f.Signal.ReversalProbability >= f.Thresholds.ReversalUrgent && f.opposes()
			},
			Outcome: func(f Facts) Verdict {
				return Verdict{
					Recommendation: entity.RecommendExit,
					Confidence:     f.Signal.ReversalProbability,
					Reasoning: fmt.Sprintf("reversal probability %.2f with %s trend against %s position",
						f.Signal.ReversalProbability, f.Signal.TrendDirection, f.Position.Direction),
				}
			},
		},
		{
			Name: "poor_risk_reward",
			Match: func(f Facts) bool {
				return f.RrRatio != nil && *f.RrRatio < f.Thresholds.MinAcceptableRR
			},
			Outcome: func(f Facts) Verdict {
				if f.Preference.PartialExitEnabled {
					return Verdict{
						Recommendation: entity.RecommendTakePartial,
						Confidence:     f.Signal.Confidence,
						Reasoning:      fmt.Sprintf("risk/reward %.2f below %.2f, take partial profit", *f.RrRatio, f.Thresholds.MinAcceptableRR),
					}
				}
				v := Verdict{
					Recommendation: entity.RecommendAdjustSL,
					Confidence:     f.Signal.Confidence,
					Reasoning:      fmt.Sprintf("risk/reward %.2f below %.2f, tighten stop loss", *f.RrRatio, f.Thresholds.MinAcceptableRR),
				}
				if f.Preference.AutoAdjustSl {
					sl := adjustedStopLoss(f)
					v.SuggestedStopLoss = &sl
				}
				return v
			},
		},
		{
			Name: "trailing_stop",
			Match: func(f Facts) bool {
				return f.Preference.TrailingStopEnabled && f.aligned() && f.Signal.TrendStrength >= f.Thresholds.Trailing
			},
			Outcome: func(f Facts) Verdict {
				v := Verdict{
					Recommendation: entity.RecommendTrailingStop,
					Confidence:     f.Signal.Confidence,
					Reasoning:      fmt.Sprintf("strong %s trend (strength %.2f), trail the stop", f.Signal.TrendDirection, f.Signal.TrendStrength),
				}
				if f.riskDistance().IsPositive() {
					sl := trailingStopLoss(f)
					v.SuggestedStopLoss = &sl
				}
				return v
			},
		},
		{
			Name: "extend_take_profit",
			Match: func(f Facts) bool {
				return !f.Preference.TrailingStopEnabled && f.aligned() &&
					f.Signal.TrendStrength >= f.Thresholds.Trailing && f.Progress >= f.Thresholds.TPProximity
			},
			Outcome: func(f Facts) Verdict {
				tp := f.toward(f.Position.TakeProfit, f.Reward)
				return Verdict{
					Recommendation:      entity.RecommendAdjustTP,
					Confidence:          f.Signal.Confidence,
					Reasoning:           fmt.Sprintf("price covered %.0f%% of the way to take profit in a strong trend, extend target", f.Progress*100),
					SuggestedTakeProfit: &tp,
				}
			},
		},
		{
			Name:  "hold",
			Match: func(f Facts) bool { return true },
			Outcome: func(f Facts) Verdict {
				return Verdict{
					Recommendation: entity.RecommendHold,
					Confidence:     f.Signal.Confidence,
					Reasoning:      fmt.Sprintf("trend %s (strength %.2f), no action required", f.Signal.TrendDirection, f.Signal.TrendStrength),
				}
			},
		},
	}
}

// adjustedStopLoss 盈利时移到保本, 否则风险距离减半
func adjustedStopLoss(f Facts) decimal.Decimal {
	if f.Profit.IsPositive() {
		return f.Position.EntryPrice
	}
	half := f.riskDistance().Div(decimal.NewFromInt(2))
	return f.toward(f.Position.EntryPrice, half.Neg())
}

// trailingStopLoss 当前价格回撤一个原始风险距离, 不回退已有止损
func trailingStopLoss(f Facts) decimal.Decimal {
	sl := f.toward(f.Price, f.riskDistance().Neg())
	if f.Position.IsLong() {
		return decimal.Max(sl, f.Position.StopLoss)
	}
	return decimal.Min(sl, f.Position.StopLoss)
}
