package monitor

import (
	"log/slog"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/pkg/decimalx"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluator 根据持仓/行情/信号生成快照, 相同输入得到相同输出
type Evaluator struct {
	th           Thresholds
	rules        []Rule
	pipOverrides map[string]decimal.Decimal
}

type EvaluatorOption func(e *Evaluator)

func WithRules(rules []Rule) EvaluatorOption {
	return func(e *Evaluator) {
		e.rules = rules
	}
}

func WithPipOverrides(overrides map[string]decimal.Decimal) EvaluatorOption {
	return func(e *Evaluator) {
		e.pipOverrides = overrides
	}
}

func NewEvaluator(th Thresholds, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		th:    th,
		rules: DefaultRules(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Evaluate(in Input) entity.PositionSnapshot {
	snapshot, _ := e.evaluate(in)
	return snapshot
}

func (e *Evaluator) evaluate(in Input) (entity.PositionSnapshot, string) {
	p := in.Position
	price := in.Quote.Price

	signal, fixed := in.Signal.Sanitize()
	if fixed {
		slog.Warn("signal out of range, clamped", "position", p.Id, "pair", p.Pair, "signal", signal)
	}

	var profit, risk, reward decimal.Decimal
	if p.IsLong() {
		profit = price.Sub(p.EntryPrice)
		risk = p.EntryPrice.Sub(p.StopLoss)
		reward = p.TakeProfit.Sub(p.EntryPrice)
	} else {
		profit = p.EntryPrice.Sub(price)
		risk = p.StopLoss.Sub(p.EntryPrice)
		reward = p.EntryPrice.Sub(p.TakeProfit)
	}
	risk, riskClamped := decimalx.NonNegative(risk)
	reward, rewardClamped := decimalx.NonNegative(reward)
	if riskClamped || rewardClamped {
		slog.Warn("negative risk or reward, clamped to zero", "position", p.Id, "pair", p.Pair,
			"direction", p.Direction, "entry", p.EntryPrice, "stop_loss", p.StopLoss, "take_profit", p.TakeProfit)
	}

	facts := Facts{
		Position:   p,
		Price:      price,
		Signal:     signal,
		Preference: in.Preference,
		Thresholds: e.th,
		Profit:     profit,
		Risk:       risk,
		Reward:     reward,
		RrRatio:    decimalx.Ratio(reward, risk),
	}
	if reward.IsPositive() {
		facts.Progress = profit.Div(reward).InexactFloat64()
	}

	verdict, rule := e.decide(facts)
	confidence, _ := decimalx.Clamp01(verdict.Confidence)

	var pnlPct float64
	if !p.EntryPrice.IsZero() {
		pnlPct = profit.Div(p.EntryPrice).Mul(hundred).Round(4).InexactFloat64()
	}

	return entity.PositionSnapshot{
		PositionId:               p.Id,
		Timestamp:                in.Now,
		SubscriberId:             p.SubscriberId,
		Pair:                     p.Pair,
		Timeframe:                p.MonitorTimeframe(),
		CurrentPrice:             price,
		UnrealizedPnlPips:        profit.Div(PipSize(p.Pair, e.pipOverrides)).Round(2),
		UnrealizedPnlPercentage:  pnlPct,
		TrendDirection:           signal.TrendDirection,
		TrendStrength:            signal.TrendStrength,
		ReversalProbability:      signal.ReversalProbability,
		CurrentRisk:              risk,
		CurrentReward:            reward,
		CurrentRrRatio:           facts.RrRatio,
		Recommendation:           verdict.Recommendation,
		RecommendationConfidence: confidence,
		Reasoning:                verdict.Reasoning,
		SuggestedStopLoss:        verdict.SuggestedStopLoss,
		SuggestedTakeProfit:      verdict.SuggestedTakeProfit,
	}, rule
}

func (e *Evaluator) decide(f Facts) (Verdict, string) {
	for _, rule := range e.rules {
		if rule.Match(f) {
			return rule.Outcome(f), rule.Name
		}
	}
	return Verdict{
		Recommendation: entity.RecommendHold,
		Confidence:     f.Signal.Confidence,
	}, "default"
}
