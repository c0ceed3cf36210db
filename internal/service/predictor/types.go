package predictor

import (
	"context"
	"errors"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/pkg/decimalx"
)

var ErrPredictionUnavailable = errors.New("prediction unavailable")

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

type Signal struct {
	Action              Action                `json:"action"`
	Confidence          float64               `json:"confidence"`
	TrendDirection      entity.TrendDirection `json:"trend_direction"`
	TrendStrength       float64               `json:"trend_strength"`
	ReversalProbability float64               `json:"reversal_probability"`
	Timestamp           time.Time             `json:"timestamp"`
}

// Predictor 信号模型, 对引擎来说是黑盒
type Predictor interface {
	GetSignal(ctx context.Context, pair, timeframe string) (Signal, error)
}

// Sanitize 将概率类字段截断到 [0,1], 未知枚举值归一为 unknown/hold.
// 第二个返回值表示是否发生了修正
func (s Signal) Sanitize() (Signal, bool) {
	var fixed, c bool
	s.Confidence, c = decimalx.Clamp01(s.Confidence)
	fixed = fixed || c
	s.TrendStrength, c = decimalx.Clamp01(s.TrendStrength)
	fixed = fixed || c
	s.ReversalProbability, c = decimalx.Clamp01(s.ReversalProbability)
	fixed = fixed || c

	switch s.TrendDirection {
	case entity.TrendUp, entity.TrendDown, entity.TrendSideways, entity.TrendReversal, entity.TrendUnknown:
	default:
		s.TrendDirection = entity.TrendUnknown
		fixed = true
	}
	switch s.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		s.Action = ActionHold
		fixed = true
	}
	return s, fixed
}
