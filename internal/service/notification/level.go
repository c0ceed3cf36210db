package notification

import (
	"math"

	"github.com/KNICEX/trading-monitor/internal/entity"
)

type Thresholds struct {
	// ReversalUrgent 反转概率达到该值即视为紧急
	ReversalUrgent float64
	// UrgentFlipDelta 信号方向翻转且置信度变化达到该值视为紧急
	UrgentFlipDelta float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ReversalUrgent:  0.8,
		UrgentFlipDelta: 0.3,
	}
}

// Classify 按候选来源判定紧急程度
func Classify(c Candidate, th Thresholds) Level {
	switch c.Origin {
	case OriginDigest:
		return LevelSummary
	case OriginSignal:
		if c.ActionChanged && !c.InitialSignal && math.Abs(c.ConfidenceDelta) >= th.UrgentFlipDelta {
			return LevelUrgent
		}
		return LevelGeneral
	}

	if c.Recommendation == entity.RecommendExit || c.ReversalProbability >= th.ReversalUrgent {
		return LevelUrgent
	}
	return RecommendationLevel(c.Recommendation)
}

// RecommendationLevel hold 只进入每日摘要
func RecommendationLevel(r entity.Recommendation) Level {
	switch r {
	case entity.RecommendExit:
		return LevelUrgent
	case entity.RecommendAdjustSL, entity.RecommendAdjustTP, entity.RecommendTakePartial:
		return LevelImportant
	case entity.RecommendTrailingStop:
		return LevelGeneral
	default:
		return LevelSummary
	}
}
