package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type TrendDirection string

const (
	TrendUp       TrendDirection = "uptrend"
	TrendDown     TrendDirection = "downtrend"
	TrendSideways TrendDirection = "sideways"
	TrendReversal TrendDirection = "reversal"
	TrendUnknown  TrendDirection = "unknown"
)

type Recommendation string

const (
	RecommendHold         Recommendation = "hold"
	RecommendExit         Recommendation = "exit"
	RecommendTakePartial  Recommendation = "take_partial"
	RecommendAdjustSL     Recommendation = "adjust_sl"
	RecommendAdjustTP     Recommendation = "adjust_tp"
	RecommendTrailingStop Recommendation = "trailing_stop"
)

// PositionSnapshot 每个评估周期每个持仓生成一条, 只追加;
// 写入后只允许回填通知审计字段 (NotificationSent / NotificationLevel)
type PositionSnapshot struct {
	Id           int64     `gorm:"primaryKey;autoIncrement"`
	PositionId   int64     `gorm:"index:idx_snapshot_position_ts,priority:1"`
	Timestamp    time.Time `gorm:"index:idx_snapshot_position_ts,priority:2"`
	SubscriberId string    `gorm:"index"`
	Pair         string
	Timeframe    string

	CurrentPrice            decimal.Decimal `gorm:"type:decimal(20,8)"`
	UnrealizedPnlPips       decimal.Decimal `gorm:"type:decimal(20,2)"`
	UnrealizedPnlPercentage float64

	TrendDirection      TrendDirection
	TrendStrength       float64
	ReversalProbability float64

	CurrentRisk    decimal.Decimal `gorm:"type:decimal(20,8)"`
	CurrentReward  decimal.Decimal `gorm:"type:decimal(20,8)"`
	CurrentRrRatio *float64        // 风险为 0 时为空

	Recommendation           Recommendation `gorm:"index"`
	RecommendationConfidence float64
	Reasoning                string
	SuggestedStopLoss        *decimal.Decimal `gorm:"type:decimal(20,8)"`
	SuggestedTakeProfit      *decimal.Decimal `gorm:"type:decimal(20,8)"`

	NotificationSent  bool `gorm:"index:idx_snapshot_notification,priority:1"`
	NotificationLevel int  `gorm:"index:idx_snapshot_notification,priority:2"`

	CreatedAt time.Time
}
