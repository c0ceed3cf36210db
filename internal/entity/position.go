package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

type PositionStatus string

const (
	PositionOpen      PositionStatus = "open"
	PositionClosed    PositionStatus = "closed"
	PositionCancelled PositionStatus = "cancelled"
)

const DefaultTimeframe = "1h"

// Position 用户持仓, 由外部系统维护, 监控引擎只读
type Position struct {
	Id           int64  `gorm:"primaryKey;autoIncrement"`
	SubscriberId string `gorm:"index"`
	Pair         string `gorm:"index"`
	Timeframe    string // 监控周期, 同时作为通知冷却的 key 之一
	Direction    Direction
	EntryPrice   decimal.Decimal `gorm:"type:decimal(20,8)"`
	StopLoss     decimal.Decimal `gorm:"type:decimal(20,8)"`
	TakeProfit   decimal.Decimal `gorm:"type:decimal(20,8)"`
	OpenedAt     time.Time
	Status       PositionStatus `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p Position) IsLong() bool {
	return p.Direction == DirectionLong
}

// MonitorTimeframe 未配置周期的持仓按 1h 处理
func (p Position) MonitorTimeframe() string {
	if p.Timeframe == "" {
		return DefaultTimeframe
	}
	return p.Timeframe
}
