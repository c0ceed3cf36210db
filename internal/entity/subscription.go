package entity

import "time"

// Subscription 用户订阅的 (交易对, 周期) 信号
type Subscription struct {
	Id           int64  `gorm:"primaryKey;autoIncrement"`
	SubscriberId string `gorm:"uniqueIndex:idx_subscription_unique,priority:1"`
	Pair         string `gorm:"uniqueIndex:idx_subscription_unique,priority:2"`
	Timeframe    string `gorm:"uniqueIndex:idx_subscription_unique,priority:3"`
	CreatedAt    time.Time
}
