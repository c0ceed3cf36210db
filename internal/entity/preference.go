package entity

import (
	"time"
)

// NotificationPreference 用户通知偏好
type NotificationPreference struct {
	Id           int64  `gorm:"primaryKey;autoIncrement"`
	SubscriberId string `gorm:"uniqueIndex"`

	NotificationsEnabled bool
	UrgencyThreshold     int      // 1-4, 用户希望接收的最低紧急程度
	Level2Cooldown       int      // 分钟
	Level3Cooldown       int      // 分钟
	DailySummaryTime     string   // HH:MM, 本地时间
	MuteHours            []string `gorm:"serializer:json"` // ["23:00-07:00"]
	Timezone             string   // IANA, 为空时使用 UTC

	TrailingStopEnabled bool
	AutoAdjustSl        bool
	PartialExitEnabled  bool

	WebhookEnabled  bool
	WebhookUrl      string
	TelegramEnabled bool
	TelegramChatId  int64
	EmailEnabled    bool
	Email           string
	BrowserEnabled  bool

	MinConfidence          float64
	MaxNotificationsPerDay int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPreference 用户未配置偏好时使用的安全默认值
func DefaultPreference(subscriberId string) NotificationPreference {
	return NotificationPreference{
		SubscriberId:           subscriberId,
		NotificationsEnabled:   true,
		UrgencyThreshold:       3,
		Level2Cooldown:         30,
		Level3Cooldown:         60,
		DailySummaryTime:       "08:00",
		Timezone:               "UTC",
		BrowserEnabled:         true,
		MinConfidence:          0.5,
		MaxNotificationsPerDay: 20,
	}
}

// Location 解析用户时区, 非法时区回退到 UTC
func (p NotificationPreference) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}
