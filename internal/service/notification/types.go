package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
)

var (
	// ErrNotConfigured 渠道缺少地址/凭证, 属于永久错误, 不重试
	ErrNotConfigured = errors.New("channel not configured")
	// ErrRejected 对端明确拒绝 (如 4xx), 已尝试但重试无意义
	ErrRejected   = errors.New("delivery rejected")
	ErrNoChannels = errors.New("no enabled channels")
)

// Level 紧急程度, 数字越小越紧急
type Level int

const (
	LevelUrgent    Level = 1
	LevelImportant Level = 2
	LevelGeneral   Level = 3
	LevelSummary   Level = 4
)

func (l Level) Valid() bool {
	return l >= LevelUrgent && l <= LevelSummary
}

func (l Level) String() string {
	return fmt.Sprintf("L%d", int(l))
}

type Origin string

const (
	OriginPosition Origin = "position"
	OriginSignal   Origin = "signal"
	OriginDigest   Origin = "digest"
)

// Candidate 评估器产生的候选通知, 由 Gate 决定是否放行
type Candidate struct {
	Id           string
	Origin       Origin
	SubscriberId string
	Pair         string
	Timeframe    string
	Confidence   float64

	// 持仓来源
	PositionId          int64
	SnapshotId          int64
	Recommendation      entity.Recommendation
	ReversalProbability float64

	// 信号来源
	SignalAction    string
	PreviousAction  string
	ConfidenceDelta float64
	ActionChanged   bool
	InitialSignal   bool

	Title     string
	Message   string
	CreatedAt time.Time
}

type Channel string

const (
	ChannelWebhook  Channel = "webhook"
	ChannelTelegram Channel = "telegram"
	ChannelEmail    Channel = "email"
	ChannelBrowser  Channel = "browser"
)

// EnabledChannels 按偏好开关返回需要投递的渠道
func EnabledChannels(pref entity.NotificationPreference) []Channel {
	var channels []Channel
	if pref.WebhookEnabled {
		channels = append(channels, ChannelWebhook)
	}
	if pref.TelegramEnabled {
		channels = append(channels, ChannelTelegram)
	}
	if pref.EmailEnabled {
		channels = append(channels, ChannelEmail)
	}
	if pref.BrowserEnabled {
		channels = append(channels, ChannelBrowser)
	}
	return channels
}

// Recipient 各渠道需要的投递地址
type Recipient struct {
	SubscriberId   string
	WebhookUrl     string
	TelegramChatId int64
	Email          string
}

func RecipientOf(pref entity.NotificationPreference) Recipient {
	return Recipient{
		SubscriberId:   pref.SubscriberId,
		WebhookUrl:     pref.WebhookUrl,
		TelegramChatId: pref.TelegramChatId,
		Email:          pref.Email,
	}
}

type Payload struct {
	Id             string    `json:"id"`
	Level          Level     `json:"level"`
	Origin         Origin    `json:"origin"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	Pair           string    `json:"pair,omitempty"`
	Timeframe      string    `json:"timeframe,omitempty"`
	PositionId     int64     `json:"position_id,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Text 纯文本渲染, 渠道自己决定是否再加工
func (p Payload) Text() string {
	var sb strings.Builder
	if p.Level == LevelUrgent {
		sb.WriteString("[URGENT] ")
	}
	sb.WriteString(p.Title)
	if p.Body != "" {
		sb.WriteString("\n")
		sb.WriteString(p.Body)
	}
	return sb.String()
}

func PayloadOf(c Candidate, level Level) Payload {
	return Payload{
		Id:             c.Id,
		Level:          level,
		Origin:         c.Origin,
		Title:          c.Title,
		Body:           c.Message,
		Pair:           c.Pair,
		Timeframe:      c.Timeframe,
		PositionId:     c.PositionId,
		Recommendation: string(c.Recommendation),
		CreatedAt:      c.CreatedAt,
	}
}

// Sender 单个渠道的发送实现, 各渠道独立失败
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, to Recipient, payload Payload) error
}

type DeliveryResult struct {
	Channel   Channel
	Attempted bool
	Success   bool
	Err       error
	Duration  time.Duration
}
