package telegram

import (
	"context"
	"fmt"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var ErrNoChatID = fmt.Errorf("%w: empty telegram chat id", notification.ErrNotConfigured)

// BotAPI tgbotapi.BotAPI 中用到的部分
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Sender struct {
	api BotAPI
}

func NewSender(api BotAPI) *Sender {
	return &Sender{
		api: api,
	}
}

// NewBotSender 使用 bot token 创建
func NewBotSender(token string) (*Sender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return NewSender(api), nil
}

func (s *Sender) Channel() notification.Channel {
	return notification.ChannelTelegram
}

func (s *Sender) Send(ctx context.Context, to notification.Recipient, payload notification.Payload) error {
	if to.TelegramChatId == 0 {
		return ErrNoChatID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(to.TelegramChatId, format(payload))
	msg.DisableWebPagePreview = true
	// 只有紧急通知响铃
	msg.DisableNotification = payload.Level != notification.LevelUrgent

	// tgbotapi 不支持 context, 放到 goroutine 里保证超时能返回
	errCh := make(chan error, 1)
	go func() {
		_, err := s.api.Send(msg)
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("telegram send to %d: %w", to.TelegramChatId, err)
		}
		return nil
	}
}

func format(payload notification.Payload) string {
	icon := "ℹ️"
	switch payload.Level {
	case notification.LevelUrgent:
		icon = "🚨"
	case notification.LevelImportant:
		icon = "⚠️"
	case notification.LevelSummary:
		icon = "📋"
	}
	return fmt.Sprintf("%s %s", icon, payload.Text())
}
