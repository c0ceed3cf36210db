package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
)

var ErrNoURL = fmt.Errorf("%w: empty webhook url", notification.ErrNotConfigured)

type message struct {
	SubscriberId string               `json:"subscriber_id"`
	Text         string               `json:"text"`
	Notification notification.Payload `json:"notification"`
}

// Sender 以 JSON POST 推送到订阅者配置的 webhook 地址
type Sender struct {
	client *http.Client
	secret string
}

type Option func(s *Sender)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Sender) {
		s.client = client
	}
}

// WithSecret 通过 X-Monitor-Token 头携带共享密钥
func WithSecret(secret string) Option {
	return func(s *Sender) {
		s.secret = secret
	}
}

func NewSender(opts ...Option) *Sender {
	s := &Sender{
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) Channel() notification.Channel {
	return notification.ChannelWebhook
}

func (s *Sender) Send(ctx context.Context, to notification.Recipient, payload notification.Payload) error {
	if to.WebhookUrl == "" {
		return ErrNoURL
	}
	body, err := json.Marshal(message{
		SubscriberId: to.SubscriberId,
		Text:         payload.Text(),
		Notification: payload,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, to.WebhookUrl, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-Id", payload.Id)
	if s.secret != "" {
		req.Header.Set("X-Monitor-Token", s.secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook responded %s", resp.Status)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: webhook responded %s", notification.ErrRejected, resp.Status)
	default:
		return fmt.Errorf("webhook responded %s", resp.Status)
	}
}
