package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
)

var ErrNoAddress = fmt.Errorf("%w: empty email address", notification.ErrNotConfigured)

type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// SendFunc 与 smtp.SendMail 签名一致, 测试时替换
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	cfg      Config
	sendMail SendFunc
}

func NewSender(cfg Config) *Sender {
	return &Sender{
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (s *Sender) Channel() notification.Channel {
	return notification.ChannelEmail
}

func (s *Sender) Send(ctx context.Context, to notification.Recipient, payload notification.Payload) error {
	if to.Email == "" {
		return ErrNoAddress
	}
	if s.cfg.Host == "" {
		return fmt.Errorf("%w: smtp host", notification.ErrNotConfigured)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	msg := buildMessage(s.cfg.From, to.Email, payload)

	// net/smtp 不支持 context
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.sendMail(s.cfg.Addr(), auth, s.cfg.From, []string{to.Email}, msg)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", to.Email, err)
		}
		return nil
	}
}

func buildMessage(from, to string, payload notification.Payload) []byte {
	subject := payload.Title
	if payload.Level == notification.LevelUrgent {
		subject = "[URGENT] " + subject
	}
	createdAt := payload.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", createdAt.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(payload.Body, "\n", "\r\n"))
	buf.WriteString("\r\n")
	return buf.Bytes()
}
