package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_Send(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s := NewSender(Config{Host: "smtp.local", Port: 587, Username: "bot", Password: "pw", From: "monitor@local"})
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	err := s.Send(context.Background(), notification.Recipient{Email: "u1@mail.local"}, notification.Payload{
		Level:     notification.LevelUrgent,
		Title:     "EUR/USD exit",
		Body:      "line1\nline2",
		CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:587", gotAddr)
	assert.Equal(t, "monitor@local", gotFrom)
	assert.Equal(t, []string{"u1@mail.local"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: [URGENT] EUR/USD exit\r\n")
	assert.Contains(t, string(gotMsg), "To: u1@mail.local\r\n")
	assert.Contains(t, string(gotMsg), "\r\n\r\nline1\r\nline2\r\n")
}

func TestSender_Errors(t *testing.T) {
	s := NewSender(Config{Host: "smtp.local", Port: 25})
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		assert.Nil(t, a)
		return errors.New("550 mailbox unavailable")
	}

	err := s.Send(context.Background(), notification.Recipient{Email: "u1@mail.local"}, notification.Payload{})
	assert.ErrorContains(t, err, "550")

	err = s.Send(context.Background(), notification.Recipient{}, notification.Payload{})
	assert.ErrorIs(t, err, ErrNoAddress)

	err = NewSender(Config{}).Send(context.Background(), notification.Recipient{Email: "u1@mail.local"}, notification.Payload{})
	assert.ErrorIs(t, err, notification.ErrNotConfigured)
	assert.Equal(t, notification.ChannelEmail, s.Channel())
}
