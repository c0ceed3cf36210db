package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
)

type RetryPolicy struct {
	Attempts int
	Min      time.Duration
	Max      time.Duration
	Factor   float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Min:      200 * time.Millisecond,
		Max:      2 * time.Second,
		Factor:   2,
	}
}

type retrySender struct {
	Sender
	policy RetryPolicy
}

// WithRetry 渠道内部的有限次重试, 引擎本身不会重新排队
func WithRetry(sender Sender, policy RetryPolicy) Sender {
	if policy.Attempts <= 1 {
		return sender
	}
	return &retrySender{
		Sender: sender,
		policy: policy,
	}
}

func (s *retrySender) Send(ctx context.Context, to Recipient, payload Payload) error {
	b := &backoff.Backoff{
		Min:    s.policy.Min,
		Max:    s.policy.Max,
		Factor: s.policy.Factor,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= s.policy.Attempts; attempt++ {
		err = s.Sender.Send(ctx, to, payload)
		if err == nil || errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrRejected) {
			return err
		}
		if attempt == s.policy.Attempts {
			break
		}

		wait := b.Duration()
		slog.Warn("channel send failed, retrying", "channel", s.Channel(), "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(wait):
		}
	}
	return err
}
