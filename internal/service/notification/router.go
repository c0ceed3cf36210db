package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KNICEX/trading-monitor/internal/metrics"
	"github.com/samber/lo"
)

var errSkipped = errors.New("no sender registered")

// Router 把一条通知并发扇出到各渠道, 单个渠道的错误/超时/panic 只影响自己的结果
type Router struct {
	senders map[Channel]Sender
	timeout time.Duration
}

type RouterOption func(r *Router)

func WithChannelTimeout(timeout time.Duration) RouterOption {
	return func(r *Router) {
		r.timeout = timeout
	}
}

func WithSender(sender Sender) RouterOption {
	return func(r *Router) {
		r.register(sender)
	}
}

func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		senders: make(map[Channel]Sender),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) register(sender Sender) {
	r.senders[sender.Channel()] = sender
}

func (r *Router) Channels() []Channel {
	return lo.Keys(r.senders)
}

// Dispatch 返回结果顺序与 channels 一致
func (r *Router) Dispatch(ctx context.Context, to Recipient, payload Payload, channels []Channel) []DeliveryResult {
	channels = lo.Uniq(channels)
	results := make([]DeliveryResult, len(channels))

	var wg sync.WaitGroup
	for i, ch := range channels {
		sender, ok := r.senders[ch]
		if !ok {
			results[i] = DeliveryResult{Channel: ch, Err: errSkipped}
			metrics.Deliveries.WithLabelValues(string(ch), "skipped").Inc()
			continue
		}
		wg.Add(1)
		go func(i int, sender Sender) {
			defer wg.Done()
			results[i] = r.send(ctx, sender, to, payload)
		}(i, sender)
	}
	wg.Wait()
	return results
}

func (r *Router) send(ctx context.Context, sender Sender, to Recipient, payload Payload) (res DeliveryResult) {
	ch := sender.Channel()
	res = DeliveryResult{Channel: ch, Attempted: true}
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Err = fmt.Errorf("channel %s panic: %v", ch, p)
		}
		res.Duration = time.Since(start)

		status := "success"
		switch {
		case !res.Attempted:
			status = "skipped"
		case res.Err != nil:
			status = "failed"
			slog.Error("failed to deliver notification", "channel", ch, "subscriber", to.SubscriberId, "notification", payload.Id, "error", res.Err)
		}
		metrics.Deliveries.WithLabelValues(string(ch), status).Inc()
		metrics.DeliveryLatency.WithLabelValues(string(ch)).Observe(res.Duration.Seconds())
	}()

	sendCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	err := sender.Send(sendCtx, to, payload)
	if errors.Is(err, ErrNotConfigured) {
		res.Attempted = false
	}
	res.Err = err
	res.Success = err == nil
	return res
}

// AnyAttempted 至少一个渠道尝试过即视为已发送 (用于冷却与审计)
func AnyAttempted(results []DeliveryResult) bool {
	return lo.SomeBy(results, func(r DeliveryResult) bool {
		return r.Attempted
	})
}

func AnySucceeded(results []DeliveryResult) bool {
	return lo.SomeBy(results, func(r DeliveryResult) bool {
		return r.Success
	})
}
