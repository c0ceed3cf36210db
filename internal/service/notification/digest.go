package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/repo"
	"github.com/samber/lo"
)

const (
	digestSubject   = "digest"
	digestTimeframe = "1d"
	defaultDigestAt = 8 * time.Hour
)

// DigestTask 每个订阅者每个本地自然日一条 4 级摘要;
// 因静音/上限/冷却被拦截的摘要保持待发送, 当天下一次 tick 重试
type DigestTask struct {
	sink          Sink
	prefRepo      repo.PreferenceRepo
	positionRepo  repo.PositionRepo
	snapshotRepo  repo.SnapshotRepo
	subscriptions repo.SubscriptionRepo
	counter       Log
	now           func() time.Time

	mu   sync.Mutex
	done map[string]string // subscriberId -> 已完成的本地日期
}

type DigestOption func(t *DigestTask)

// WithDailyCount 摘要正文附带当天已发送的通知数
func WithDailyCount(log Log) DigestOption {
	return func(t *DigestTask) {
		t.counter = log
	}
}

func NewDigestTask(sink Sink, prefRepo repo.PreferenceRepo, positionRepo repo.PositionRepo,
	snapshotRepo repo.SnapshotRepo, subscriptions repo.SubscriptionRepo, opts ...DigestOption) *DigestTask {
	t := &DigestTask{
		sink:          sink,
		prefRepo:      prefRepo,
		positionRepo:  positionRepo,
		snapshotRepo:  snapshotRepo,
		subscriptions: subscriptions,
		now:           time.Now,
		done:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DigestTask) Name() string {
	return "daily-digest"
}

func (t *DigestTask) Run(ctx context.Context) error {
	prefs, err := t.prefRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("list preferences: %w", err)
	}
	subs, err := t.subscriptions.List(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	subCount := lo.CountValuesBy(subs, func(s entity.Subscription) string {
		return s.SubscriberId
	})

	now := t.now()
	for _, pref := range prefs {
		if !pref.NotificationsEnabled {
			continue
		}
		loc, err := pref.Location()
		if err != nil {
			slog.Warn("invalid subscriber timezone, fallback to UTC", "subscriber", pref.SubscriberId, "timezone", pref.Timezone)
		}
		local := now.In(loc)
		day := local.Format(time.DateOnly)
		if t.isDone(pref.SubscriberId, day) {
			continue
		}
		dayStart := LocalDayStart(now, loc)
		if local.Sub(dayStart) < summaryOffset(pref) {
			continue
		}

		if err = t.deliver(ctx, pref, day, dayStart, subCount[pref.SubscriberId]); err != nil {
			slog.Error("failed to send daily digest", "subscriber", pref.SubscriberId, "day", day, "error", err)
		}
	}
	return nil
}

func (t *DigestTask) deliver(ctx context.Context, pref entity.NotificationPreference, day string, dayStart time.Time, subscriptions int) error {
	body, err := t.buildBody(ctx, pref.SubscriberId, subscriptions)
	if err != nil {
		return err
	}
	if t.counter != nil {
		count, err := t.counter.CountToday(ctx, pref.SubscriberId, dayStart)
		if err != nil {
			slog.Warn("failed to count today's notifications", "subscriber", pref.SubscriberId, "error", err)
		} else {
			body += fmt.Sprintf("\nNotifications today: %d", count)
		}
	}
	outcome, err := t.sink.Submit(ctx, Candidate{
		Origin:       OriginDigest,
		SubscriberId: pref.SubscriberId,
		Pair:         digestSubject,
		Timeframe:    digestTimeframe,
		Confidence:   1,
		Title:        fmt.Sprintf("Daily summary %s", day),
		Message:      body,
		CreatedAt:    t.now(),
	})
	if err != nil {
		return err
	}

	switch {
	case outcome.Sent:
		t.markDone(pref.SubscriberId, day)
	case outcome.Decision.Allow:
		// 没有可用渠道, 当天不再重试
		t.markDone(pref.SubscriberId, day)
	case outcome.Decision.Reason == DropDisabled, outcome.Decision.Reason == DropThreshold:
		t.markDone(pref.SubscriberId, day)
	default:
		slog.Debug("daily digest pending", "subscriber", pref.SubscriberId, "day", day, "reason", outcome.Decision.Reason)
	}
	return nil
}

func (t *DigestTask) buildBody(ctx context.Context, subscriberId string, subscriptions int) (string, error) {
	positions, err := t.positionRepo.FindOpenBySubscriber(ctx, subscriberId)
	if err != nil {
		return "", fmt.Errorf("find open positions: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Open positions: %d, signal subscriptions: %d\n", len(positions), subscriptions)
	for _, p := range positions {
		snapshot, err := t.snapshotRepo.FindLatest(ctx, p.Id)
		if err != nil {
			if repo.IsNotFound(err) {
				fmt.Fprintf(&sb, "- %s %s entry %s: not evaluated yet\n", p.Pair, p.Direction, p.EntryPrice)
				continue
			}
			return "", fmt.Errorf("find latest snapshot of position %d: %w", p.Id, err)
		}
		fmt.Fprintf(&sb, "- %s %s entry %s price %s pnl %s pips (%.2f%%) trend %s -> %s\n",
			p.Pair, p.Direction, p.EntryPrice, snapshot.CurrentPrice,
			snapshot.UnrealizedPnlPips, snapshot.UnrealizedPnlPercentage,
			snapshot.TrendDirection, snapshot.Recommendation)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (t *DigestTask) isDone(subscriberId, day string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done[subscriberId] == day
}

func (t *DigestTask) markDone(subscriberId, day string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done[subscriberId] = day
}

func summaryOffset(pref entity.NotificationPreference) time.Duration {
	offset, err := ParseClock(pref.DailySummaryTime)
	if err != nil {
		slog.Warn("invalid daily summary time, fallback to default", "subscriber", pref.SubscriberId, "value", pref.DailySummaryTime, "error", err)
		return defaultDigestAt
	}
	return offset
}
