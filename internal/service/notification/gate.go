package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/metrics"
)

type DropReason string

const (
	DropNone          DropReason = ""
	DropDisabled      DropReason = "disabled"
	DropLowConfidence DropReason = "low_confidence"
	DropThreshold     DropReason = "below_threshold"
	DropMuted         DropReason = "muted"
	DropCooldown      DropReason = "cooldown"
	DropDailyCap      DropReason = "daily_cap"
)

type Decision struct {
	Allow  bool
	Level  Level
	Reason DropReason
	Key    LogKey
	At     time.Time

	reservation *Reservation
}

type GateConfig struct {
	Thresholds Thresholds
	// 偏好中冷却时间非法时使用
	DefaultLevel2Cooldown time.Duration
	DefaultLevel3Cooldown time.Duration
	SummaryCooldown       time.Duration
	DefaultMaxPerDay      int
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		Thresholds:            DefaultThresholds(),
		DefaultLevel2Cooldown: 30 * time.Minute,
		DefaultLevel3Cooldown: 60 * time.Minute,
		SummaryCooldown:       12 * time.Hour,
		DefaultMaxPerDay:      20,
	}
}

// Gate 紧急程度分级 + 冷却/静音/每日上限
type Gate struct {
	log Log
	cfg GateConfig
	now func() time.Time
}

type GateOption func(g *Gate)

func WithGateConfig(cfg GateConfig) GateOption {
	return func(g *Gate) {
		g.cfg = cfg
	}
}

func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		g.now = now
	}
}

func NewGate(log Log, opts ...GateOption) *Gate {
	g := &Gate{
		log: log,
		cfg: DefaultGateConfig(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Classify(c Candidate) Level {
	return Classify(c, g.cfg.Thresholds)
}

// Admit 通过时, 2-4 级已在 Log 中预留冷却与每日额度, 调用方必须 Commit 或 Release
func (g *Gate) Admit(ctx context.Context, c Candidate, pref entity.NotificationPreference) (Decision, error) {
	level := g.Classify(c)
	now := g.now()
	d := Decision{
		Level: level,
		At:    now,
		Key: LogKey{
			SubscriberId: c.SubscriberId,
			Subject:      c.Pair,
			Timeframe:    c.Timeframe,
			Level:        level,
		},
	}

	if !pref.NotificationsEnabled {
		return g.drop(d, DropDisabled), nil
	}
	if level == LevelUrgent {
		d.Allow = true
		g.record(d)
		return d, nil
	}

	if c.Confidence < pref.MinConfidence {
		return g.drop(d, DropLowConfidence), nil
	}
	if int(level) > pref.UrgencyThreshold {
		return g.drop(d, DropThreshold), nil
	}

	loc, err := pref.Location()
	if err != nil {
		slog.Warn("invalid subscriber timezone, fallback to UTC", "subscriber", pref.SubscriberId, "timezone", pref.Timezone, "error", err)
	}
	windows, err := ParseMuteWindows(pref.MuteHours)
	if err != nil {
		slog.Warn("invalid mute hours, fallback to no mute window", "subscriber", pref.SubscriberId, "mute_hours", pref.MuteHours, "error", err)
		windows = nil
	}
	if InMuteHours(windows, now.In(loc)) {
		return g.drop(d, DropMuted), nil
	}

	r, err := g.log.Claim(ctx, ClaimRequest{
		Key:       d.Key,
		Now:       now,
		Cooldown:  g.cooldown(level, pref),
		DayStart:  LocalDayStart(now, loc),
		MaxPerDay: g.maxPerDay(pref),
	})
	switch {
	case errors.Is(err, ErrCooldown):
		return g.drop(d, DropCooldown), nil
	case errors.Is(err, ErrDailyCap):
		return g.drop(d, DropDailyCap), nil
	case err != nil:
		return d, fmt.Errorf("claim notification log: %w", err)
	}

	d.Allow = true
	d.reservation = &r
	g.record(d)
	return d, nil
}

// Commit 至少一个渠道已尝试投递
func (g *Gate) Commit(ctx context.Context, d Decision) error {
	if !d.Allow {
		return nil
	}
	if d.reservation == nil {
		return g.log.Touch(ctx, d.Key, d.At)
	}
	return g.log.Commit(ctx, *d.reservation)
}

// Release 没有任何渠道尝试投递, 归还冷却与额度
func (g *Gate) Release(ctx context.Context, d Decision) error {
	if !d.Allow || d.reservation == nil {
		return nil
	}
	return g.log.Release(ctx, *d.reservation)
}

func (g *Gate) cooldown(level Level, pref entity.NotificationPreference) time.Duration {
	switch level {
	case LevelImportant:
		if pref.Level2Cooldown < 0 {
			slog.Warn("invalid level2 cooldown, fallback to default", "subscriber", pref.SubscriberId, "cooldown", pref.Level2Cooldown)
			return g.cfg.DefaultLevel2Cooldown
		}
		return time.Duration(pref.Level2Cooldown) * time.Minute
	case LevelGeneral:
		if pref.Level3Cooldown < 0 {
			slog.Warn("invalid level3 cooldown, fallback to default", "subscriber", pref.SubscriberId, "cooldown", pref.Level3Cooldown)
			return g.cfg.DefaultLevel3Cooldown
		}
		return time.Duration(pref.Level3Cooldown) * time.Minute
	case LevelSummary:
		return g.cfg.SummaryCooldown
	default:
		return 0
	}
}

func (g *Gate) maxPerDay(pref entity.NotificationPreference) int {
	if pref.MaxNotificationsPerDay <= 0 {
		slog.Warn("invalid daily cap, fallback to default", "subscriber", pref.SubscriberId, "max_per_day", pref.MaxNotificationsPerDay)
		return g.cfg.DefaultMaxPerDay
	}
	return pref.MaxNotificationsPerDay
}

func (g *Gate) drop(d Decision, reason DropReason) Decision {
	d.Allow = false
	d.Reason = reason
	g.record(d)
	return d
}

func (g *Gate) record(d Decision) {
	outcome := "admitted"
	if !d.Allow {
		outcome = string(d.Reason)
		slog.Debug("notification dropped", "subscriber", d.Key.SubscriberId, "pair", d.Key.Subject, "timeframe", d.Key.Timeframe, "level", d.Level, "reason", d.Reason)
	}
	metrics.GateDecisions.WithLabelValues(d.Level.String(), outcome).Inc()
}
