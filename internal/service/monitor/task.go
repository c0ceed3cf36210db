package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/metrics"
	"github.com/KNICEX/trading-monitor/internal/repo"
	"github.com/KNICEX/trading-monitor/internal/service/market"
	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"golang.org/x/sync/errgroup"
)

type TaskConfig struct {
	Workers     int
	CallTimeout time.Duration
	Levels      notification.Thresholds
}

func DefaultTaskConfig() TaskConfig {
	return TaskConfig{
		Workers:     8,
		CallTimeout: 5 * time.Second,
		Levels:      notification.DefaultThresholds(),
	}
}

// PositionMonitorTask 每轮评估所有未平仓持仓, 单个持仓失败不影响其它持仓
type PositionMonitorTask struct {
	positions repo.PositionRepo
	snapshots repo.SnapshotRepo
	prefs     repo.PreferenceRepo
	market    market.Provider
	predictor predictor.Predictor
	evaluator *Evaluator
	sink      notification.Sink
	cfg       TaskConfig
	now       func() time.Time
}

func NewPositionMonitorTask(positions repo.PositionRepo, snapshots repo.SnapshotRepo, prefs repo.PreferenceRepo,
	provider market.Provider, p predictor.Predictor, evaluator *Evaluator, sink notification.Sink, cfg TaskConfig) *PositionMonitorTask {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &PositionMonitorTask{
		positions: positions,
		snapshots: snapshots,
		prefs:     prefs,
		market:    provider,
		predictor: p,
		evaluator: evaluator,
		sink:      sink,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (t *PositionMonitorTask) Name() string {
	return "position-monitor"
}

func (t *PositionMonitorTask) Run(ctx context.Context) error {
	positions, err := t.positions.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list open positions: %w", err)
	}

	eg := errgroup.Group{}
	eg.SetLimit(t.cfg.Workers)
	for _, p := range positions {
		p := p
		eg.Go(func() error {
			if err := t.evaluateOne(ctx, p); err != nil {
				metrics.UnitFailures.WithLabelValues("position", unitFailureKind(err)).Inc()
				slog.Error("failed to evaluate position, skipped this cycle", "position", p.Id, "pair", p.Pair, "error", err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func (t *PositionMonitorTask) evaluateOne(ctx context.Context, p entity.Position) error {
	pref, err := t.prefs.Get(ctx, p.SubscriberId)
	if err != nil {
		return fmt.Errorf("get preference: %w", err)
	}

	quote, err := t.currentPrice(ctx, p.Pair)
	if err != nil {
		return fmt.Errorf("get current price: %w", err)
	}
	signal, err := t.signal(ctx, p.Pair, p.MonitorTimeframe())
	if err != nil {
		return fmt.Errorf("get signal: %w", err)
	}

	prev, err := t.snapshots.FindLatest(ctx, p.Id)
	hasPrev := err == nil
	if err != nil && !repo.IsNotFound(err) {
		return fmt.Errorf("find latest snapshot: %w", err)
	}

	now := t.now()
	if hasPrev && !now.After(prev.Timestamp) {
		// 时钟回拨时保持快照时间严格递增
		now = prev.Timestamp.Add(time.Millisecond)
	}

	snapshot, rule := t.evaluator.evaluate(Input{
		Position:   p,
		Quote:      quote,
		Signal:     signal,
		Preference: pref,
		Now:        now,
	})
	candidate := t.candidate(p, snapshot)

	// hold 不通知; 建议未变化且上一条已处理过也不再通知
	notify := snapshot.Recommendation != entity.RecommendHold &&
		(!hasPrev || prev.Recommendation != snapshot.Recommendation || pendingNotification(prev))
	if !notify {
		snapshot.NotificationLevel = int(notification.Classify(candidate, t.cfg.Levels))
	}

	id, err := t.snapshots.Create(ctx, snapshot)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	slog.Debug("position evaluated", "position", p.Id, "pair", p.Pair, "rule", rule, "recommendation", snapshot.Recommendation)
	if !notify {
		return nil
	}

	// Submit 失败时快照保持未处理 (NotificationLevel 为 0), 下一轮重新提交
	candidate.SnapshotId = id
	outcome, err := t.sink.Submit(ctx, candidate)
	if err != nil {
		return fmt.Errorf("submit notification: %w", err)
	}
	slog.Info("position recommendation changed", "position", p.Id, "pair", p.Pair,
		"recommendation", snapshot.Recommendation, "level", outcome.Decision.Level,
		"admitted", outcome.Decision.Allow, "reason", outcome.Decision.Reason,
		"sent", outcome.Sent, "delivered", outcome.Delivered)
	return nil
}

// pendingNotification 需要通知的快照在 Sink 处理后才会写入通知级别
func pendingNotification(s entity.PositionSnapshot) bool {
	return s.Recommendation != entity.RecommendHold && s.NotificationLevel == 0
}

func (t *PositionMonitorTask) currentPrice(ctx context.Context, pair string) (market.Quote, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()
	return t.market.GetCurrentPrice(callCtx, pair)
}

func (t *PositionMonitorTask) signal(ctx context.Context, pair, timeframe string) (predictor.Signal, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()
	return t.predictor.GetSignal(callCtx, pair, timeframe)
}

func (t *PositionMonitorTask) candidate(p entity.Position, s entity.PositionSnapshot) notification.Candidate {
	return notification.Candidate{
		Origin:              notification.OriginPosition,
		SubscriberId:        p.SubscriberId,
		Pair:                p.Pair,
		Timeframe:           s.Timeframe,
		Confidence:          s.RecommendationConfidence,
		PositionId:          p.Id,
		Recommendation:      s.Recommendation,
		ReversalProbability: s.ReversalProbability,
		Title:               fmt.Sprintf("%s %s position: %s", p.Pair, p.Direction, s.Recommendation),
		Message:             describe(s),
		CreatedAt:           s.Timestamp,
	}
}

func describe(s entity.PositionSnapshot) string {
	msg := fmt.Sprintf("price %s, pnl %s pips (%.2f%%). %s", s.CurrentPrice, s.UnrealizedPnlPips, s.UnrealizedPnlPercentage, s.Reasoning)
	if s.SuggestedStopLoss != nil {
		msg += fmt.Sprintf(". suggested stop loss %s", s.SuggestedStopLoss)
	}
	if s.SuggestedTakeProfit != nil {
		msg += fmt.Sprintf(". suggested take profit %s", s.SuggestedTakeProfit)
	}
	return msg
}

func unitFailureKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, predictor.ErrPredictionUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
