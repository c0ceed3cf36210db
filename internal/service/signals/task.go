package signals

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
)

// Task 信号变化检测, 每个事件交给 notification.Sink
type Task struct {
	detector *Detector
	sink     notification.Sink
}

func NewTask(detector *Detector, sink notification.Sink) *Task {
	return &Task{
		detector: detector,
		sink:     sink,
	}
}

func (t *Task) Name() string {
	return "signal-change-detector"
}

func (t *Task) Run(ctx context.Context) error {
	events, err := t.detector.DetectChanges(ctx)
	if err != nil {
		return err
	}
	for _, e := range events {
		outcome, err := t.sink.Submit(ctx, ToCandidate(e))
		if err != nil {
			slog.Error("failed to submit signal change", "subscriber", e.SubscriberId, "pair", e.Key.Pair, "timeframe", e.Key.Timeframe, "error", err)
			continue
		}
		slog.Info("signal change processed", "subscriber", e.SubscriberId, "pair", e.Key.Pair,
			"timeframe", e.Key.Timeframe, "kind", e.Kind, "level", outcome.Decision.Level,
			"admitted", outcome.Decision.Allow, "sent", outcome.Sent)
	}
	return nil
}

func ToCandidate(e ChangeEvent) notification.Candidate {
	var title string
	switch e.Kind {
	case ChangeInitial:
		title = fmt.Sprintf("%s %s signal: %s", e.Key.Pair, e.Key.Timeframe, e.Current.Action)
	case ChangeAction:
		title = fmt.Sprintf("%s %s signal changed: %s -> %s", e.Key.Pair, e.Key.Timeframe, e.Previous.Action, e.Current.Action)
	default:
		title = fmt.Sprintf("%s %s %s confidence moved %+.2f", e.Key.Pair, e.Key.Timeframe, e.Current.Action, e.Delta)
	}
	return notification.Candidate{
		Origin:              notification.OriginSignal,
		SubscriberId:        e.SubscriberId,
		Pair:                e.Key.Pair,
		Timeframe:           e.Key.Timeframe,
		Confidence:          e.Current.Confidence,
		ReversalProbability: e.Signal.ReversalProbability,
		SignalAction:        string(e.Current.Action),
		PreviousAction:      string(e.Previous.Action),
		ConfidenceDelta:     e.Delta,
		ActionChanged:       e.Kind == ChangeAction,
		InitialSignal:       e.Kind == ChangeInitial,
		Title:               title,
		Message: fmt.Sprintf("confidence %.2f, trend %s (strength %.2f), reversal probability %.2f",
			e.Current.Confidence, e.Signal.TrendDirection, e.Signal.TrendStrength, e.Signal.ReversalProbability),
		CreatedAt: e.Current.Timestamp,
	}
}
