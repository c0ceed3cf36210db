package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/metrics"
	"github.com/KNICEX/trading-monitor/internal/repo"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// 浮点误差
const epsilon = 1e-9

type ChangeKind string

const (
	ChangeInitial    ChangeKind = "initial"
	ChangeAction     ChangeKind = "action"
	ChangeConfidence ChangeKind = "confidence"
)

// ChangeEvent 每个订阅者一条
type ChangeEvent struct {
	SubscriberId string
	Key          Key
	Kind         ChangeKind
	Previous     State
	Current      State
	Delta        float64
	Signal       predictor.Signal
}

func (e ChangeEvent) ActionChanged() bool {
	return e.Kind == ChangeAction
}

type Config struct {
	ConfidenceDelta float64
	// NotifyInitial 首次观测是否产生 (非紧急的) 事件
	NotifyInitial bool
	Workers       int
	CallTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConfidenceDelta: 0.05,
		NotifyInitial:   true,
		Workers:         8,
		CallTimeout:     5 * time.Second,
	}
}

type Detector struct {
	subs      repo.SubscriptionRepo
	predictor predictor.Predictor
	store     StateStore
	cfg       Config
}

func NewDetector(subs repo.SubscriptionRepo, p predictor.Predictor, store StateStore, cfg Config) *Detector {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Detector{
		subs:      subs,
		predictor: p,
		store:     store,
		cfg:       cfg,
	}
}

// DetectChanges 按 (pair, timeframe) 去重后每组只请求一次模型;
// 单组失败只记录日志, 不影响其它组
func (d *Detector) DetectChanges(ctx context.Context) ([]ChangeEvent, error) {
	subs, err := d.subs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	groups := lo.GroupBy(subs, func(s entity.Subscription) Key {
		return Key{Pair: s.Pair, Timeframe: s.Timeframe}
	})

	var (
		mu     sync.Mutex
		events []ChangeEvent
	)
	eg := errgroup.Group{}
	eg.SetLimit(d.cfg.Workers)
	for key, members := range groups {
		key := key
		subscribers := lo.Uniq(lo.Map(members, func(s entity.Subscription, _ int) string {
			return s.SubscriberId
		}))
		eg.Go(func() error {
			unitEvents, err := d.detectOne(ctx, key, subscribers)
			if err != nil {
				metrics.UnitFailures.WithLabelValues("signal", failureKind(err)).Inc()
				slog.Error("failed to detect signal change", "pair", key.Pair, "timeframe", key.Timeframe, "error", err)
				return nil
			}
			mu.Lock()
			events = append(events, unitEvents...)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	sort.Slice(events, func(i, j int) bool {
		if events[i].Key != events[j].Key {
			return events[i].Key.String() < events[j].Key.String()
		}
		return events[i].SubscriberId < events[j].SubscriberId
	})
	return events, nil
}

func (d *Detector) detectOne(ctx context.Context, key Key, subscribers []string) ([]ChangeEvent, error) {
	callCtx := ctx
	if d.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.CallTimeout)
		defer cancel()
	}
	signal, err := d.predictor.GetSignal(callCtx, key.Pair, key.Timeframe)
	if err != nil {
		return nil, err
	}
	signal, fixed := signal.Sanitize()
	if fixed {
		slog.Warn("predictor returned out of range signal, clamped", "pair", key.Pair, "timeframe", key.Timeframe, "signal", signal)
	}
	if signal.Timestamp.IsZero() {
		signal.Timestamp = time.Now()
	}

	prev, ok, err := d.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get signal state: %w", err)
	}
	kind, changed := d.compare(prev, ok, signal)

	// 无论下游是否发送通知都更新缓存
	current, err := d.store.CompareAndSwap(ctx, key, prev.Version, State{
		Action:     signal.Action,
		Confidence: signal.Confidence,
		Timestamp:  signal.Timestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("update signal state: %w", err)
	}

	if !changed {
		return nil, nil
	}
	metrics.SignalChanges.WithLabelValues(string(kind)).Inc()
	if kind == ChangeInitial && !d.cfg.NotifyInitial {
		return nil, nil
	}

	delta := 0.0
	if ok {
		delta = current.Confidence - prev.Confidence
	}
	return lo.Map(subscribers, func(id string, _ int) ChangeEvent {
		return ChangeEvent{
			SubscriberId: id,
			Key:          key,
			Kind:         kind,
			Previous:     prev,
			Current:      current,
			Delta:        delta,
			Signal:       signal,
		}
	}), nil
}

func (d *Detector) compare(prev State, ok bool, signal predictor.Signal) (ChangeKind, bool) {
	if !ok {
		return ChangeInitial, true
	}
	if prev.Action != signal.Action {
		return ChangeAction, true
	}
	if math.Abs(signal.Confidence-prev.Confidence)+epsilon >= d.cfg.ConfidenceDelta {
		return ChangeConfidence, true
	}
	return "", false
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, predictor.ErrPredictionUnavailable):
		return "unavailable"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	default:
		return "error"
	}
}
