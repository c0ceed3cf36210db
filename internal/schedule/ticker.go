package schedule

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KNICEX/trading-monitor/internal/metrics"
)

// Ticker 按固定间隔执行 Task; 上一轮未结束时跳过本次 tick.
// 取消只在 tick 边界生效, 正在执行的一轮不会被中断
type Ticker struct {
	task      Task
	interval  time.Duration
	immediate bool

	busy    atomic.Bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	stopped chan struct{}
}

type TickerOption func(t *Ticker)

// RunImmediately 启动时立即执行一轮
func RunImmediately() TickerOption {
	return func(t *Ticker) {
		t.immediate = true
	}
}

func NewTicker(task Task, interval time.Duration, opts ...TickerOption) *Ticker {
	t := &Ticker{
		task:     task,
		interval: interval,
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start 阻塞直到 ctx 取消或 Stop, 返回前等待正在执行的一轮结束
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	defer t.wg.Wait()

	slog.Info("schedule task started", "task", t.task.Name(), "interval", t.interval)
	if t.immediate {
		t.Tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("schedule task stopping", "task", t.task.Name(), "reason", ctx.Err())
			return
		case <-t.stopped:
			slog.Info("schedule task stopping", "task", t.task.Name())
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick 异步触发一轮, 返回是否真正开始执行
func (t *Ticker) Tick(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	if !t.busy.CompareAndSwap(false, true) {
		metrics.TicksTotal.WithLabelValues(t.task.Name(), "skipped").Inc()
		slog.Warn("previous run not finished, tick skipped", "task", t.task.Name())
		return false
	}
	metrics.TicksTotal.WithLabelValues(t.task.Name(), "run").Inc()

	runCtx := context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.busy.Store(false)
		t.run(runCtx)
	}()
	return true
}

func (t *Ticker) run(ctx context.Context) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("schedule task panic", "task", t.task.Name(), "panic", r)
		}
		metrics.SweepDuration.WithLabelValues(t.task.Name()).Observe(time.Since(start).Seconds())
	}()

	if err := t.task.Run(ctx); err != nil {
		slog.Error("schedule task failed", "task", t.task.Name(), "error", err)
		return
	}
	slog.Debug("schedule task finished", "task", t.task.Name(), "duration", time.Since(start))
}

// Busy 当前是否有一轮在执行
func (t *Ticker) Busy() bool {
	return t.busy.Load()
}

// Stop 停止调度并等待正在执行的一轮结束
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.stopped)
	}
	t.mu.Unlock()
	t.wg.Wait()
}
