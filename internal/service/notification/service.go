package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KNICEX/trading-monitor/internal/repo"
	"github.com/google/uuid"
)

type Outcome struct {
	Decision Decision
	Results  []DeliveryResult
	// Sent 至少一个渠道尝试过投递
	Sent bool
	// Delivered 至少一个渠道投递成功
	Delivered bool
}

// Sink 评估器把候选通知交给 Sink, 不直接调用渠道.
// 返回 nil 错误时, 持仓来源的候选必须已通过 SnapshotRepo.MarkNotification 回写快照;
// 返回错误时快照保持未处理, 由下一轮重新提交
type Sink interface {
	Submit(ctx context.Context, c Candidate) (Outcome, error)
}

type Dispatcher struct {
	gate      *Gate
	router    *Router
	prefRepo  repo.PreferenceRepo
	snapshots repo.SnapshotRepo
}

func NewDispatcher(gate *Gate, router *Router, prefRepo repo.PreferenceRepo, snapshots repo.SnapshotRepo) *Dispatcher {
	return &Dispatcher{
		gate:      gate,
		router:    router,
		prefRepo:  prefRepo,
		snapshots: snapshots,
	}
}

func (d *Dispatcher) Submit(ctx context.Context, c Candidate) (Outcome, error) {
	if c.Id == "" {
		c.Id = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	pref, err := d.prefRepo.Get(ctx, c.SubscriberId)
	if err != nil {
		return Outcome{}, fmt.Errorf("get preference of %s: %w", c.SubscriberId, err)
	}

	// 出错时不回写快照, 候选在下一轮重新提交
	decision, err := d.gate.Admit(ctx, c, pref)
	if err != nil {
		return Outcome{}, fmt.Errorf("admit notification %s: %w", c.Id, err)
	}
	outcome := Outcome{Decision: decision}
	if !decision.Allow {
		d.audit(ctx, c, outcome)
		return outcome, nil
	}

	channels := EnabledChannels(pref)
	if len(channels) > 0 {
		outcome.Results = d.router.Dispatch(ctx, RecipientOf(pref), PayloadOf(c, decision.Level), channels)
		outcome.Sent = AnyAttempted(outcome.Results)
		outcome.Delivered = AnySucceeded(outcome.Results)
	} else {
		slog.Warn("admitted notification has no enabled channel", "subscriber", c.SubscriberId, "notification", c.Id)
	}

	// 投递结果不影响后续流程, 使用独立 context 保证回写
	logCtx := context.WithoutCancel(ctx)
	if outcome.Sent {
		err = d.gate.Commit(logCtx, decision)
	} else {
		err = d.gate.Release(logCtx, decision)
	}
	if err != nil {
		slog.Error("failed to finalize notification log", "subscriber", c.SubscriberId, "notification", c.Id, "sent", outcome.Sent, "error", err)
	}

	d.audit(logCtx, c, outcome)
	return outcome, nil
}

// audit 持仓来源的候选回写快照的通知级别, 放行与拦截都会回写; 未发送时 sent 保持 false
func (d *Dispatcher) audit(ctx context.Context, c Candidate, outcome Outcome) {
	if c.Origin != OriginPosition || c.SnapshotId == 0 {
		return
	}
	err := d.snapshots.MarkNotification(ctx, c.SnapshotId, outcome.Sent, int(outcome.Decision.Level))
	if err != nil {
		slog.Error("failed to mark snapshot notification", "snapshot", c.SnapshotId, "position", c.PositionId, "error", err)
	}
}
