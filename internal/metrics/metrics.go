package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trading_monitor"

// ============ 调度 ============

var TicksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "schedule",
		Name:      "ticks_total",
		Help:      "Scheduler ticks by outcome (run, skipped)",
	},
	[]string{"task", "outcome"},
)

var SweepDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "schedule",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of one scheduler sweep",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	},
	[]string{"task"},
)

var UnitFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "schedule",
		Name:      "unit_failures_total",
		Help:      "Per position or per (pair,timeframe) failures caught inside a sweep",
	},
	[]string{"task", "kind"},
)

// ============ 信号 ============

var SignalChanges = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signal",
		Name:      "changes_total",
		Help:      "Detected signal changes by kind (initial, action, confidence)",
	},
	[]string{"kind"},
)

// ============ 通知 ============

var GateDecisions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "gate_decisions_total",
		Help:      "Notification gate decisions by level and outcome",
	},
	[]string{"level", "outcome"},
)

var Deliveries = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "deliveries_total",
		Help:      "Channel delivery attempts by channel and status",
	},
	[]string{"channel", "status"},
)

var DeliveryLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "delivery_latency_seconds",
		Help:      "Channel send latency including adapter retries",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
	[]string{"channel"},
)
