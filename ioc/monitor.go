package ioc

import (
	"fmt"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/KNICEX/trading-monitor/internal/service/monitor"
	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/KNICEX/trading-monitor/internal/service/signals"
	"github.com/KNICEX/trading-monitor/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type thresholdsConfig struct {
	monitor.Thresholds `mapstructure:",squash"`
	ConfidenceDelta    float64 `mapstructure:"confidence_delta"`
	UrgentFlipDelta    float64 `mapstructure:"urgent_flip_delta"`
}

func loadThresholds() thresholdsConfig {
	cfg := thresholdsConfig{
		Thresholds:      monitor.DefaultThresholds(),
		ConfidenceDelta: signals.DefaultConfig().ConfidenceDelta,
		UrgentFlipDelta: notification.DefaultThresholds().UrgentFlipDelta,
	}
	if err := viper.UnmarshalKey("thresholds", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitLevelThresholds() notification.Thresholds {
	th := loadThresholds()
	return notification.Thresholds{
		ReversalUrgent:  th.ReversalUrgent,
		UrgentFlipDelta: th.UrgentFlipDelta,
	}
}

// MonitorConfig 三个调度任务的周期与并发
type MonitorConfig struct {
	PositionInterval time.Duration `mapstructure:"position_interval"`
	SignalInterval   time.Duration `mapstructure:"signal_interval"`
	DigestInterval   time.Duration `mapstructure:"digest_interval"`
	Workers          int           `mapstructure:"workers"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
	// PipSizes 按交易对覆盖默认点值, 如 XAU/USD: 0.01
	PipSizes map[string]string `mapstructure:"pip_sizes"`
}

func InitMonitorConfig() MonitorConfig {
	cfg := MonitorConfig{
		PositionInterval: time.Minute,
		SignalInterval:   5 * time.Minute,
		DigestInterval:   time.Minute,
		Workers:          8,
		CallTimeout:      5 * time.Second,
	}
	if err := viper.UnmarshalKey("monitor", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitEvaluator(cfg MonitorConfig) *monitor.Evaluator {
	overrides := make(map[string]decimal.Decimal, len(cfg.PipSizes))
	for pair, raw := range cfg.PipSizes {
		size, err := decimalx.ParsePositive(raw)
		if err != nil {
			panic(fmt.Errorf("pip size of %s: %w", pair, err))
		}
		overrides[exchange.ParsePair(pair).ToSlashString()] = size
	}
	return monitor.NewEvaluator(loadThresholds().Thresholds, monitor.WithPipOverrides(overrides))
}

func InitPositionTaskConfig(cfg MonitorConfig) monitor.TaskConfig {
	return monitor.TaskConfig{
		Workers:     cfg.Workers,
		CallTimeout: cfg.CallTimeout,
		Levels:      InitLevelThresholds(),
	}
}

func InitDetectorConfig(cfg MonitorConfig) signals.Config {
	return signals.Config{
		ConfidenceDelta: loadThresholds().ConfidenceDelta,
		NotifyInitial:   NotifyInitialSignal(),
		Workers:         cfg.Workers,
		CallTimeout:     cfg.CallTimeout,
	}
}

// InitPredictor predictor.kind: kline (默认, 基于K线规则) 或 llm
func InitPredictor(market exchange.MarketService) predictor.Predictor {
	kind := viper.GetString("predictor.kind")
	switch kind {
	case "", "kline":
		return predictor.NewKlinePredictor(market)
	case "llm":
		return predictor.NewLLMPredictor(InitLLMService(InitGeminiCli()), market)
	default:
		panic("unknown predictor kind: " + kind)
	}
}
