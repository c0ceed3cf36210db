package monitor

import (
	"strings"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/KNICEX/trading-monitor/internal/service/market"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/shopspring/decimal"
)

// Thresholds 决策表阈值, 均可配置
type Thresholds struct {
	ReversalUrgent  float64 `mapstructure:"reversal_urgent"`
	MinAcceptableRR float64 `mapstructure:"min_acceptable_rr"`
	Trailing        float64 `mapstructure:"trailing"`
	// TPProximity 价格已走完 entry->TP 距离的比例
	TPProximity float64 `mapstructure:"tp_proximity"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		ReversalUrgent:  0.8,
		MinAcceptableRR: 1.0,
		Trailing:        0.7,
		TPProximity:     0.8,
	}
}

// Input 单个持仓一次评估的全部输入, 评估本身是纯函数
type Input struct {
	Position   entity.Position
	Quote      market.Quote
	Signal     predictor.Signal
	Preference entity.NotificationPreference
	Now        time.Time
}

var (
	jpyPip     = decimal.New(1, -2)
	defaultPip = decimal.New(1, -4)
)

// PipSize JPY 计价 0.01, 其它 0.0001; overrides 以交易对 (EUR/USD) 为 key
func PipSize(pair string, overrides map[string]decimal.Decimal) decimal.Decimal {
	tp := exchange.ParsePair(pair)
	if pip, ok := overrides[tp.ToSlashString()]; ok && pip.IsPositive() {
		return pip
	}
	if strings.EqualFold(tp.Quote, "JPY") {
		return jpyPip
	}
	return defaultPip
}
