package monitor

import (
	"testing"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/service/market"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/KNICEX/trading-monitor/pkg/decimalx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evalTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func longEURUSD() entity.Position {
	return entity.Position{
		Id:           1,
		SubscriberId: "u1",
		Pair:         "EUR/USD",
		Direction:    entity.DirectionLong,
		EntryPrice:   decimalx.MustFromString("1.1000"),
		StopLoss:     decimalx.MustFromString("1.0950"),
		TakeProfit:   decimalx.MustFromString("1.1100"),
		Status:       entity.PositionOpen,
	}
}

func input(p entity.Position, price string, signal predictor.Signal, pref entity.NotificationPreference) Input {
	return Input{
		Position:   p,
		Quote:      market.Quote{Price: decimalx.MustFromString(price), Timestamp: evalTime},
		Signal:     signal,
		Preference: pref,
		Now:        evalTime,
	}
}

func sideways() predictor.Signal {
	return predictor.Signal{
		Action:              predictor.ActionHold,
		Confidence:          0.6,
		TrendDirection:      entity.TrendSideways,
		TrendStrength:       0.2,
		ReversalProbability: 0.1,
	}
}

func TestEvaluate_RiskRewardLiteral(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	s := e.Evaluate(input(longEURUSD(), "1.1000", sideways(), entity.DefaultPreference("u1")))

	assert.True(t, s.CurrentRisk.Equal(decimalx.MustFromString("0.0050")), s.CurrentRisk.String())
	assert.True(t, s.CurrentReward.Equal(decimalx.MustFromString("0.0100")), s.CurrentReward.String())
	require.NotNil(t, s.CurrentRrRatio)
	assert.InDelta(t, 2.0, *s.CurrentRrRatio, 1e-12)
	assert.Equal(t, entity.RecommendHold, s.Recommendation)
	assert.False(t, s.NotificationSent)
	assert.Equal(t, "1h", s.Timeframe)
}

func TestEvaluate_Pnl(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	s := e.Evaluate(input(longEURUSD(), "1.1025", sideways(), entity.DefaultPreference("u1")))
	assert.Equal(t, "25", s.UnrealizedPnlPips.String())
	assert.InDelta(t, 0.2273, s.UnrealizedPnlPercentage, 1e-9)

	short := entity.Position{
		Id:         2,
		Pair:       "USD/JPY",
		Direction:  entity.DirectionShort,
		EntryPrice: decimalx.MustFromString("150.00"),
		StopLoss:   decimalx.MustFromString("150.50"),
		TakeProfit: decimalx.MustFromString("149.00"),
	}
	s = e.Evaluate(input(short, "150.20", sideways(), entity.DefaultPreference("u1")))
	assert.Equal(t, "-20", s.UnrealizedPnlPips.String())
	assert.True(t, s.CurrentRisk.Equal(decimalx.MustFromString("0.5")))
	assert.True(t, s.CurrentReward.Equal(decimalx.MustFromString("1")))
	assert.InDelta(t, 2.0, *s.CurrentRrRatio, 1e-12)
}

func TestEvaluate_UrgentExit(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	signal := predictor.Signal{
		Action:              predictor.ActionSell,
		Confidence:          0.7,
		TrendDirection:      entity.TrendDown,
		TrendStrength:       0.6,
		ReversalProbability: 0.90,
	}
	s := e.Evaluate(input(longEURUSD(), "1.1010", signal, entity.DefaultPreference("u1")))
	assert.Equal(t, entity.RecommendExit, s.Recommendation)
	assert.Equal(t, 0.90, s.RecommendationConfidence)

	// 同向趋势的高反转概率不触发 exit
	signal.TrendDirection = entity.TrendUp
	s = e.Evaluate(input(longEURUSD(), "1.1010", signal, entity.DefaultPreference("u1")))
	assert.NotEqual(t, entity.RecommendExit, s.Recommendation)
}

func TestEvaluate_RuleOrder(t *testing.T) {
	strongUp := predictor.Signal{
		Action:              predictor.ActionBuy,
		Confidence:          0.75,
		TrendDirection:      entity.TrendUp,
		TrendStrength:       0.85,
		ReversalProbability: 0.1,
	}
	badRR := longEURUSD()
	badRR.TakeProfit = decimalx.MustFromString("1.1030")

	testCases := []struct {
		name     string
		position entity.Position
		price    string
		signal   predictor.Signal
		pref     func(p *entity.NotificationPreference)
		want     entity.Recommendation
		wantSL   string
		wantTP   string
	}{
		{
			name:     "poor rr without partial exit",
			position: badRR,
			price:    "1.0990",
			signal:   sideways(),
			pref:     func(p *entity.NotificationPreference) {},
			want:     entity.RecommendAdjustSL,
		},
		{
			name:     "poor rr auto adjust halves risk",
			position: badRR,
			price:    "1.0990",
			signal:   sideways(),
			pref:     func(p *entity.NotificationPreference) { p.AutoAdjustSl = true },
			want:     entity.RecommendAdjustSL,
			wantSL:   "1.0975",
		},
		{
			name:     "poor rr auto adjust break even",
			position: badRR,
			price:    "1.1010",
			signal:   sideways(),
			pref:     func(p *entity.NotificationPreference) { p.AutoAdjustSl = true },
			want:     entity.RecommendAdjustSL,
			wantSL:   "1.1",
		},
		{
			name:     "poor rr with partial exit",
			position: badRR,
			price:    "1.0990",
			signal:   sideways(),
			pref:     func(p *entity.NotificationPreference) { p.PartialExitEnabled = true },
			want:     entity.RecommendTakePartial,
		},
		{
			name:     "poor rr outranks trailing",
			position: badRR,
			price:    "1.1020",
			signal:   strongUp,
			pref:     func(p *entity.NotificationPreference) { p.TrailingStopEnabled = true },
			want:     entity.RecommendAdjustSL,
		},
		{
			name:     "trailing stop",
			position: longEURUSD(),
			price:    "1.1060",
			signal:   strongUp,
			pref:     func(p *entity.NotificationPreference) { p.TrailingStopEnabled = true },
			want:     entity.RecommendTrailingStop,
			wantSL:   "1.101",
		},
		{
			name:     "trailing never loosens stop",
			position: longEURUSD(),
			price:    "1.0990",
			signal:   strongUp,
			pref:     func(p *entity.NotificationPreference) { p.TrailingStopEnabled = true },
			want:     entity.RecommendTrailingStop,
			wantSL:   "1.095",
		},
		{
			name:     "extend take profit near target",
			position: longEURUSD(),
			price:    "1.1085",
			signal:   strongUp,
			pref:     func(p *entity.NotificationPreference) {},
			want:     entity.RecommendAdjustTP,
			wantTP:   "1.12",
		},
		{
			name:     "strong trend far from target holds",
			position: longEURUSD(),
			price:    "1.1030",
			signal:   strongUp,
			pref:     func(p *entity.NotificationPreference) {},
			want:     entity.RecommendHold,
		},
		{
			name:     "weak trend holds",
			position: longEURUSD(),
			price:    "1.1060",
			signal:   sideways(),
			pref:     func(p *entity.NotificationPreference) { p.TrailingStopEnabled = true },
			want:     entity.RecommendHold,
		},
	}
	e := NewEvaluator(DefaultThresholds())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pref := entity.DefaultPreference("u1")
			tc.pref(&pref)
			s := e.Evaluate(input(tc.position, tc.price, tc.signal, pref))
			assert.Equal(t, tc.want, s.Recommendation)
			assert.NotEmpty(t, s.Reasoning)
			if tc.wantSL != "" {
				require.NotNil(t, s.SuggestedStopLoss)
				assert.True(t, s.SuggestedStopLoss.Equal(decimalx.MustFromString(tc.wantSL)), s.SuggestedStopLoss.String())
			}
			if tc.wantTP != "" {
				require.NotNil(t, s.SuggestedTakeProfit)
				assert.True(t, s.SuggestedTakeProfit.Equal(decimalx.MustFromString(tc.wantTP)), s.SuggestedTakeProfit.String())
			}
		})
	}
}

func TestEvaluate_Determinism(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	pref := entity.DefaultPreference("u1")
	pref.TrailingStopEnabled = true
	signal := predictor.Signal{
		Action:              predictor.ActionBuy,
		Confidence:          0.8,
		TrendDirection:      entity.TrendUp,
		TrendStrength:       0.9,
		ReversalProbability: 0.2,
	}
	in := input(longEURUSD(), "1.1070", signal, pref)

	first := e.Evaluate(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.Evaluate(in))
	}
}

func TestEvaluate_DataIntegrity(t *testing.T) {
	e := NewEvaluator(DefaultThresholds())
	p := longEURUSD()
	// 止损已经移到开仓价之上
	p.StopLoss = decimalx.MustFromString("1.1010")
	signal := predictor.Signal{
		Action:              predictor.ActionBuy,
		Confidence:          1.7,
		TrendDirection:      "sideways-ish",
		TrendStrength:       -0.3,
		ReversalProbability: 2,
	}
	s := e.Evaluate(input(p, "1.1050", signal, entity.DefaultPreference("u1")))
	assert.True(t, s.CurrentRisk.IsZero())
	assert.Nil(t, s.CurrentRrRatio)
	assert.Equal(t, 1.0, s.ReversalProbability)
	assert.Equal(t, 0.0, s.TrendStrength)
	assert.Equal(t, entity.TrendUnknown, s.TrendDirection)
	assert.LessOrEqual(t, s.RecommendationConfidence, 1.0)
	assert.Equal(t, entity.RecommendHold, s.Recommendation)
}

func TestPipSize(t *testing.T) {
	assert.Equal(t, "0.01", PipSize("USD/JPY", nil).String())
	assert.Equal(t, "0.01", PipSize("EURJPY", nil).String())
	assert.Equal(t, "0.0001", PipSize("EUR/USD", nil).String())
	overrides := map[string]decimal.Decimal{"XAU/USD": decimalx.MustFromString("0.1")}
	assert.Equal(t, "0.1", PipSize("xau/usd", overrides).String())
}
