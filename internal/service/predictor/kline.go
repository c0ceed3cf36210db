package predictor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/KNICEX/trading-monitor/pkg/decimalx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const (
	klineLookback   = 48
	klineMinimum    = 10
	recentWindow    = 8
	sidewaysCeiling = 0.2
)

type klinePredictor struct {
	market exchange.MarketService
	now    func() time.Time
}

// NewKlinePredictor 基于K线斜率的规则模型, 不依赖外部推理服务
func NewKlinePredictor(market exchange.MarketService) Predictor {
	return &klinePredictor{
		market: market,
		now:    time.Now,
	}
}

func (p *klinePredictor) GetSignal(ctx context.Context, pair, timeframe string) (Signal, error) {
	kLines, err := fetchClosedKlines(ctx, p.market, pair, timeframe, p.now())
	if err != nil {
		return Signal{}, err
	}
	return analyzeKlines(kLines), nil
}

func fetchClosedKlines(ctx context.Context, market exchange.MarketService, pair, timeframe string, now time.Time) ([]exchange.Kline, error) {
	interval := exchange.Interval(timeframe)
	step, ok := interval.Duration()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported timeframe %q", ErrPredictionUnavailable, timeframe)
	}
	kLines, err := market.GetKlines(ctx, exchange.GetKlinesReq{
		TradingPair: exchange.ParsePair(pair),
		Interval:    interval,
		StartTime:   now.Add(-step * klineLookback),
		EndTime:     now,
		Limit:       klineLookback,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get klines: %v", ErrPredictionUnavailable, err)
	}
	if len(kLines) > 0 && kLines[len(kLines)-1].CloseTime.After(now) {
		// 最后一根还未收盘, 裁剪掉
		kLines = kLines[:len(kLines)-1]
	}
	if len(kLines) < klineMinimum {
		return nil, fmt.Errorf("%w: not enough klines (%d)", ErrPredictionUnavailable, len(kLines))
	}
	return kLines, nil
}

// analyzeKlines 最近窗口的归一化斜率决定方向和强度,
// 与之前窗口方向相反时视为反转
func analyzeKlines(kLines []exchange.Kline) Signal {
	closes := lo.Map(kLines, func(item exchange.Kline, index int) decimal.Decimal {
		return item.Close
	})
	recent := closes[len(closes)-recentWindow:]
	prior := closes[:len(closes)-recentWindow]

	recentSlope := decimalx.Slope(recent).InexactFloat64()
	priorSlope := decimalx.Slope(prior).InexactFloat64()

	// 归一化后一条从 0 到 1 的直线斜率为 1/(n-1)
	recentStrength, _ := decimalx.Clamp01(math.Abs(recentSlope) * float64(len(recent)-1))
	priorStrength, _ := decimalx.Clamp01(math.Abs(priorSlope) * float64(len(prior)-1))

	sig := Signal{
		TrendStrength: recentStrength,
		Timestamp:     kLines[len(kLines)-1].CloseTime,
	}

	opposite := recentSlope*priorSlope < 0
	switch {
	case recentStrength < sidewaysCeiling:
		sig.TrendDirection = entity.TrendSideways
	case opposite && priorStrength >= sidewaysCeiling:
		sig.TrendDirection = entity.TrendReversal
	case recentSlope > 0:
		sig.TrendDirection = entity.TrendUp
	default:
		sig.TrendDirection = entity.TrendDown
	}

	if opposite {
		sig.ReversalProbability = (recentStrength + priorStrength) / 2
	} else {
		// 同向但动能衰减
		sig.ReversalProbability = math.Max(0, priorStrength-recentStrength) / 2
	}

	switch {
	case sig.TrendDirection == entity.TrendSideways:
		sig.Action = ActionHold
		sig.Confidence = 1 - recentStrength
	case recentSlope > 0:
		sig.Action = ActionBuy
		sig.Confidence = 0.5 + recentStrength/2
	default:
		sig.Action = ActionSell
		sig.Confidence = 0.5 + recentStrength/2
	}

	sig, _ = sig.Sanitize()
	return sig
}
