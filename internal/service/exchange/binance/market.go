package binance

import (
	"context"
	"fmt"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

var _ exchange.MarketService = (*MarketService)(nil)

type MarketService struct {
	cli *futures.Client
}

// NewMarketService 创建市场数据服务
func NewMarketService(cli *futures.Client) *MarketService {
	return &MarketService{cli: cli}
}

func convertKlines(klines []*futures.Kline) ([]exchange.Kline, error) {
	kls := make([]exchange.Kline, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		values, err := parseDecimals(k.Open, k.Close, k.High, k.Low, k.Volume, k.QuoteAssetVolume)
		if err != nil {
			return nil, fmt.Errorf("parse kline at %d: %w", k.OpenTime, err)
		}
		kls = append(kls, exchange.Kline{
			OpenTime:         time.UnixMilli(k.OpenTime),
			CloseTime:        time.UnixMilli(k.CloseTime),
			Open:             values[0],
			Close:            values[1],
			High:             values[2],
			Low:              values[3],
			Volume:           values[4],
			QuoteAssetVolume: values[5],
		})
	}
	return kls, nil
}

func parseDecimals(raw ...string) ([]decimal.Decimal, error) {
	res := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		res[i] = d
	}
	return res, nil
}

func (m *MarketService) GetKlines(ctx context.Context, req exchange.GetKlinesReq) ([]exchange.Kline, error) {
	svc := m.cli.NewKlinesService().Symbol(req.TradingPair.ToString()) // 币安合约API使用 BTCUSDT 格式，不是 BTC/USDT
	if req.Interval.ToString() != "" {
		svc.Interval(req.Interval.ToString())
	}
	if !req.StartTime.IsZero() {
		svc.StartTime(req.StartTime.UnixMilli())
	}
	if !req.EndTime.IsZero() {
		svc.EndTime(req.EndTime.UnixMilli())
	}
	if req.Limit > 0 {
		svc.Limit(req.Limit)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, err
	}
	return convertKlines(res)
}

func (m *MarketService) Ticker(ctx context.Context, tradingPair exchange.TradingPair) (decimal.Decimal, error) {
	prices, err := m.cli.NewListPricesService().Symbol(tradingPair.ToString()).Do(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("no price for %s", tradingPair.ToString())
	}
	return decimal.NewFromString(prices[0].Price)
}
