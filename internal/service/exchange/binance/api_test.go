package binance

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/require"
)

// 访问真实行情接口, 仅在设置 BINANCE_LIVE=1 时运行
func initClient(t *testing.T) *futures.Client {
	if os.Getenv("BINANCE_LIVE") == "" {
		t.Skip("set BINANCE_LIVE=1 to run against binance futures")
	}
	return futures.NewClient(os.Getenv("CEX_BINANCE_API_KEY"), os.Getenv("CEX_BINANCE_API_SECRET"))
}

func TestGetKLine(t *testing.T) {
	svc := NewMarketService(initClient(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	klines, err := svc.GetKlines(ctx, exchange.GetKlinesReq{
		TradingPair: exchange.ParsePair("BTC/USDT"),
		Interval:    exchange.Interval1h,
		StartTime:   time.Now().Add(-24 * time.Hour),
		Limit:       24,
	})
	require.NoError(t, err)
	require.NotEmpty(t, klines)
	for _, k := range klines {
		t.Logf("Kline: %+v", k)
	}
}

func TestTicker(t *testing.T) {
	svc := NewMarketService(initClient(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	price, err := svc.Ticker(ctx, exchange.ParsePair("BTCUSDT"))
	require.NoError(t, err)
	require.True(t, price.IsPositive())
}
