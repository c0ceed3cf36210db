package binance

import (
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertKlines(t *testing.T) {
	open := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	klines, err := convertKlines([]*futures.Kline{
		{
			OpenTime:         open.UnixMilli(),
			CloseTime:        open.Add(15*time.Minute).UnixMilli() - 1,
			Open:             "1.1000",
			Close:            "1.1010",
			High:             "1.1020",
			Low:              "1.0990",
			Volume:           "1200",
			QuoteAssetVolume: "1321.2",
		},
		nil,
	})
	require.NoError(t, err)
	require.Len(t, klines, 1)
	assert.Equal(t, "1.101", klines[0].Close.String())
	assert.True(t, klines[0].OpenTime.Equal(open))
}

func TestConvertKlines_Malformed(t *testing.T) {
	_, err := convertKlines([]*futures.Kline{{Open: "x"}})
	assert.Error(t, err)
}
