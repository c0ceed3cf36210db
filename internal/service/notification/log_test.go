package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimReq(key LogKey, now time.Time, cooldown time.Duration, maxPerDay int) ClaimRequest {
	return ClaimRequest{
		Key:       key,
		Now:       now,
		Cooldown:  cooldown,
		DayStart:  LocalDayStart(now, time.UTC),
		MaxPerDay: maxPerDay,
	}
}

func TestMemoryLog_Cooldown(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	key := LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: LevelGeneral}
	now := at(10, 0)

	r, err := l.Claim(ctx, claimReq(key, now, time.Hour, 0))
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r))

	_, err = l.Claim(ctx, claimReq(key, now.Add(59*time.Minute), time.Hour, 0))
	assert.ErrorIs(t, err, ErrCooldown)

	// 其它级别/交易对互不影响
	other := key
	other.Level = LevelImportant
	_, err = l.Claim(ctx, claimReq(other, now.Add(time.Minute), time.Hour, 0))
	assert.NoError(t, err)

	_, err = l.Claim(ctx, claimReq(key, now.Add(time.Hour), time.Hour, 0))
	assert.NoError(t, err)
}

func TestMemoryLog_Release(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	key := LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: LevelImportant}
	now := at(10, 0)

	r, err := l.Claim(ctx, claimReq(key, now, 30*time.Minute, 5))
	require.NoError(t, err)
	count, err := l.CountToday(ctx, "u1", LocalDayStart(now, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, l.Release(ctx, r))
	count, err = l.CountToday(ctx, "u1", LocalDayStart(now, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// 回滚后可以立即再次预留
	r2, err := l.Claim(ctx, claimReq(key, now.Add(time.Second), 30*time.Minute, 5))
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r2))

	assert.ErrorIs(t, l.Release(ctx, r), ErrStaleReservation)
	assert.ErrorIs(t, l.Commit(ctx, r), ErrStaleReservation)
}

func TestMemoryLog_ReleaseRestoresPreviousSend(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	key := LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: LevelGeneral}
	now := at(10, 0)

	r, err := l.Claim(ctx, claimReq(key, now, time.Hour, 0))
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r))

	r, err = l.Claim(ctx, claimReq(key, now.Add(2*time.Hour), time.Hour, 0))
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, r))

	// 上一次真实发送时间恢复, 冷却从 10:00 开始计算
	_, err = l.Claim(ctx, claimReq(key, now.Add(30*time.Minute), time.Hour, 0))
	assert.ErrorIs(t, err, ErrCooldown)
	_, err = l.Claim(ctx, claimReq(key, now.Add(2*time.Hour), time.Hour, 0))
	assert.NoError(t, err)
}

func TestMemoryLog_DailyCap(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	now := at(10, 0)

	for i, pair := range []string{"EUR/USD", "GBP/USD", "USD/JPY"} {
		key := LogKey{SubscriberId: "u1", Subject: pair, Timeframe: "1h", Level: LevelGeneral}
		_, err := l.Claim(ctx, claimReq(key, now.Add(time.Duration(i)*time.Minute), time.Hour, 2))
		if i < 2 {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrDailyCap)
		}
	}

	// 其它订阅者独立计数
	_, err := l.Claim(ctx, claimReq(LogKey{SubscriberId: "u2", Subject: "EUR/USD", Level: LevelGeneral}, now, time.Hour, 2))
	assert.NoError(t, err)

	// 跨过本地零点后计数重置
	tomorrow := now.Add(24 * time.Hour)
	key := LogKey{SubscriberId: "u1", Subject: "USD/JPY", Timeframe: "1h", Level: LevelGeneral}
	_, err = l.Claim(ctx, claimReq(key, tomorrow, time.Hour, 2))
	assert.NoError(t, err)
}

func TestMemoryLog_TouchNotCounted(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	now := at(10, 0)
	key := LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: LevelUrgent}

	require.NoError(t, l.Touch(ctx, key, now))
	require.NoError(t, l.Touch(ctx, key, now.Add(time.Second)))
	count, err := l.CountToday(ctx, "u1", LocalDayStart(now, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMemoryLog_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLog()
	key := LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: LevelImportant}
	now := at(10, 0)

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Claim(ctx, claimReq(key, now, 30*time.Minute, 100)); err == nil {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), admitted.Load())
}

func TestLocalDayStart(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2026, 3, 2, 16, 30, 0, 0, time.UTC)
	start := LocalDayStart(now, tokyo)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, tokyo), start)
	assert.True(t, start.Equal(time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)))
}
