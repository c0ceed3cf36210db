package cache

import (
	"context"
	"testing"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/KNICEX/trading-monitor/internal/service/signals"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/suite"
)

type CacheSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	ctx    context.Context
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.ctx = context.Background()
}

func (s *CacheSuite) TearDownTest() {
	s.client.Close()
}

func (s *CacheSuite) claim(l notification.Log, key notification.LogKey, now time.Time, cooldown time.Duration, max int) (notification.Reservation, error) {
	return l.Claim(s.ctx, notification.ClaimRequest{
		Key:       key,
		Now:       now,
		Cooldown:  cooldown,
		DayStart:  notification.LocalDayStart(now, time.UTC),
		MaxPerDay: max,
	})
}

func (s *CacheSuite) TestNotificationLog_Cooldown() {
	l := NewNotificationLog(s.client, "test:")
	key := notification.LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: notification.LevelGeneral}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	r, err := s.claim(l, key, now, time.Hour, 10)
	s.Require().NoError(err)
	s.True(r.PrevLastSentAt.IsZero())
	s.Require().NoError(l.Commit(s.ctx, r))

	_, err = s.claim(l, key, now.Add(30*time.Minute), time.Hour, 10)
	s.ErrorIs(err, notification.ErrCooldown)

	r, err = s.claim(l, key, now.Add(time.Hour), time.Hour, 10)
	s.Require().NoError(err)
	s.Equal(now.UnixMilli(), r.PrevLastSentAt.UnixMilli())

	count, err := l.CountToday(s.ctx, "u1", notification.LocalDayStart(now, time.UTC))
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *CacheSuite) TestNotificationLog_ReleaseAndCap() {
	l := NewNotificationLog(s.client, "test:")
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eur := notification.LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: notification.LevelImportant}
	gbp := notification.LogKey{SubscriberId: "u1", Subject: "GBP/USD", Timeframe: "1h", Level: notification.LevelImportant}

	r, err := s.claim(l, eur, now, 30*time.Minute, 1)
	s.Require().NoError(err)
	_, err = s.claim(l, gbp, now, 30*time.Minute, 1)
	s.ErrorIs(err, notification.ErrDailyCap)

	s.Require().NoError(l.Release(s.ctx, r))
	s.ErrorIs(l.Release(s.ctx, r), notification.ErrStaleReservation)
	s.False(s.mr.Exists("test:notify:log:u1:EUR/USD:1h:2"))

	r, err = s.claim(l, gbp, now, 30*time.Minute, 1)
	s.Require().NoError(err)
	s.Require().NoError(l.Commit(s.ctx, r))
	s.ErrorIs(l.Commit(s.ctx, r), notification.ErrStaleReservation)

	// 次日计数重置
	_, err = s.claim(l, eur, now.Add(24*time.Hour), 30*time.Minute, 1)
	s.NoError(err)
}

func (s *CacheSuite) TestNotificationLog_Touch() {
	l := NewNotificationLog(s.client, "")
	key := notification.LogKey{SubscriberId: "u1", Subject: "EUR/USD", Timeframe: "1h", Level: notification.LevelUrgent}
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	s.Require().NoError(l.Touch(s.ctx, key, now))
	s.Require().NoError(l.Touch(s.ctx, key, now.Add(-time.Minute)))
	s.Equal(now.UnixMilli(), mustInt(s.mr.HGet("notify:log:u1:EUR/USD:1h:1", "last")))

	count, err := l.CountToday(s.ctx, "u1", notification.LocalDayStart(now, time.UTC))
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *CacheSuite) TestNotificationLog_WithGate() {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	shared := NewNotificationLog(s.client, "test:")
	// 两个实例共享同一个 redis
	g1 := notification.NewGate(shared, notification.WithClock(func() time.Time { return now }))
	g2 := notification.NewGate(NewNotificationLog(s.client, "test:"), notification.WithClock(func() time.Time { return now }))

	c := notification.Candidate{
		Origin:       notification.OriginSignal,
		SubscriberId: "u1",
		Pair:         "EUR/USD",
		Timeframe:    "1h",
		Confidence:   0.9,
	}
	pref := defaultPref()

	d1, err := g1.Admit(s.ctx, c, pref)
	s.Require().NoError(err)
	d2, err := g2.Admit(s.ctx, c, pref)
	s.Require().NoError(err)
	s.True(d1.Allow)
	s.False(d2.Allow)
	s.Equal(notification.DropCooldown, d2.Reason)
}

func (s *CacheSuite) TestSignalState_CompareAndSwap() {
	store := NewSignalStateStore(s.client, "test:")
	key := signals.Key{Pair: "EUR/USD", Timeframe: "1h"}
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, ok, err := store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.False(ok)

	st, err := store.CompareAndSwap(s.ctx, key, 0, signals.State{Action: predictor.ActionBuy, Confidence: 0.8, Timestamp: ts})
	s.Require().NoError(err)
	s.Equal(int64(1), st.Version)

	_, err = store.CompareAndSwap(s.ctx, key, 0, signals.State{Action: predictor.ActionSell})
	s.ErrorIs(err, signals.ErrVersionConflict)

	got, ok, err := store.Get(s.ctx, key)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(predictor.ActionBuy, got.Action)
	s.Equal(0.8, got.Confidence)
	s.Equal(int64(1), got.Version)
	s.True(ts.Equal(got.Timestamp))
}
