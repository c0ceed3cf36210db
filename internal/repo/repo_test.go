package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/pkg/decimalx"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RepoSuite struct {
	suite.Suite
	db  *gorm.DB
	ctx context.Context
}

func TestRepoSuite(t *testing.T) {
	suite.Run(t, new(RepoSuite))
}

func (s *RepoSuite) SetupTest() {
	dsn := filepath.Join(s.T().TempDir(), "monitor.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	s.Require().NoError(InitTables(db))
	s.db = db
	s.ctx = context.Background()
}

func (s *RepoSuite) TestPosition_ListOpen() {
	positions := NewPositionRepo(s.db)
	_, err := positions.Create(s.ctx, entity.Position{
		SubscriberId: "u1",
		Pair:         "EUR/USD",
		Direction:    entity.DirectionLong,
		EntryPrice:   decimalx.MustFromString("1.1000"),
		StopLoss:     decimalx.MustFromString("1.0950"),
		TakeProfit:   decimalx.MustFromString("1.1100"),
		OpenedAt:     time.Now(),
	})
	s.Require().NoError(err)
	_, err = positions.Create(s.ctx, entity.Position{
		SubscriberId: "u1",
		Pair:         "GBP/USD",
		Direction:    entity.DirectionShort,
		Status:       entity.PositionClosed,
	})
	s.Require().NoError(err)

	open, err := positions.ListOpen(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal("EUR/USD", open[0].Pair)
	s.True(open[0].EntryPrice.Equal(decimalx.MustFromString("1.1")))

	mine, err := positions.FindOpenBySubscriber(s.ctx, "u2")
	s.Require().NoError(err)
	s.Empty(mine)
}

func (s *RepoSuite) TestSnapshot_LatestAndMark() {
	snapshots := NewSnapshotRepo(s.db)
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	rr := 2.0

	_, err := snapshots.Create(s.ctx, entity.PositionSnapshot{
		PositionId:     7,
		Timestamp:      base,
		Recommendation: entity.RecommendHold,
		CurrentRrRatio: &rr,
	})
	s.Require().NoError(err)
	id, err := snapshots.Create(s.ctx, entity.PositionSnapshot{
		PositionId:     7,
		Timestamp:      base.Add(time.Minute),
		Recommendation: entity.RecommendExit,
	})
	s.Require().NoError(err)

	latest, err := snapshots.FindLatest(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(id, latest.Id)
	s.Equal(entity.RecommendExit, latest.Recommendation)
	s.Nil(latest.CurrentRrRatio)
	s.False(latest.NotificationSent)

	s.Require().NoError(snapshots.MarkNotification(s.ctx, id, true, 1))
	sent, err := snapshots.FindByNotification(s.ctx, true, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(sent, 1)
	s.Equal(id, sent[0].Id)

	exits, err := snapshots.FindByRecommendation(s.ctx, entity.RecommendExit, 0)
	s.Require().NoError(err)
	s.Len(exits, 1)

	_, err = snapshots.FindLatest(s.ctx, 99)
	s.True(IsNotFound(err))
	s.ErrorIs(snapshots.MarkNotification(s.ctx, 12345, true, 2), ErrNotFound)
}

func (s *RepoSuite) TestSubscription_Unique() {
	subs := NewSubscriptionRepo(s.db)
	sub := entity.Subscription{SubscriberId: "u1", Pair: "EUR/USD", Timeframe: "1h"}

	_, err := subs.Create(s.ctx, sub)
	s.Require().NoError(err)
	_, err = subs.Create(s.ctx, sub)
	s.ErrorIs(err, ErrDuplicateSubscription)

	sub.Timeframe = "4h"
	id, err := subs.Create(s.ctx, sub)
	s.Require().NoError(err)

	list, err := subs.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 2)

	s.Require().NoError(subs.Delete(s.ctx, id))
	list, err = subs.List(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *RepoSuite) TestPreference_DefaultAndSave() {
	prefs := NewPreferenceRepo(s.db)

	pref, err := prefs.Get(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Equal(entity.DefaultPreference("nobody"), pref)

	pref = entity.DefaultPreference("u1")
	pref.MuteHours = []string{"23:00-07:00"}
	pref.MaxNotificationsPerDay = 3
	s.Require().NoError(prefs.Save(s.ctx, pref))

	pref.MaxNotificationsPerDay = 5
	s.Require().NoError(prefs.Save(s.ctx, pref))

	got, err := prefs.Get(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal([]string{"23:00-07:00"}, got.MuteHours)
	s.Equal(5, got.MaxNotificationsPerDay)

	all, err := prefs.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}
