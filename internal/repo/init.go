package repo

import (
	"errors"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"gorm.io/gorm"
)

var (
	ErrNotFound              = gorm.ErrRecordNotFound
	ErrDuplicateSubscription = errors.New("subscription already exists")
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.Position{},
		&entity.PositionSnapshot{},
		&entity.Subscription{},
		&entity.NotificationPreference{},
	)
}
