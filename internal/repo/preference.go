package repo

import (
	"context"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreferenceRepo interface {
	// Get 未配置时返回 entity.DefaultPreference
	Get(ctx context.Context, subscriberId string) (entity.NotificationPreference, error)
	List(ctx context.Context) ([]entity.NotificationPreference, error)
	Save(ctx context.Context, pref entity.NotificationPreference) error
}

type preferenceRepo struct {
	db *gorm.DB
}

func NewPreferenceRepo(db *gorm.DB) PreferenceRepo {
	return &preferenceRepo{
		db: db,
	}
}

func (r *preferenceRepo) Get(ctx context.Context, subscriberId string) (entity.NotificationPreference, error) {
	var pref entity.NotificationPreference
	err := r.db.WithContext(ctx).Where("subscriber_id = ?", subscriberId).First(&pref).Error
	if err != nil {
		if IsNotFound(err) {
			return entity.DefaultPreference(subscriberId), nil
		}
		return entity.NotificationPreference{}, err
	}
	return pref, nil
}

func (r *preferenceRepo) List(ctx context.Context) ([]entity.NotificationPreference, error) {
	var prefs []entity.NotificationPreference
	err := r.db.WithContext(ctx).Order("id").Find(&prefs).Error
	if err != nil {
		return nil, err
	}
	return prefs, nil
}

func (r *preferenceRepo) Save(ctx context.Context, pref entity.NotificationPreference) error {
	pref.Id = 0
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscriber_id"}},
		UpdateAll: true,
	}).Create(&pref).Error
}
