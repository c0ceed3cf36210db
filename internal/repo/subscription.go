package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"gorm.io/gorm"
)

type SubscriptionRepo interface {
	List(ctx context.Context) ([]entity.Subscription, error)
	Create(ctx context.Context, sub entity.Subscription) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type subscriptionRepo struct {
	db *gorm.DB
}

func NewSubscriptionRepo(db *gorm.DB) SubscriptionRepo {
	return &subscriptionRepo{
		db: db,
	}
}

func (r *subscriptionRepo) List(ctx context.Context) ([]entity.Subscription, error) {
	var subs []entity.Subscription
	err := r.db.WithContext(ctx).Order("id").Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *subscriptionRepo) Create(ctx context.Context, sub entity.Subscription) (int64, error) {
	err := r.db.WithContext(ctx).Create(&sub).Error
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateSubscription
		}
		return 0, err
	}
	return sub.Id, nil
}

func (r *subscriptionRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&entity.Subscription{}, id).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite 驱动未开启 TranslateError 时只能比对错误信息
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
