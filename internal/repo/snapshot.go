package repo

import (
	"context"
	"errors"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"gorm.io/gorm"
)

// SnapshotRepo 快照只追加, 唯一允许的更新是通知审计字段
type SnapshotRepo interface {
	Create(ctx context.Context, snapshot entity.PositionSnapshot) (int64, error)
	FindLatest(ctx context.Context, positionId int64) (entity.PositionSnapshot, error)
	MarkNotification(ctx context.Context, id int64, sent bool, level int) error
	FindByRecommendation(ctx context.Context, recommendation entity.Recommendation, limit int) ([]entity.PositionSnapshot, error)
	FindByNotification(ctx context.Context, sent bool, level int, limit int) ([]entity.PositionSnapshot, error)
}

type snapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) SnapshotRepo {
	return &snapshotRepo{
		db: db,
	}
}

func (r *snapshotRepo) Create(ctx context.Context, snapshot entity.PositionSnapshot) (int64, error) {
	snapshot.Id = 0
	err := r.db.WithContext(ctx).Create(&snapshot).Error
	if err != nil {
		return 0, err
	}
	return snapshot.Id, nil
}

func (r *snapshotRepo) FindLatest(ctx context.Context, positionId int64) (entity.PositionSnapshot, error) {
	var snapshot entity.PositionSnapshot
	err := r.db.WithContext(ctx).
		Where("position_id = ?", positionId).
		Order("timestamp DESC").
		Order("id DESC").
		First(&snapshot).Error
	if err != nil {
		return entity.PositionSnapshot{}, err
	}
	return snapshot, nil
}

func (r *snapshotRepo) MarkNotification(ctx context.Context, id int64, sent bool, level int) error {
	res := r.db.WithContext(ctx).Model(&entity.PositionSnapshot{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"notification_sent":  sent,
			"notification_level": level,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *snapshotRepo) FindByRecommendation(ctx context.Context, recommendation entity.Recommendation, limit int) ([]entity.PositionSnapshot, error) {
	var snapshots []entity.PositionSnapshot
	err := r.db.WithContext(ctx).
		Where("recommendation = ?", recommendation).
		Order("timestamp DESC").
		Limit(normalizeLimit(limit)).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func (r *snapshotRepo) FindByNotification(ctx context.Context, sent bool, level int, limit int) ([]entity.PositionSnapshot, error) {
	var snapshots []entity.PositionSnapshot
	err := r.db.WithContext(ctx).
		Where("notification_sent = ? AND notification_level = ?", sent, level).
		Order("timestamp DESC").
		Limit(normalizeLimit(limit)).
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
