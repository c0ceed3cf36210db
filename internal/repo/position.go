package repo

import (
	"context"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"gorm.io/gorm"
)

// PositionRepo 持仓对引擎只读, Create 供外部同步和测试使用
type PositionRepo interface {
	ListOpen(ctx context.Context) ([]entity.Position, error)
	FindOpenBySubscriber(ctx context.Context, subscriberId string) ([]entity.Position, error)
	Create(ctx context.Context, position entity.Position) (int64, error)
}

type positionRepo struct {
	db *gorm.DB
}

func NewPositionRepo(db *gorm.DB) PositionRepo {
	return &positionRepo{
		db: db,
	}
}

func (r *positionRepo) ListOpen(ctx context.Context) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).Where("status = ?", entity.PositionOpen).Order("id").Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepo) FindOpenBySubscriber(ctx context.Context, subscriberId string) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ? AND status = ?", subscriberId, entity.PositionOpen).
		Order("id").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepo) Create(ctx context.Context, position entity.Position) (int64, error) {
	if position.Status == "" {
		position.Status = entity.PositionOpen
	}
	err := r.db.WithContext(ctx).Create(&position).Error
	if err != nil {
		return 0, err
	}
	return position.Id, nil
}
