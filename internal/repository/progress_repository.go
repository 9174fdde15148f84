package repository

import (
	"context"
	"prepx_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) Upsert(ctx context.Context, p *model.ItemProgress) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"completed", "completed_at", "updated_at"}),
	}).Create(p).Error
}

func (r *ProgressRepository) ListByPath(ctx context.Context, userID, pathID string) ([]model.ItemProgress, error) {
	var ps []model.ItemProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND path_id = ?", userID, pathID).
		Find(&ps).Error
	return ps, err
}
