package repository

import (
	"context"
	"errors"
	"prepx_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageKey 定位一个 (用户, 功能, 周期) 计数器
type UsageKey struct {
	UserID      string
	Feature     model.FeatureType
	PeriodKey   string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// UsageRepository 基于数据库的计数器, 条件更新保证检查与递增是同一个原子操作
type UsageRepository struct {
	DB *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{DB: db}
}

// IncrementIfBelow 计数小于 limit 时加一, 返回是否放行及操作后的计数
func (r *UsageRepository) IncrementIfBelow(ctx context.Context, key UsageKey, limit int) (bool, int, error) {
	var allowed bool
	var count int

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := model.UsageRecord{
			UserID:      key.UserID,
			FeatureType: key.Feature,
			PeriodKey:   key.PeriodKey,
			PeriodStart: key.PeriodStart,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		res := tx.Model(&model.UsageRecord{}).
			Where("user_id = ? AND feature_type = ? AND period_key = ? AND usage_count < ?",
				key.UserID, key.Feature, key.PeriodKey, limit).
			Update("usage_count", gorm.Expr("usage_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		allowed = res.RowsAffected == 1

		var rec model.UsageRecord
		if err := tx.Where("user_id = ? AND feature_type = ? AND period_key = ?",
			key.UserID, key.Feature, key.PeriodKey).First(&rec).Error; err != nil {
			return err
		}
		count = rec.Count
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return allowed, count, nil
}

// Current 当前周期的计数, 无记录时为 0
func (r *UsageRepository) Current(ctx context.Context, key UsageKey) (int, error) {
	var rec model.UsageRecord
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND feature_type = ? AND period_key = ?", key.UserID, key.Feature, key.PeriodKey).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}
