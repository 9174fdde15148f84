package model

import "time"

type FeatureType string

const (
	FeatureChat              FeatureType = "chat"
	FeatureQuiz              FeatureType = "quiz"
	FeaturePathGeneration    FeatureType = "path_generation"
	FeatureContentGeneration FeatureType = "content_generation"
)

type PeriodKind string

const (
	PeriodDaily   PeriodKind = "daily"
	PeriodMonthly PeriodKind = "monthly"
)

// UsageRecord 每个 (用户, 功能, 周期) 一行, 新周期使用新的 PeriodKey
type UsageRecord struct {
	BaseModel
	UserID      string      `gorm:"size:64;not null;uniqueIndex:idx_usage_user_feature_period,priority:1" json:"userId"`
	FeatureType FeatureType `gorm:"size:40;not null;uniqueIndex:idx_usage_user_feature_period,priority:2" json:"featureType"`
	PeriodKey   string      `gorm:"size:10;not null;uniqueIndex:idx_usage_user_feature_period,priority:3" json:"periodKey"`
	PeriodStart time.Time   `json:"periodStart"`
	Count       int         `gorm:"column:usage_count;not null;default:0" json:"count"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}
