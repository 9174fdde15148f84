package model

import "time"

// ItemProgress 用户在某个条目上的完成状态
type ItemProgress struct {
	BaseModel
	UserID      string     `gorm:"size:64;not null;uniqueIndex:idx_progress_user_item,priority:1" json:"userId"`
	ItemID      string     `gorm:"type:varchar(36);not null;uniqueIndex:idx_progress_user_item,priority:2" json:"itemId"`
	PathID      string     `gorm:"type:varchar(36);index;not null" json:"pathId"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (ItemProgress) TableName() string {
	return "item_progress"
}
