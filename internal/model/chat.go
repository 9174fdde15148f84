package model

import (
	"time"
)

// ChatTurn AI 助教的一轮问答, 同一 SessionID 构成多轮对话
type ChatTurn struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"userId"`
	SessionID string    `gorm:"size:50;index" json:"sessionId"`
	PathID    *string   `gorm:"type:varchar(36)" json:"pathId,omitempty"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}
