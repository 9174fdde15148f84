package repository

import (
	"context"
	"prepx_backend/internal/model"

	"gorm.io/gorm"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) CreateTurn(ctx context.Context, turn *model.ChatTurn) error {
	return r.DB.WithContext(ctx).Create(turn).Error
}

// RecentTurns 返回会话最近 limit 轮, 按时间正序
func (r *ChatRepository) RecentTurns(ctx context.Context, userID, sessionID string, limit int) ([]model.ChatTurn, error) {
	var turns []model.ChatTurn
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id desc").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
