package repository

import (
	"context"
	"errors"
	"prepx_backend/internal/model"
	"prepx_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

// CreateQuizWithQuestions 测验与题目在同一事务中写入, 任一失败整体回滚
func (r *QuizRepository) CreateQuizWithQuestions(ctx context.Context, quiz *model.Quiz, questions []model.QuizQuestion) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Questions").Create(quiz).Error; err != nil {
			return err
		}
		for i := range questions {
			questions[i].QuizID = quiz.ID
		}
		return tx.Create(&questions).Error
	})
}

func (r *QuizRepository) FindQuizByID(ctx context.Context, id string) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index asc")
		}).
		Where("id = ?", id).
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	return &q, err
}

func (r *QuizRepository) ListQuizzesByPath(ctx context.Context, pathID string) ([]model.Quiz, error) {
	var qs []model.Quiz
	err := r.DB.WithContext(ctx).Where("path_id = ?", pathID).Order("created_at desc").Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *QuizRepository) ListAttempts(ctx context.Context, quizID, userID string) ([]model.QuizAttempt, error) {
	var as []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Order("completed_at desc").
		Find(&as).Error
	return as, err
}
