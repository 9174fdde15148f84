package model

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer:
		return true
	}
	return false
}

// swagger:model Quiz
type Quiz struct {
	UUIDBase
	PathID      string         `gorm:"type:varchar(36);index;not null" json:"pathId"`
	ColumnID    *string        `gorm:"type:varchar(36);index" json:"columnId,omitempty"`
	ItemID      *string        `gorm:"type:varchar(36);index" json:"itemId,omitempty"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Questions   []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model QuizQuestion
type QuizQuestion struct {
	UUIDBase
	QuizID        string         `gorm:"type:varchar(36);index;not null" json:"quizId"`
	QuestionText  string         `gorm:"type:text;not null" json:"questionText"`
	QuestionType  QuestionType   `gorm:"size:30;not null" json:"questionType"`
	Options       datatypes.JSON `json:"options"` // JSON: []string, 仅 multiple_choice / true_false
	CorrectAnswer string         `gorm:"type:text;not null" json:"correctAnswer,omitempty"`
	Explanation   string         `gorm:"type:text" json:"explanation,omitempty"`
	OrderIndex    int            `gorm:"default:0" json:"orderIndex"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// QuizAttempt 存储用户的答题结果
type QuizAttempt struct {
	UUIDBase
	QuizID      string         `gorm:"type:varchar(36);index;not null" json:"quizId"`
	UserID      string         `gorm:"size:64;index;not null" json:"userId"`
	Score       int            `gorm:"not null" json:"score"`
	Total       int            `gorm:"not null" json:"total"`
	Answers     datatypes.JSON `json:"answers"` // JSON: map[questionID]answer
	CompletedAt time.Time      `json:"completedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
