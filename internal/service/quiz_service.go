package service

import (
	"context"
	"encoding/json"
	"fmt"
	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/logger"
	"prepx_backend/pkg/tracing"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var trueFalseOptions = []string{"True", "False"}

// QuizAnchor 测验可选地挂在某一列或条目上
type QuizAnchor struct {
	ColumnID *string `json:"columnId,omitempty"`
	ItemID   *string `json:"itemId,omitempty"`
}

type QuizService struct {
	QuizRepo *repository.QuizRepository
	PathRepo *repository.LearningPathRepository
	now      func() time.Time
}

func NewQuizService(quizRepo *repository.QuizRepository, pathRepo *repository.LearningPathRepository) *QuizService {
	return &QuizService{
		QuizRepo: quizRepo,
		PathRepo: pathRepo,
		now:      time.Now,
	}
}

type CreateQuizRequest struct {
	PathID string        `json:"pathId" binding:"required"`
	Quiz   GeneratedQuiz `json:"quiz" binding:"required"`
	QuizAnchor
}

// CreateFromGenerated 校验路径归属后物化测验
func (s *QuizService) CreateFromGenerated(ctx context.Context, userID string, req CreateQuizRequest) (string, error) {
	path, err := s.PathRepo.FindPathByID(ctx, req.PathID)
	if err != nil {
		return "", err
	}
	if path.OwnerID != userID {
		return "", util.ErrPermissionDenied
	}
	return s.Materialize(ctx, req.PathID, req.Quiz, &req.QuizAnchor)
}

// Materialize 测验与题目全部写入或全部不写入, 返回 quiz id
func (s *QuizService) Materialize(ctx context.Context, pathID string, g GeneratedQuiz, anchor *QuizAnchor) (id string, err error) {
	ctx, span := tracing.StartSpan(ctx, "quiz.materialize",
		attribute.String("path.id", pathID),
		attribute.Int("questions", len(g.Questions)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	if len(g.Questions) == 0 {
		return "", util.ErrEmptyQuiz
	}

	questions := make([]model.QuizQuestion, 0, len(g.Questions))
	for i, q := range g.Questions {
		row, err := buildQuestion(i, q)
		if err != nil {
			return "", err
		}
		questions = append(questions, row)
	}

	title := strings.TrimSpace(g.Title)
	if title == "" {
		title = "Quiz"
	}
	quiz := &model.Quiz{
		PathID:      pathID,
		Title:       title,
		Description: g.Description,
	}
	if anchor != nil {
		quiz.ColumnID = anchor.ColumnID
		quiz.ItemID = anchor.ItemID
	}

	if err := s.QuizRepo.CreateQuizWithQuestions(ctx, quiz, questions); err != nil {
		logger.WithContext(ctx).Error("materialize quiz failed",
			zap.String("path_id", pathID),
			zap.Int("questions", len(questions)),
			zap.Error(err),
		)
		return "", fmt.Errorf("materialize quiz: %w", err)
	}
	return quiz.ID, nil
}

func buildQuestion(index int, q GeneratedQuestion) (model.QuizQuestion, error) {
	text := strings.TrimSpace(q.text())
	if text == "" {
		return model.QuizQuestion{}, fmt.Errorf("%w: question %d has no text", util.ErrInvalidQuestion, index)
	}
	kind := model.QuestionType(strings.ToLower(strings.TrimSpace(q.kind())))
	if kind == "" {
		kind = model.QuestionMultipleChoice
	}
	if !kind.Valid() {
		return model.QuizQuestion{}, fmt.Errorf("%w: question %d has unknown type %q", util.ErrInvalidQuestion, index, kind)
	}
	answer := strings.TrimSpace(string(q.CorrectAnswer))
	if answer == "" {
		return model.QuizQuestion{}, fmt.Errorf("%w: question %d has no correct answer", util.ErrInvalidQuestion, index)
	}

	row := model.QuizQuestion{
		QuestionText:  text,
		QuestionType:  kind,
		CorrectAnswer: answer,
		Explanation:   q.Explanation,
		OrderIndex:    index,
	}

	switch kind {
	case model.QuestionMultipleChoice:
		opts := nonEmpty(q.Options)
		if len(opts) == 0 {
			return model.QuizQuestion{}, fmt.Errorf("%w: multiple choice question %d has no options", util.ErrInvalidQuestion, index)
		}
		row.Options = mustJSON(opts)
	case model.QuestionTrueFalse:
		opts := nonEmpty(q.Options)
		if len(opts) == 0 {
			opts = trueFalseOptions
		}
		row.Options = mustJSON(opts)
	case model.QuestionShortAnswer:
		row.Options = nil
	}
	return row, nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mustJSON(v any) datatypes.JSON {
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

func (s *QuizService) quizForUser(ctx context.Context, userID, quizID string) (*model.Quiz, *model.LearningPath, error) {
	quiz, err := s.QuizRepo.FindQuizByID(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	path, err := s.PathRepo.FindPathByID(ctx, quiz.PathID)
	if err != nil {
		return nil, nil, err
	}
	if path.OwnerID != userID && !path.IsPublic {
		return nil, nil, util.ErrPermissionDenied
	}
	return quiz, path, nil
}

// GetQuiz 非拥有者看不到答案与解析, 提交后由 AttemptResult 返回
func (s *QuizService) GetQuiz(ctx context.Context, userID, quizID string) (*model.Quiz, error) {
	quiz, path, err := s.quizForUser(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if path.OwnerID != userID {
		for i := range quiz.Questions {
			quiz.Questions[i].CorrectAnswer = ""
			quiz.Questions[i].Explanation = ""
		}
	}
	return quiz, nil
}

func (s *QuizService) ListByPath(ctx context.Context, userID, pathID string) ([]model.Quiz, error) {
	path, err := s.PathRepo.FindPathByID(ctx, pathID)
	if err != nil {
		return nil, err
	}
	if path.OwnerID != userID && !path.IsPublic {
		return nil, util.ErrPermissionDenied
	}
	return s.QuizRepo.ListQuizzesByPath(ctx, pathID)
}

type SubmitAttemptRequest struct {
	Answers map[string]string `json:"answers" binding:"required"` // questionId -> answer
}

type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Answer        string `json:"answer"`
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
}

type AttemptResult struct {
	Attempt model.QuizAttempt `json:"attempt"`
	Results []QuestionResult  `json:"results"`
}

// SubmitAttempt 服务端判分, 忽略大小写与首尾空白
func (s *QuizService) SubmitAttempt(ctx context.Context, userID, quizID string, req SubmitAttemptRequest) (*AttemptResult, error) {
	quiz, _, err := s.quizForUser(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}

	results := make([]QuestionResult, 0, len(quiz.Questions))
	score := 0
	for _, q := range quiz.Questions {
		answer := strings.TrimSpace(req.Answers[q.ID])
		correct := answer != "" && strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))
		if correct {
			score++
		}
		results = append(results, QuestionResult{
			QuestionID:    q.ID,
			Answer:        answer,
			Correct:       correct,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		})
	}

	attempt := model.QuizAttempt{
		QuizID:      quiz.ID,
		UserID:      userID,
		Score:       score,
		Total:       len(quiz.Questions),
		Answers:     mustJSON(req.Answers),
		CompletedAt: s.now(),
	}
	if err := s.QuizRepo.CreateAttempt(ctx, &attempt); err != nil {
		return nil, err
	}
	return &AttemptResult{Attempt: attempt, Results: results}, nil
}

func (s *QuizService) ListAttempts(ctx context.Context, userID, quizID string) ([]model.QuizAttempt, error) {
	if _, _, err := s.quizForUser(ctx, userID, quizID); err != nil {
		return nil, err
	}
	return s.QuizRepo.ListAttempts(ctx, quizID, userID)
}
