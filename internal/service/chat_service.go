package service

import (
	"context"
	"fmt"
	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/logger"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	chatHistoryTurns   = 10
	chatContextMaxChar = 4000
)

// ChatStreamer 流式补全
type ChatStreamer interface {
	ChatStream(ctx context.Context, system, prompt string, history []AIChatMessage) (<-chan string, <-chan error)
}

type ChatService struct {
	ChatRepo *repository.ChatRepository
	PathRepo *repository.LearningPathRepository
	ai       ChatStreamer
	timeout  time.Duration
}

func NewChatService(chatRepo *repository.ChatRepository, pathRepo *repository.LearningPathRepository, ai ChatStreamer, timeout time.Duration) *ChatService {
	return &ChatService{
		ChatRepo: chatRepo,
		PathRepo: pathRepo,
		ai:       ai,
		timeout:  timeoutOr(timeout, 60*time.Second),
	}
}

type ChatRequest struct {
	Question  string  `json:"question" binding:"required"`
	SessionID string  `json:"sessionId"`
	PathID    *string `json:"pathId"`
}

type ChatStream struct {
	SessionID string
	Chunks    <-chan string
	Errs      <-chan error
}

// AskStream 带会话历史和路径上下文的流式问答; 流正常结束后保存本轮
func (s *ChatService) AskStream(ctx context.Context, userID string, req ChatRequest) (*ChatStream, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, util.ErrEmptyQuestion
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var pathContext string
	if req.PathID != nil && *req.PathID != "" {
		outline, err := s.pathOutline(ctx, userID, *req.PathID)
		if err != nil {
			return nil, err
		}
		pathContext = outline
	}

	turns, err := s.ChatRepo.RecentTurns(ctx, userID, sessionID, chatHistoryTurns)
	if err != nil {
		return nil, err
	}
	history := make([]AIChatMessage, 0, len(turns)*2)
	for _, t := range turns {
		history = append(history,
			AIChatMessage{Role: "user", Content: t.Question},
			AIChatMessage{Role: "assistant", Content: t.Answer},
		)
	}

	streamCtx, cancel := context.WithTimeout(ctx, s.timeout)
	upstream, upstreamErrs := s.ai.ChatStream(streamCtx, chatSystemWithContext(pathContext), question, history)

	out := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer cancel()
		defer close(out)
		defer close(errs)

		var answer strings.Builder
		for chunk := range upstream {
			answer.WriteString(chunk)
			select {
			case out <- chunk:
			case <-streamCtx.Done():
				errs <- streamCtx.Err()
				return
			}
		}
		if err := <-upstreamErrs; err != nil {
			errs <- err
			return
		}
		if answer.Len() == 0 {
			return
		}

		turn := &model.ChatTurn{
			UserID:    userID,
			SessionID: sessionID,
			PathID:    req.PathID,
			Question:  question,
			Answer:    answer.String(),
		}
		if err := s.ChatRepo.CreateTurn(context.WithoutCancel(ctx), turn); err != nil {
			logger.WithContext(ctx).Error("save chat turn failed",
				zap.String("user_id", userID),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}()

	return &ChatStream{SessionID: sessionID, Chunks: out, Errs: errs}, nil
}

// pathOutline 路径标题与模块/主题列表, 作为对话背景
func (s *ChatService) pathOutline(ctx context.Context, userID, pathID string) (string, error) {
	tree, err := s.PathRepo.LoadTree(ctx, pathID)
	if err != nil {
		return "", err
	}
	if tree.Path.OwnerID != userID && !tree.Path.IsPublic {
		return "", util.ErrPermissionDenied
	}
	nested := buildTree(tree)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", nested.Path.Title)
	if nested.Path.Subtitle != "" {
		fmt.Fprintf(&b, "%s\n", nested.Path.Subtitle)
	}
	for _, root := range nested.Columns {
		for _, module := range root.Items {
			fmt.Fprintf(&b, "\n## %s\n", module.Title)
			for _, topics := range module.Columns {
				for _, topic := range topics.Items {
					fmt.Fprintf(&b, "- %s\n", topic.Title)
				}
			}
		}
	}
	return util.Truncate(b.String(), chatContextMaxChar), nil
}

func (s *ChatService) History(ctx context.Context, userID, sessionID string) ([]model.ChatTurn, error) {
	return s.ChatRepo.RecentTurns(ctx, userID, sessionID, chatHistoryTurns)
}
