package service

import (
	"context"
	"errors"
	"fmt"
	"prepx_backend/internal/config"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/logger"
	"prepx_backend/pkg/monitoring"
	"prepx_backend/pkg/retry"
	"prepx_backend/pkg/tracing"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ErrGenerationTimeout = errors.New("generation timed out")

// GenerationService 调用生成服务, 带重试与 JSON 解析
type GenerationService struct {
	gen    Generator
	cfg    config.AIConfig
	policy retry.Policy
}

func NewGenerationService(gen Generator, cfg config.AIConfig) *GenerationService {
	return &GenerationService{
		gen: gen,
		cfg: cfg,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			IsTransient: IsTransientAIError,
		},
	}
}

// WithRetryPolicy 替换重试策略, 主要用于测试
func (s *GenerationService) WithRetryPolicy(p retry.Policy) *GenerationService {
	if p.IsTransient == nil {
		p.IsTransient = IsTransientAIError
	}
	s.policy = p
	return s
}

func timeoutOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// generate 在截止时间内完成一次带重试的补全并解析到 out
func (s *GenerationService) generate(ctx context.Context, op string, timeout time.Duration, system, prompt string, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, "ai."+op, attribute.Int("prompt.chars", len(prompt)))
	defer func() { tracing.EndSpan(span, err) }()

	log := logger.WithContext(ctx).With(zap.String("operation", op))

	policy := s.policy
	policy.OnRetry = func(attempt int, delay time.Duration, cause error) {
		monitoring.AIRetries.WithLabelValues(op).Inc()
		log.Warn("AI request retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(cause),
		)
	}

	start := time.Now()
	text, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) (string, error) {
		return s.gen.Complete(ctx, system, prompt)
	})
	monitoring.ObserveAI(op, start, err)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrGenerationTimeout, timeout, err)
		}
		log.Error("AI request failed", zap.Error(err))
		return err
	}

	if err := ParseJSONResponse(text, out); err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			log.Error("AI response is not valid JSON",
				zap.String("raw", util.Truncate(malformed.Raw, 2000)),
				zap.Error(malformed.Err),
			)
		}
		return err
	}
	return nil
}

// GeneratePathStructure 由原始资料生成学习路径骨架
func (s *GenerationService) GeneratePathStructure(ctx context.Context, sourceText string) (*GeneratedPath, error) {
	sourceText = strings.TrimSpace(sourceText)
	if sourceText == "" {
		return nil, util.ErrEmptySource
	}
	maxChars := s.cfg.MaxSourceChars
	if maxChars <= 0 {
		maxChars = 30000
	}
	sourceText = util.Truncate(sourceText, maxChars)

	var raw generatedStructure
	err := s.generate(ctx, "path_structure", timeoutOr(s.cfg.StructureTimeout, 60*time.Second),
		pathStructureSystem, pathStructurePrompt(sourceText), &raw)
	if err != nil {
		return nil, err
	}

	path := raw.normalize()
	if strings.TrimSpace(path.Path.Title) == "" {
		return nil, &MalformedResponseError{Raw: "missing title", Err: util.ErrEmptyPath}
	}
	return &path, nil
}

// GeneratePathContent 为单个主题生成内容段落
func (s *GenerationService) GeneratePathContent(ctx context.Context, itemTitle, excerpt string) ([]GeneratedSection, error) {
	var out generatedSections
	err := s.generate(ctx, "path_content", timeoutOr(s.cfg.ContentTimeout, 45*time.Second),
		pathContentSystem, pathContentPrompt(itemTitle, util.Truncate(excerpt, 8000)), &out)
	if err != nil {
		return nil, err
	}
	return out.Sections, nil
}

// GenerateQuiz 根据内容生成测验, 不落库
func (s *GenerationService) GenerateQuiz(ctx context.Context, content string, opts QuizOptions) (*GeneratedQuiz, error) {
	opts = opts.withDefaults()

	var quiz GeneratedQuiz
	err := s.generate(ctx, "quiz", timeoutOr(s.cfg.QuizTimeout, 30*time.Second),
		quizSystem, quizPrompt(util.Truncate(content, 12000), opts), &quiz)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, &MalformedResponseError{Raw: "no questions", Err: util.ErrEmptyQuiz}
	}
	return &quiz, nil
}
