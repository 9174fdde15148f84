package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"prepx_backend/internal/config"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReply struct {
	text string
	err  error
}

// fakeGenerator 按顺序返回预设的回复, 记录收到的 prompt
type fakeGenerator struct {
	mu      sync.Mutex
	replies []fakeReply
	prompts []string
	block   bool
}

func (f *fakeGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return "", ctx.Err()
	}
	defer f.mu.Unlock()

	if len(f.replies) == 0 {
		return "", errors.New("no reply configured")
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r.text, r.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func newTestGenerationService(gen Generator, cfg config.AIConfig, slept *[]time.Duration) *GenerationService {
	return NewGenerationService(gen, cfg).WithRetryPolicy(retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	})
}

const structureReply = "```json\n" + `{
  "title": "Go Concurrency",
  "description": "Goroutines and channels",
  "branches": [
    {"title": "Basics", "items": [
      {"title": "Goroutines", "sections": [{"type": "paragraph", "content": "Lightweight threads."}]},
      {"title": "Channels"}
    ]}
  ]
}` + "\n```"

func TestGeneratePathStructure(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{text: structureReply}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	path, err := svc.GeneratePathStructure(context.Background(), "notes about goroutines")
	require.NoError(t, err)

	assert.Equal(t, "Go Concurrency", path.Path.Title)
	assert.Equal(t, "Goroutines and channels", path.Path.Subtitle)
	require.Len(t, path.Branches, 1)
	assert.Len(t, path.Branches[0].Items, 2)
	assert.Len(t, path.Branches[0].Items[0].Sections, 1)
	assert.Equal(t, 1, gen.calls())
	assert.Empty(t, slept)
}

func TestGeneratePathStructure_RetriesServiceUnavailable(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{
		{err: &AIHTTPError{StatusCode: http.StatusServiceUnavailable, Body: "overloaded"}},
		{text: structureReply},
	}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	path, err := svc.GeneratePathStructure(context.Background(), "notes")
	require.NoError(t, err)
	assert.Equal(t, "Go Concurrency", path.Path.Title)
	assert.Equal(t, 2, gen.calls())
	assert.Equal(t, []time.Duration{time.Second}, slept)
}

func TestGeneratePathStructure_RetriesExhausted(t *testing.T) {
	var slept []time.Duration
	unavailable := &AIHTTPError{StatusCode: http.StatusServiceUnavailable}
	gen := &fakeGenerator{replies: []fakeReply{{err: unavailable}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	_, err := svc.GeneratePathStructure(context.Background(), "notes")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrRetriesExhausted)

	var httpErr *AIHTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, 3, gen.calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, slept)
}

func TestGeneratePathStructure_NonTransientNotRetried(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{err: &AIHTTPError{StatusCode: http.StatusBadRequest}}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	_, err := svc.GeneratePathStructure(context.Background(), "notes")
	var httpErr *AIHTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.NotErrorIs(t, err, retry.ErrRetriesExhausted)
	assert.Equal(t, 1, gen.calls())
}

func TestGeneratePathStructure_MalformedIsNotRetried(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{text: "I cannot help with that."}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	_, err := svc.GeneratePathStructure(context.Background(), "notes")
	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, gen.calls())
}

func TestGeneratePathStructure_MissingTitle(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{text: `{"branches": []}`}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	_, err := svc.GeneratePathStructure(context.Background(), "notes")
	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.ErrorIs(t, err, util.ErrEmptyPath)
}

func TestGeneratePathStructure_EmptySource(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	_, err := svc.GeneratePathStructure(context.Background(), "  \n ")
	assert.ErrorIs(t, err, util.ErrEmptySource)
	assert.Equal(t, 0, gen.calls())
}

func TestGeneratePathStructure_TruncatesSource(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{text: structureReply}}}
	svc := newTestGenerationService(gen, config.AIConfig{MaxSourceChars: 100}, &slept)

	source := strings.Repeat("a", 100) + "TAIL"
	_, err := svc.GeneratePathStructure(context.Background(), source)
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], strings.Repeat("a", 100))
	assert.NotContains(t, gen.prompts[0], "TAIL")
}

func TestGenerateQuiz(t *testing.T) {
	var slept []time.Duration
	reply := `{"title":"Channels","questions":[
		{"question":"Unbuffered channels block?","type":"true_false","correct_answer":true},
		{"question_text":"2+2?","question_type":"multiple_choice","options":["3","4"],"correct_answer":4}
	]}`
	gen := &fakeGenerator{replies: []fakeReply{{text: reply}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	quiz, err := svc.GenerateQuiz(context.Background(), "channels", QuizOptions{})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "Unbuffered channels block?", quiz.Questions[0].text())
	assert.Equal(t, "true_false", quiz.Questions[0].kind())
	assert.Equal(t, FlexString("True"), quiz.Questions[0].CorrectAnswer)
	assert.Equal(t, FlexString("4"), quiz.Questions[1].CorrectAnswer)
	assert.Contains(t, gen.prompts[0], "medium quiz of 5 questions")
}

func TestGenerateQuiz_NoQuestions(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{text: `{"title":"Empty","questions":[]}`}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	_, err := svc.GenerateQuiz(context.Background(), "channels", QuizOptions{})
	var malformed *MalformedResponseError
	require.True(t, errors.As(err, &malformed))
	assert.ErrorIs(t, err, util.ErrEmptyQuiz)
}

func TestGenerateQuiz_Timeout(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{block: true}
	svc := newTestGenerationService(gen, config.AIConfig{QuizTimeout: 20 * time.Millisecond}, &slept)

	_, err := svc.GenerateQuiz(context.Background(), "channels", QuizOptions{})
	assert.ErrorIs(t, err, ErrGenerationTimeout)
}

func TestGeneratePathContent(t *testing.T) {
	var slept []time.Duration
	gen := &fakeGenerator{replies: []fakeReply{{text: `{"sections":[{"type":"heading","content":"Select"},{"type":"list","content":["a","b"]}]}`}}}
	svc := newTestGenerationService(gen, config.AIConfig{}, &slept)

	sections, err := svc.GeneratePathContent(context.Background(), "Select statement", "")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "heading", sections[0].Type)
	assert.JSONEq(t, `["a","b"]`, string(sections[1].Content))
}

func TestQuizOptionsDefaults(t *testing.T) {
	o := QuizOptions{NumQuestions: 50, Difficulty: "insane", Type: "essay"}.withDefaults()
	assert.Equal(t, QuizOptions{NumQuestions: 20, Difficulty: "medium", Type: "multiple_choice"}, o)
}
