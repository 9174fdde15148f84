package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"prepx_backend/internal/config"
	"prepx_backend/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestAIService_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "hello", req.Messages[1].Content)
		}
		if assert.NotNil(t, req.ResponseFormat) {
			assert.Equal(t, "json_object", req.ResponseFormat.Type)
		}

		fmt.Fprint(w, completionBody(`{"ok":true}`))
	}))
	defer srv.Close()

	ai := NewAIService(config.AIConfig{BaseURL: srv.URL + "/", APIKey: "test-key", Model: "test-model"})
	text, err := ai.Complete(context.Background(), "be brief", "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestAIService_CompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer srv.Close()

	ai := NewAIService(config.AIConfig{BaseURL: srv.URL})
	_, err := ai.Complete(context.Background(), "", "hello")

	var httpErr *AIHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.True(t, IsTransientAIError(err))
}

func TestIsTransientAIError(t *testing.T) {
	assert.True(t, IsTransientAIError(&AIHTTPError{StatusCode: 503}))
	assert.True(t, IsTransientAIError(fmt.Errorf("upstream: Service Unavailable")))
	assert.False(t, IsTransientAIError(&AIHTTPError{StatusCode: 500}))
	assert.False(t, IsTransientAIError(&AIHTTPError{StatusCode: 429}))
	assert.False(t, IsTransientAIError(nil))
}

// 503 后成功: 完整链路 HTTP -> 重试 -> 解析
func TestGenerationService_OverHTTP(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, completionBody("```json\n{\"title\":\"Quiz\",\"questions\":[{\"question_text\":\"Q\",\"question_type\":\"short_answer\",\"correct_answer\":\"A\"}]}\n```"))
	}))
	defer srv.Close()

	var slept []time.Duration
	cfg := config.AIConfig{BaseURL: srv.URL}
	svc := NewGenerationService(NewAIService(cfg), cfg).WithRetryPolicy(retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})

	quiz, err := svc.GenerateQuiz(context.Background(), "content", QuizOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Quiz", quiz.Title)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, []time.Duration{time.Second}, slept)
}

func TestAIService_ChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatCompletionRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		// system + 2 条历史 + 问题
		assert.Len(t, req.Messages, 4)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	ai := NewAIService(config.AIConfig{BaseURL: srv.URL})
	history := []AIChatMessage{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hey"}}
	out, errs := ai.ChatStream(context.Background(), "sys", "say hello", history)

	var b strings.Builder
	for chunk := range out {
		b.WriteString(chunk)
	}
	assert.NoError(t, <-errs)
	assert.Equal(t, "Hello", b.String())
}
