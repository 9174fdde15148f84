package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"prepx_backend/internal/service"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/retry"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	aiErr := &service.AIHTTPError{StatusCode: http.StatusServiceUnavailable, Body: "overloaded"}
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"malformed", fmt.Errorf("parse: %w", &service.MalformedResponseError{Raw: "{", Err: errors.New("eof")}), http.StatusBadGateway, "malformed_response"},
		{"empty response", service.ErrEmptyResponse, http.StatusBadGateway, "malformed_response"},
		{"retries exhausted", &retry.ExhaustedError{Attempts: 3, Last: aiErr}, http.StatusServiceUnavailable, "ai_unavailable"},
		{"timeout", fmt.Errorf("generate path: %w", service.ErrGenerationTimeout), http.StatusGatewayTimeout, "timeout"},
		{"ai http error", &service.AIHTTPError{StatusCode: http.StatusBadRequest, Body: "bad"}, http.StatusBadGateway, "ai_error"},
		{"path not found", util.ErrPathNotFound, http.StatusNotFound, ""},
		{"quiz not found", util.ErrQuizNotFound, http.StatusNotFound, ""},
		{"permission", util.ErrPermissionDenied, http.StatusForbidden, ""},
		{"not public", util.ErrPathNotPublic, http.StatusForbidden, ""},
		{"invalid question", fmt.Errorf("%w: question 1 has no text", util.ErrInvalidQuestion), http.StatusBadRequest, ""},
		{"empty source", util.ErrEmptySource, http.StatusBadRequest, ""},
		{"unknown feature", util.ErrUnknownFeature, http.StatusBadRequest, ""},
		{"module item progress", util.ErrNotTopicItem, http.StatusBadRequest, ""},
		{"no archived source", util.ErrSourceNotFound, http.StatusNotFound, ""},
		{"internal", errors.New("disk full"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ctx, _ := gin.CreateTestContext(w)
			ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(ctx, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body util.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestCurrentUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	_, ok := currentUserID(ctx)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ctx, _ = gin.CreateTestContext(httptest.NewRecorder())
	claims := &util.Claims{}
	claims.Subject = "user-1"
	ctx.Set(util.ContextUserKey, claims)
	id, ok := currentUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", id)
}
