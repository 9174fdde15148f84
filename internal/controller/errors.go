package controller

import (
	"errors"
	"net/http"
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/retry"

	"github.com/gin-gonic/gin"
)

// respondError 将服务层错误映射为统一响应
func respondError(ctx *gin.Context, err error) {
	var malformed *service.MalformedResponseError
	var aiErr *service.AIHTTPError

	switch {
	case errors.As(err, &malformed), errors.Is(err, service.ErrEmptyResponse):
		util.KindError(ctx, http.StatusBadGateway, "malformed_response", "AI returned an unusable response", nil)
	case errors.Is(err, retry.ErrRetriesExhausted):
		util.KindError(ctx, http.StatusServiceUnavailable, "ai_unavailable", "AI service is unavailable, please retry later", nil)
	case errors.Is(err, service.ErrGenerationTimeout):
		util.KindError(ctx, http.StatusGatewayTimeout, "timeout", "AI generation timed out", nil)
	case errors.As(err, &aiErr):
		util.KindError(ctx, http.StatusBadGateway, "ai_error", aiErr.Error(), nil)
	case errors.Is(err, util.ErrPathNotFound),
		errors.Is(err, util.ErrItemNotFound),
		errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, util.ErrSourceNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrPermissionDenied), errors.Is(err, util.ErrPathNotPublic):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrEmptySource),
		errors.Is(err, util.ErrEmptyPath),
		errors.Is(err, util.ErrEmptyQuiz),
		errors.Is(err, util.ErrInvalidQuestion),
		errors.Is(err, util.ErrEmptyQuestion),
		errors.Is(err, util.ErrNotTopicItem),
		errors.Is(err, util.ErrUnknownFeature):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

func currentUserID(ctx *gin.Context) (string, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return "", false
	}
	return user.UserID(), true
}
