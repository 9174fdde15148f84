package middleware

import (
	"context"
	"net/http"
	"prepx_backend/internal/model"
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// UsageChecker 检查并记录一次功能使用
type UsageChecker interface {
	CheckAndIncrement(ctx context.Context, userID string, feature model.FeatureType) (*service.UsageResult, error)
}

// UsageGate 在处理请求前消耗一次配额, 超额返回 429
func UsageGate(usage UsageChecker, feature model.FeatureType) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		res, err := usage.CheckAndIncrement(c.Request.Context(), user.UserID(), feature)
		if err != nil {
			util.LogInternalError(c, err)
			c.Abort()
			return
		}
		if !res.Allowed {
			util.KindError(c, http.StatusTooManyRequests, "usage_limit",
				"usage limit reached for "+string(feature), res)
			return
		}

		c.Set(util.ContextUsageKey, res)
		c.Next()
	}
}
