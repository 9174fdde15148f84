package controller

import (
	"net/http"
	"prepx_backend/internal/model"
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UsageController struct {
	Service *service.UsageService
}

func NewUsageController(svc *service.UsageService) *UsageController {
	return &UsageController{Service: svc}
}

// @Summary 当前用量
// @Description 各功能在当前周期内的用量, 不计数
// @Tags 用量
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.UsageResult}
// @Router /api/usage [get]
func (c *UsageController) Summary(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	summary, err := c.Service.Summary(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 检查并消耗一次配额
// @Tags 用量
// @Produce json
// @Security BearerAuth
// @Param feature path string true "chat, quiz, path_generation, content_generation"
// @Success 200 {object} util.Response{data=service.UsageResult}
// @Failure 429 {object} util.Response{data=service.UsageResult}
// @Router /api/usage/{feature}/check [post]
func (c *UsageController) Check(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	res, err := c.Service.CheckAndIncrement(ctx.Request.Context(), userID, model.FeatureType(ctx.Param("feature")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !res.Allowed {
		util.KindError(ctx, http.StatusTooManyRequests, "usage_limit", "usage limit reached", res)
		return
	}
	util.Success(ctx, res)
}

// @Summary 查看指定用户的用量
// @Description 仅管理员, 不计数
// @Tags 用量
// @Produce json
// @Security BearerAuth
// @Param userId path string true "用户ID"
// @Success 200 {object} util.Response{data=[]service.UsageResult}
// @Router /api/admin/usage/{userId} [get]
func (c *UsageController) UserSummary(ctx *gin.Context) {
	summary, err := c.Service.Summary(ctx.Request.Context(), ctx.Param("userId"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}
