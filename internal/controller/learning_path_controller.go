package controller

import (
	"prepx_backend/internal/model"
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningPathController struct {
	Service  *service.LearningPathService
	Progress *service.ProgressService
	Quizzes  *service.QuizService
}

func NewLearningPathController(svc *service.LearningPathService, progress *service.ProgressService, quizzes *service.QuizService) *LearningPathController {
	return &LearningPathController{Service: svc, Progress: progress, Quizzes: quizzes}
}

// @Summary 保存生成的学习路径
// @Description 将路径骨架写入为 路径/列/条目/内容 树; 单条失败会被跳过并计入 skipped
// @Tags 学习路径
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.CreatePathRequest true "生成结果"
// @Success 201 {object} util.Response{data=service.MaterializeReport}
// @Router /api/paths [post]
func (c *LearningPathController) CreatePath(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.CreatePathRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	report, err := c.Service.CreateFromGenerated(ctx.Request.Context(), userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, report)
}

// @Summary 学习路径列表
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param scope query string false "mine 或 public" default(mine)
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/paths [get]
func (c *LearningPathController) ListPaths(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	page := util.QueryInt(ctx.Query("page"), 1, 1)
	limit := util.QueryInt(ctx.Query("limit"), 20, 1)
	if limit > 100 {
		limit = 100
	}

	var (
		list  []model.LearningPath
		total int64
		err   error
	)
	if ctx.Query("scope") == "public" {
		list, total, err = c.Service.ListPublicPaths(ctx.Request.Context(), page, limit)
	} else {
		list, total, err = c.Service.ListPaths(ctx.Request.Context(), userID, page, limit)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// @Summary 学习路径详情
// @Description 返回完整的列/条目/内容树, 均按 order_index 排序
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Success 200 {object} util.Response{data=service.PathTreeResponse}
// @Router /api/paths/{id} [get]
func (c *LearningPathController) GetPath(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	tree, err := c.Service.GetTree(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, tree)
}

// @Summary 更新学习路径
// @Tags 学习路径
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Param body body service.UpdatePathRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.LearningPath}
// @Router /api/paths/{id} [put]
func (c *LearningPathController) UpdatePath(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.UpdatePathRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	path, err := c.Service.UpdatePath(ctx.Request.Context(), userID, ctx.Param("id"), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, path)
}

// @Summary 删除学习路径
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Success 200 {object} util.Response
// @Router /api/paths/{id} [delete]
func (c *LearningPathController) DeletePath(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	if err := c.Service.DeletePath(ctx.Request.Context(), userID, ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 复制公开的学习路径
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Success 201 {object} util.Response{data=model.LearningPath}
// @Router /api/paths/{id}/clone [post]
func (c *LearningPathController) ClonePath(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	clone, err := c.Service.ClonePath(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, clone)
}

// @Summary 路径的原始资料
// @Description 返回生成该路径时归档的资料文本, 仅拥有者可读
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Success 200 {object} util.Response{data=string}
// @Failure 404 {object} util.Response
// @Router /api/paths/{id}/source [get]
func (c *LearningPathController) GetSource(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	text, err := c.Service.Source(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, text)
}

// @Summary 学习路径进度
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Success 200 {object} util.Response{data=service.PathProgress}
// @Router /api/paths/{id}/progress [get]
func (c *LearningPathController) GetProgress(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	summary, err := c.Progress.PathSummary(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// @Summary 学习路径下的测验
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path string true "路径ID"
// @Success 200 {object} util.Response{data=[]model.Quiz}
// @Router /api/paths/{id}/quizzes [get]
func (c *LearningPathController) ListQuizzes(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	quizzes, err := c.Quizzes.ListByPath(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

type SetProgressRequest struct {
	Completed bool `json:"completed"`
}

// @Summary 标记条目完成状态
// @Tags 学习路径
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "条目ID"
// @Param body body SetProgressRequest true "完成状态"
// @Success 200 {object} util.Response{data=model.ItemProgress}
// @Router /api/items/{id}/progress [put]
func (c *LearningPathController) SetItemProgress(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req SetProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	p, err := c.Progress.SetItemProgress(ctx.Request.Context(), userID, ctx.Param("id"), req.Completed)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, p)
}
