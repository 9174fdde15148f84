package controller

import (
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GenerationController struct {
	Generation *service.GenerationService
	Paths      *service.LearningPathService
	Quizzes    *service.QuizService
}

func NewGenerationController(gen *service.GenerationService, paths *service.LearningPathService, quizzes *service.QuizService) *GenerationController {
	return &GenerationController{Generation: gen, Paths: paths, Quizzes: quizzes}
}

type GeneratePathRequest struct {
	SourceText  string `json:"sourceText" binding:"required"`
	Materialize bool   `json:"materialize"`
	IsPublic    bool   `json:"isPublic"`
}

type GeneratePathResponse struct {
	Generated *service.GeneratedPath     `json:"generated"`
	Report    *service.MaterializeReport `json:"report,omitempty"`
}

// GeneratePath 由资料生成学习路径骨架
// @Summary 生成学习路径结构
// @Description 调用 AI 将资料转换为模块/主题结构; materialize=true 时直接落库
// @Tags 生成
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body GeneratePathRequest true "原始资料"
// @Success 200 {object} util.Response{data=GeneratePathResponse}
// @Failure 429 {object} util.Response{data=service.UsageResult}
// @Failure 502 {object} util.Response
// @Failure 503 {object} util.Response
// @Failure 504 {object} util.Response
// @Router /api/generate/path [post]
func (c *GenerationController) GeneratePath(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req GeneratePathRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	generated, err := c.Generation.GeneratePathStructure(ctx.Request.Context(), req.SourceText)
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := GeneratePathResponse{Generated: generated}
	if req.Materialize {
		report, err := c.Paths.CreateFromGenerated(ctx.Request.Context(), userID, service.CreatePathRequest{
			Generated:  *generated,
			SourceText: req.SourceText,
			IsPublic:   req.IsPublic,
		})
		if err != nil {
			respondError(ctx, err)
			return
		}
		resp.Report = report
		util.Created(ctx, resp)
		return
	}
	util.Success(ctx, resp)
}

type GenerateContentRequest struct {
	ItemTitle string `json:"itemTitle" binding:"required"`
	Excerpt   string `json:"excerpt"`
}

// GenerateContent 为单个主题生成学习内容
// @Summary 生成主题内容
// @Tags 生成
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body GenerateContentRequest true "主题"
// @Success 200 {object} util.Response{data=[]service.GeneratedSection}
// @Failure 429 {object} util.Response{data=service.UsageResult}
// @Router /api/generate/content [post]
func (c *GenerationController) GenerateContent(ctx *gin.Context) {
	if _, ok := currentUserID(ctx); !ok {
		return
	}

	var req GenerateContentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	sections, err := c.Generation.GeneratePathContent(ctx.Request.Context(), req.ItemTitle, req.Excerpt)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, sections)
}

type GenerateQuizRequest struct {
	Content string `json:"content" binding:"required"`
	service.QuizOptions
	// PathID 非空时生成后直接落库
	PathID string `json:"pathId"`
	service.QuizAnchor
}

type GenerateQuizResponse struct {
	Quiz   *service.GeneratedQuiz `json:"quiz"`
	QuizID string                 `json:"quizId,omitempty"`
}

// GenerateQuiz 根据内容生成测验
// @Summary 生成测验
// @Tags 生成
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body GenerateQuizRequest true "内容与出题选项"
// @Success 200 {object} util.Response{data=GenerateQuizResponse}
// @Failure 429 {object} util.Response{data=service.UsageResult}
// @Router /api/generate/quiz [post]
func (c *GenerationController) GenerateQuiz(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req GenerateQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Generation.GenerateQuiz(ctx.Request.Context(), req.Content, req.QuizOptions)
	if err != nil {
		respondError(ctx, err)
		return
	}

	resp := GenerateQuizResponse{Quiz: quiz}
	if req.PathID != "" {
		id, err := c.Quizzes.CreateFromGenerated(ctx.Request.Context(), userID, service.CreateQuizRequest{
			PathID:     req.PathID,
			Quiz:       *quiz,
			QuizAnchor: req.QuizAnchor,
		})
		if err != nil {
			respondError(ctx, err)
			return
		}
		resp.QuizID = id
		util.Created(ctx, resp)
		return
	}
	util.Success(ctx, resp)
}
