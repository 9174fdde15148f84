package controller

import (
	"prepx_backend/internal/service"
	"prepx_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChatController struct {
	Service *service.ChatService
}

func NewChatController(svc *service.ChatService) *ChatController {
	return &ChatController{Service: svc}
}

// Ask AI 助教问答 (SSE)
// @Summary AI 助教问答
// @Description 以 SSE 流式返回回答; 事件依次为 session, message..., error?, end
// @Tags 对话
// @Accept json
// @Produce text/event-stream
// @Security BearerAuth
// @Param request body service.ChatRequest true "问题"
// @Failure 429 {object} util.Response{data=service.UsageResult}
// @Router /api/chat [post]
func (c *ChatController) Ask(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req service.ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	stream, err := c.Service.AskStream(ctx.Request.Context(), userID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}

	// 设置SSE响应头
	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")

	ctx.SSEvent("session", stream.SessionID)
	ctx.Writer.Flush()

	for content := range stream.Chunks {
		ctx.SSEvent("message", content)
		ctx.Writer.Flush()
	}

	if err := <-stream.Errs; err != nil {
		ctx.SSEvent("error", err.Error())
		ctx.Writer.Flush()
	}

	ctx.SSEvent("end", "done")
	ctx.Writer.Flush()
}

// @Summary 会话历史
// @Tags 对话
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话ID"
// @Success 200 {object} util.Response{data=[]model.ChatTurn}
// @Router /api/chat/sessions/{id} [get]
func (c *ChatController) History(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	turns, err := c.Service.History(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, turns)
}
