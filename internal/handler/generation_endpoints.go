package handler

import (
	"net/http"

	"cuentee/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) startGeneration(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req generationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Guided == nil && req.Topic == "" {
		badRequest(c, "Either 'topic' or 'guided' is required")
		return
	}

	job, err := h.Generations.StartGeneration(c.Request.Context(), userID, middleware.AccessTokenFromContext(c), req.toRequest())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("Generation accepted", zap.String("jobID", job.ID), zap.String("userID", userID.String()))
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) getGeneration(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	job, err := h.Generations.GetJob(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) cancelGeneration(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	job, err := h.Generations.CancelJob(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) connectWebSocket(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	// при ошибке апгрейда gorilla уже ответила клиенту
	if err := h.Clients.ServeClient(c.Writer, c.Request, userID.String()); err != nil {
		h.logger.Debug("WebSocket connection not established", zap.Error(err))
	}
}
