package handler

import (
	"net/http"

	"cuentee/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// userCreatedHook вызывается провайдером идентификации после регистрации.
func (h *Handler) userCreatedHook(c *gin.Context) {
	var req userCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "Invalid user_id format")
		return
	}

	profile, err := h.Profiles.InitializeProfile(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("Profile initialized by hook",
		zap.String("userID", userID.String()),
		zap.String("source", c.GetString(models.SourceServiceContextKey)),
	)
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateCredits(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req creditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	profile, err := h.Credits.UpdateCredits(c.Request.Context(), userID, *req.Credits)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
