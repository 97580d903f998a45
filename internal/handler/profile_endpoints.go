package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) getProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	// профиль создаётся хуком регистрации, сразу после входа его может ещё не быть
	profile, err := h.Profiles.WaitForProfile(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) checkUsername(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		badRequest(c, "Query parameter 'username' is required")
		return
	}
	available, err := h.Profiles.CheckUsernameAvailability(c.Request.Context(), username)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": username, "available": available})
}

func (h *Handler) updateUsername(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	profile, err := h.Profiles.UpdateUsername(c.Request.Context(), userID, req.Username)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updatePlan(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	profile, err := h.Profiles.UpdatePlan(c.Request.Context(), userID, req.Plan)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
