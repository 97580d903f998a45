package handler

import (
	"net/http"

	"cuentee/internal/middleware"
	"cuentee/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) listGallery(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid pagination parameters")
		return
	}
	page, err := h.Stories.ListPublicStories(c.Request.Context(), q.Page, q.Limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(page, func(s models.PublicStory) publicStoryResponse {
		return publicStoryResponse{storyResponse: newStoryResponse(s.Story), Username: s.Username}
	}))
}

func (h *Handler) listMyStories(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "Invalid pagination parameters")
		return
	}
	page, err := h.Stories.ListUserStories(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapPage(page, newStoryResponse))
}

func (h *Handler) getStory(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	// анонимный зритель видит только публичные рассказы
	viewer, _ := middleware.UserIDFromContext(c)

	story, err := h.Stories.GetStory(c.Request.Context(), id, viewer)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStoryResponse(*story))
}

func (h *Handler) saveStory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req saveStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid save story request", zap.Error(err))
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}
	content, err := req.contentValue()
	if err != nil {
		badRequest(c, "Invalid story content")
		return
	}

	story, err := h.Stories.SaveStory(c.Request.Context(), userID, req.Title, content, req.Prompt)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newStoryResponse(*story))
}

func (h *Handler) updateVisibility(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	story, err := h.Stories.UpdateVisibility(c.Request.Context(), id, userID, req.Visibility)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStoryResponse(*story))
}

func (h *Handler) deleteStory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.Stories.DeleteStory(c.Request.Context(), id, userID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
