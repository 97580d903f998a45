// Package handler - HTTP API сервиса.
package handler

import (
	"net/http"

	"cuentee/internal/middleware"
	"cuentee/internal/models"
	"cuentee/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientConnector подключает WebSocket клиента аутентифицированного пользователя.
type ClientConnector interface {
	ServeClient(w http.ResponseWriter, r *http.Request, userID string) error
}

// Deps - зависимости Handler.
type Deps struct {
	Stories              service.StoryService
	Profiles             service.ProfileService
	Credits              service.CreditService
	Generations          service.GenerationService
	Clients              ClientConnector
	Verifier             middleware.TokenVerifier
	InternalServiceToken string
}

// Handler обрабатывает HTTP запросы API.
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler создаёт Handler.
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Deps: deps, logger: logger.Named("Handler")}
}

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	authRequired := middleware.AuthMiddleware(h.Verifier, h.logger)
	authOptional := middleware.OptionalAuth(h.Verifier, h.logger)

	api := router.Group("/api")
	{
		api.GET("/gallery", h.listGallery)
		api.GET("/stories/:id", authOptional, h.getStory)
		api.GET("/profile/username-available", h.checkUsername)
	}

	protected := api.Group("")
	protected.Use(authRequired)
	{
		protected.GET("/stories", h.listMyStories)
		protected.POST("/stories", h.saveStory)
		protected.PATCH("/stories/:id/visibility", h.updateVisibility)
		protected.DELETE("/stories/:id", h.deleteStory)

		protected.GET("/profile", h.getProfile)
		protected.PUT("/profile/username", h.updateUsername)
		protected.PUT("/profile/plan", h.updatePlan)

		protected.POST("/generations", h.startGeneration)
		protected.GET("/generations/:id", h.getGeneration)
		protected.DELETE("/generations/:id", h.cancelGeneration)
	}

	router.GET("/ws", middleware.QueryTokenAuth(h.Verifier, h.logger), h.connectWebSocket)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalServiceAuth(h.InternalServiceToken, h.logger))
	{
		internal.POST("/hooks/user-created", h.userCreatedHook)
		internal.PUT("/profiles/:id/credits", h.updateCredits)
	}
}

// getUserID достаёт ID пользователя, положенный AuthMiddleware.
// При отсутствии отвечает 401 и возвращает false.
func getUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		zap.L().Error("User ID not found in context on protected route", zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Unauthorized"))
		return uuid.Nil, false
	}
	return userID, true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
