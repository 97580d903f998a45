package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"cuentee/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier проверяет строку токена и возвращает claims.
// Ошибки: models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, tokenString string) (*models.Claims, error)
}

// AuthMiddleware требует валидный Bearer токен и кладёт UserID и сам токен в контекст.
func AuthMiddleware(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return authenticate(verifier, logger, bearerToken, true)
}

// QueryTokenAuth - вариант AuthMiddleware для WebSocket: токен берётся из ?token=,
// так как браузер не умеет ставить заголовки при апгрейде.
func QueryTokenAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return authenticate(verifier, logger, func(c *gin.Context) (string, bool) {
		if tok := c.Query("token"); tok != "" {
			return tok, true
		}
		return bearerToken(c)
	}, true)
}

// OptionalAuth пропускает анонимные запросы, а при валидном токене
// заполняет контекст так же, как AuthMiddleware.
func OptionalAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return authenticate(verifier, logger, bearerToken, false)
}

func authenticate(verifier TokenVerifier, logger *zap.Logger, extract func(*gin.Context) (string, bool), required bool) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("AuthMiddleware")

	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		tokenString, ok := extract(c)
		if !ok {
			if !required {
				c.Next()
				return
			}
			log.Warn("Authorization token missing or malformed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Unauthorized: Missing or malformed token"))
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), tokenString)
		if err == nil {
			var userID uuid.UUID
			userID, err = claims.UserID()
			if err == nil {
				c.Set(models.UserContextKey, userID)
				c.Set(models.AccessTokenContextKey, tokenString)
				log.Debug("User authorized", zap.String("userID", userID.String()))
				c.Next()
				return
			}
		}

		if !required {
			log.Debug("Ignoring invalid token on optional auth route", zap.Error(err))
			c.Next()
			return
		}

		status := http.StatusUnauthorized
		resp := models.NewErrorResponse(models.ErrCodeTokenInvalid, "Unauthorized: Invalid token")
		switch {
		case errors.Is(err, models.ErrTokenExpired):
			resp = models.NewErrorResponse(models.ErrCodeTokenExpired, "Unauthorized: Token expired")
		case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
		default:
			log.Error("Unexpected token verification error", zap.Error(err))
			status = http.StatusInternalServerError
			resp = models.NewErrorResponse(models.ErrCodeInternal, "Internal server error during token verification")
		}
		log.Warn("Token verification failed", zap.Error(err))
		c.AbortWithStatusJSON(status, resp)
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// InternalServiceAuth проверяет общий секрет в X-Internal-Service-Token.
// Используется для вебхуков провайдера идентификации и служебных вызовов.
func InternalServiceAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("InternalServiceAuth")

	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		token := c.GetHeader("X-Internal-Service-Token")
		if token == "" {
			log.Warn("X-Internal-Service-Token header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeUnauthorized, "Unauthorized: Missing inter-service token"))
			return
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.Warn("Inter-service token verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewErrorResponse(models.ErrCodeTokenInvalid, "Unauthorized: Invalid inter-service token"))
			return
		}
		if source := c.GetHeader("X-Source-Service"); source != "" {
			c.Set(models.SourceServiceContextKey, source)
		}
		c.Next()
	}
}

// UserIDFromContext возвращает UserID, положенный AuthMiddleware.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(models.UserContextKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// AccessTokenFromContext возвращает исходный bearer токен пользователя.
func AccessTokenFromContext(c *gin.Context) string {
	return c.GetString(models.AccessTokenContextKey)
}
