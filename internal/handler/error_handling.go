package handler

import (
	"errors"
	"net/http"

	"cuentee/internal/models"
	"cuentee/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleServiceError переводит ошибку сервиса в HTTP ответ.
func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrStoryNotFound):
		statusCode = http.StatusNotFound
		errResp = models.NewErrorResponse(models.ErrCodeNotFound, "Story not found")
	case errors.Is(err, models.ErrProfileNotFound):
		statusCode = http.StatusNotFound
		errResp = models.NewErrorResponse(models.ErrCodeNotFound, "Profile not found")
	case errors.Is(err, models.ErrJobNotFound):
		statusCode = http.StatusNotFound
		errResp = models.NewErrorResponse(models.ErrCodeNotFound, "Generation job not found")
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.NewErrorResponse(models.ErrCodeNotFound, "Resource not found")
	case errors.Is(err, models.ErrUsernameTaken):
		statusCode = http.StatusConflict
		errResp = models.NewErrorResponse(models.ErrCodeUsernameTaken, "Username is already taken")
	case errors.Is(err, models.ErrUserHasActiveGeneration):
		statusCode = http.StatusConflict
		errResp = models.NewErrorResponse(models.ErrCodeActiveGeneration, "A story is already being generated")
	case errors.Is(err, models.ErrJobAlreadyFinished):
		statusCode = http.StatusConflict
		errResp = models.NewErrorResponse(models.ErrCodeJobFinished, "Generation job already finished")
	case errors.Is(err, models.ErrInsufficientCredits):
		statusCode = http.StatusPaymentRequired
		errResp = models.NewErrorResponse(models.ErrCodeInsufficientCredits, "No credits available. Please subscribe to continue generating stories.")
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = models.NewErrorResponse(models.ErrCodeValidation, err.Error())
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		errResp = models.NewErrorResponse(models.ErrCodeTokenExpired, "Token has expired")
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrTokenMalformed):
		statusCode = http.StatusUnauthorized
		errResp = models.NewErrorResponse(models.ErrCodeTokenInvalid, "Token is invalid or malformed")
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		errResp = models.NewErrorResponse(models.ErrCodeUnauthorized, "Unauthorized")
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		errResp = models.NewErrorResponse(models.ErrCodeForbidden, "Forbidden")
	case errors.Is(err, taskmanager.ErrTooManyTasks):
		statusCode = http.StatusServiceUnavailable
		errResp = models.NewErrorResponse(models.ErrCodeUpstream, "Too many stories are being generated, try again later")
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.NewErrorResponse(models.ErrCodeInternal, "An unexpected internal error occurred")
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.NewErrorResponse(models.ErrCodeBadRequest, message))
}
