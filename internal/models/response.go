package models

// ErrorDetail - тело ошибки API.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse - стандартная структура для ответа об ошибке в формате JSON.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Коды ошибок API.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUsernameTaken       = "USERNAME_TAKEN"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeActiveGeneration    = "ACTIVE_GENERATION"
	ErrCodeJobFinished         = "JOB_FINISHED"
	ErrCodeUpstream            = "UPSTREAM_ERROR"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewErrorResponse собирает тело ошибки.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
