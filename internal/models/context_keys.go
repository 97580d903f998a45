package models

// Ключи, под которыми middleware кладёт данные в gin.Context.
const (
	// UserContextKey - uuid.UUID аутентифицированного пользователя.
	UserContextKey = "userID"
	// AccessTokenContextKey - исходный bearer токен (нужен для вызовов внешнего API от имени пользователя).
	AccessTokenContextKey = "accessToken"
	// RequestIDContextKey - идентификатор запроса из X-Request-ID.
	RequestIDContextKey = "requestID"
	// SourceServiceContextKey - имя сервиса, вызвавшего внутренний эндпоинт.
	SourceServiceContextKey = "sourceService"
)
