package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired - API ответил 401, нужно заново войти.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrInsufficientCredits - API ответил 402, у пользователя закончились кредиты.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrProtocol - ответ API не соответствует ожидаемому формату.
	ErrProtocol = errors.New("protocol error")
	// ErrMissingTaskID - успешный ответ на отправку без task_id.
	ErrMissingTaskID = fmt.Errorf("%w: no task_id received from API", ErrProtocol)
	// ErrTimeout - задача не завершилась за отведённое число опросов.
	ErrTimeout = errors.New("task took too long to complete")
	// ErrGenerationInProgress - сессия уже ведёт задачу.
	ErrGenerationInProgress = errors.New("generation already in progress")
	// ErrEmptyTopic - тема пустая после обрезки пробелов.
	ErrEmptyTopic = errors.New("topic cannot be empty")
)

// Operation, на которой API вернул ошибочный статус.
const (
	OpSubmit = "submit"
	OpStatus = "status"
)

// APIError - неуспешный HTTP статус от API генерации.
type APIError struct {
	Op         string
	StatusCode int
	Status     string // текст статуса без кода, например "Bad Gateway"
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("generation api %s: %d %s", e.Op, e.StatusCode, e.Status)
}

// TaskFailedError - задача завершилась со статусом FAILURE.
type TaskFailedError struct {
	Message string
}

func (e *TaskFailedError) Error() string {
	return "task failed: " + e.Message
}

// DefaultTaskFailureMessage используется, когда FAILURE пришёл без текста ошибки.
const DefaultTaskFailureMessage = "Task failed without error message"

// UserMessage переводит ошибку генерации в текст для пользователя.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	var failed *TaskFailedError
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return "Authentication failed. Please log in again."
	case errors.Is(err, ErrInsufficientCredits):
		return "No credits available. Please subscribe to continue generating stories."
	case errors.Is(err, ErrMissingTaskID):
		return "No task_id received from API"
	case errors.Is(err, ErrProtocol):
		return "Unexpected response from story generation API"
	case errors.Is(err, ErrTimeout):
		return "Task took too long to complete"
	case errors.Is(err, ErrEmptyTopic):
		return "Topic cannot be empty"
	case errors.Is(err, ErrGenerationInProgress):
		return "A story is already being generated"
	case errors.As(err, &failed):
		return failed.Message
	case errors.As(err, &apiErr):
		if apiErr.Op == OpStatus {
			return "Failed to fetch task status: " + apiErr.Status
		}
		return fmt.Sprintf("API Error: %d - %s", apiErr.StatusCode, apiErr.Status)
	default:
		return err.Error()
	}
}
