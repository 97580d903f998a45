package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Статусы задач удалённой очереди.
const (
	TaskStatusPending = "PENDING"
	TaskStatusStarted = "STARTED"
	TaskStatusSuccess = "SUCCESS"
	TaskStatusFailure = "FAILURE"
)

// TaskStatus - ответ GET /tasks/{task_id}.
type TaskStatus struct {
	TaskID string          `json:"task_id,omitempty"`
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// TaskAPI - операции удалённой очереди, которые использует Session.
type TaskAPI interface {
	Submit(ctx context.Context, endpoint string, body any, token string) (string, error)
	GetTaskStatus(ctx context.Context, taskID, token string) (*TaskStatus, error)
}

// Client - HTTP клиент API генерации рассказов.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ TaskAPI = (*Client)(nil)

// NewClient создает клиент для API генерации.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for story generation API: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("GenerationClient"),
	}, nil
}

// Submit отправляет задачу генерации и возвращает её task_id.
func (c *Client) Submit(ctx context.Context, endpoint string, body any, token string) (string, error) {
	submitURL := c.baseURL + endpoint
	log := c.logger.With(zap.String("url", submitURL))

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to marshal submit request body", zap.Error(err))
		return "", fmt.Errorf("internal error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(bodyBytes))
	if err != nil {
		log.Error("Failed to create submit HTTP request", zap.Error(err))
		return "", fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	log.Debug("Sending generation request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Error("HTTP request for submit failed", zap.Error(err))
		return "", fmt.Errorf("failed to communicate with story generation API: %w", err)
	}
	defer resp.Body.Close()

	log.Debug("Submit response received", zap.Int("status", resp.StatusCode))
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", ErrAuthenticationRequired
	case resp.StatusCode == http.StatusPaymentRequired:
		return "", ErrInsufficientCredits
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Warn("API error on generation request",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return "", &APIError{Op: OpSubmit, StatusCode: resp.StatusCode, Status: statusText(resp), Body: string(respBody)}
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Warn("Failed to decode submit response", zap.Error(err))
		return "", fmt.Errorf("%w: decode submit response: %v", ErrProtocol, err)
	}
	if out.TaskID == "" {
		return "", ErrMissingTaskID
	}
	log.Info("Task ID received", zap.String("taskID", out.TaskID))
	return out.TaskID, nil
}

// GetTaskStatus запрашивает текущее состояние задачи.
func (c *Client) GetTaskStatus(ctx context.Context, taskID, token string) (*TaskStatus, error) {
	statusURL := fmt.Sprintf("%s/tasks/%s", c.baseURL, url.PathEscape(taskID))
	log := c.logger.With(zap.String("taskID", taskID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("HTTP request for task status failed", zap.Error(err))
		return nil, fmt.Errorf("failed to communicate with story generation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("Received non-OK status for task status", zap.Int("status", resp.StatusCode))
		return nil, &APIError{Op: OpStatus, StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	var status TaskStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Warn("Failed to decode task status", zap.Error(err))
		return nil, fmt.Errorf("%w: decode task status: %v", ErrProtocol, err)
	}
	log.Debug("Task status", zap.String("status", status.Status))
	return &status, nil
}

// statusText отрезает код от resp.Status ("402 Payment Required" -> "Payment Required").
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
