package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"cuentee/internal/models"

	"go.uber.org/zap"
)

const (
	// DefaultPollInterval - пауза между запросами статуса.
	DefaultPollInterval = 2 * time.Second
	// DefaultMaxPolls - потолок опросов (300 * 2s = 10 минут).
	DefaultMaxPolls = 300
)

// Update - изменение статуса задачи, которое сессия отдаёт вызывающему.
type Update struct {
	Status models.GenerationStatus
	TaskID string
	Result json.RawMessage
	Err    error
}

// Message возвращает текст ошибки для пользователя (пусто, если ошибки нет).
func (u Update) Message() string {
	return UserMessage(u.Err)
}

// State - снимок состояния сессии.
type State struct {
	Status models.GenerationStatus
	TaskID string
	Result json.RawMessage
	Err    error
}

// Option настраивает Session.
type Option func(*Session)

// WithPollInterval задаёт интервал опроса.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) { s.interval = d }
}

// WithMaxPolls задаёт максимальное число опросов.
func WithMaxPolls(n int) Option {
	return func(s *Session) { s.maxPolls = n }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics подключает метрики.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session ведёт одну задачу генерации: отправка, опрос, отмена.
// Одновременно активна не более одной задачи.
type Session struct {
	api      TaskAPI
	interval time.Duration
	maxPolls int
	logger   *zap.Logger
	metrics  *Metrics

	mu     sync.Mutex
	runID  uint64
	status models.GenerationStatus
	taskID string
	result json.RawMessage
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession создаёт сессию поверх api.
func NewSession(api TaskAPI, opts ...Option) *Session {
	s := &Session{
		api:      api,
		interval: DefaultPollInterval,
		maxPolls: DefaultMaxPolls,
		status:   models.GenerationStatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("GenerationSession")
	return s
}

// Generate отправляет задачу и запускает опрос в отдельной горутине.
// Канал получает не более одного обновления на статус и закрывается,
// когда задача завершена или отменена.
func (s *Session) Generate(ctx context.Context, req Request, token string) (<-chan Update, error) {
	body, err := req.Body()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, ErrGenerationInProgress
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runID++
	runID := s.runID
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.status = models.GenerationStatusQueued
	s.taskID = ""
	s.result = nil
	s.err = nil
	s.mu.Unlock()

	// queued + processing + терминальный статус, запись никогда не блокируется
	updates := make(chan Update, 3)
	updates <- Update{Status: models.GenerationStatusQueued}

	go func() {
		defer close(done)
		defer close(updates)
		defer cancel()
		s.run(runCtx, runID, req.ResolvedEndpoint(), body, token, updates)
	}()
	return updates, nil
}

// Run - блокирующий вариант Generate. onUpdate может быть nil.
// Возвращает результат задачи или ошибку, из-за которой она завершилась.
func (s *Session) Run(ctx context.Context, req Request, token string, onUpdate func(Update)) (json.RawMessage, error) {
	updates, err := s.Generate(ctx, req, token)
	if err != nil {
		return nil, err
	}
	var last Update
	for u := range updates {
		if onUpdate != nil {
			onUpdate(u)
		}
		last = u
	}
	switch last.Status {
	case models.GenerationStatusCompleted:
		return last.Result, nil
	case models.GenerationStatusFailed:
		return nil, last.Err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, context.Canceled
}

// Reset отменяет текущую задачу, дожидается остановки опроса
// и возвращает сессию в idle. Поздний результат не будет отдан.
func (s *Session) Reset() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.runID++
	s.cancel = nil
	s.done = nil
	s.status = models.GenerationStatusIdle
	s.taskID = ""
	s.result = nil
	s.err = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// State возвращает текущий снимок.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Status: s.status, TaskID: s.taskID, Result: s.result, Err: s.err}
}

// IsGenerating сообщает, ведёт ли сессия задачу.
func (s *Session) IsGenerating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Session) run(ctx context.Context, runID uint64, endpoint string, body any, token string, updates chan<- Update) {
	log := s.logger.With(zap.String("endpoint", endpoint))
	start := time.Now()

	taskID, err := s.api.Submit(ctx, endpoint, body, token)
	if err != nil {
		if ctx.Err() != nil {
			s.metrics.submitted("canceled")
			s.abort(runID)
			return
		}
		s.metrics.submitted(submitOutcome(err))
		log.Warn("Generation request failed", zap.Error(err))
		s.fail(runID, err, updates)
		return
	}
	s.metrics.submitted("accepted")

	s.mu.Lock()
	if s.runID == runID {
		s.taskID = taskID
	}
	s.mu.Unlock()

	log = log.With(zap.String("taskID", taskID))
	s.metrics.started()
	finalStatus := "canceled"
	defer func() { s.metrics.finished(finalStatus, start) }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	pollCount := 0
	for {
		select {
		case <-ctx.Done():
			log.Debug("Polling stopped by cancellation")
			s.abort(runID)
			return
		case <-ticker.C:
		}

		pollCount++
		if pollCount > s.maxPolls {
			log.Warn("Task exceeded poll ceiling", zap.Int("maxPolls", s.maxPolls))
			finalStatus = "timeout"
			s.fail(runID, ErrTimeout, updates)
			return
		}

		s.metrics.polled()
		status, err := s.api.GetTaskStatus(ctx, taskID, token)
		if err != nil {
			if ctx.Err() != nil {
				s.abort(runID)
				return
			}
			log.Error("Polling error", zap.Error(err))
			finalStatus = string(models.GenerationStatusFailed)
			s.fail(runID, err, updates)
			return
		}

		switch status.Status {
		case TaskStatusPending, TaskStatusStarted:
			s.markProcessing(runID, updates)
		case TaskStatusSuccess:
			finalStatus = string(models.GenerationStatusCompleted)
			s.complete(runID, normalizeResult(status.Result), updates)
			return
		case TaskStatusFailure:
			msg := DefaultTaskFailureMessage
			if status.Error != nil && *status.Error != "" {
				msg = *status.Error
			}
			finalStatus = string(models.GenerationStatusFailed)
			s.fail(runID, &TaskFailedError{Message: msg}, updates)
			return
		default:
			log.Warn("Unknown task status", zap.String("status", status.Status))
		}
	}
}

func (s *Session) markProcessing(runID uint64, updates chan<- Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID || s.status != models.GenerationStatusQueued {
		return
	}
	s.status = models.GenerationStatusProcessing
	updates <- Update{Status: s.status, TaskID: s.taskID}
}

func (s *Session) complete(runID uint64, result json.RawMessage, updates chan<- Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	s.status = models.GenerationStatusCompleted
	s.result = result
	s.cancel = nil
	updates <- Update{Status: s.status, TaskID: s.taskID, Result: result}
}

func (s *Session) fail(runID uint64, err error, updates chan<- Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	s.status = models.GenerationStatusFailed
	s.err = err
	s.cancel = nil
	updates <- Update{Status: s.status, TaskID: s.taskID, Err: err}
}

// abort освобождает сессию после отмены внешнего контекста.
func (s *Session) abort(runID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID != runID {
		return
	}
	s.status = models.GenerationStatusIdle
	s.taskID = ""
	s.result = nil
	s.err = nil
	s.cancel = nil
}

func normalizeResult(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage(`{}`)
	}
	return raw
}

func submitOutcome(err error) string {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return "unauthorized"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrProtocol):
		return "protocol_error"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "network_error"
	}
}
