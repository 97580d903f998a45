// Package taskmanager запускает фоновые задачи в горутинах процесса
// и позволяет узнавать их статус и отменять их.
package taskmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTaskNotFound - задачи с таким ID нет (или она уже вычищена).
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskFinished - задача уже завершена и не может быть отменена.
	ErrTaskFinished = errors.New("task already finished")
	// ErrTooManyTasks - достигнут лимит активных задач.
	ErrTooManyTasks = errors.New("too many active tasks")
	// ErrDuplicateTask - задача с таким ID уже зарегистрирована.
	ErrDuplicateTask = errors.New("task already exists")
	// ErrClosed - менеджер остановлен.
	ErrClosed = errors.New("task manager is closed")
	// ErrTaskCancelled - причина отмены контекста задачи через CancelTask.
	ErrTaskCancelled = errors.New("task cancelled")
)

// ITaskManager определяет интерфейс для управления задачами
type ITaskManager interface {
	SubmitTaskWithOwner(ctx context.Context, taskID, ownerID string, taskFunc TaskFunc) error
	GetTask(taskID string) (Task, error)
	CancelTask(taskID string) error
	CleanupTasks(age time.Duration) int
	Shutdown(ctx context.Context) error
}

// TaskStatus представляет статус задачи
type TaskStatus string

// Возможные статусы задач
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) active() bool {
	return s == TaskStatusPending || s == TaskStatusRunning
}

// Task - снимок задачи. GetTask возвращает копию.
type Task struct {
	ID        string
	OwnerID   string
	Status    TaskStatus
	Message   string
	Result    interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TaskFunc представляет функцию, выполняемую в задаче.
// Контекст отменяется через CancelTask (context.Cause = ErrTaskCancelled)
// или при остановке менеджера (context.Cause = ErrClosed).
type TaskFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	task   Task
	cancel context.CancelCauseFunc
}

// Config содержит конфигурацию для TaskManager
type Config struct {
	MaxTasks int
}

// TaskManager управляет асинхронными задачами
type TaskManager struct {
	mu       sync.RWMutex
	tasks    map[string]*entry
	maxTasks int
	closed   bool
	wg       sync.WaitGroup
	logger   *zap.Logger
	now      func() time.Time
}

var _ ITaskManager = (*TaskManager)(nil)

// New создает новый экземпляр TaskManager
func New(cfg Config, logger *zap.Logger) *TaskManager {
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskManager{
		tasks:    make(map[string]*entry),
		maxTasks: cfg.MaxTasks,
		logger:   logger.Named("TaskManager"),
		now:      time.Now,
	}
}

// SubmitTaskWithOwner регистрирует задачу под заданным ID и запускает её.
// Контекст задачи не наследует отмену ctx: задача переживает HTTP запрос.
func (tm *TaskManager) SubmitTaskWithOwner(ctx context.Context, taskID, ownerID string, taskFunc TaskFunc) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.closed {
		return ErrClosed
	}
	if _, ok := tm.tasks[taskID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, taskID)
	}
	active := 0
	for _, e := range tm.tasks {
		if e.task.Status.active() {
			active++
		}
	}
	if active >= tm.maxTasks {
		return ErrTooManyTasks
	}

	taskCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	now := tm.now()
	e := &entry{
		task: Task{
			ID:        taskID,
			OwnerID:   ownerID,
			Status:    TaskStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}
	tm.tasks[taskID] = e

	tm.wg.Add(1)
	go func() {
		defer tm.wg.Done()
		defer cancel(nil)
		tm.runTask(taskCtx, e, taskFunc)
	}()
	return nil
}

// runTask выполняет задачу и обновляет ее статус
func (tm *TaskManager) runTask(ctx context.Context, e *entry, taskFunc TaskFunc) {
	log := tm.logger.With(zap.String("taskID", e.task.ID), zap.String("ownerID", e.task.OwnerID))
	if !tm.setStatus(e, TaskStatusRunning, "running", nil) {
		return
	}

	result, err := taskFunc(ctx)

	switch {
	case ctx.Err() != nil:
		log.Info("Task context canceled")
		tm.setStatus(e, TaskStatusCancelled, "cancelled", nil)
	case err != nil:
		log.Error("Task failed", zap.Error(err))
		tm.setStatus(e, TaskStatusFailed, err.Error(), nil)
	default:
		log.Info("Task completed")
		tm.setStatus(e, TaskStatusCompleted, "completed", result)
	}
}

// setStatus меняет статус, если задача ещё активна. Отменённая задача не
// перезаписывается поздним результатом.
func (tm *TaskManager) setStatus(e *entry, status TaskStatus, message string, result interface{}) bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if !e.task.Status.active() {
		return false
	}
	e.task.Status = status
	e.task.Message = message
	e.task.Result = result
	e.task.UpdatedAt = tm.now()
	tm.logger.Debug("Task status updated",
		zap.String("taskID", e.task.ID),
		zap.String("newStatus", string(status)),
	)
	return true
}

// GetTask возвращает информацию о задаче по ID
func (tm *TaskManager) GetTask(taskID string) (Task, error) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	e, ok := tm.tasks[taskID]
	if !ok {
		return Task{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return e.task, nil
}

// CancelTask отменяет выполнение задачи
func (tm *TaskManager) CancelTask(taskID string) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	e, ok := tm.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if !e.task.Status.active() {
		return fmt.Errorf("%w: status %s", ErrTaskFinished, e.task.Status)
	}

	e.cancel(ErrTaskCancelled)
	e.task.Status = TaskStatusCancelled
	e.task.Message = "cancelled by user"
	e.task.UpdatedAt = tm.now()
	tm.logger.Info("Task cancelled", zap.String("taskID", taskID))
	return nil
}

// CleanupTasks удаляет завершенные задачи, которые старше указанного времени.
// Возвращает число удалённых задач.
func (tm *TaskManager) CleanupTasks(age time.Duration) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	now := tm.now()
	removed := 0
	for id, e := range tm.tasks {
		if !e.task.Status.active() && now.Sub(e.task.UpdatedAt) > age {
			delete(tm.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		tm.logger.Debug("Finished tasks cleaned up", zap.Int("removed", removed))
	}
	return removed
}

// RunCleanup периодически вызывает CleanupTasks, пока ctx не отменён.
func (tm *TaskManager) RunCleanup(ctx context.Context, period, age time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tm.CleanupTasks(age)
		}
	}
}

// Shutdown запрещает новые задачи, отменяет активные и ждёт их завершения
// не дольше, чем позволяет ctx.
func (tm *TaskManager) Shutdown(ctx context.Context) error {
	tm.mu.Lock()
	tm.closed = true
	for _, e := range tm.tasks {
		if e.task.Status.active() {
			e.cancel(ErrClosed)
		}
	}
	tm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		tm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		tm.logger.Info("All tasks stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks: %w", ctx.Err())
	}
}
