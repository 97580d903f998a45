package taskmanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func waitStatus(t *testing.T, tm *TaskManager, id string, want TaskStatus) Task {
	t.Helper()
	var task Task
	require.Eventually(t, func() bool {
		var err error
		task, err = tm.GetTask(id)
		return err == nil && task.Status == want
	}, time.Second, 5*time.Millisecond)
	return task
}

func TestTaskManager_CompletesAndFails(t *testing.T) {
	defer goleak.VerifyNone(t)
	tm := New(Config{MaxTasks: 2}, zaptest.NewLogger(t))

	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "ok", "user-1", func(ctx context.Context) (interface{}, error) {
		return "story", nil
	}))
	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "bad", "user-1", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	}))

	done := waitStatus(t, tm, "ok", TaskStatusCompleted)
	assert.Equal(t, "story", done.Result)
	assert.Equal(t, "user-1", done.OwnerID)

	failed := waitStatus(t, tm, "bad", TaskStatusFailed)
	assert.Equal(t, "boom", failed.Message)

	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestTaskManager_RequestContextDoesNotCancelTask(t *testing.T) {
	defer goleak.VerifyNone(t)
	tm := New(Config{}, nil)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	release := make(chan struct{})
	require.NoError(t, tm.SubmitTaskWithOwner(reqCtx, "job", "u", func(ctx context.Context) (interface{}, error) {
		<-release
		return 1, ctx.Err()
	}))
	cancelReq()
	close(release)

	waitStatus(t, tm, "job", TaskStatusCompleted)
	require.NoError(t, tm.Shutdown(context.Background()))
}

func TestTaskManager_Cancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	tm := New(Config{}, zaptest.NewLogger(t))

	started := make(chan struct{})
	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "job", "u", func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		return "late", nil
	}))
	<-started

	require.NoError(t, tm.CancelTask("job"))
	assert.ErrorIs(t, tm.CancelTask("job"), ErrTaskFinished)
	assert.ErrorIs(t, tm.CancelTask("missing"), ErrTaskNotFound)

	require.NoError(t, tm.Shutdown(context.Background()))
	task, err := tm.GetTask("job")
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCancelled, task.Status)
	assert.Nil(t, task.Result)
}

func TestTaskManager_CancelCause(t *testing.T) {
	defer goleak.VerifyNone(t)
	tm := New(Config{}, nil)

	causes := make(chan error, 2)
	started := make(chan struct{}, 2)
	task := func(ctx context.Context) (interface{}, error) {
		started <- struct{}{}
		<-ctx.Done()
		causes <- context.Cause(ctx)
		return nil, ctx.Err()
	}
	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "user-cancel", "u", task))
	<-started
	require.NoError(t, tm.CancelTask("user-cancel"))
	assert.ErrorIs(t, <-causes, ErrTaskCancelled)

	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "shutdown", "u", task))
	<-started
	require.NoError(t, tm.Shutdown(context.Background()))
	assert.ErrorIs(t, <-causes, ErrClosed)
}

func TestTaskManager_LimitsAndDuplicates(t *testing.T) {
	defer goleak.VerifyNone(t)
	tm := New(Config{MaxTasks: 1}, nil)

	block := func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "a", "u", block))
	assert.ErrorIs(t, tm.SubmitTaskWithOwner(context.Background(), "a", "u", block), ErrDuplicateTask)
	assert.ErrorIs(t, tm.SubmitTaskWithOwner(context.Background(), "b", "u", block), ErrTooManyTasks)

	require.NoError(t, tm.Shutdown(context.Background()))
	assert.ErrorIs(t, tm.SubmitTaskWithOwner(context.Background(), "c", "u", block), ErrClosed)
}

func TestTaskManager_CleanupTasks(t *testing.T) {
	defer goleak.VerifyNone(t)
	tm := New(Config{}, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return now }

	require.NoError(t, tm.SubmitTaskWithOwner(context.Background(), "old", "u", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}))
	waitStatus(t, tm, "old", TaskStatusCompleted)

	assert.Equal(t, 0, tm.CleanupTasks(time.Hour))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, tm.CleanupTasks(time.Hour))
	_, err := tm.GetTask("old")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	require.NoError(t, tm.Shutdown(context.Background()))
}
