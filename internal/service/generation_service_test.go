package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"cuentee/internal/generation"
	"cuentee/internal/mocks"
	"cuentee/internal/models"
	"cuentee/internal/service"
	"cuentee/pkg/taskmanager"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memJobStore - потокобезопасное хранилище снимков в памяти.
type memJobStore struct {
	mu      sync.Mutex
	jobs    map[string]models.GenerationJob
	history []models.GenerationStatus
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[string]models.GenerationJob)}
}

func (s *memJobStore) Save(_ context.Context, job *models.GenerationJob, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	s.history = append(s.history, job.Status)
	return nil
}

func (s *memJobStore) Get(_ context.Context, jobID string) (*models.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return &job, nil
}

func (s *memJobStore) statuses() []models.GenerationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GenerationStatus(nil), s.history...)
}

type generationFixture struct {
	svc       service.GenerationService
	api       *mocks.TaskAPI
	lock      *mocks.GenerationLock
	jobs      *memJobStore
	credits   *mocks.CreditService
	stories   *mocks.StoryService
	publisher *mocks.StoryEventPublisher
	notifier  *mocks.ClientNotifier
	tasks     *taskmanager.TaskManager
}

func newGenerationFixture(t *testing.T, maxPolls int) *generationFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &generationFixture{
		api:       new(mocks.TaskAPI),
		lock:      new(mocks.GenerationLock),
		jobs:      newMemJobStore(),
		credits:   new(mocks.CreditService),
		stories:   new(mocks.StoryService),
		publisher: new(mocks.StoryEventPublisher),
		notifier:  new(mocks.ClientNotifier),
		tasks:     taskmanager.New(taskmanager.Config{MaxTasks: 4}, logger),
	}
	f.svc = service.NewGenerationService(service.GenerationDeps{
		API:       f.api,
		Tasks:     f.tasks,
		Lock:      f.lock,
		Jobs:      f.jobs,
		Credits:   f.credits,
		Stories:   f.stories,
		Publisher: f.publisher,
		Notifier:  f.notifier,
	}, service.GenerationSettings{
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	}, logger)

	f.notifier.On("SendToUser", mock.Anything, service.MessageTypeGenerationUpdate, mock.Anything).Return()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, f.tasks.Shutdown(ctx))
	})
	return f
}

func (f *generationFixture) waitTask(t *testing.T, jobID string, want taskmanager.TaskStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		task, err := f.tasks.GetTask(jobID)
		return err == nil && task.Status == want
	}, 2*time.Second, 5*time.Millisecond)
}

func strPtr(s string) *string { return &s }

func TestStartGeneration_CompletesAndAutoSaves(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newGenerationFixture(t, 100)

	result := json.RawMessage(`{"title":"The Brave Fox","chapters":[{"title":"One","content":"Hi"},{"title":"Two","content":"Bye"}]}`)
	storyID := uuid.New()

	f.credits.On("CheckCredits", ctx, userID).Return(&models.Profile{Credits: 3}, nil).Once()
	f.lock.On("Acquire", ctx, userID, mock.AnythingOfType("string"), mock.AnythingOfType("time.Duration")).Return(nil).Once()
	f.lock.On("Release", mock.Anything, userID, mock.AnythingOfType("string")).Return(nil)
	f.api.On("Submit", mock.Anything, generation.DefaultEndpoint, map[string]string{"topic": "dragons"}, "user-token").Return("task-1", nil).Once()
	f.api.On("GetTaskStatus", mock.Anything, "task-1", "user-token").Return(&generation.TaskStatus{TaskID: "task-1", Status: generation.TaskStatusStarted}, nil).Once()
	f.api.On("GetTaskStatus", mock.Anything, "task-1", "user-token").Return(&generation.TaskStatus{TaskID: "task-1", Status: generation.TaskStatusSuccess, Result: result}, nil).Once()
	f.stories.On("SaveStory", mock.Anything, userID, "The Brave Fox", result, strPtr("dragons")).
		Return(&models.Story{ID: storyID, Title: "The Brave Fox"}, nil).Once()
	f.publisher.On("PublishStoryGenerated", mock.Anything, mock.MatchedBy(func(e models.StoryGeneratedEvent) bool {
		return e.StoryID == storyID && e.UserID == userID && e.ChapterCount == 2 && e.Title == "The Brave Fox"
	})).Return(nil).Once()

	job, err := f.svc.StartGeneration(ctx, userID, "user-token", generation.TopicRequest(" dragons "))
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusQueued, job.Status)

	f.waitTask(t, job.ID, taskmanager.TaskStatusCompleted)

	saved, err := f.svc.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusCompleted, saved.Status)
	assert.Equal(t, "task-1", saved.TaskID)
	require.NotNil(t, saved.StoryID)
	assert.Equal(t, storyID, *saved.StoryID)
	assert.JSONEq(t, string(result), string(saved.Result))

	assert.Equal(t, []models.GenerationStatus{
		models.GenerationStatusQueued,
		models.GenerationStatusProcessing,
		models.GenerationStatusCompleted,
	}, f.jobs.statuses())

	f.lock.AssertCalled(t, "Release", mock.Anything, userID, job.ID)
	f.stories.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.notifier.AssertCalled(t, "SendToUser", userID.String(), service.MessageTypeGenerationUpdate, mock.Anything)
}

func TestStartGeneration_TaskFailure(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newGenerationFixture(t, 100)

	f.credits.On("CheckCredits", ctx, userID).Return(&models.Profile{Credits: 1}, nil).Once()
	f.lock.On("Acquire", ctx, userID, mock.Anything, mock.Anything).Return(nil).Once()
	f.lock.On("Release", mock.Anything, userID, mock.Anything).Return(nil)
	f.api.On("Submit", mock.Anything, generation.GuidedEndpoint, mock.Anything, "tok").Return("task-9", nil).Once()
	f.api.On("GetTaskStatus", mock.Anything, "task-9", "tok").
		Return(&generation.TaskStatus{Status: generation.TaskStatusFailure, Error: strPtr("model overloaded")}, nil).Once()

	req := generation.GuidedRequest(generation.GuidedPayload{AgeGroup: "5-7", Protagonist: "Fox", ScientificTopic: "Stars", Mission: "Find home", VisualStyle: "watercolor"})
	job, err := f.svc.StartGeneration(ctx, userID, "tok", req)
	require.NoError(t, err)

	f.waitTask(t, job.ID, taskmanager.TaskStatusFailed)

	saved, err := f.svc.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusFailed, saved.Status)
	assert.Equal(t, "model overloaded", saved.Error)
	assert.Nil(t, saved.StoryID)
	f.stories.AssertNotCalled(t, "SaveStory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.lock.AssertCalled(t, "Release", mock.Anything, userID, job.ID)
}

func TestStartGeneration_Rejections(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("Empty topic", func(t *testing.T) {
		f := newGenerationFixture(t, 10)
		_, err := f.svc.StartGeneration(ctx, userID, "tok", generation.TopicRequest("  "))
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		assert.ErrorIs(t, err, generation.ErrEmptyTopic)
		f.credits.AssertNotCalled(t, "CheckCredits", mock.Anything, mock.Anything)
	})

	t.Run("No credits", func(t *testing.T) {
		f := newGenerationFixture(t, 10)
		f.credits.On("CheckCredits", ctx, userID).Return(&models.Profile{}, models.ErrInsufficientCredits).Once()

		_, err := f.svc.StartGeneration(ctx, userID, "tok", generation.TopicRequest("cats"))
		assert.ErrorIs(t, err, models.ErrInsufficientCredits)
		f.lock.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Active generation", func(t *testing.T) {
		f := newGenerationFixture(t, 10)
		f.credits.On("CheckCredits", ctx, userID).Return(&models.Profile{Credits: 5}, nil).Once()
		f.lock.On("Acquire", ctx, userID, mock.Anything, mock.Anything).Return(models.ErrUserHasActiveGeneration).Once()

		_, err := f.svc.StartGeneration(ctx, userID, "tok", generation.TopicRequest("cats"))
		assert.ErrorIs(t, err, models.ErrUserHasActiveGeneration)
		f.api.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCancelJob(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newGenerationFixture(t, 1_000_000)

	f.credits.On("CheckCredits", ctx, userID).Return(&models.Profile{Credits: 1}, nil).Once()
	f.lock.On("Acquire", ctx, userID, mock.Anything, mock.Anything).Return(nil).Once()
	f.lock.On("Release", mock.Anything, userID, mock.Anything).Return(nil)
	f.api.On("Submit", mock.Anything, mock.Anything, mock.Anything, "tok").Return("task-c", nil).Once()
	f.api.On("GetTaskStatus", mock.Anything, "task-c", "tok").Return(&generation.TaskStatus{Status: generation.TaskStatusPending}, nil)

	job, err := f.svc.StartGeneration(ctx, userID, "tok", generation.TopicRequest("owls"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := f.svc.GetJob(ctx, job.ID, userID)
		return err == nil && j.Status == models.GenerationStatusProcessing
	}, 2*time.Second, 5*time.Millisecond)

	_, err = f.svc.CancelJob(ctx, job.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	cancelled, err := f.svc.CancelJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusIdle, cancelled.Status)
	assert.Empty(t, cancelled.TaskID)

	f.waitTask(t, job.ID, taskmanager.TaskStatusCancelled)

	// поздних обновлений нет
	time.Sleep(20 * time.Millisecond)
	saved, err := f.svc.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusIdle, saved.Status)

	_, err = f.svc.CancelJob(ctx, job.ID, userID)
	assert.ErrorIs(t, err, models.ErrJobAlreadyFinished)
	f.lock.AssertCalled(t, "Release", mock.Anything, userID, job.ID)
}

func TestShutdownMarksRunningJobFailed(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	f := newGenerationFixture(t, 1_000_000)

	f.credits.On("CheckCredits", ctx, userID).Return(&models.Profile{Credits: 1}, nil).Once()
	f.lock.On("Acquire", ctx, userID, mock.Anything, mock.Anything).Return(nil).Once()
	f.lock.On("Release", mock.Anything, userID, mock.Anything).Return(nil)
	f.api.On("Submit", mock.Anything, mock.Anything, mock.Anything, "tok").Return("task-s", nil).Once()
	f.api.On("GetTaskStatus", mock.Anything, "task-s", "tok").Return(&generation.TaskStatus{Status: generation.TaskStatusPending}, nil)

	job, err := f.svc.StartGeneration(ctx, userID, "tok", generation.TopicRequest("whales"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := f.svc.GetJob(ctx, job.ID, userID)
		return err == nil && j.Status == models.GenerationStatusProcessing
	}, 2*time.Second, 5*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.tasks.Shutdown(shutdownCtx))

	saved, err := f.svc.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationStatusFailed, saved.Status)
	assert.Equal(t, service.InterruptedJobMessage, saved.Error)
	assert.Equal(t, "task-s", saved.TaskID)
	assert.True(t, saved.Status.IsTerminal())
	f.lock.AssertCalled(t, "Release", mock.Anything, userID, job.ID)
	f.stories.AssertNotCalled(t, "SaveStory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetJob_NotFound(t *testing.T) {
	f := newGenerationFixture(t, 10)
	_, err := f.svc.GetJob(context.Background(), "nope", uuid.New())
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}
