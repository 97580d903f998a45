package mocks

import (
	"context"
	"time"

	"cuentee/internal/generation"
	"cuentee/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// GenerationLock - мок interfaces.GenerationLock.
type GenerationLock struct {
	mock.Mock
}

func (m *GenerationLock) Acquire(ctx context.Context, userID uuid.UUID, jobID string, ttl time.Duration) error {
	args := m.Called(ctx, userID, jobID, ttl)
	return args.Error(0)
}

func (m *GenerationLock) Release(ctx context.Context, userID uuid.UUID, jobID string) error {
	args := m.Called(ctx, userID, jobID)
	return args.Error(0)
}

// GenerationJobStore - мок interfaces.GenerationJobStore.
type GenerationJobStore struct {
	mock.Mock
}

func (m *GenerationJobStore) Save(ctx context.Context, job *models.GenerationJob, ttl time.Duration) error {
	args := m.Called(ctx, job, ttl)
	return args.Error(0)
}

func (m *GenerationJobStore) Get(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*models.GenerationJob)
	return job, args.Error(1)
}

// ObjectStorage - мок interfaces.ObjectStorage.
type ObjectStorage struct {
	mock.Mock
}

func (m *ObjectStorage) Remove(ctx context.Context, bucket string, paths []string) error {
	args := m.Called(ctx, bucket, paths)
	return args.Error(0)
}

// StoryEventPublisher - мок interfaces.StoryEventPublisher.
type StoryEventPublisher struct {
	mock.Mock
}

func (m *StoryEventPublisher) PublishStoryGenerated(ctx context.Context, event models.StoryGeneratedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// ClientNotifier - мок interfaces.ClientNotifier.
type ClientNotifier struct {
	mock.Mock
}

func (m *ClientNotifier) SendToUser(userID, messageType string, payload interface{}) {
	m.Called(userID, messageType, payload)
}

// TaskAPI - мок generation.TaskAPI.
type TaskAPI struct {
	mock.Mock
}

func (m *TaskAPI) Submit(ctx context.Context, endpoint string, body any, token string) (string, error) {
	args := m.Called(ctx, endpoint, body, token)
	return args.String(0), args.Error(1)
}

func (m *TaskAPI) GetTaskStatus(ctx context.Context, taskID, token string) (*generation.TaskStatus, error) {
	args := m.Called(ctx, taskID, token)
	status, _ := args.Get(0).(*generation.TaskStatus)
	return status, args.Error(1)
}
