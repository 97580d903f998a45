package mocks

import (
	"context"
	"time"

	"cuentee/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// StoryRepository - мок interfaces.StoryRepository.
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) Create(ctx context.Context, story *models.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *StoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

func (m *StoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error) {
	args := m.Called(ctx, userID, limit, offset)
	stories, _ := args.Get(0).([]models.Story)
	return stories, args.Error(1)
}

func (m *StoryRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *StoryRepository) ListPublic(ctx context.Context, limit, offset int) ([]models.PublicStory, error) {
	args := m.Called(ctx, limit, offset)
	stories, _ := args.Get(0).([]models.PublicStory)
	return stories, args.Error(1)
}

func (m *StoryRepository) CountPublic(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *StoryRepository) UpdateVisibility(ctx context.Context, id, userID uuid.UUID, visibility models.Visibility) (*models.Story, error) {
	args := m.Called(ctx, id, userID, visibility)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}

func (m *StoryRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// ProfileRepository - мок interfaces.ProfileRepository.
type ProfileRepository struct {
	mock.Mock
}

func (m *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileRepository) Create(ctx context.Context, id uuid.UUID, credits int) (*models.Profile, bool, error) {
	args := m.Called(ctx, id, credits)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Bool(1), args.Error(2)
}

func (m *ProfileRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *ProfileRepository) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*models.Profile, error) {
	args := m.Called(ctx, id, username)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileRepository) UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, plusSince *time.Time) (*models.Profile, error) {
	args := m.Called(ctx, id, plan, plusSince)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileRepository) UpdateCredits(ctx context.Context, id uuid.UUID, credits int, creditedAt time.Time) (*models.Profile, error) {
	args := m.Called(ctx, id, credits, creditedAt)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}
