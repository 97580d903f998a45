package mocks

import (
	"context"

	"cuentee/internal/generation"
	"cuentee/internal/models"
	"cuentee/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var (
	_ service.StoryService      = (*StoryService)(nil)
	_ service.ProfileService    = (*ProfileService)(nil)
	_ service.CreditService     = (*CreditService)(nil)
	_ service.GenerationService = (*GenerationService)(nil)
)

// StoryService - мок service.StoryService.
type StoryService struct {
	mock.Mock
}

func (m *StoryService) SaveStory(ctx context.Context, userID uuid.UUID, title string, content any, prompt *string) (*models.Story, error) {
	args := m.Called(ctx, userID, title, content, prompt)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *StoryService) ListUserStories(ctx context.Context, userID uuid.UUID, page, limit int) (*models.StoryPage[models.Story], error) {
	args := m.Called(ctx, userID, page, limit)
	p, _ := args.Get(0).(*models.StoryPage[models.Story])
	return p, args.Error(1)
}

func (m *StoryService) ListPublicStories(ctx context.Context, page, limit int) (*models.StoryPage[models.PublicStory], error) {
	args := m.Called(ctx, page, limit)
	p, _ := args.Get(0).(*models.StoryPage[models.PublicStory])
	return p, args.Error(1)
}

func (m *StoryService) GetStory(ctx context.Context, id, viewer uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id, viewer)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *StoryService) UpdateVisibility(ctx context.Context, id, owner uuid.UUID, visibility models.Visibility) (*models.Story, error) {
	args := m.Called(ctx, id, owner, visibility)
	s, _ := args.Get(0).(*models.Story)
	return s, args.Error(1)
}

func (m *StoryService) DeleteStory(ctx context.Context, id, owner uuid.UUID) error {
	args := m.Called(ctx, id, owner)
	return args.Error(0)
}

// ProfileService - мок service.ProfileService.
type ProfileService struct {
	mock.Mock
}

func (m *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileService) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *ProfileService) UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (*models.Profile, error) {
	args := m.Called(ctx, userID, username)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileService) UpdatePlan(ctx context.Context, userID uuid.UUID, plan models.Plan) (*models.Profile, error) {
	args := m.Called(ctx, userID, plan)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileService) InitializeProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *ProfileService) WaitForProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

// CreditService - мок service.CreditService.
type CreditService struct {
	mock.Mock
}

func (m *CreditService) CheckCredits(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

func (m *CreditService) UpdateCredits(ctx context.Context, userID uuid.UUID, credits int) (*models.Profile, error) {
	args := m.Called(ctx, userID, credits)
	p, _ := args.Get(0).(*models.Profile)
	return p, args.Error(1)
}

// GenerationService - мок service.GenerationService.
type GenerationService struct {
	mock.Mock
}

func (m *GenerationService) StartGeneration(ctx context.Context, userID uuid.UUID, token string, req generation.Request) (*models.GenerationJob, error) {
	args := m.Called(ctx, userID, token, req)
	j, _ := args.Get(0).(*models.GenerationJob)
	return j, args.Error(1)
}

func (m *GenerationService) GetJob(ctx context.Context, jobID string, userID uuid.UUID) (*models.GenerationJob, error) {
	args := m.Called(ctx, jobID, userID)
	j, _ := args.Get(0).(*models.GenerationJob)
	return j, args.Error(1)
}

func (m *GenerationService) CancelJob(ctx context.Context, jobID string, userID uuid.UUID) (*models.GenerationJob, error) {
	args := m.Called(ctx, jobID, userID)
	j, _ := args.Get(0).(*models.GenerationJob)
	return j, args.Error(1)
}
