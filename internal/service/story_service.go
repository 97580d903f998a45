package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"
	"cuentee/internal/storycontent"
	"cuentee/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultTitleLayout - формат даты в названии рассказа без заголовка.
const defaultTitleLayout = "1/2/2006"

// StoryService определяет интерфейс для работы с сохранёнными рассказами.
type StoryService interface {
	SaveStory(ctx context.Context, userID uuid.UUID, title string, content any, prompt *string) (*models.Story, error)
	ListUserStories(ctx context.Context, userID uuid.UUID, page, limit int) (*models.StoryPage[models.Story], error)
	ListPublicStories(ctx context.Context, page, limit int) (*models.StoryPage[models.PublicStory], error)
	// GetStory возвращает рассказ, если viewer - владелец или рассказ публичный.
	// viewer может быть uuid.Nil для анонимного запроса.
	GetStory(ctx context.Context, id, viewer uuid.UUID) (*models.Story, error)
	UpdateVisibility(ctx context.Context, id, owner uuid.UUID, visibility models.Visibility) (*models.Story, error)
	DeleteStory(ctx context.Context, id, owner uuid.UUID) error
}

type storyServiceImpl struct {
	repo    interfaces.StoryRepository
	storage interfaces.ObjectStorage
	bucket  string
	now     func() time.Time
	logger  *zap.Logger
}

// NewStoryService создаёт сервис рассказов. storage может быть nil:
// тогда изображения при удалении не чистятся.
func NewStoryService(repo interfaces.StoryRepository, storage interfaces.ObjectStorage, bucket string, logger *zap.Logger) StoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storyServiceImpl{
		repo:    repo,
		storage: storage,
		bucket:  bucket,
		now:     time.Now,
		logger:  logger.Named("StoryService"),
	}
}

func (s *storyServiceImpl) SaveStory(ctx context.Context, userID uuid.UUID, title string, content any, prompt *string) (*models.Story, error) {
	encoded, err := storycontent.Encode(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	if strings.TrimSpace(encoded) == "" {
		return nil, fmt.Errorf("%w: story content is empty", models.ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Story from " + s.now().Format(defaultTitleLayout)
	}

	story := &models.Story{
		UserID:     userID,
		Title:      title,
		Content:    encoded,
		Prompt:     prompt,
		Visibility: models.VisibilityPrivate,
	}
	if err := s.repo.Create(ctx, story); err != nil {
		s.logger.Error("Failed to save story", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to save story: %w", err)
	}
	s.logger.Info("Story saved", zap.String("storyID", story.ID.String()), zap.String("userID", userID.String()))
	return story, nil
}

func (s *storyServiceImpl) ListUserStories(ctx context.Context, userID uuid.UUID, page, limit int) (*models.StoryPage[models.Story], error) {
	page, limit = utils.NormalizePage(page, limit)

	var (
		stories []models.Story
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stories, err = s.repo.ListByUser(gctx, userID, limit, utils.PageOffset(page, limit))
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountByUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to list user stories", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return newPage(stories, total, page, limit), nil
}

func (s *storyServiceImpl) ListPublicStories(ctx context.Context, page, limit int) (*models.StoryPage[models.PublicStory], error) {
	page, limit = utils.NormalizePage(page, limit)

	var (
		stories []models.PublicStory
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stories, err = s.repo.ListPublic(gctx, limit, utils.PageOffset(page, limit))
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.CountPublic(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("Failed to list public stories", zap.Error(err))
		return nil, fmt.Errorf("failed to list public stories: %w", err)
	}
	for i := range stories {
		if stories[i].Username == "" {
			stories[i].Username = models.AnonymousAuthor
		}
	}
	return newPage(stories, total, page, limit), nil
}

func newPage[T any](stories []T, total, page, limit int) *models.StoryPage[T] {
	if stories == nil {
		stories = []T{}
	}
	totalPages := utils.TotalPages(total, limit)
	return &models.StoryPage[T]{
		Stories:     stories,
		TotalCount:  total,
		TotalPages:  totalPages,
		CurrentPage: page,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

func (s *storyServiceImpl) GetStory(ctx context.Context, id, viewer uuid.UUID) (*models.Story, error) {
	story, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	if story.Visibility != models.VisibilityPublic && story.UserID != viewer {
		// чужие приватные рассказы неотличимы от несуществующих
		return nil, models.ErrStoryNotFound
	}
	return story, nil
}

func (s *storyServiceImpl) UpdateVisibility(ctx context.Context, id, owner uuid.UUID, visibility models.Visibility) (*models.Story, error) {
	if !visibility.Valid() {
		return nil, fmt.Errorf("%w: unknown visibility %q", models.ErrInvalidInput, visibility)
	}
	story, err := s.repo.UpdateVisibility(ctx, id, owner, visibility)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to update visibility: %w", err)
	}
	s.logger.Info("Story visibility updated",
		zap.String("storyID", id.String()),
		zap.String("visibility", string(visibility)),
	)
	return story, nil
}

func (s *storyServiceImpl) DeleteStory(ctx context.Context, id, owner uuid.UUID) error {
	log := s.logger.With(zap.String("storyID", id.String()), zap.String("userID", owner.String()))

	story, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrStoryNotFound
		}
		return fmt.Errorf("failed to get story: %w", err)
	}
	if story.UserID != owner {
		return models.ErrStoryNotFound
	}

	s.removeImages(ctx, story, log)

	if err := s.repo.Delete(ctx, id, owner); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrStoryNotFound
		}
		log.Error("Failed to delete story", zap.Error(err))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	log.Info("Story deleted")
	return nil
}

// removeImages удаляет картинки рассказа из хранилища. Ошибки только логируются.
func (s *storyServiceImpl) removeImages(ctx context.Context, story *models.Story, log *zap.Logger) {
	if s.storage == nil {
		return
	}
	paths := storycontent.StoragePaths(storycontent.Parse(story.Content).ImageURLs(), s.bucket)
	if len(paths) == 0 {
		return
	}
	if err := s.storage.Remove(ctx, s.bucket, paths); err != nil {
		log.Warn("Failed to remove story images, continuing with deletion", zap.Int("count", len(paths)), zap.Error(err))
		return
	}
	log.Debug("Story images removed", zap.Int("count", len(paths)))
}
