package interfaces

import (
	"context"

	"cuentee/internal/models"

	"github.com/google/uuid"
)

// StoryRepository - хранилище рассказов.
type StoryRepository interface {
	// Create сохраняет рассказ и заполняет ID и временные метки.
	Create(ctx context.Context, story *models.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error)
	// ListByUser возвращает рассказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	// ListPublic возвращает публичные рассказы с именами авторов, новые первыми.
	ListPublic(ctx context.Context, limit, offset int) ([]models.PublicStory, error)
	CountPublic(ctx context.Context) (int, error)
	// UpdateVisibility меняет видимость рассказа владельца. models.ErrNotFound, если рассказа нет.
	UpdateVisibility(ctx context.Context, id, userID uuid.UUID, visibility models.Visibility) (*models.Story, error)
	// Delete удаляет рассказ владельца. models.ErrNotFound, если рассказа нет.
	Delete(ctx context.Context, id, userID uuid.UUID) error
}
