package interfaces

import (
	"context"
	"time"

	"cuentee/internal/models"

	"github.com/google/uuid"
)

// GenerationLock - блокировка "одна активная генерация на пользователя".
type GenerationLock interface {
	// Acquire возвращает models.ErrUserHasActiveGeneration, если блокировка занята.
	Acquire(ctx context.Context, userID uuid.UUID, jobID string, ttl time.Duration) error
	// Release снимает блокировку, только если она принадлежит jobID.
	Release(ctx context.Context, userID uuid.UUID, jobID string) error
}

// GenerationJobStore хранит снимки задач генерации.
type GenerationJobStore interface {
	Save(ctx context.Context, job *models.GenerationJob, ttl time.Duration) error
	// Get возвращает models.ErrJobNotFound, если снимка нет.
	Get(ctx context.Context, jobID string) (*models.GenerationJob, error)
}
