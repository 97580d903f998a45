package interfaces

import (
	"context"
	"time"

	"cuentee/internal/models"

	"github.com/google/uuid"
)

// ProfileRepository - хранилище профилей и кредитов.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	// Create создаёт профиль с начальными кредитами; существующий профиль не меняется.
	// Второе значение - true, если профиль был создан этим вызовом.
	Create(ctx context.Context, id uuid.UUID, credits int) (*models.Profile, bool, error)
	// UsernameExists сравнивает без учёта регистра.
	UsernameExists(ctx context.Context, username string) (bool, error)
	// UpdateUsername возвращает models.ErrUsernameTaken при конфликте.
	UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*models.Profile, error)
	UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, plusSince *time.Time) (*models.Profile, error)
	UpdateCredits(ctx context.Context, id uuid.UUID, credits int, creditedAt time.Time) (*models.Profile, error)
}
