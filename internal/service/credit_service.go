package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreditService проверяет и меняет баланс кредитов.
// Списание кредита за генерацию выполняет сервис генерации историй.
type CreditService interface {
	// CheckCredits возвращает models.ErrInsufficientCredits, если кредитов нет.
	CheckCredits(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	// UpdateCredits устанавливает баланс (внутренний вызов от биллинга).
	UpdateCredits(ctx context.Context, userID uuid.UUID, credits int) (*models.Profile, error)
}

type creditServiceImpl struct {
	repo   interfaces.ProfileRepository
	now    func() time.Time
	logger *zap.Logger
}

// NewCreditService создаёт сервис кредитов.
func NewCreditService(repo interfaces.ProfileRepository, logger *zap.Logger) CreditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &creditServiceImpl{repo: repo, now: time.Now, logger: logger.Named("CreditService")}
}

func (s *creditServiceImpl) CheckCredits(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to check credits: %w", err)
	}
	if profile.Credits <= 0 {
		s.logger.Info("User has no credits", zap.String("userID", userID.String()))
		return profile, models.ErrInsufficientCredits
	}
	return profile, nil
}

func (s *creditServiceImpl) UpdateCredits(ctx context.Context, userID uuid.UUID, credits int) (*models.Profile, error) {
	if credits < 0 {
		return nil, fmt.Errorf("%w: credits must not be negative", models.ErrInvalidInput)
	}
	profile, err := s.repo.UpdateCredits(ctx, userID, credits, s.now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update credits: %w", err)
	}
	s.logger.Info("Credits updated", zap.String("userID", userID.String()), zap.Int("credits", credits))
	return profile, nil
}
