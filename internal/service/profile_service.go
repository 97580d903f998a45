package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultWaitAttempts = 10
	defaultWaitDelay    = time.Second
)

// ProfileService определяет интерфейс для работы с профилями пользователей.
type ProfileService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	CheckUsernameAvailability(ctx context.Context, username string) (bool, error)
	UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (*models.Profile, error)
	UpdatePlan(ctx context.Context, userID uuid.UUID, plan models.Plan) (*models.Profile, error)
	// InitializeProfile создаёт профиль с начальными кредитами. Повторный вызов не меняет профиль.
	InitializeProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	// WaitForProfile ждёт, пока профиль появится (его создаёт хук регистрации).
	WaitForProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

type profileServiceImpl struct {
	repo         interfaces.ProfileRepository
	now          func() time.Time
	waitAttempts int
	waitDelay    time.Duration
	logger       *zap.Logger
}

// ProfileOption настраивает ProfileService.
type ProfileOption func(*profileServiceImpl)

// WithProfileWait задаёт число попыток и паузу WaitForProfile.
func WithProfileWait(attempts int, delay time.Duration) ProfileOption {
	return func(s *profileServiceImpl) {
		if attempts > 0 {
			s.waitAttempts = attempts
		}
		if delay >= 0 {
			s.waitDelay = delay
		}
	}
}

// NewProfileService создаёт сервис профилей.
func NewProfileService(repo interfaces.ProfileRepository, logger *zap.Logger, opts ...ProfileOption) ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &profileServiceImpl{
		repo:         repo,
		now:          time.Now,
		waitAttempts: defaultWaitAttempts,
		waitDelay:    defaultWaitDelay,
		logger:       logger.Named("ProfileService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// normalizeUsername приводит имя к нижнему регистру и проверяет длину.
func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if len([]rune(username)) < models.MinUsernameLength {
		return "", fmt.Errorf("%w: username must be at least %d characters", models.ErrInvalidInput, models.MinUsernameLength)
	}
	return username, nil
}

func (s *profileServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrProfileNotFound) {
			s.logger.Error("Failed to get profile", zap.String("userID", userID.String()), zap.Error(err))
		}
		return nil, err
	}
	return profile, nil
}

func (s *profileServiceImpl) CheckUsernameAvailability(ctx context.Context, username string) (bool, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return false, err
	}
	exists, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return !exists, nil
}

func (s *profileServiceImpl) UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (*models.Profile, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return nil, err
	}
	profile, err := s.repo.UpdateUsername(ctx, userID, username)
	if err != nil {
		if errors.Is(err, models.ErrUsernameTaken) || errors.Is(err, models.ErrProfileNotFound) {
			return nil, err
		}
		s.logger.Error("Failed to update username", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to update username: %w", err)
	}
	s.logger.Info("Username updated", zap.String("userID", userID.String()), zap.String("username", username))
	return profile, nil
}

func (s *profileServiceImpl) UpdatePlan(ctx context.Context, userID uuid.UUID, plan models.Plan) (*models.Profile, error) {
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: unknown plan %q", models.ErrInvalidInput, plan)
	}
	var plusSince *time.Time
	if plan == models.PlanPlus {
		now := s.now().UTC()
		plusSince = &now
	}
	profile, err := s.repo.UpdatePlan(ctx, userID, plan, plusSince)
	if err != nil {
		if errors.Is(err, models.ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	s.logger.Info("Plan updated", zap.String("userID", userID.String()), zap.String("plan", string(plan)))
	return profile, nil
}

func (s *profileServiceImpl) InitializeProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, created, err := s.repo.Create(ctx, userID, models.DefaultSignupCredits)
	if err != nil {
		s.logger.Error("Failed to initialize profile", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to initialize profile: %w", err)
	}
	if created {
		s.logger.Info("Profile initialized", zap.String("userID", userID.String()), zap.Int("credits", profile.Credits))
	} else {
		s.logger.Debug("Profile already exists", zap.String("userID", userID.String()))
	}
	return profile, nil
}

func (s *profileServiceImpl) WaitForProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	log := s.logger.With(zap.String("userID", userID.String()))
	var lastErr error
	for attempt := 1; attempt <= s.waitAttempts; attempt++ {
		profile, err := s.repo.GetByID(ctx, userID)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, models.ErrProfileNotFound) {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		lastErr = err
		log.Debug("Profile not found yet", zap.Int("attempt", attempt))

		if attempt == s.waitAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.waitDelay):
		}
	}
	log.Warn("Profile did not appear", zap.Int("attempts", s.waitAttempts))
	return nil, lastErr
}
