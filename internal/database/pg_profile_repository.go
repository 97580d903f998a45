package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const profileColumns = `id, username, credits, plan, plus_since, last_credited_at, created_at`

const (
	getProfileByIDQuery = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	createProfileQuery  = `
		INSERT INTO profiles (id, credits, last_credited_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + profileColumns
	usernameExistsQuery = `SELECT EXISTS (SELECT 1 FROM profiles WHERE LOWER(username) = LOWER($1))`
	updateUsernameQuery = `UPDATE profiles SET username = $2 WHERE id = $1 RETURNING ` + profileColumns
	updatePlanQuery     = `UPDATE profiles SET plan = $2, plus_since = $3 WHERE id = $1 RETURNING ` + profileColumns
	updateCreditsQuery  = `UPDATE profiles SET credits = $2, last_credited_at = $3 WHERE id = $1 RETURNING ` + profileColumns
)

// Коды ошибок PostgreSQL
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// Compile-time check
var _ interfaces.ProfileRepository = (*pgProfileRepository)(nil)

type pgProfileRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgProfileRepository создает репозиторий профилей для PostgreSQL.
func NewPgProfileRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.ProfileRepository {
	return &pgProfileRepository{
		db:     db,
		logger: logger.Named("PgProfileRepo"),
	}
}

func (r *pgProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := pgxscan.Get(ctx, r.db, &p, getProfileByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProfileNotFound
		}
		r.logger.Error("Failed to get profile", zap.String("userID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return &p, nil
}

func (r *pgProfileRepository) Create(ctx context.Context, id uuid.UUID, credits int) (*models.Profile, bool, error) {
	log := r.logger.With(zap.String("userID", id.String()))

	var p models.Profile
	err := pgxscan.Get(ctx, r.db, &p, createProfileQuery, id, credits)
	if err == nil {
		log.Info("Profile created", zap.Int("credits", credits))
		return &p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		log.Error("Failed to create profile", zap.Error(err))
		return nil, false, fmt.Errorf("failed to create profile %s: %w", id, err)
	}

	// ON CONFLICT DO NOTHING: профиль уже есть
	log.Debug("Profile already exists")
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *pgProfileRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, usernameExistsQuery, username).Scan(&exists); err != nil {
		r.logger.Error("Failed to check username", zap.String("username", username), zap.Error(err))
		return false, fmt.Errorf("failed to check username availability: %w", err)
	}
	return exists, nil
}

func (r *pgProfileRepository) UpdateUsername(ctx context.Context, id uuid.UUID, username string) (*models.Profile, error) {
	return r.update(ctx, "username", updateUsernameQuery, id, username)
}

func (r *pgProfileRepository) UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, plusSince *time.Time) (*models.Profile, error) {
	return r.update(ctx, "plan", updatePlanQuery, id, plan, plusSince)
}

func (r *pgProfileRepository) UpdateCredits(ctx context.Context, id uuid.UUID, credits int, creditedAt time.Time) (*models.Profile, error) {
	return r.update(ctx, "credits", updateCreditsQuery, id, credits, creditedAt)
}

// update выполняет UPDATE ... RETURNING и переводит ошибки PostgreSQL в ошибки моделей.
func (r *pgProfileRepository) update(ctx context.Context, field, query string, id uuid.UUID, args ...any) (*models.Profile, error) {
	log := r.logger.With(zap.String("userID", id.String()), zap.String("field", field))

	var p models.Profile
	err := pgxscan.Get(ctx, r.db, &p, query, append([]any{id}, args...)...)
	if err == nil {
		log.Info("Profile updated")
		return &p, nil
	}

	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		log.Warn("Profile not found for update")
		return nil, models.ErrProfileNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		log.Warn("Username conflict on update")
		return nil, models.ErrUsernameTaken
	case errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation:
		log.Warn("Check constraint violated on profile update", zap.String("constraint", pgErr.ConstraintName))
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, pgErr.Message)
	}
	log.Error("Failed to update profile", zap.Error(err))
	return nil, fmt.Errorf("failed to update profile %s: %w", id, err)
}
