package database

import (
	"context"
	"errors"
	"fmt"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const storyColumns = `id, user_id, title, content, prompt, visibility, created_at, updated_at`

const (
	createStoryQuery = `
		INSERT INTO stories (user_id, title, content, prompt, visibility)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + storyColumns
	getStoryByIDQuery       = `SELECT ` + storyColumns + ` FROM stories WHERE id = $1`
	listStoriesByUserQuery  = `SELECT ` + storyColumns + ` FROM stories WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	countStoriesByUserQuery = `SELECT COUNT(*) FROM stories WHERE user_id = $1`
	listPublicStoriesQuery  = `
		SELECT s.id, s.user_id, s.title, s.content, s.prompt, s.visibility, s.created_at, s.updated_at,
		       COALESCE(p.username, $3) AS username
		FROM stories s
		LEFT JOIN profiles p ON p.id = s.user_id
		WHERE s.visibility = 'public'
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT $1 OFFSET $2`
	countPublicStoriesQuery    = `SELECT COUNT(*) FROM stories WHERE visibility = 'public'`
	updateStoryVisibilityQuery = `UPDATE stories SET visibility = $3 WHERE id = $1 AND user_id = $2 RETURNING ` + storyColumns
	deleteStoryQuery           = `DELETE FROM stories WHERE id = $1 AND user_id = $2`
)

// Compile-time check
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgStoryRepository создает репозиторий рассказов для PostgreSQL.
func NewPgStoryRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

func (r *pgStoryRepository) Create(ctx context.Context, story *models.Story) error {
	logFields := []zap.Field{zap.String("userID", story.UserID.String()), zap.String("title", story.Title)}
	r.logger.Debug("Creating story", logFields...)

	if story.Visibility == "" {
		story.Visibility = models.VisibilityPrivate
	}
	err := pgxscan.Get(ctx, r.db, story, createStoryQuery,
		story.UserID, story.Title, story.Content, story.Prompt, story.Visibility)
	if err != nil {
		r.logger.Error("Failed to create story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create story: %w", err)
	}
	r.logger.Info("Story created", append(logFields, zap.String("storyID", story.ID.String()))...)
	return nil
}

func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	var story models.Story
	if err := pgxscan.Get(ctx, r.db, &story, getStoryByIDQuery, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get story by ID", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get story %s: %w", id, err)
	}
	return &story, nil
}

func (r *pgStoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Story, error) {
	stories := make([]models.Story, 0)
	if err := pgxscan.Select(ctx, r.db, &stories, listStoriesByUserQuery, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list user stories", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list stories for user %s: %w", userID, err)
	}
	return stories, nil
}

func (r *pgStoryRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, countStoriesByUserQuery, userID).Scan(&count); err != nil {
		r.logger.Error("Failed to count user stories", zap.String("userID", userID.String()), zap.Error(err))
		return 0, fmt.Errorf("failed to count stories for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *pgStoryRepository) ListPublic(ctx context.Context, limit, offset int) ([]models.PublicStory, error) {
	stories := make([]models.PublicStory, 0)
	if err := pgxscan.Select(ctx, r.db, &stories, listPublicStoriesQuery, limit, offset, models.AnonymousAuthor); err != nil {
		r.logger.Error("Failed to list public stories", zap.Error(err))
		return nil, fmt.Errorf("failed to list public stories: %w", err)
	}
	return stories, nil
}

func (r *pgStoryRepository) CountPublic(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, countPublicStoriesQuery).Scan(&count); err != nil {
		r.logger.Error("Failed to count public stories", zap.Error(err))
		return 0, fmt.Errorf("failed to count public stories: %w", err)
	}
	return count, nil
}

func (r *pgStoryRepository) UpdateVisibility(ctx context.Context, id, userID uuid.UUID, visibility models.Visibility) (*models.Story, error) {
	logFields := []zap.Field{zap.String("storyID", id.String()), zap.String("userID", userID.String()), zap.String("visibility", string(visibility))}

	var story models.Story
	if err := pgxscan.Get(ctx, r.db, &story, updateStoryVisibilityQuery, id, userID, visibility); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Story not found for visibility update", logFields...)
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to update story visibility", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to update visibility for story %s: %w", id, err)
	}
	r.logger.Info("Story visibility updated", logFields...)
	return &story, nil
}

func (r *pgStoryRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	logFields := []zap.Field{zap.String("storyID", id.String()), zap.String("userID", userID.String())}

	tag, err := r.db.Exec(ctx, deleteStoryQuery, id, userID)
	if err != nil {
		r.logger.Error("Failed to delete story", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to delete story %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Warn("Story not found for deletion", logFields...)
		return models.ErrNotFound
	}
	r.logger.Info("Story deleted", logFields...)
	return nil
}
