package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cuentee/internal/interfaces"
	"cuentee/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Снимаем блокировку, только если она всё ещё принадлежит этой задаче.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Compile-time checks
var (
	_ interfaces.GenerationLock     = (*redisGenerationStore)(nil)
	_ interfaces.GenerationJobStore = (*redisGenerationStore)(nil)
)

type redisGenerationStore struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisGenerationStore создает хранилище блокировок и снимков задач генерации в Redis.
func NewRedisGenerationStore(client redis.UniversalClient, logger *zap.Logger) *redisGenerationStore {
	return &redisGenerationStore{
		client: client,
		logger: logger.Named("RedisGenerationStore"),
	}
}

func lockKey(userID uuid.UUID) string {
	return fmt.Sprintf("generation_lock:%s", userID.String())
}

func jobKey(jobID string) string {
	return fmt.Sprintf("generation_job:%s", jobID)
}

func (s *redisGenerationStore) Acquire(ctx context.Context, userID uuid.UUID, jobID string, ttl time.Duration) error {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("jobID", jobID))

	ok, err := s.client.SetNX(ctx, lockKey(userID), jobID, ttl).Result()
	if err != nil {
		log.Error("Failed to acquire generation lock", zap.Error(err))
		return fmt.Errorf("failed to acquire generation lock: %w", err)
	}
	if !ok {
		log.Info("User already has an active generation")
		return models.ErrUserHasActiveGeneration
	}
	log.Debug("Generation lock acquired", zap.Duration("ttl", ttl))
	return nil
}

func (s *redisGenerationStore) Release(ctx context.Context, userID uuid.UUID, jobID string) error {
	log := s.logger.With(zap.String("userID", userID.String()), zap.String("jobID", jobID))

	released, err := releaseLockScript.Run(ctx, s.client, []string{lockKey(userID)}, jobID).Int()
	if err != nil {
		log.Error("Failed to release generation lock", zap.Error(err))
		return fmt.Errorf("failed to release generation lock: %w", err)
	}
	if released == 0 {
		log.Warn("Generation lock was not held by this job")
		return nil
	}
	log.Debug("Generation lock released")
	return nil
}

func (s *redisGenerationStore) Save(ctx context.Context, job *models.GenerationJob, ttl time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal generation job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), data, ttl).Err(); err != nil {
		s.logger.Error("Failed to save generation job", zap.String("jobID", job.ID), zap.Error(err))
		return fmt.Errorf("failed to save generation job: %w", err)
	}
	return nil
}

func (s *redisGenerationStore) Get(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	data, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrJobNotFound
		}
		s.logger.Error("Failed to get generation job", zap.String("jobID", jobID), zap.Error(err))
		return nil, fmt.Errorf("failed to get generation job: %w", err)
	}
	var job models.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generation job: %w", err)
	}
	return &job, nil
}
