package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuentee/internal/generation"
	"cuentee/internal/interfaces"
	"cuentee/internal/models"
	"cuentee/internal/storycontent"
	"cuentee/pkg/taskmanager"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageTypeGenerationUpdate - тип WebSocket сообщения со снимком задачи.
const MessageTypeGenerationUpdate = "generation_update"

// InterruptedJobMessage - ошибка задачи, прерванной остановкой сервиса.
const InterruptedJobMessage = "Generation was interrupted, please try again"

const releaseTimeout = 5 * time.Second

// GenerationService определяет интерфейс серверных задач генерации.
type GenerationService interface {
	StartGeneration(ctx context.Context, userID uuid.UUID, token string, req generation.Request) (*models.GenerationJob, error)
	GetJob(ctx context.Context, jobID string, userID uuid.UUID) (*models.GenerationJob, error)
	CancelJob(ctx context.Context, jobID string, userID uuid.UUID) (*models.GenerationJob, error)
}

// GenerationSettings - параметры опроса и хранения задач.
type GenerationSettings struct {
	PollInterval time.Duration
	MaxPolls     int
	JobTTL       time.Duration
	LockTTL      time.Duration
	DefaultTitle string
}

// GenerationDeps - зависимости GenerationService.
type GenerationDeps struct {
	API       generation.TaskAPI
	Metrics   *generation.Metrics
	Tasks     taskmanager.ITaskManager
	Lock      interfaces.GenerationLock
	Jobs      interfaces.GenerationJobStore
	Credits   CreditService
	Stories   StoryService
	Publisher interfaces.StoryEventPublisher
	Notifier  interfaces.ClientNotifier
}

type generationServiceImpl struct {
	GenerationDeps
	settings GenerationSettings
	now      func() time.Time
	logger   *zap.Logger
}

// NewGenerationService создаёт сервис генерации.
func NewGenerationService(deps GenerationDeps, settings GenerationSettings, logger *zap.Logger) GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = generation.DefaultPollInterval
	}
	if settings.MaxPolls <= 0 {
		settings.MaxPolls = generation.DefaultMaxPolls
	}
	if settings.JobTTL <= 0 {
		settings.JobTTL = 24 * time.Hour
	}
	if settings.LockTTL <= 0 {
		settings.LockTTL = time.Duration(settings.MaxPolls)*settings.PollInterval + time.Minute
	}
	if settings.DefaultTitle == "" {
		settings.DefaultTitle = "AI Generated Tale"
	}
	return &generationServiceImpl{
		GenerationDeps: deps,
		settings:       settings,
		now:            time.Now,
		logger:         logger.Named("GenerationService"),
	}
}

func (s *generationServiceImpl) StartGeneration(ctx context.Context, userID uuid.UUID, token string, req generation.Request) (*models.GenerationJob, error) {
	if _, err := req.Body(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
	}
	if _, err := s.Credits.CheckCredits(ctx, userID); err != nil {
		return nil, err
	}

	jobID := uuid.NewString()
	log := s.logger.With(zap.String("jobID", jobID), zap.String("userID", userID.String()))

	if err := s.Lock.Acquire(ctx, userID, jobID, s.settings.LockTTL); err != nil {
		if errors.Is(err, models.ErrUserHasActiveGeneration) {
			log.Info("Generation rejected, user already has an active job")
		}
		return nil, err
	}

	now := s.now().UTC()
	job := &models.GenerationJob{
		ID:        jobID,
		UserID:    userID,
		Status:    models.GenerationStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Jobs.Save(ctx, job, s.settings.JobTTL); err != nil {
		s.release(ctx, userID, jobID)
		return nil, fmt.Errorf("failed to save generation job: %w", err)
	}

	running := *job
	err := s.Tasks.SubmitTaskWithOwner(ctx, jobID, userID.String(), func(taskCtx context.Context) (interface{}, error) {
		return s.runJob(taskCtx, &running, req, token)
	})
	if err != nil {
		log.Error("Failed to start generation task", zap.Error(err))
		s.release(ctx, userID, jobID)
		job.Status = models.GenerationStatusFailed
		job.Error = "Generation could not be started"
		job.UpdatedAt = s.now().UTC()
		if saveErr := s.Jobs.Save(ctx, job, s.settings.JobTTL); saveErr != nil {
			log.Warn("Failed to save failed job snapshot", zap.Error(saveErr))
		}
		return nil, fmt.Errorf("failed to start generation: %w", err)
	}

	log.Info("Generation job started", zap.String("endpoint", req.ResolvedEndpoint()))
	s.Notifier.SendToUser(userID.String(), MessageTypeGenerationUpdate, job)
	return job, nil
}

// runJob ведёт одну задачу: опрос генератора, снимки в Redis, уведомления,
// автосохранение рассказа и событие story.generated.
func (s *generationServiceImpl) runJob(ctx context.Context, job *models.GenerationJob, req generation.Request, token string) (interface{}, error) {
	log := s.logger.With(zap.String("jobID", job.ID), zap.String("userID", job.UserID.String()))
	defer s.release(ctx, job.UserID, job.ID)

	session := generation.NewSession(s.API,
		generation.WithPollInterval(s.settings.PollInterval),
		generation.WithMaxPolls(s.settings.MaxPolls),
		generation.WithLogger(log),
		generation.WithMetrics(s.Metrics),
	)
	updates, err := session.Generate(ctx, req, token)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for u := range updates {
		// queued уже сохранён при старте
		if u.Status == models.GenerationStatusQueued {
			continue
		}
		job.Status = u.Status
		job.TaskID = u.TaskID

		switch u.Status {
		case models.GenerationStatusCompleted:
			job.Result = u.Result
			if storyID, err := s.autoSave(ctx, job, req, u.Result); err != nil {
				log.Error("Failed to auto-save generated story", zap.Error(err))
				job.Error = "Story was generated but could not be saved"
			} else {
				job.StoryID = &storyID
			}
		case models.GenerationStatusFailed:
			lastErr = u.Err
			job.Error = u.Message()
		}

		if ctx.Err() != nil {
			break
		}
		s.persist(ctx, job, log)
	}

	if ctx.Err() != nil {
		s.interrupt(ctx, job, log)
		return nil, ctx.Err()
	}
	if lastErr != nil {
		return nil, lastErr
	}
	if job.StoryID != nil {
		return *job.StoryID, nil
	}
	return nil, nil
}

// interrupt записывает терминальный снимок задачи, остановленной не пользователем
// (например, при остановке сервиса). Иначе снимок остаётся в processing до истечения TTL.
func (s *generationServiceImpl) interrupt(ctx context.Context, job *models.GenerationJob, log *zap.Logger) {
	if errors.Is(context.Cause(ctx), taskmanager.ErrTaskCancelled) {
		// CancelJob сам переводит снимок в idle
		return
	}
	if stored, err := s.Jobs.Get(context.WithoutCancel(ctx), job.ID); err == nil && stored.Status == models.GenerationStatusIdle {
		return
	}

	if job.StoryID != nil {
		job.Status = models.GenerationStatusCompleted
	} else {
		job.Status = models.GenerationStatusFailed
		job.Error = InterruptedJobMessage
		job.Result = nil
	}
	log.Warn("Generation job interrupted", zap.String("status", string(job.Status)), zap.Error(context.Cause(ctx)))
	s.persist(ctx, job, log)
}

func (s *generationServiceImpl) persist(ctx context.Context, job *models.GenerationJob, log *zap.Logger) {
	job.UpdatedAt = s.now().UTC()
	snapshot := *job
	if err := s.Jobs.Save(context.WithoutCancel(ctx), &snapshot, s.settings.JobTTL); err != nil {
		log.Warn("Failed to save job snapshot", zap.String("status", string(job.Status)), zap.Error(err))
	}
	s.Notifier.SendToUser(job.UserID.String(), MessageTypeGenerationUpdate, &snapshot)
}

// autoSave сохраняет результат как приватный рассказ и публикует событие.
func (s *generationServiceImpl) autoSave(ctx context.Context, job *models.GenerationJob, req generation.Request, result json.RawMessage) (uuid.UUID, error) {
	title := s.settings.DefaultTitle
	chapters := 0
	if content, err := storycontent.Decode(result); err == nil {
		if t := strings.TrimSpace(content.Title); t != "" {
			title = t
		}
		chapters = len(content.Chapters)
	}

	story, err := s.Stories.SaveStory(ctx, job.UserID, title, result, promptOf(req))
	if err != nil {
		return uuid.Nil, err
	}

	event := models.StoryGeneratedEvent{
		StoryID:      story.ID,
		UserID:       job.UserID,
		JobID:        job.ID,
		Title:        story.Title,
		ChapterCount: chapters,
		GeneratedAt:  s.now().UTC(),
	}
	if err := s.Publisher.PublishStoryGenerated(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("Failed to publish story generated event", zap.String("storyID", story.ID.String()), zap.Error(err))
	}
	return story.ID, nil
}

// promptOf возвращает текст запроса для сохранения вместе с рассказом.
func promptOf(req generation.Request) *string {
	var prompt string
	if req.Guided != nil {
		parts := make([]string, 0, 3)
		for _, p := range []string{req.Guided.Protagonist, req.Guided.ScientificTopic, req.Guided.Mission} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		prompt = strings.Join(parts, " / ")
	} else {
		prompt = strings.TrimSpace(req.Topic)
	}
	if prompt == "" {
		return nil
	}
	return &prompt
}

func (s *generationServiceImpl) release(ctx context.Context, userID uuid.UUID, jobID string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.Lock.Release(releaseCtx, userID, jobID); err != nil {
		s.logger.Warn("Failed to release generation lock", zap.String("jobID", jobID), zap.Error(err))
	}
}

func (s *generationServiceImpl) GetJob(ctx context.Context, jobID string, userID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.Jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, models.ErrJobNotFound
	}
	return job, nil
}

func (s *generationServiceImpl) CancelJob(ctx context.Context, jobID string, userID uuid.UUID) (*models.GenerationJob, error) {
	job, err := s.GetJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() || job.Status == models.GenerationStatusIdle {
		return nil, models.ErrJobAlreadyFinished
	}
	log := s.logger.With(zap.String("jobID", jobID), zap.String("userID", userID.String()))

	if err := s.Tasks.CancelTask(jobID); err != nil {
		// задача могла выполняться в другом экземпляре сервиса
		log.Warn("Task was not cancelled locally", zap.Error(err))
	}

	job.Status = models.GenerationStatusIdle
	job.TaskID = ""
	job.Error = ""
	job.Result = nil
	job.UpdatedAt = s.now().UTC()
	if err := s.Jobs.Save(ctx, job, s.settings.JobTTL); err != nil {
		return nil, fmt.Errorf("failed to save cancelled job: %w", err)
	}
	s.release(ctx, userID, jobID)
	s.Notifier.SendToUser(userID.String(), MessageTypeGenerationUpdate, job)

	log.Info("Generation job cancelled")
	return job, nil
}
