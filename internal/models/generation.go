package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GenerationStatus - состояние задачи генерации.
type GenerationStatus string

const (
	GenerationStatusIdle       GenerationStatus = "idle"
	GenerationStatusQueued     GenerationStatus = "queued"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// IsTerminal возвращает true для completed и failed.
func (s GenerationStatus) IsTerminal() bool {
	return s == GenerationStatusCompleted || s == GenerationStatusFailed
}

// GenerationJob - снимок серверной задачи генерации, который хранится в Redis
// и отправляется клиентам по WebSocket.
type GenerationJob struct {
	ID        string           `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	TaskID    string           `json:"task_id,omitempty"`
	Status    GenerationStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	Result    json.RawMessage  `json:"result,omitempty"`
	StoryID   *uuid.UUID       `json:"story_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// StoryGeneratedEvent публикуется после сохранения сгенерированного рассказа.
type StoryGeneratedEvent struct {
	StoryID      uuid.UUID `json:"story_id"`
	UserID       uuid.UUID `json:"user_id"`
	JobID        string    `json:"job_id"`
	Title        string    `json:"title"`
	ChapterCount int       `json:"chapter_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}
