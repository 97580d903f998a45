package models

import (
	"time"

	"github.com/google/uuid"
)

// Visibility определяет, виден ли рассказ в общей галерее.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// Valid сообщает, является ли значение допустимой видимостью.
func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// Story - сохранённый рассказ пользователя.
// Content хранит либо markdown (старый формат), либо JSON с главами.
type Story struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	Title      string     `json:"title" db:"title"`
	Content    string     `json:"content" db:"content"`
	Prompt     *string    `json:"prompt,omitempty" db:"prompt"`
	Visibility Visibility `json:"visibility" db:"visibility"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// PublicStory - рассказ из галереи вместе с именем автора.
type PublicStory struct {
	Story
	Username string `json:"username" db:"username"`
}

// AnonymousAuthor подставляется, когда у автора нет имени пользователя.
const AnonymousAuthor = "Anonymous"

// StoryPage - страница списка рассказов.
type StoryPage[T any] struct {
	Stories     []T  `json:"stories"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	CurrentPage int  `json:"current_page"`
	HasNext     bool `json:"has_next_page"`
	HasPrev     bool `json:"has_previous_page"`
}
