package handler

import (
	"bytes"
	"encoding/json"

	"cuentee/internal/generation"
	"cuentee/internal/models"
	"cuentee/internal/storycontent"
)

type pageQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type saveStoryRequest struct {
	Title   string          `json:"title"`
	Content json.RawMessage `json:"content" binding:"required"`
	Prompt  *string         `json:"prompt"`
}

// contentValue выбирает представление для storycontent.Encode:
// массив глав сохраняется как markdown, остальное - как есть.
func (r saveStoryRequest) contentValue() (any, error) {
	trimmed := bytes.TrimSpace(r.Content)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var chapters []storycontent.Chapter
		if err := json.Unmarshal(trimmed, &chapters); err != nil {
			return nil, err
		}
		return chapters, nil
	}
	return r.Content, nil
}

type visibilityRequest struct {
	Visibility models.Visibility `json:"visibility" binding:"required"`
}

type usernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type planRequest struct {
	Plan models.Plan `json:"plan" binding:"required"`
}

type creditsRequest struct {
	Credits *int `json:"credits" binding:"required"`
}

type userCreatedRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type generationRequest struct {
	Topic  string                    `json:"topic"`
	Guided *generation.GuidedPayload `json:"guided"`
}

func (r generationRequest) toRequest() generation.Request {
	if r.Guided != nil {
		return generation.GuidedRequest(*r.Guided)
	}
	return generation.TopicRequest(r.Topic)
}

// storyResponse дополняет рассказ полями для карточки.
type storyResponse struct {
	models.Story
	Preview       string `json:"preview"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
}

type publicStoryResponse struct {
	storyResponse
	Username string `json:"username"`
}

func newStoryResponse(s models.Story) storyResponse {
	content := storycontent.Parse(s.Content)
	return storyResponse{
		Story:         s,
		Preview:       content.Preview(),
		CoverImageURL: content.CoverImage(),
	}
}

func mapPage[T, R any](page *models.StoryPage[T], fn func(T) R) models.StoryPage[R] {
	out := make([]R, 0, len(page.Stories))
	for _, s := range page.Stories {
		out = append(out, fn(s))
	}
	return models.StoryPage[R]{
		Stories:     out,
		TotalCount:  page.TotalCount,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		HasNext:     page.HasNext,
		HasPrev:     page.HasPrev,
	}
}
