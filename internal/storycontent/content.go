// Package storycontent разбирает и собирает содержимое рассказов.
//
// Результат генерации и колонка content в базе бывают в нескольких форматах:
// markdown (старый формат), объект с главами, объект {tale}, а также
// JSON, закодированный в строку один или два раза.
package storycontent

import (
	"encoding/json"
	"strings"
)

// ChapterSeparator разделяет главы в markdown.
const ChapterSeparator = "\n\n---\n\n"

// Chapter - одна глава рассказа.
type Chapter struct {
	Title    string `json:"title,omitempty"`
	Content  string `json:"content,omitempty"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// UnmarshalJSON принимает и объект главы, и просто строку с текстом.
func (c *Chapter) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Chapter{Content: s}
		return nil
	}
	type plain Chapter
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Chapter(p)
	return nil
}

// Body возвращает текст главы: text, затем content.
func (c Chapter) Body() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Content
}

// Story - нормализованное содержимое рассказа.
type Story struct {
	Title         string    `json:"title,omitempty"`
	Tale          string    `json:"tale,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	Chapters      []Chapter `json:"chapters,omitempty"`

	// Legacy - текст рассказа, если содержимое не JSON.
	Legacy string `json:"-"`
}

// IsLegacy сообщает, что рассказ хранится как обычный текст.
func (s *Story) IsLegacy() bool {
	return s.Legacy != "" && len(s.Chapters) == 0 && s.Tale == ""
}

// Preview возвращает текст для карточки: tale, затем главы, затем исходный текст.
func (s *Story) Preview() string {
	if s.Tale != "" {
		return s.Tale
	}
	if len(s.Chapters) > 0 {
		bodies := make([]string, 0, len(s.Chapters))
		for _, ch := range s.Chapters {
			if body := ch.Body(); body != "" {
				bodies = append(bodies, body)
			}
		}
		return strings.Join(bodies, "\n\n")
	}
	return s.Legacy
}

// Markdown собирает главы в markdown вида "# title\n\nbody", разделённые "---".
func (s *Story) Markdown() string {
	if len(s.Chapters) == 0 {
		if s.Tale != "" {
			return s.Tale
		}
		return s.Legacy
	}
	return chaptersMarkdown(s.Chapters)
}

// CoverImage возвращает URL обложки или пустую строку.
func (s *Story) CoverImage() string {
	return s.CoverImageURL
}

// ImageURLs возвращает обложку и картинки глав.
func (s *Story) ImageURLs() []string {
	var urls []string
	if s.CoverImageURL != "" {
		urls = append(urls, s.CoverImageURL)
	}
	for _, ch := range s.Chapters {
		if ch.ImageURL != "" {
			urls = append(urls, ch.ImageURL)
		}
	}
	return urls
}

// StoragePaths оставляет только URL из бакета и возвращает путь внутри бакета.
func StoragePaths(urls []string, bucket string) []string {
	marker := "/" + bucket + "/"
	var paths []string
	for _, u := range urls {
		idx := strings.Index(u, marker)
		if idx < 0 {
			continue
		}
		if p := u[idx+len(marker):]; p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func chaptersMarkdown(chapters []Chapter) string {
	parts := make([]string, 0, len(chapters))
	for _, ch := range chapters {
		parts = append(parts, "# "+ch.Title+"\n\n"+ch.Body())
	}
	return strings.Join(parts, ChapterSeparator)
}
