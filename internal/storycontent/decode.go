package storycontent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedContent - JSON, который не является ни строкой, ни объектом, ни списком глав.
var ErrUnsupportedContent = errors.New("unsupported story content")

// maxStringLayers - сколько раз содержимое может быть упаковано в JSON-строку.
const maxStringLayers = 2

// Decode разбирает результат генерации: объект, объект внутри JSON-строки
// (один или два уровня) или обычная строка (старый формат).
func Decode(raw []byte) (*Story, error) {
	data, text, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return &Story{Legacy: text}, nil
	}

	switch data[0] {
	case '{':
		var story Story
		if err := json.Unmarshal(data, &story); err != nil {
			return nil, fmt.Errorf("decode story object: %w", err)
		}
		return &story, nil
	case '[':
		var chapters []Chapter
		if err := json.Unmarshal(data, &chapters); err != nil {
			return nil, fmt.Errorf("decode chapters: %w", err)
		}
		return &Story{Chapters: chapters}, nil
	}
	return nil, ErrUnsupportedContent
}

// Parse разбирает значение колонки content. Не падает: всё, что не удалось
// разобрать как JSON, считается текстом старого формата.
func Parse(stored string) *Story {
	story, err := Decode([]byte(stored))
	if err != nil {
		return &Story{Legacy: stored}
	}
	return story
}

// unwrap снимает до maxStringLayers уровней JSON-строк.
// Возвращает либо JSON объекта/массива, либо текст, если внутри обычная строка.
func unwrap(raw []byte) ([]byte, string, error) {
	data := bytes.TrimSpace(raw)
	for layer := 0; ; layer++ {
		if len(data) == 0 || bytes.Equal(data, []byte("null")) {
			return nil, "", nil
		}
		switch data[0] {
		case '{', '[':
			return data, "", nil
		case '"':
			var s string
			if err := json.Unmarshal(data, &s); err != nil {
				return nil, "", fmt.Errorf("decode story string: %w", err)
			}
			inner := bytes.TrimSpace([]byte(s))
			if layer < maxStringLayers && looksLikeJSON(inner) {
				data = inner
				continue
			}
			return nil, s, nil
		default:
			return nil, "", ErrUnsupportedContent
		}
	}
}

func looksLikeJSON(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	switch data[0] {
	case '{', '[', '"':
		return json.Valid(data)
	}
	return false
}
