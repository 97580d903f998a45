package storycontent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode превращает содержимое в строку для колонки content.
// Строка сохраняется как есть, список глав - как markdown,
// любой другой объект - как JSON с отступами, закодированный один раз.
func Encode(v any) (string, error) {
	switch c := v.(type) {
	case string:
		return c, nil
	case []Chapter:
		return chaptersMarkdown(c), nil
	case json.RawMessage:
		data, text, err := unwrap(c)
		if err != nil {
			return "", err
		}
		if data == nil {
			return text, nil
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return "", fmt.Errorf("encode story content: %w", err)
		}
		return buf.String(), nil
	case *Story:
		if c.IsLegacy() {
			return c.Legacy, nil
		}
		return marshalIndent(c)
	default:
		return marshalIndent(v)
	}
}

func marshalIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode story content: %w", err)
	}
	return string(b), nil
}
