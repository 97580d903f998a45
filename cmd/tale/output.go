package main

import (
	"encoding/json"
	"fmt"
	"io"

	"cuentee/internal/storycontent"
)

// printStory печатает результат как markdown или как отформатированный JSON.
func printStory(w io.Writer, result json.RawMessage, raw bool) error {
	if raw {
		encoded, err := storycontent.Encode(result)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, encoded)
		return err
	}
	story, err := storycontent.Decode(result)
	if err != nil {
		return fmt.Errorf("decode story: %w", err)
	}
	_, err = fmt.Fprintln(w, story.Markdown())
	return err
}
