package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSONObject indicates the text contains no JSON object at all.
var ErrNoJSONObject = errors.New("no JSON object found in text")

// ExtractJSONObject pulls a JSON object out of model output and decodes it
// into v. Models frequently wrap JSON in prose or markdown fences, so we
// take the substring from the first '{' to the last '}' rather than
// requiring the whole response to be valid JSON.
func ExtractJSONObject(raw string, v interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ErrNoJSONObject
	}

	candidate := raw[start : end+1]
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("failed to decode JSON object: %w", err)
	}
	return nil
}
