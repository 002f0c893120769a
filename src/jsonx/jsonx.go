// Package jsonx extracts JSON values from model output that may be wrapped
// in Markdown code fences or surrounded by prose.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be located in the input.
var ErrNoJSON = errors.New("no JSON object found")

// StripFences removes a leading ``` or ```json line and a trailing ``` from s.
// Input without fences is returned trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the info string ("json", "JSON", ...).
		if !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		}
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Extract returns the outermost {...} span of s after fence stripping.
func Extract(s string) (string, error) {
	s = StripFences(s)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return s[start : end+1], nil
}

// Decode strips fences from raw and unmarshals the result into v. If the
// stripped text is not valid JSON, the outermost object is tried instead.
func Decode(raw string, v any) error {
	stripped := StripFences(raw)
	if stripped == "" {
		return ErrNoJSON
	}
	err := json.Unmarshal([]byte(stripped), v)
	if err == nil {
		return nil
	}
	obj, extractErr := Extract(stripped)
	if extractErr != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}
