// Package json pulls JSON payloads out of model completions.
//
// Models wrap structured output in markdown fences or surround it with prose.
// Extract locates the object; Decode and DecodeInto unmarshal it.
package json

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// Extract returns the JSON object embedded in text. It tries, in order: the
// whole text, the body of the first fenced block, and the span between the
// first '{' and the last '}'.
func Extract(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("empty response")
	}
	if isObject(trimmed) {
		return trimmed, nil
	}

	if body, ok := fencedBody(trimmed); ok && isObject(body) {
		return body, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		candidate := trimmed[start : end+1]
		if isObject(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to extract JSON object from response: %q", preview(trimmed, 100))
}

// Decode extracts the object in text and unmarshals it into T.
func Decode[T any](text string) (T, error) {
	var out T
	err := DecodeInto(text, &out)
	return out, err
}

// DecodeInto extracts the object in text and unmarshals it into v.
func DecodeInto(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &probe) == nil
}

// fencedBody returns the content of the first ``` block, dropping an
// optional language tag on the opening line.
func fencedBody(s string) (string, bool) {
	open := strings.Index(s, fence)
	if open == -1 {
		return "", false
	}
	rest := s[open+len(fence):]
	if nl := strings.IndexByte(rest, '\n'); nl != -1 && !strings.Contains(rest[:nl], "{") {
		rest = rest[nl+1:]
	}
	close := strings.Index(rest, fence)
	if close == -1 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:close]), true
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
