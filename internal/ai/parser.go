package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSONBlock is returned when a model response contains no JSON object.
var ErrNoJSONBlock = errors.New("ai: no JSON object found in response")

// StripFences removes markdown code fences the model sometimes wraps
// JSON responses in.
func StripFences(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// ExtractJSONBlock returns the first balanced top-level {...} block in s.
// Braces inside JSON strings are ignored.
func ExtractJSONBlock(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSONBlock
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSONBlock
}

// ParseStoryData decodes a model response into StoryData, tolerating
// fenced output and surrounding prose.
func ParseStoryData(raw string) (*StoryData, error) {
	block, err := ExtractJSONBlock(StripFences(raw))
	if err != nil {
		return nil, err
	}

	var story StoryData
	if err := json.Unmarshal([]byte(block), &story); err != nil {
		return nil, err
	}
	return &story, nil
}
