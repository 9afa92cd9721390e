package llm

import (
	"errors"
	"strings"
)

// ExtractJSONObject returns the first balanced {...} block in s. Models wrap
// JSON in prose or code fences often enough that callers should never decode
// raw completions directly.
func ExtractJSONObject(s string) (string, error) {
	return extractBalanced(s, '{', '}')
}

// ExtractJSONArray returns the first balanced [...] block in s.
func ExtractJSONArray(s string) (string, error) {
	return extractBalanced(s, '[', ']')
}

func extractBalanced(s string, open, close byte) (string, error) {
	s = stripCodeFences(s)
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", errors.New("no JSON found in response")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errors.New("unbalanced JSON in response")
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
