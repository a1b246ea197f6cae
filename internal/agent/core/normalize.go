package core

import (
	"encoding/json"
	"strings"
)

// Normalize converts a raw LLM reply into a structured value. Fenced code
// blocks are unwrapped first, then the text is parsed as JSON. Text that is
// not valid JSON is preserved verbatim under "raw" with a parse_error marker
// so downstream consumers always receive structured data and the original
// text is never lost.
func Normalize(raw string) map[string]interface{} {
	candidate := ExtractFenced(raw)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		return parsed
	}
	// Top-level arrays and scalars are valid JSON but not objects; wrap them
	// so callers always get a map.
	var anyVal interface{}
	if err := json.Unmarshal([]byte(candidate), &anyVal); err == nil {
		return map[string]interface{}{"data": anyVal}
	}
	return map[string]interface{}{
		"raw":         raw,
		"parse_error": true,
	}
}

// ExtractFenced strips a surrounding markdown code fence, with or without a
// language tag. Text without a fence is returned trimmed.
func ExtractFenced(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if idx := strings.Index(body, "\n"); idx >= 0 {
		// First line after the fence may be a language tag such as "json".
		first := strings.TrimSpace(body[:idx])
		if first == "" || isLanguageTag(first) {
			body = body[idx+1:]
		}
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return len(s) <= 12
}
