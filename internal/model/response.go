package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeLooseJSON unmarshals model output that should be a JSON object
// but may be wrapped in prose or code fences. It first tries the text
// as-is, then the substring from the first '{' to the last '}'.
func DecodeLooseJSON(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), v); err != nil {
		return fmt.Errorf("parse extracted JSON: %w", err)
	}
	return nil
}

// ExtractLastJSONObject returns the last complete JSON object embedded
// in the text, or "". Models that narrate around their structured
// output typically put the object at the end.
func ExtractLastJSONObject(text string) string {
	objects := extractAllJSONObjects(text)
	if len(objects) == 0 {
		return ""
	}
	return objects[len(objects)-1]
}

// extractAllJSONObjects finds complete top-level JSON objects by
// balanced-brace scanning, skipping braces inside string literals.
func extractAllJSONObjects(text string) []string {
	var results []string

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}

		depth := 0
		inString := false
		escaped := false
		end := -1

	scan:
		for j := i; j < len(text); j++ {
			c := text[j]
			switch {
			case escaped:
				escaped = false
			case c == '\\' && inString:
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					end = j
					break scan
				}
			}
		}

		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		if json.Valid([]byte(candidate)) {
			results = append(results, candidate)
			i = end
		}
	}
	return results
}
