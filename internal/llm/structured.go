package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// jsonReminder is appended to the system prompt when structured output is
// re-requested.
const jsonReminder = "Your previous reply was not valid JSON. Respond with a single JSON object and nothing else."

// maxRawInError bounds how much model output a ParseError carries.
const maxRawInError = 512

// DecodeStructured decodes model output into out. Markdown code fences and
// text around the outermost JSON object or array are ignored.
func DecodeStructured(text string, out any) error {
	payload := extractJSON(text)
	if payload == "" {
		return &ParseError{Raw: truncate(text), Err: errors.New("no JSON value in output")}
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return &ParseError{Raw: truncate(text), Err: err}
	}
	return nil
}

// extractJSON strips code fences and returns the span from the first '{'
// or '[' to the matching last '}' or ']'.
func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string) string {
	if len(s) <= maxRawInError {
		return s
	}
	return s[:maxRawInError]
}
