package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed marks model output that is not the JSON shape a caller asked
// for. Callers apply their documented fallback on it.
var ErrMalformed = errors.New("malformed model output")

var fenceRegex = regexp.MustCompile("```(?:json|JSON)?[ \t]*\n?")

// StripFences removes markdown code fences and any prose around the outermost
// JSON object.
func StripFences(text string) string {
	text = strings.TrimSpace(fenceRegex.ReplaceAllString(text, ""))
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// DecodeJSON is the shared contract check for every generative call site:
// strip fences, parse one JSON object, require the named keys to be present
// and non-null, then decode into v.
func DecodeJSON(text string, v any, required ...string) error {
	cleaned := StripFences(text)
	if cleaned == "" {
		return fmt.Errorf("%w: empty", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, key := range required {
		raw, ok := fields[key]
		if !ok || string(raw) == "null" {
			return fmt.Errorf("%w: missing key %q", ErrMalformed, key)
		}
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
