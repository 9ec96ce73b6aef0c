package classifier

import (
	"encoding/json"
	"strings"
)

// ExtractJSON finds the JSON object in a model reply. The whole reply is parsed
// strictly first; failing that, the span from the first '{' to the last '}' is
// tried. Anything that is not a JSON object yields ok=false.
func ExtractJSON(text string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	if obj, ok := parseObject(trimmed); ok {
		return obj, true
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return parseObject(trimmed[start : end+1])
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
