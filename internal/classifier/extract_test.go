package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   map[string]any
		wantOK bool
	}{
		{"embedded in prose", `blah {"a":1} blah`, map[string]any{"a": 1.0}, true},
		{"strict object", `{"city":"Milano","coordinates":[45.46,9.19]}`, map[string]any{"city": "Milano", "coordinates": []any{45.46, 9.19}}, true},
		{"markdown fence", "```json\n{\"urgency\":\"high\"}\n```", map[string]any{"urgency": "high"}, true},
		{"nested braces", `Here: {"a":{"b":2}} done`, map[string]any{"a": map[string]any{"b": 2.0}}, true},
		{"no brace", `no json here`, nil, false},
		{"empty", "   ", nil, false},
		{"invalid between braces", `{"a": 1 } and then {oops}`, nil, false},
		{"unbalanced", `start { "a": 1`, nil, false},
		{"closing before opening", `} nothing {`, nil, false},
		{"top level array", `[{"a":1}]`, map[string]any{"a": 1.0}, true},
		{"null literal", `null`, nil, false},
		{"array of scalars", `[1,2]`, nil, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractJSON(tc.input)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
