package classifier

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Defaults substituted for any field the model did not supply.
const (
	DefaultCategory    = "other"
	DefaultUrgency     = "medium"
	DefaultExplanation = "no explanation available"
	DefaultCity        = "Unknown"
)

// Result is the five-field classification persisted alongside each issue.
type Result struct {
	Category    string     `json:"category"`
	Urgency     string     `json:"urgency"`
	Explanation string     `json:"explanation"`
	City        string     `json:"city"`
	Coordinates [2]float64 `json:"coordinates"`
}

// DefaultResult returns the all-defaults result.
func DefaultResult() Result {
	return Result{
		Category:    DefaultCategory,
		Urgency:     DefaultUrgency,
		Explanation: DefaultExplanation,
		City:        DefaultCity,
		Coordinates: [2]float64{0, 0},
	}
}

// Status says how much of a Result came from the model.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Outcome wraps a Result with the reason it may not be fully model-derived.
type Outcome struct {
	Result    Result `json:"result"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id"`
}

// FormatResult coerces an arbitrary decoded object into the five-field shape.
func FormatResult(obj map[string]any) Result {
	result := DefaultResult()
	if v, ok := stringField(obj, "category"); ok {
		result.Category = v
	}
	if v, ok := stringField(obj, "urgency"); ok {
		result.Urgency = normalizeUrgency(v)
	}
	if v, ok := stringField(obj, "explanation"); ok {
		result.Explanation = v
	}
	if v, ok := stringField(obj, "city"); ok {
		result.City = v
	}
	if v, ok := coordinatesField(obj, "coordinates"); ok {
		result.Coordinates = v
	}
	return result
}

func normalizeUrgency(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// stringField reads key as a scalar. Blank strings, null, arrays and objects are rejected.
func stringField(obj map[string]any, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// coordinatesField reads key as [latitude, longitude]; extra elements are ignored.
func coordinatesField(obj map[string]any, key string) ([2]float64, bool) {
	var out [2]float64
	list, ok := obj[key].([]any)
	if !ok || len(list) < 2 {
		return out, false
	}
	for i := 0; i < 2; i++ {
		f, ok := toFloat(list[i])
		if !ok {
			return [2]float64{}, false
		}
		out[i] = f
	}
	return out, true
}

func toFloat(raw any) (float64, bool) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
