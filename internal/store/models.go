package store

import (
	"encoding/json"
	"strings"
	"time"

	"tellnow/backend/internal/classifier"
)

// Issue is a citizen report with the classification it received.
type Issue struct {
	ID                 uint   `gorm:"primaryKey"`
	Text               string `gorm:"type:text"`
	Cap                string `gorm:"size:16;index"`
	Source             string `gorm:"size:16"`
	ClassificationJSON string `gorm:"type:text"`
	Status             string `gorm:"size:16;index"`
	StatusReason       string `gorm:"type:text"`
	RequestID          string `gorm:"size:36;index"`
	ProcessingTimeMs   int64
	CreatedAt          time.Time `gorm:"autoCreateTime;index"`
}

// SetClassification stores the result as an opaque JSON blob.
func (i *Issue) SetClassification(result classifier.Result) {
	payload, _ := json.Marshal(result)
	i.ClassificationJSON = string(payload)
}

// Classification decodes the stored blob, defaulting anything unreadable.
func (i *Issue) Classification() classifier.Result {
	if strings.TrimSpace(i.ClassificationJSON) == "" {
		return classifier.DefaultResult()
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(i.ClassificationJSON), &raw); err != nil {
		return classifier.DefaultResult()
	}
	return classifier.FormatResult(raw)
}
