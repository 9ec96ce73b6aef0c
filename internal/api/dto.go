package api

import (
	"time"

	"tellnow/backend/internal/classifier"
	"tellnow/backend/internal/store"
)

// ClassifyRequest is the body accepted by the classify endpoint.
type ClassifyRequest struct {
	Text string `json:"text"`
	Cap  string `json:"cap"`
}

// IssueDTO is the API representation for a persisted issue.
type IssueDTO struct {
	ID               uint              `json:"id"`
	Text             string            `json:"text"`
	Cap              string            `json:"cap"`
	Source           string            `json:"source"`
	Classification   classifier.Result `json:"classification"`
	Status           string            `json:"status"`
	Reason           string            `json:"reason,omitempty"`
	RequestID        string            `json:"request_id,omitempty"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Timestamp        time.Time         `json:"timestamp"`
}

// IssueFromModel converts a store row into its API shape.
func IssueFromModel(issue store.Issue) IssueDTO {
	return IssueDTO{
		ID:               issue.ID,
		Text:             issue.Text,
		Cap:              issue.Cap,
		Source:           issue.Source,
		Classification:   issue.Classification(),
		Status:           issue.Status,
		Reason:           issue.StatusReason,
		RequestID:        issue.RequestID,
		ProcessingTimeMs: issue.ProcessingTimeMs,
		Timestamp:        issue.CreatedAt,
	}
}

// IssuesResponse holds a page of issues and the filtered total.
type IssuesResponse struct {
	Items []IssueDTO `json:"items"`
	Total int64      `json:"total"`
}

// RecentIssueDTO flattens the classification next to the report for dashboards.
type RecentIssueDTO struct {
	ID          uint       `json:"id"`
	Text        string     `json:"text"`
	Cap         string     `json:"cap"`
	Category    string     `json:"category"`
	Urgency     string     `json:"urgency"`
	Explanation string     `json:"explanation"`
	City        string     `json:"city"`
	Coordinates [2]float64 `json:"coordinates"`
	Timestamp   time.Time  `json:"timestamp"`
}

// RecentIssueFromModel flattens a stored issue.
func RecentIssueFromModel(issue store.Issue) RecentIssueDTO {
	result := issue.Classification()
	return RecentIssueDTO{
		ID:          issue.ID,
		Text:        issue.Text,
		Cap:         issue.Cap,
		Category:    result.Category,
		Urgency:     result.Urgency,
		Explanation: result.Explanation,
		City:        result.City,
		Coordinates: result.Coordinates,
		Timestamp:   issue.CreatedAt,
	}
}

// StatsResponse is the dashboard summary.
type StatsResponse struct {
	Total                  int64            `json:"total"`
	HighUrgencyCount       int64            `json:"high_urgency_count"`
	TopCategory            *string          `json:"top_category"`
	TopZone                *string          `json:"top_zone"`
	CategoriesDistribution map[string]int64 `json:"categories_distribution"`
	ZonesDistribution      map[string]int64 `json:"zones_distribution"`
	RecentIssues           []RecentIssueDTO `json:"recent_issues"`
}

// StatsFromModel converts aggregated store stats.
func StatsFromModel(stats store.Stats) StatsResponse {
	recent := make([]RecentIssueDTO, 0, len(stats.Recent))
	for _, issue := range stats.Recent {
		recent = append(recent, RecentIssueFromModel(issue))
	}
	return StatsResponse{
		Total:                  stats.Total,
		HighUrgencyCount:       stats.HighUrgency,
		TopCategory:            stats.TopCategory,
		TopZone:                stats.TopZone,
		CategoriesDistribution: stats.Categories,
		ZonesDistribution:      stats.Zones,
		RecentIssues:           recent,
	}
}
