package models

import "time"

// ProgressRecord is one dated accuracy measurement for a client in a category
type ProgressRecord struct {
	ID                 int64            `json:"id"`
	ClientID           int64            `json:"client_id"`
	GoalID             *int64           `json:"goal_id,omitempty"`
	RecordDate         time.Time        `json:"record_date"`
	Category           ActivityCategory `json:"category"`
	AccuracyPercentage float64          `json:"accuracy_percentage"`
	TrialsTotal        int              `json:"trials_total"`
	Notes              string           `json:"notes,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// ProgressSummary aggregates a client's progress records for one category
type ProgressSummary struct {
	Category         ActivityCategory `json:"category"`
	AvgAccuracy      float64          `json:"avg_accuracy"`
	TotalSessions    int              `json:"total_sessions"`
	ImprovementTrend float64          `json:"improvement_trend"`
}
