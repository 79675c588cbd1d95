package service

import (
	"context"
	"math"
	"time"

	"speechworks/internal/models"
	"speechworks/internal/validation"
)

// ProgressService summarizes a client's recorded progress
type ProgressService struct {
	progress ProgressStore
	clients  ClientStore
	now      func() time.Time
}

// NewProgressService creates a new progress service
func NewProgressService(progress ProgressStore, clients ClientStore) *ProgressService {
	return &ProgressService{progress: progress, clients: clients, now: time.Now}
}

// Summarize returns one summary per category with records in the last days days.
// The improvement trend is the average of the later half of the period minus the
// average of the earlier half; a half with no records counts as 0.
func (s *ProgressService) Summarize(ctx context.Context, clientID int64, days int) ([]models.ProgressSummary, error) {
	if err := validation.ValidateRange("days", days, 7, 365); err != nil {
		return nil, err
	}
	if _, err := s.clients.GetClient(ctx, clientID); err != nil {
		return nil, err
	}

	now := s.now()
	cutoff := now.AddDate(0, 0, -days)
	midpoint := now.AddDate(0, 0, -(days / 2))

	records, err := s.progress.ListProgress(ctx, clientID, cutoff)
	if err != nil {
		return nil, err
	}

	type acc struct {
		all, early, late []float64
	}
	byCategory := make(map[models.ActivityCategory]*acc)
	for _, r := range records {
		a := byCategory[r.Category]
		if a == nil {
			a = &acc{}
			byCategory[r.Category] = a
		}
		a.all = append(a.all, r.AccuracyPercentage)
		if r.RecordDate.Before(midpoint) {
			a.early = append(a.early, r.AccuracyPercentage)
		} else {
			a.late = append(a.late, r.AccuracyPercentage)
		}
	}

	summaries := []models.ProgressSummary{}
	for _, c := range models.Categories {
		a, ok := byCategory[c]
		if !ok {
			continue
		}
		summaries = append(summaries, models.ProgressSummary{
			Category:         c,
			AvgAccuracy:      round1(mean(a.all)),
			TotalSessions:    len(a.all),
			ImprovementTrend: round1(mean(a.late) - mean(a.early)),
		})
	}
	return summaries, nil
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
