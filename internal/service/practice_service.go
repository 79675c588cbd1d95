package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"speechworks/internal/logging"
	"speechworks/internal/models"
	"speechworks/internal/trial"
	"speechworks/internal/validation"
)

// SaveOutcome reports whether a finished trial run reached the stores.
// The run's result is kept either way.
type SaveOutcome struct {
	Saved      bool
	Err        error
	Progress   *models.ProgressRecord
	Assignment *models.SessionActivityAssignment
}

// PracticeService persists finished trial runs
type PracticeService struct {
	sessions SessionStore
	progress ProgressStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewPracticeService creates a new practice service
func NewPracticeService(sessions SessionStore, progress ProgressStore, logger *zap.Logger) *PracticeService {
	return &PracticeService{
		sessions: sessions,
		progress: progress,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// SaveResult records a progress entry for the run and, when the run was started
// from a session, writes its counts to the originating assignment. Both writes
// are attempted; any failure marks the outcome as not saved.
func (s *PracticeService) SaveResult(ctx context.Context, activity models.TherapyActivity, result trial.Result, origin *models.Origin) SaveOutcome {
	if err := validation.ValidateTrialCounts(result.TrialsAttempted, result.TrialsCorrect); err != nil {
		return SaveOutcome{Err: err}
	}

	var out SaveOutcome
	var errs []error

	rec := &models.ProgressRecord{
		ClientID:           result.ClientID,
		RecordDate:         s.now(),
		Category:           activity.Category,
		AccuracyPercentage: result.AccuracyPercentage,
		TrialsTotal:        result.TrialsAttempted,
		Notes:              practiceNotes(activity, result),
	}
	if err := s.progress.RecordProgress(ctx, rec); err != nil {
		errs = append(errs, fmt.Errorf("record progress: %w", err))
	} else {
		out.Progress = rec
	}

	if origin != nil {
		updated, err := s.sessions.UpdateAssignment(ctx, origin.SessionID, origin.AssignmentID, models.AssignmentUpdate{
			TrialsAttempted: result.TrialsAttempted,
			TrialsCorrect:   result.TrialsCorrect,
			Notes:           practiceNotes(activity, result),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("update assignment %d: %w", origin.AssignmentID, err))
		} else {
			out.Assignment = updated
		}
	}

	out.Err = errors.Join(errs...)
	out.Saved = out.Err == nil
	if !out.Saved {
		s.logger.Warn("practice result not saved",
			zap.Int64("client_id", result.ClientID),
			zap.Int64("activity_id", result.ActivityID),
			zap.Error(out.Err))
		return out
	}

	s.logger.Info("practice result saved",
		zap.Int64("client_id", result.ClientID),
		zap.Int64("activity_id", result.ActivityID),
		zap.Int("trials", result.TrialsAttempted),
		zap.Float64("accuracy", result.AccuracyPercentage))
	return out
}

func practiceNotes(activity models.TherapyActivity, result trial.Result) string {
	return fmt.Sprintf("%s: %d/%d correct", activity.Name, result.TrialsCorrect, result.TrialsAttempted)
}
