package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"speechworks/internal/logging"
	"speechworks/internal/models"
	"speechworks/internal/telemetry"
	"speechworks/internal/validation"
)

// Notifier is told once when a session transitions to completed on its own
type Notifier interface {
	SessionCompleted(ctx context.Context, session models.TherapySession) error
}

// SessionService owns session status transitions
type SessionService struct {
	sessions SessionStore
	notifier Notifier
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewSessionService creates a new session service. notifier may be nil.
func NewSessionService(sessions SessionStore, notifier Notifier, logger *zap.Logger, metrics *telemetry.Metrics) *SessionService {
	return &SessionService{
		sessions: sessions,
		notifier: notifier,
		logger:   logging.OrNop(logger),
		metrics:  metrics,
		now:      time.Now,
	}
}

// CheckStartWindow returns a *TimeWindowError when now falls outside the
// session's scheduled window. Both ends of the window are inclusive.
func CheckStartWindow(session models.TherapySession, now time.Time) error {
	start, end := session.Window()
	if now.Before(start) || now.After(end) {
		return &TimeWindowError{SessionID: session.ID, WindowStart: start, WindowEnd: end, Now: now}
	}
	return nil
}

// RequestStatusChange moves a session to target. Only the move to in progress is
// gated, on the session's time window; every other move is applied as asked.
func (s *SessionService) RequestStatusChange(ctx context.Context, sessionID int64, target models.SessionStatus) (*models.TherapySession, error) {
	if err := validation.ValidateSessionStatus(target); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if target == models.StatusInProgress {
		if err := CheckStartWindow(*session, s.now()); err != nil {
			s.logger.Info("session start rejected",
				zap.Int64("session_id", sessionID),
				zap.Error(err))
			return nil, err
		}
	}

	if err := s.sessions.UpdateSessionStatus(ctx, sessionID, target); err != nil {
		return nil, err
	}

	s.logger.Info("session status changed",
		zap.Int64("session_id", sessionID),
		zap.String("from", string(session.Status)),
		zap.String("to", string(target)))
	session.Status = target
	return session, nil
}

// EvaluateAutoCompletion reports whether an in-progress session has every one of
// its assignments attempted. A session with no assignments never completes on
// its own.
func EvaluateAutoCompletion(session models.TherapySession, assignments []models.SessionActivityAssignment) bool {
	if session.Status != models.StatusInProgress || len(assignments) == 0 {
		return false
	}
	for _, a := range assignments {
		if !a.Attempted() {
			return false
		}
	}
	return true
}

// ApplyAutoCompletion completes session when EvaluateAutoCompletion says so and
// updates it in place. It returns true only for the call that performed the
// transition; repeated calls are no-ops and notify nobody.
func (s *SessionService) ApplyAutoCompletion(ctx context.Context, session *models.TherapySession, assignments []models.SessionActivityAssignment) (bool, error) {
	if !EvaluateAutoCompletion(*session, assignments) {
		return false, nil
	}

	// Another holder of this session may have completed it already.
	current, err := s.sessions.GetSession(ctx, session.ID)
	if err != nil {
		return false, err
	}
	if current.Status != models.StatusInProgress {
		*session = *current
		return false, nil
	}

	if err := s.sessions.UpdateSessionStatus(ctx, session.ID, models.StatusCompleted); err != nil {
		return false, fmt.Errorf("failed to auto-complete session %d: %w", session.ID, err)
	}
	session.Status = models.StatusCompleted

	s.logger.Info("session auto-completed",
		zap.Int64("session_id", session.ID),
		zap.Int("assignments", len(assignments)))
	s.metrics.AutoCompleted(ctx)

	if s.notifier != nil {
		if err := s.notifier.SessionCompleted(ctx, *session); err != nil {
			s.logger.Warn("session completion notice failed",
				zap.Int64("session_id", session.ID),
				zap.Error(err))
		}
	}
	return true, nil
}

// ListSessions returns sessions matching filter
func (s *SessionService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.TherapySession, error) {
	for _, st := range filter.Statuses {
		if err := validation.ValidateSessionStatus(st); err != nil {
			return nil, err
		}
	}
	return s.sessions.ListSessions(ctx, filter)
}

// Today returns a therapist's sessions scheduled for the current day
func (s *SessionService) Today(ctx context.Context, therapistID int64) ([]models.TherapySession, error) {
	now := s.now()
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)
	return s.sessions.ListSessions(ctx, models.SessionFilter{TherapistID: therapistID, From: &from, To: &to})
}

// Upcoming returns a therapist's scheduled or running sessions over the next days days
func (s *SessionService) Upcoming(ctx context.Context, therapistID int64, days int) ([]models.TherapySession, error) {
	if err := validation.ValidateRange("days", days, 1, 30); err != nil {
		return nil, err
	}
	from := s.now()
	to := from.AddDate(0, 0, days)
	return s.sessions.ListSessions(ctx, models.SessionFilter{
		TherapistID: therapistID,
		From:        &from,
		To:          &to,
		Statuses:    []models.SessionStatus{models.StatusScheduled, models.StatusInProgress},
	})
}

// GetSession returns one session
func (s *SessionService) GetSession(ctx context.Context, id int64) (*models.TherapySession, error) {
	return s.sessions.GetSession(ctx, id)
}

// GetAssignments returns a session's activity assignments
func (s *SessionService) GetAssignments(ctx context.Context, sessionID int64) ([]models.SessionActivityAssignment, error) {
	return s.sessions.GetAssignments(ctx, sessionID)
}
