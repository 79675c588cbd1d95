package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"speechworks/internal/database"
	"speechworks/internal/models"
)

// SessionRepository handles therapy sessions and their activity assignments
type SessionRepository struct {
	db  database.DBTX
	now func() time.Time
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db database.DBTX) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

const sessionColumns = `id, client_id, therapist_id, session_date, duration_minutes, status,
		       session_notes, soap_subjective, soap_objective, soap_assessment, soap_plan,
		       created_at, updated_at`

// CreateSession inserts a session, setting s.ID. An empty status is stored as scheduled.
func (r *SessionRepository) CreateSession(ctx context.Context, s *models.TherapySession) error {
	if s.Status == "" {
		s.Status = models.StatusScheduled
	}
	now := dbTime(r.now())
	query := `
		INSERT INTO therapy_sessions (client_id, therapist_id, session_date, duration_minutes, status,
			session_notes, soap_subjective, soap_objective, soap_assessment, soap_plan, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		s.ClientID, s.TherapistID, dbTime(s.ScheduledStart), s.DurationMinutes, string(s.Status),
		s.SessionNotes, s.SOAPSubjective, s.SOAPObjective, s.SOAPAssessment, s.SOAPPlan, now, now)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.ID = id
	s.CreatedAt, s.UpdatedAt = now, now
	return nil
}

// GetSession retrieves a session by ID
func (r *SessionRepository) GetSession(ctx context.Context, id int64) (*models.TherapySession, error) {
	query := "SELECT " + sessionColumns + " FROM therapy_sessions WHERE id = ?"
	s, err := scanSession(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// ListSessions returns sessions matching filter ordered by start time
func (r *SessionRepository) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.TherapySession, error) {
	var where []string
	var args []any

	if filter.TherapistID != 0 {
		where = append(where, "therapist_id = ?")
		args = append(args, filter.TherapistID)
	}
	if filter.ClientID != 0 {
		where = append(where, "client_id = ?")
		args = append(args, filter.ClientID)
	}
	if filter.From != nil {
		where = append(where, "session_date >= ?")
		args = append(args, dbTime(*filter.From))
	}
	if filter.To != nil {
		where = append(where, "session_date < ?")
		args = append(args, dbTime(*filter.To))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}

	query := "SELECT " + sessionColumns + " FROM therapy_sessions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY session_date, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.TherapySession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// UpdateSessionStatus stores a new status for a session
func (r *SessionRepository) UpdateSessionStatus(ctx context.Context, id int64, status models.SessionStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE therapy_sessions SET status = ?, updated_at = ? WHERE id = ?",
		string(status), dbTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	return expectOneRow(res, "session", id)
}

// AddAssignment links an activity to a session, setting a.ID
func (r *SessionRepository) AddAssignment(ctx context.Context, a *models.SessionActivityAssignment) error {
	a.AccuracyPercentage = assignmentAccuracy(a.TrialsAttempted, a.TrialsCorrect, a.AccuracyPercentage)
	query := `
		INSERT INTO session_activities (session_id, activity_id, trials_attempted, trials_correct, accuracy_percentage, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		a.SessionID, a.ActivityID, a.TrialsAttempted, a.TrialsCorrect, a.AccuracyPercentage, a.Notes)
	if err != nil {
		return fmt.Errorf("failed to add assignment: %w", err)
	}
	a.ID = id
	return nil
}

// GetAssignment retrieves one assignment by ID
func (r *SessionRepository) GetAssignment(ctx context.Context, id int64) (*models.SessionActivityAssignment, error) {
	query := `
		SELECT id, session_id, activity_id, trials_attempted, trials_correct, accuracy_percentage, notes, created_at
		FROM session_activities
		WHERE id = ?
	`
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// GetAssignments returns a session's assignments in the order they were added
func (r *SessionRepository) GetAssignments(ctx context.Context, sessionID int64) ([]models.SessionActivityAssignment, error) {
	query := `
		SELECT id, session_id, activity_id, trials_attempted, trials_correct, accuracy_percentage, notes, created_at
		FROM session_activities
		WHERE session_id = ?
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	assignments := []models.SessionActivityAssignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, *a)
	}
	return assignments, rows.Err()
}

// UpdateAssignment writes a trial outcome to one of a session's assignments and
// recomputes its accuracy. The updated assignment is returned.
func (r *SessionRepository) UpdateAssignment(ctx context.Context, sessionID, id int64, upd models.AssignmentUpdate) (*models.SessionActivityAssignment, error) {
	accuracy := assignmentAccuracy(upd.TrialsAttempted, upd.TrialsCorrect, 0)
	res, err := r.db.ExecContext(ctx, `
		UPDATE session_activities
		SET trials_attempted = ?, trials_correct = ?, accuracy_percentage = ?, notes = ?
		WHERE id = ? AND session_id = ?
	`, upd.TrialsAttempted, upd.TrialsCorrect, accuracy, upd.Notes, id, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}
	if err := expectOneRow(res, "assignment", id); err != nil {
		return nil, err
	}
	return r.GetAssignment(ctx, id)
}

// assignmentAccuracy derives accuracy from counts when any trial was attempted
func assignmentAccuracy(attempted, correct int, fallback float64) float64 {
	if attempted > 0 {
		return float64(correct) * 100 / float64(attempted)
	}
	return fallback
}

func scanSession(row rowScanner) (*models.TherapySession, error) {
	s := &models.TherapySession{}
	var status string
	err := row.Scan(
		&s.ID,
		&s.ClientID,
		&s.TherapistID,
		&s.ScheduledStart,
		&s.DurationMinutes,
		&status,
		&s.SessionNotes,
		&s.SOAPSubjective,
		&s.SOAPObjective,
		&s.SOAPAssessment,
		&s.SOAPPlan,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	return s, nil
}

func scanAssignment(row rowScanner) (*models.SessionActivityAssignment, error) {
	a := &models.SessionActivityAssignment{}
	err := row.Scan(
		&a.ID,
		&a.SessionID,
		&a.ActivityID,
		&a.TrialsAttempted,
		&a.TrialsCorrect,
		&a.AccuracyPercentage,
		&a.Notes,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}
