package models

import "time"

// SessionStatus is the lifecycle state of a therapy session
type SessionStatus string

const (
	StatusScheduled  SessionStatus = "scheduled"
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusCancelled  SessionStatus = "cancelled"
)

// Valid reports whether s is a known session status
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TherapySession is a scheduled appointment between a therapist and a client
type TherapySession struct {
	ID              int64         `json:"id"`
	ClientID        int64         `json:"client_id"`
	TherapistID     int64         `json:"therapist_id"`
	ScheduledStart  time.Time     `json:"session_date"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          SessionStatus `json:"status"`
	SessionNotes    string        `json:"session_notes,omitempty"`
	SOAPSubjective  string        `json:"soap_subjective,omitempty"`
	SOAPObjective   string        `json:"soap_objective,omitempty"`
	SOAPAssessment  string        `json:"soap_assessment,omitempty"`
	SOAPPlan        string        `json:"soap_plan,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Window returns the instants between which the session may be started
func (s TherapySession) Window() (time.Time, time.Time) {
	return s.ScheduledStart, s.ScheduledStart.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// SessionActivityAssignment links an activity to a session and carries that
// activity's trial outcomes within the session
type SessionActivityAssignment struct {
	ID                 int64     `json:"id"`
	SessionID          int64     `json:"session_id"`
	ActivityID         int64     `json:"activity_id"`
	TrialsAttempted    int       `json:"trials_attempted"`
	TrialsCorrect      int       `json:"trials_correct"`
	AccuracyPercentage float64   `json:"accuracy_percentage"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Attempted reports whether the activity counts as done for its session.
// A single attempted trial is enough, regardless of how many the activity offers.
func (a SessionActivityAssignment) Attempted() bool {
	return a.TrialsAttempted > 0
}

// AssignmentUpdate carries the trial outcome written back to an assignment
type AssignmentUpdate struct {
	TrialsAttempted int
	TrialsCorrect   int
	Notes           string
}

// SessionFilter narrows a session listing. Zero values mean "any".
type SessionFilter struct {
	TherapistID int64
	ClientID    int64
	From        *time.Time
	To          *time.Time
	Statuses    []SessionStatus
	Limit       int
}

// Origin identifies the session assignment a practice run was started from
type Origin struct {
	SessionID    int64 `json:"session_id"`
	AssignmentID int64 `json:"assignment_id"`
}
