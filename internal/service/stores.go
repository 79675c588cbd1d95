package service

import (
	"context"
	"time"

	"speechworks/internal/models"
	"speechworks/internal/repository"
)

// SessionStore is the session persistence the lifecycle manager and the
// practice save path depend on
type SessionStore interface {
	ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.TherapySession, error)
	GetSession(ctx context.Context, id int64) (*models.TherapySession, error)
	GetAssignments(ctx context.Context, sessionID int64) ([]models.SessionActivityAssignment, error)
	UpdateSessionStatus(ctx context.Context, id int64, status models.SessionStatus) error
	UpdateAssignment(ctx context.Context, sessionID, id int64, upd models.AssignmentUpdate) (*models.SessionActivityAssignment, error)
}

// ActivityStore is the activity catalog
type ActivityStore interface {
	ListActivities(ctx context.Context, filter models.ActivityFilter) ([]models.TherapyActivity, error)
	GetActivity(ctx context.Context, id int64) (*models.TherapyActivity, error)
	CategoryCounts(ctx context.Context) ([]models.CategoryCount, error)
}

// ClientStore is the client directory
type ClientStore interface {
	ListClients(ctx context.Context, filter models.ClientFilter) ([]models.Client, error)
	GetClient(ctx context.Context, id int64) (*models.Client, error)
}

// ProgressStore records and reads dated accuracy measurements
type ProgressStore interface {
	RecordProgress(ctx context.Context, rec *models.ProgressRecord) error
	ListProgress(ctx context.Context, clientID int64, since time.Time) ([]models.ProgressRecord, error)
}

var (
	_ SessionStore  = (*repository.SessionRepository)(nil)
	_ ActivityStore = (*repository.ActivityRepository)(nil)
	_ ClientStore   = (*repository.ClientRepository)(nil)
	_ ProgressStore = (*repository.ProgressRepository)(nil)
)
