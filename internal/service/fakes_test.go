package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"speechworks/internal/database"
	"speechworks/internal/models"
)

type fakeSessionStore struct {
	mu          sync.Mutex
	sessions    map[int64]models.TherapySession
	assignments map[int64][]models.SessionActivityAssignment

	statusWrites     int
	lastFilter       models.SessionFilter
	updateAssignErr  error
	assignmentWrites []models.AssignmentUpdate
}

func newFakeSessionStore(sessions ...models.TherapySession) *fakeSessionStore {
	f := &fakeSessionStore{
		sessions:    make(map[int64]models.TherapySession),
		assignments: make(map[int64][]models.SessionActivityAssignment),
	}
	for _, s := range sessions {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessionStore) ListSessions(_ context.Context, filter models.SessionFilter) ([]models.TherapySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	var out []models.TherapySession
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSessionStore) GetSession(_ context.Context, id int64) (*models.TherapySession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return &s, nil
}

func (f *fakeSessionStore) GetAssignments(_ context.Context, sessionID int64) ([]models.SessionActivityAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SessionActivityAssignment{}, f.assignments[sessionID]...), nil
}

func (f *fakeSessionStore) UpdateSessionStatus(_ context.Context, id int64, status models.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	s.Status = status
	f.sessions[id] = s
	f.statusWrites++
	return nil
}

func (f *fakeSessionStore) UpdateAssignment(_ context.Context, sessionID, id int64, upd models.AssignmentUpdate) (*models.SessionActivityAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateAssignErr != nil {
		return nil, f.updateAssignErr
	}
	f.assignmentWrites = append(f.assignmentWrites, upd)
	for i, a := range f.assignments[sessionID] {
		if a.ID == id {
			a.TrialsAttempted = upd.TrialsAttempted
			a.TrialsCorrect = upd.TrialsCorrect
			a.Notes = upd.Notes
			f.assignments[sessionID][i] = a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("assignment %d: %w", id, ErrNotFound)
}

func (f *fakeSessionStore) status(id int64) models.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id].Status
}

type fakeProgressStore struct {
	mu      sync.Mutex
	records []models.ProgressRecord
	err     error
	since   time.Time
}

func (f *fakeProgressStore) RecordProgress(_ context.Context, rec *models.ProgressRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeProgressStore) ListProgress(_ context.Context, clientID int64, since time.Time) ([]models.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	var out []models.ProgressRecord
	for _, r := range f.records {
		if r.ClientID == clientID && !r.RecordDate.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeClientStore struct {
	clients map[int64]models.Client
}

func (f *fakeClientStore) ListClients(_ context.Context, filter models.ClientFilter) ([]models.Client, error) {
	var out []models.Client
	for _, c := range f.clients {
		if filter.TherapistID != 0 && c.TherapistID != filter.TherapistID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClientStore) GetClient(_ context.Context, id int64) (*models.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls []int64
	err   error
}

func (n *countingNotifier) SessionCompleted(_ context.Context, s models.TherapySession) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, s.ID)
	return n.err
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fsys, err := database.MigrationsFS("")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(context.Background(), fsys, nil))
	return db
}
