package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"speechworks/internal/models"
	"speechworks/internal/service"
	"speechworks/internal/telemetry"
)

type memStore struct {
	mu          sync.Mutex
	sessions    map[int64]models.TherapySession
	assignments map[int64][]models.SessionActivityAssignment
	progress    []models.ProgressRecord
	progressErr error
	// saving receives when a save starts; saveGate then holds it until closed
	saving   chan struct{}
	saveGate chan struct{}

	activities []models.TherapyActivity
	clients    []models.Client
	// gate blocks catalog reads until closed
	gate chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		sessions:    make(map[int64]models.TherapySession),
		assignments: make(map[int64][]models.SessionActivityAssignment),
	}
}

func (m *memStore) ListSessions(_ context.Context, filter models.SessionFilter) ([]models.TherapySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TherapySession
	for _, s := range m.sessions {
		if filter.TherapistID == 0 || s.TherapistID == filter.TherapistID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetSession(_ context.Context, id int64) (*models.TherapySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, service.ErrNotFound)
	}
	return &s, nil
}

func (m *memStore) GetAssignments(_ context.Context, sessionID int64) ([]models.SessionActivityAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SessionActivityAssignment{}, m.assignments[sessionID]...), nil
}

func (m *memStore) UpdateSessionStatus(_ context.Context, id int64, status models.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %d: %w", id, service.ErrNotFound)
	}
	s.Status = status
	m.sessions[id] = s
	return nil
}

func (m *memStore) UpdateAssignment(_ context.Context, sessionID, id int64, upd models.AssignmentUpdate) (*models.SessionActivityAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.assignments[sessionID] {
		if a.ID == id {
			a.TrialsAttempted = upd.TrialsAttempted
			a.TrialsCorrect = upd.TrialsCorrect
			a.Notes = upd.Notes
			m.assignments[sessionID][i] = a
			return &a, nil
		}
	}
	return nil, fmt.Errorf("assignment %d: %w", id, service.ErrNotFound)
}

func (m *memStore) setAttempted(sessionID, assignmentID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.assignments[sessionID] {
		if a.ID == assignmentID {
			m.assignments[sessionID][i].TrialsAttempted = n
		}
	}
}

func (m *memStore) status(id int64) models.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id].Status
}

func (m *memStore) wait(ctx context.Context) error {
	if m.gate == nil {
		return nil
	}
	select {
	case <-m.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *memStore) ListActivities(ctx context.Context, _ models.ActivityFilter) ([]models.TherapyActivity, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TherapyActivity{}, m.activities...), nil
}

func (m *memStore) GetActivity(_ context.Context, id int64) (*models.TherapyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.activities {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, service.ErrNotFound
}

func (m *memStore) CategoryCounts(context.Context) ([]models.CategoryCount, error) {
	return nil, nil
}

func (m *memStore) ListClients(ctx context.Context, filter models.ClientFilter) ([]models.Client, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Client
	for _, c := range m.clients {
		if c.TherapistID == filter.TherapistID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetClient(_ context.Context, id int64) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, service.ErrNotFound
}

func (m *memStore) RecordProgress(_ context.Context, rec *models.ProgressRecord) error {
	if m.saveGate != nil {
		m.saving <- struct{}{}
		<-m.saveGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progressErr != nil {
		return m.progressErr
	}
	m.progress = append(m.progress, *rec)
	return nil
}

func (m *memStore) ListProgress(context.Context, int64, time.Time) ([]models.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ProgressRecord{}, m.progress...), nil
}

// fixture: therapist 1 has client 10 with an in-progress session 100 holding
// two assignments (1000 and 1001) for activities 7 and 8
func newFixture() *memStore {
	m := newMemStore()
	m.clients = []models.Client{
		{ID: 10, TherapistID: 1, FirstName: "Ada", IsActive: true},
		{ID: 20, TherapistID: 2, FirstName: "Bea", IsActive: true},
	}
	m.activities = []models.TherapyActivity{
		{ID: 7, Name: "Initial S", Category: models.CategoryArticulation, DifficultyLevel: 1, IsActive: true,
			Items: words("sun", "sock", "soap", "seal", "sand", "saw", "sofa", "sink", "salad", "seven", "soup", "sail")},
		{ID: 8, Name: "Loudness", Category: models.CategoryVoice, DifficultyLevel: 1, IsActive: true,
			Items: words("one", "two")},
	}
	m.sessions[100] = models.TherapySession{ID: 100, ClientID: 10, TherapistID: 1,
		ScheduledStart: time.Now().Add(-10 * time.Minute), DurationMinutes: 45, Status: models.StatusInProgress}
	m.sessions[200] = models.TherapySession{ID: 200, ClientID: 20, TherapistID: 2,
		ScheduledStart: time.Now(), DurationMinutes: 45, Status: models.StatusScheduled}
	m.assignments[100] = []models.SessionActivityAssignment{
		{ID: 1000, SessionID: 100, ActivityID: 7},
		{ID: 1001, SessionID: 100, ActivityID: 8},
	}
	return m
}

// addSession adds a client with a current session holding one assignment
func (m *memStore) addSession(client models.Client, session models.TherapySession, assignment models.SessionActivityAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = append(m.clients, client)
	m.sessions[session.ID] = session
	m.assignments[session.ID] = append(m.assignments[session.ID], assignment)
}

func (m *memStore) addActivity(a models.TherapyActivity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, a)
}

func words(ws ...string) []models.TrialItem {
	items := make([]models.TrialItem, len(ws))
	for i, w := range ws {
		items[i] = models.TrialItem{Word: w}
	}
	return items
}

// countingShuffle counts engine starts and resets and keeps item order
type countingShuffle struct{ n atomic.Int32 }

func (c *countingShuffle) shuffle(int, func(i, j int)) { c.n.Add(1) }

func newDeps(t *testing.T, m *memStore, shuffle *countingShuffle) Deps {
	logger := zaptest.NewLogger(t)
	metrics := telemetry.Nop()
	return Deps{
		Sessions:             service.NewSessionService(m, nil, logger, metrics),
		Catalog:              service.NewCatalogService(m, m),
		Practice:             service.NewPracticeService(m, m, logger),
		Logger:               logger,
		Metrics:              metrics,
		AutoCompleteInterval: 20 * time.Millisecond,
		RetryOffsets:         []time.Duration{5 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond},
		Shuffle:              shuffle.shuffle,
	}
}

var errSaveFailed = errors.New("progress store unavailable")
