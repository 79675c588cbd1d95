package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"speechworks/internal/handoff"
	"speechworks/internal/models"
	"speechworks/internal/service"
	"speechworks/internal/telemetry"
)

// SessionView is a visible session and its assignments
type SessionView struct {
	models.TherapySession
	Assignments []models.SessionActivityAssignment `json:"assignments"`
}

// BoardView is what the session board shows after a read. Focus is the session
// a practice run returned to since the previous read, or 0.
type BoardView struct {
	Sessions []SessionView `json:"sessions"`
	Focus    int64         `json:"focus_session_id,omitempty"`
}

// SessionBoard is a therapist's session list. While open it re-evaluates the
// visible sessions for auto-completion on a fixed interval and refocuses when
// a practice run hands control back.
type SessionBoard struct {
	therapistID int64
	mailbox     *handoff.Mailbox
	sessions    *service.SessionService
	catalog     *service.CatalogService
	interval    time.Duration
	logger      *zap.Logger
	metrics     *telemetry.Metrics

	mu          sync.Mutex
	filter      models.SessionFilter
	visible     []models.TherapySession
	assignments map[int64][]models.SessionActivityAssignment
	focus       int64

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSessionBoard(therapistID int64, mailbox *handoff.Mailbox, deps Deps) *SessionBoard {
	return &SessionBoard{
		therapistID: therapistID,
		mailbox:     mailbox,
		sessions:    deps.Sessions,
		catalog:     deps.Catalog,
		interval:    deps.AutoCompleteInterval,
		logger:      deps.Logger.With(zap.String("component", "session_board"), zap.Int64("therapist_id", therapistID)),
		metrics:     deps.Metrics,
		assignments: make(map[int64][]models.SessionActivityAssignment),
		done:        make(chan struct{}),
	}
}

func (b *SessionBoard) start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	returns, stopWatch := b.mailbox.WatchReturn()
	go func() {
		defer close(b.done)
		defer stopWatch()
		b.loop(ctx, returns)
	}()
}

func (b *SessionBoard) loop(ctx context.Context, returns <-chan struct{}) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
				b.logger.Warn("auto-completion refresh failed", zap.Error(err))
			}
		case <-returns:
			if err := b.resume(ctx); err != nil && ctx.Err() == nil {
				b.logger.Warn("failed to resume session after practice", zap.Error(err))
			}
		}
	}
}

// Close stops the recurring refresh and waits for it to exit
func (b *SessionBoard) Close() {
	b.closeOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
			<-b.done
		}
	})
}

// Load lists the therapist's sessions matching filter, loads their assignments
// and applies auto-completion. A pending return token is consumed first.
func (b *SessionBoard) Load(ctx context.Context, filter models.SessionFilter) (BoardView, error) {
	filter.TherapistID = b.therapistID

	b.mu.Lock()
	defer b.mu.Unlock()

	b.takeReturnLocked()

	list, err := b.sessions.ListSessions(ctx, filter)
	if err != nil {
		return BoardView{}, err
	}

	b.filter = filter
	b.visible = list
	b.assignments = make(map[int64][]models.SessionActivityAssignment, len(list))
	for i := range b.visible {
		if err := b.reloadLocked(ctx, &b.visible[i]); err != nil {
			return BoardView{}, err
		}
	}
	return b.viewLocked(), nil
}

// View returns the visible sessions without reloading them. A pending return
// token is consumed and its session reloaded.
func (b *SessionBoard) View(ctx context.Context) (BoardView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if id, ok := b.takeReturnLocked(); ok {
		if s := b.findLocked(id); s != nil {
			if err := b.reloadLocked(ctx, s); err != nil {
				return BoardView{}, err
			}
		}
	}
	return b.viewLocked(), nil
}

// Refresh reloads the assignments of every visible session and applies
// auto-completion to each
func (b *SessionBoard) Refresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.visible {
		if err := b.reloadLocked(ctx, &b.visible[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReloadSession reloads one session's assignments, applies auto-completion and
// returns the result. The session does not have to be visible.
func (b *SessionBoard) ReloadSession(ctx context.Context, sessionID int64) (SessionView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.findLocked(sessionID)
	if s == nil {
		fresh, err := b.ownedSession(ctx, sessionID)
		if err != nil {
			return SessionView{}, err
		}
		s = fresh
	}
	if err := b.reloadLocked(ctx, s); err != nil {
		return SessionView{}, err
	}
	return SessionView{TherapySession: *s, Assignments: b.assignments[s.ID]}, nil
}

// RequestStatusChange moves one of the therapist's sessions to status
func (b *SessionBoard) RequestStatusChange(ctx context.Context, sessionID int64, status models.SessionStatus) (*models.TherapySession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.ownedSession(ctx, sessionID); err != nil {
		return nil, err
	}
	updated, err := b.sessions.RequestStatusChange(ctx, sessionID, status)
	if err != nil {
		return nil, err
	}
	if s := b.findLocked(sessionID); s != nil {
		*s = *updated
	}
	return updated, nil
}

// Practice publishes a request to practice an assignment's activity for the
// session's client. The activity host picks it up when it is ready. A request
// whose activity is inactive or whose client is not an active client of the
// therapist is refused as not found.
func (b *SessionBoard) Practice(ctx context.Context, sessionID, assignmentID int64) (handoff.Request, error) {
	b.mu.Lock()
	session, err := b.ownedSession(ctx, sessionID)
	if err != nil {
		b.mu.Unlock()
		return handoff.Request{}, err
	}
	assignments, err := b.sessions.GetAssignments(ctx, sessionID)
	b.mu.Unlock()
	if err != nil {
		return handoff.Request{}, err
	}

	var assignment *models.SessionActivityAssignment
	for i := range assignments {
		if assignments[i].ID == assignmentID {
			assignment = &assignments[i]
			break
		}
	}
	if assignment == nil {
		return handoff.Request{}, fmt.Errorf("assignment %d in session %d: %w", assignmentID, sessionID, service.ErrNotFound)
	}
	if _, err := b.catalog.ActiveActivity(ctx, assignment.ActivityID); err != nil {
		return handoff.Request{}, err
	}
	if _, err := b.catalog.TherapistClient(ctx, b.therapistID, session.ClientID); err != nil {
		return handoff.Request{}, err
	}

	req := b.mailbox.Publish(handoff.Request{
		ActivityID: assignment.ActivityID,
		ClientID:   session.ClientID,
		Origin:     &models.Origin{SessionID: sessionID, AssignmentID: assignmentID},
	})
	b.metrics.HandoffPublished(ctx, true)
	b.logger.Info("practice requested",
		zap.String("request_id", req.ID),
		zap.Int64("session_id", sessionID),
		zap.Int64("assignment_id", assignmentID))
	return req, nil
}

// resume handles a return token delivered while the board is open
func (b *SessionBoard) resume(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.takeReturnLocked()
	if !ok {
		return nil
	}
	if s := b.findLocked(id); s != nil {
		return b.reloadLocked(ctx, s)
	}
	return nil
}

func (b *SessionBoard) takeReturnLocked() (int64, bool) {
	tok, ok := b.mailbox.ConsumeReturn()
	if !ok {
		return 0, false
	}
	b.focus = tok.SessionID
	b.logger.Debug("return token consumed", zap.Int64("session_id", tok.SessionID))
	return tok.SessionID, true
}

func (b *SessionBoard) reloadLocked(ctx context.Context, s *models.TherapySession) error {
	assignments, err := b.sessions.GetAssignments(ctx, s.ID)
	if err != nil {
		return err
	}
	b.assignments[s.ID] = assignments

	if _, err := b.sessions.ApplyAutoCompletion(ctx, s, assignments); err != nil {
		return err
	}
	return nil
}

func (b *SessionBoard) findLocked(sessionID int64) *models.TherapySession {
	for i := range b.visible {
		if b.visible[i].ID == sessionID {
			return &b.visible[i]
		}
	}
	return nil
}

// ownedSession loads a session and hides other therapists' sessions as not found
func (b *SessionBoard) ownedSession(ctx context.Context, sessionID int64) (*models.TherapySession, error) {
	s, err := b.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.TherapistID != b.therapistID {
		return nil, fmt.Errorf("session %d: %w", sessionID, service.ErrNotFound)
	}
	return s, nil
}

// viewLocked reports the focus once and clears it
func (b *SessionBoard) viewLocked() BoardView {
	view := BoardView{Sessions: make([]SessionView, 0, len(b.visible)), Focus: b.focus}
	b.focus = 0
	for _, s := range b.visible {
		view.Sessions = append(view.Sessions, SessionView{TherapySession: s, Assignments: b.assignments[s.ID]})
	}
	return view
}
