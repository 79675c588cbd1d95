// Package workspace holds the per-therapist practice components: the session
// board, the activity host and the mailbox they share.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"speechworks/internal/handoff"
	"speechworks/internal/logging"
	"speechworks/internal/service"
	"speechworks/internal/telemetry"
	"speechworks/internal/trial"
)

// DefaultAutoCompleteInterval is how often an open session board re-evaluates
// its sessions
const DefaultAutoCompleteInterval = 30 * time.Second

var (
	ErrNoActiveRun    = errors.New("no practice run in progress")
	ErrCatalogLoading = errors.New("activities are still loading")
	ErrClosed         = errors.New("workspace registry is closed")
)

// Deps are the services shared by every workspace
type Deps struct {
	Sessions *service.SessionService
	Catalog  *service.CatalogService
	Practice *service.PracticeService
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics

	AutoCompleteInterval time.Duration
	RetryOffsets         []time.Duration
	// IdleTimeout closes a registry's workspaces that no request has used for
	// this long. Zero keeps them open until closed explicitly.
	IdleTimeout time.Duration
	// Shuffle orders each run's items. Nil shuffles uniformly at random.
	Shuffle trial.ShuffleFunc
}

func (d Deps) withDefaults() Deps {
	d.Logger = logging.OrNop(d.Logger)
	if d.AutoCompleteInterval <= 0 {
		d.AutoCompleteInterval = DefaultAutoCompleteInterval
	}
	if d.RetryOffsets == nil {
		d.RetryOffsets = handoff.DefaultRetryOffsets
	}
	return d
}

// Workspace is one therapist's session board and activity host
type Workspace struct {
	TherapistID int64
	Mailbox     *handoff.Mailbox
	Board       *SessionBoard
	Host        *ActivityHost
}

// Open creates a workspace and starts its background work
func Open(therapistID int64, deps Deps) *Workspace {
	deps = deps.withDefaults()
	mailbox := handoff.NewMailbox()
	w := &Workspace{
		TherapistID: therapistID,
		Mailbox:     mailbox,
		Board:       newSessionBoard(therapistID, mailbox, deps),
		Host:        newActivityHost(therapistID, mailbox, deps),
	}
	w.Board.start()
	w.Host.start()
	deps.Logger.Debug("workspace opened", zap.Int64("therapist_id", therapistID))
	return w
}

// Close stops the board's timer and the host's loaders and waits for them
func (w *Workspace) Close() {
	w.Host.Close()
	w.Board.Close()
}

// Registry opens workspaces on first use and closes them on request or once
// they have been idle for Deps.IdleTimeout
type Registry struct {
	deps Deps

	mu         sync.Mutex
	workspaces map[int64]*entry
	closed     bool

	stopSweep context.CancelFunc
	swept     chan struct{}
}

type entry struct {
	ws       *Workspace
	lastUsed time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(deps Deps) *Registry {
	r := &Registry{
		deps:       deps.withDefaults(),
		workspaces: make(map[int64]*entry),
	}
	if r.deps.IdleTimeout > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		r.stopSweep = cancel
		r.swept = make(chan struct{})
		go func() {
			defer close(r.swept)
			r.sweepLoop(ctx)
		}()
	}
	return r
}

// Get returns the therapist's workspace, opening it if needed
func (r *Registry) Get(therapistID int64) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if e, ok := r.workspaces[therapistID]; ok {
		e.lastUsed = time.Now()
		return e.ws, nil
	}
	w := Open(therapistID, r.deps)
	r.workspaces[therapistID] = &entry{ws: w, lastUsed: time.Now()}
	return w, nil
}

// Len returns the number of open workspaces
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// Close closes one therapist's workspace. It reports whether one was open.
func (r *Registry) Close(therapistID int64) bool {
	r.mu.Lock()
	e, ok := r.workspaces[therapistID]
	delete(r.workspaces, therapistID)
	r.mu.Unlock()

	if ok {
		e.ws.Close()
	}
	return ok
}

// CloseAll closes every workspace. Later calls to Get fail with ErrClosed.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	open := r.workspaces
	r.workspaces = make(map[int64]*entry)
	alreadyClosed := r.closed
	r.closed = true
	r.mu.Unlock()

	if r.stopSweep != nil && !alreadyClosed {
		r.stopSweep()
		<-r.swept
	}
	closeEntries(open)
	r.deps.Logger.Info("closed workspaces", zap.Int("count", len(open)))
}

func (r *Registry) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(max(r.deps.IdleTimeout/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

// sweep closes workspaces unused since now minus the idle timeout
func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	idle := make(map[int64]*entry)
	for id, e := range r.workspaces {
		if now.Sub(e.lastUsed) >= r.deps.IdleTimeout {
			idle[id] = e
			delete(r.workspaces, id)
		}
	}
	r.mu.Unlock()

	if len(idle) == 0 {
		return
	}
	closeEntries(idle)
	for id := range idle {
		r.deps.Logger.Debug("closed idle workspace", zap.Int64("therapist_id", id))
	}
}

func closeEntries(entries map[int64]*entry) {
	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.ws.Close()
		}()
	}
	wg.Wait()
}
