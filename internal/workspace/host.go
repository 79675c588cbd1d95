package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"speechworks/internal/handoff"
	"speechworks/internal/models"
	"speechworks/internal/service"
	"speechworks/internal/telemetry"
	"speechworks/internal/trial"
)

// RunOutcome is the result of a finished practice run. The result is reported
// even when saving it failed.
type RunOutcome struct {
	Result     trial.Result `json:"result"`
	Category   string       `json:"category"`
	Saved      bool         `json:"saved"`
	SaveError  string       `json:"save_error,omitempty"`
	ReturnedTo int64        `json:"returned_to_session_id,omitempty"`
}

// HostView is what the activity host shows
type HostView struct {
	Loaded bool            `json:"loaded"`
	Run    *trial.Snapshot `json:"run,omitempty"`
	Last   *RunOutcome     `json:"last_outcome,omitempty"`
}

// ActivityHost runs one practice run at a time for a therapist. It loads the
// activity catalog and client directory in the background and starts runs from
// practice requests once both are available.
type ActivityHost struct {
	therapistID int64
	mailbox     *handoff.Mailbox
	catalog     *service.CatalogService
	practice    *service.PracticeService
	reconciler  *handoff.Reconciler
	shuffle     trial.ShuffleFunc
	logger      *zap.Logger
	metrics     *telemetry.Metrics

	// loaded is closed once activities and clients are in memory
	loaded chan struct{}

	mu         sync.Mutex
	activities map[int64]models.TherapyActivity
	clients    map[int64]models.Client
	engine     *trial.Engine
	// runs counts started runs so a finishing run can tell it was superseded
	runs uint64
	last *RunOutcome

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newActivityHost(therapistID int64, mailbox *handoff.Mailbox, deps Deps) *ActivityHost {
	logger := deps.Logger.With(zap.String("component", "activity_host"), zap.Int64("therapist_id", therapistID))
	return &ActivityHost{
		therapistID: therapistID,
		mailbox:     mailbox,
		catalog:     deps.Catalog,
		practice:    deps.Practice,
		reconciler:  handoff.NewReconciler(mailbox, deps.RetryOffsets, logger, deps.Metrics),
		shuffle:     deps.Shuffle,
		logger:      logger,
		metrics:     deps.Metrics,
		loaded:      make(chan struct{}),
	}
}

func (h *ActivityHost) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		if err := h.load(ctx); err != nil && ctx.Err() == nil {
			h.logger.Error("failed to load activities and clients", zap.Error(err))
		}
	}()
	go func() {
		defer h.wg.Done()
		h.reconciler.Run(ctx, h.loaded, h)
	}()
}

func (h *ActivityHost) load(ctx context.Context) error {
	var activities []models.TherapyActivity
	var clients []models.Client

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activities, err = h.catalog.ListActivities(gctx, models.ActivityFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		clients, err = h.catalog.ListClients(gctx, h.therapistID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	h.mu.Lock()
	h.activities = make(map[int64]models.TherapyActivity, len(activities))
	for _, a := range activities {
		h.activities[a.ID] = a
	}
	h.clients = make(map[int64]models.Client, len(clients))
	for _, c := range clients {
		h.clients[c.ID] = c
	}
	h.mu.Unlock()

	close(h.loaded)
	h.logger.Debug("activity host loaded",
		zap.Int("activities", len(activities)),
		zap.Int("clients", len(clients)))
	return nil
}

// Close stops background work and waits for it to exit. A run in progress is discarded.
func (h *ActivityHost) Close() {
	h.closeOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
			h.wg.Wait()
		}
	})
}

// Loaded returns a channel closed once the host can resolve requests
func (h *ActivityHost) Loaded() <-chan struct{} {
	return h.loaded
}

func (h *ActivityHost) isLoaded() bool {
	select {
	case <-h.loaded:
		return true
	default:
		return false
	}
}

// Ready reports whether both references in req resolve. Once loaded, an
// activity or client created after the load is fetched on demand.
func (h *ActivityHost) Ready(ctx context.Context, req handoff.Request) bool {
	if !h.isLoaded() {
		return false
	}
	if err := h.fetch(ctx, req.ActivityID, req.ClientID); err != nil {
		lvl := zap.WarnLevel
		if errors.Is(err, service.ErrNotFound) {
			lvl = zap.DebugLevel
		}
		h.logger.Log(lvl, "practice request references do not resolve",
			zap.String("request_id", req.ID), zap.Error(err))
		return false
	}
	return true
}

// fetch looks up whichever of the two references is missing from the loaded
// maps and adds it. Callers must have seen loaded closed.
func (h *ActivityHost) fetch(ctx context.Context, activityID, clientID int64) error {
	h.mu.Lock()
	_, haveActivity := h.activities[activityID]
	_, haveClient := h.clients[clientID]
	h.mu.Unlock()
	if haveActivity && haveClient {
		return nil
	}

	var activity *models.TherapyActivity
	var client *models.Client
	var err error
	if !haveActivity {
		if activity, err = h.catalog.ActiveActivity(ctx, activityID); err != nil {
			return err
		}
	}
	if !haveClient {
		if client, err = h.catalog.TherapistClient(ctx, h.therapistID, clientID); err != nil {
			return err
		}
	}

	h.mu.Lock()
	if activity != nil {
		h.activities[activity.ID] = *activity
	}
	if client != nil {
		h.clients[client.ID] = *client
	}
	h.mu.Unlock()
	h.logger.Debug("fetched references added after load",
		zap.Int64("activity_id", activityID),
		zap.Int64("client_id", clientID))
	return nil
}

// Accept starts a run for a consumed request, replacing any run in progress
func (h *ActivityHost) Accept(req handoff.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	activity, client, ok := h.resolveLocked(req.ActivityID, req.ClientID)
	if !ok {
		// Ready said yes a moment ago and entries are never removed.
		h.logger.Error("accepted request no longer resolves", zap.String("request_id", req.ID))
		return
	}
	h.startLocked(activity, client, req.Origin)
}

// StartPractice starts a run directly, without a session to return to
func (h *ActivityHost) StartPractice(ctx context.Context, activityID, clientID int64) (trial.Snapshot, error) {
	if !h.isLoaded() {
		return trial.Snapshot{}, ErrCatalogLoading
	}
	if err := h.fetch(ctx, activityID, clientID); err != nil {
		return trial.Snapshot{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	activity, client, ok := h.resolveLocked(activityID, clientID)
	if !ok {
		return trial.Snapshot{}, fmt.Errorf("activity %d for client %d: %w", activityID, clientID, service.ErrNotFound)
	}
	h.startLocked(activity, client, nil)
	h.metrics.HandoffPublished(ctx, false)
	return h.engine.Snapshot(), nil
}

func (h *ActivityHost) startLocked(activity models.TherapyActivity, client models.Client, origin *models.Origin) {
	if h.engine != nil {
		h.logger.Info("practice run superseded",
			zap.Int64("activity_id", h.engine.Activity().ID),
			zap.Int64("client_id", h.engine.Client().ID))
	}
	e := trial.NewEngine(h.shuffle)
	e.Start(activity, client, origin)
	h.engine = e
	h.runs++
	h.last = nil

	h.logger.Info("practice run started",
		zap.Int64("activity_id", activity.ID),
		zap.Int64("client_id", client.ID),
		zap.Int("trials", e.TotalTrials()),
		zap.Bool("from_session", origin != nil))
}

func (h *ActivityHost) resolveLocked(activityID, clientID int64) (models.TherapyActivity, models.Client, bool) {
	activity, ok := h.activities[activityID]
	if !ok {
		return models.TherapyActivity{}, models.Client{}, false
	}
	client, ok := h.clients[clientID]
	if !ok {
		return models.TherapyActivity{}, models.Client{}, false
	}
	return activity, client, true
}

// View returns the current run, if any, and the outcome of the last finished run
func (h *ActivityHost) View() HostView {
	h.mu.Lock()
	defer h.mu.Unlock()

	view := HostView{Last: h.last, Loaded: h.isLoaded()}
	if h.engine != nil {
		snap := h.engine.Snapshot()
		view.Run = &snap
	}
	return view
}

// Respond records one response in the current run
func (h *ActivityHost) Respond(correct bool) (trial.Response, trial.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return trial.Response{}, trial.Snapshot{}, ErrNoActiveRun
	}
	resp := h.engine.RecordResponse(correct)
	return resp, h.engine.Snapshot(), nil
}

// Reset reshuffles the current run and zeroes its counters
func (h *ActivityHost) Reset() (trial.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		return trial.Snapshot{}, ErrNoActiveRun
	}
	if err := h.engine.Reset(); err != nil {
		return trial.Snapshot{}, err
	}
	return h.engine.Snapshot(), nil
}

// Finish ends the current run and saves its result. When the run came from a
// session, control returns to that session whether or not the save succeeded.
func (h *ActivityHost) Finish(ctx context.Context) (RunOutcome, error) {
	h.mu.Lock()
	if h.engine == nil {
		h.mu.Unlock()
		return RunOutcome{}, ErrNoActiveRun
	}
	result, err := h.engine.Finish()
	if err != nil {
		h.mu.Unlock()
		return RunOutcome{}, err
	}
	activity := h.engine.Activity()
	origin := h.engine.Origin()
	run := h.runs
	h.engine = nil
	h.mu.Unlock()

	// The mailbox and the stores are called without holding h.mu.
	saved := h.practice.SaveResult(ctx, activity, result, origin)
	outcome := RunOutcome{
		Result:   result,
		Category: string(activity.Category),
		Saved:    saved.Saved,
	}
	if saved.Err != nil {
		outcome.SaveError = saved.Err.Error()
	}
	h.metrics.TrialRunFinished(ctx, outcome.Category, outcome.Saved)

	if origin != nil {
		h.mailbox.PublishReturn(origin.SessionID)
		h.metrics.ReturnPublished(ctx)
		outcome.ReturnedTo = origin.SessionID
	}

	h.mu.Lock()
	// A run started while saving owns the view now.
	if h.runs == run {
		h.last = &outcome
	}
	h.mu.Unlock()

	h.logger.Info("practice run finished",
		zap.Int64("activity_id", result.ActivityID),
		zap.Int64("client_id", result.ClientID),
		zap.Float64("accuracy", result.AccuracyPercentage),
		zap.Bool("saved", outcome.Saved))
	return outcome, nil
}

// Abandon discards the current run without saving. A run that came from a
// session still hands control back to it.
func (h *ActivityHost) Abandon(ctx context.Context) (int64, error) {
	h.mu.Lock()
	if h.engine == nil {
		h.mu.Unlock()
		return 0, ErrNoActiveRun
	}
	origin := h.engine.Origin()
	h.engine = nil
	h.mu.Unlock()

	if origin == nil {
		return 0, nil
	}
	h.mailbox.PublishReturn(origin.SessionID)
	h.metrics.ReturnPublished(ctx)
	return origin.SessionID, nil
}
