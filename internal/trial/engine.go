// Package trial runs one practice pass over an activity's items for one client.
// It holds state and transition logic only; callers own persistence.
package trial

import (
	"errors"
	"math/rand"

	"speechworks/internal/models"
)

// MaxTrials caps the number of prompts presented in one run
const MaxTrials = 10

var (
	ErrNotStarted = errors.New("trial run not started")
	ErrNoTrials   = errors.New("no trials recorded")
	ErrFinished   = errors.New("trial run already finished")
)

// State is the engine's position in its Idle -> Running -> Complete lifecycle
type State int

const (
	StateIdle State = iota
	StateRunning
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateComplete:
		return "complete"
	default:
		return "idle"
	}
}

// ShuffleFunc permutes n elements through swap. rand.Shuffle satisfies it.
type ShuffleFunc func(n int, swap func(i, j int))

// ResponseStatus tells the caller whether a response was counted
type ResponseStatus int

const (
	ResponseRecorded ResponseStatus = iota
	ResponseAlreadyComplete
)

// Response is the outcome of RecordResponse
type Response struct {
	Status   ResponseStatus
	Complete bool
}

// Result is the record produced when a run is finished
type Result struct {
	ClientID           int64   `json:"client_id"`
	ActivityID         int64   `json:"activity_id"`
	AccuracyPercentage float64 `json:"accuracy_percentage"`
	TrialsAttempted    int     `json:"trials_attempted"`
	TrialsCorrect      int     `json:"trials_correct"`
}

// Snapshot is a read-only view of a run for display
type Snapshot struct {
	ActivityID      int64             `json:"activity_id"`
	ClientID        int64             `json:"client_id"`
	Origin          *models.Origin    `json:"origin,omitempty"`
	State           string            `json:"state"`
	Empty           bool              `json:"empty"`
	TotalTrials     int               `json:"total_trials"`
	CurrentIndex    int               `json:"current_index"`
	TrialsCompleted int               `json:"trials_completed"`
	TrialsCorrect   int               `json:"trials_correct"`
	Accuracy        float64           `json:"accuracy"`
	Prompt          *models.TrialItem `json:"prompt,omitempty"`
}

// Engine is a single-use trial run. It is not safe for concurrent use.
type Engine struct {
	shuffle ShuffleFunc

	activity models.TherapyActivity
	client   models.Client
	origin   *models.Origin

	items           []models.TrialItem
	totalTrials     int
	currentIndex    int
	trialsCompleted int
	trialsCorrect   int

	state    State
	finished bool
}

// NewEngine creates an idle engine. A nil shuffle uses rand.Shuffle.
func NewEngine(shuffle ShuffleFunc) *Engine {
	if shuffle == nil {
		shuffle = rand.Shuffle
	}
	return &Engine{shuffle: shuffle}
}

// Start creates an engine and binds it to activity and client
func Start(activity models.TherapyActivity, client models.Client, origin *models.Origin) *Engine {
	e := NewEngine(nil)
	e.Start(activity, client, origin)
	return e
}

// Start binds the engine to an activity and client and begins a run over a
// shuffled copy of the activity's items. An activity without items leaves the
// engine complete and empty.
func (e *Engine) Start(activity models.TherapyActivity, client models.Client, origin *models.Origin) {
	e.activity = activity
	e.client = client
	if origin != nil {
		o := *origin
		e.origin = &o
	} else {
		e.origin = nil
	}
	e.finished = false
	e.begin()
}

func (e *Engine) begin() {
	e.items = make([]models.TrialItem, len(e.activity.Items))
	copy(e.items, e.activity.Items)
	e.shuffle(len(e.items), func(i, j int) {
		e.items[i], e.items[j] = e.items[j], e.items[i]
	})

	e.totalTrials = min(len(e.items), MaxTrials)
	e.currentIndex = 0
	e.trialsCompleted = 0
	e.trialsCorrect = 0

	if e.totalTrials == 0 {
		e.state = StateComplete
		return
	}
	e.state = StateRunning
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return e.state
}

// Empty reports whether the bound activity had no items to practice
func (e *Engine) Empty() bool {
	return e.state != StateIdle && e.totalTrials == 0
}

// Activity returns the activity the engine is bound to
func (e *Engine) Activity() models.TherapyActivity {
	return e.activity
}

// Client returns the client the engine is bound to
func (e *Engine) Client() models.Client {
	return e.client
}

// Origin returns the session assignment the run came from, if any
func (e *Engine) Origin() *models.Origin {
	return e.origin
}

// TotalTrials returns the number of prompts in this run
func (e *Engine) TotalTrials() int {
	return e.totalTrials
}

// TrialsCompleted returns the number of responses recorded so far
func (e *Engine) TrialsCompleted() int {
	return e.trialsCompleted
}

// TrialsCorrect returns the number of correct responses recorded so far
func (e *Engine) TrialsCorrect() int {
	return e.trialsCorrect
}

// CurrentPrompt returns the item awaiting a response. The second value is false
// once there are no more prompts. It never advances the run.
func (e *Engine) CurrentPrompt() (models.TrialItem, bool) {
	if e.state != StateRunning || e.currentIndex >= e.totalTrials {
		return models.TrialItem{}, false
	}
	return e.items[e.currentIndex], true
}

// RecordResponse counts one response. Once every trial has been recorded further
// calls change nothing and report ResponseAlreadyComplete, which absorbs duplicate
// submissions.
func (e *Engine) RecordResponse(correct bool) Response {
	if e.state != StateRunning || e.finished || e.trialsCompleted >= e.totalTrials {
		return Response{Status: ResponseAlreadyComplete, Complete: e.state == StateComplete}
	}

	e.trialsCompleted++
	if correct {
		e.trialsCorrect++
	}
	e.currentIndex++

	if e.trialsCompleted == e.totalTrials {
		e.state = StateComplete
	}
	return Response{Status: ResponseRecorded, Complete: e.state == StateComplete}
}

// Reset reshuffles and restarts the run for the same activity and client
func (e *Engine) Reset() error {
	switch {
	case e.state == StateIdle:
		return ErrNotStarted
	case e.finished:
		return ErrFinished
	}
	e.begin()
	return nil
}

// Accuracy returns the percentage of correct responses, or 0 before any trial
func (e *Engine) Accuracy() float64 {
	return accuracy(e.trialsCorrect, e.trialsCompleted)
}

// Finish ends the run and returns its result. The engine cannot be used
// afterwards. At least one trial must have been recorded.
func (e *Engine) Finish() (Result, error) {
	switch {
	case e.state == StateIdle:
		return Result{}, ErrNotStarted
	case e.finished:
		return Result{}, ErrFinished
	case e.trialsCompleted == 0:
		return Result{}, ErrNoTrials
	}

	e.finished = true
	return Result{
		ClientID:           e.client.ID,
		ActivityID:         e.activity.ID,
		AccuracyPercentage: e.Accuracy(),
		TrialsAttempted:    e.trialsCompleted,
		TrialsCorrect:      e.trialsCorrect,
	}, nil
}

// Snapshot captures the run for display
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		ActivityID:      e.activity.ID,
		ClientID:        e.client.ID,
		Origin:          e.origin,
		State:           e.state.String(),
		Empty:           e.Empty(),
		TotalTrials:     e.totalTrials,
		CurrentIndex:    e.currentIndex,
		TrialsCompleted: e.trialsCompleted,
		TrialsCorrect:   e.trialsCorrect,
		Accuracy:        e.Accuracy(),
	}
	if item, ok := e.CurrentPrompt(); ok {
		snap.Prompt = &item
	}
	return snap
}

func accuracy(correct, completed int) float64 {
	if completed <= 0 {
		return 0
	}
	return float64(correct) * 100 / float64(completed)
}
