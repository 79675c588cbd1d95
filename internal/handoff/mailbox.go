// Package handoff passes practice requests from the session board to the
// activity host, and return tokens back, through a shared single-slot mailbox.
package handoff

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"speechworks/internal/models"
)

// Request asks the activity host to start practice on an activity for a client.
// Origin is set when the request came from a session assignment.
type Request struct {
	ID         string         `json:"id"`
	ActivityID int64          `json:"activity_id"`
	ClientID   int64          `json:"client_id"`
	Origin     *models.Origin `json:"origin,omitempty"`
	IssuedAt   time.Time      `json:"issued_at"`
}

// ReturnToken tells the session board which session to refocus
type ReturnToken struct {
	SessionID int64     `json:"session_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Mailbox holds at most one pending request and one return token. A newer
// publish replaces whatever is pending. Safe for concurrent use.
type Mailbox struct {
	mu      sync.Mutex
	pending *Request
	ret     *ReturnToken

	watchers       map[uint64]chan struct{}
	returnWatchers map[uint64]chan struct{}
	nextWatcher    uint64

	now func() time.Time
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		watchers:       make(map[uint64]chan struct{}),
		returnWatchers: make(map[uint64]chan struct{}),
		now:            time.Now,
	}
}

// Publish stores req, replacing any pending request, and wakes watchers.
// An empty ID is filled with a new UUID. The stored request is returned.
func (m *Mailbox) Publish(req Request) Request {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Origin != nil {
		o := *req.Origin
		req.Origin = &o
	}

	m.mu.Lock()
	if req.IssuedAt.IsZero() {
		req.IssuedAt = m.now()
	}
	m.pending = &req
	notify(m.watchers)
	m.mu.Unlock()
	return req
}

// Pending returns the pending request without consuming it
func (m *Mailbox) Pending() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Request{}, false
	}
	return *m.pending, true
}

// TryConsume takes the pending request if ready accepts it. When ready rejects
// it, or nothing is pending, the mailbox is left untouched. ready runs without
// the mailbox lock held; if another publish or consume wins in the meantime the
// attempt fails and the newer state stays in place.
func (m *Mailbox) TryConsume(ready func(Request) bool) (Request, bool) {
	req, ok := m.Pending()
	if !ok || !ready(req) {
		return Request{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil || m.pending.ID != req.ID {
		return Request{}, false
	}
	m.pending = nil
	return req, true
}

// Watch returns a channel that receives a signal after each publish, and a
// function that stops the watch. Signals coalesce; a slow reader sees at least
// one signal after the latest publish.
func (m *Mailbox) Watch() (<-chan struct{}, func()) {
	return m.watch(m.watchers)
}

// PublishReturn stores a return token for sessionID, replacing any earlier one
func (m *Mailbox) PublishReturn(sessionID int64) ReturnToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok := ReturnToken{SessionID: sessionID, IssuedAt: m.now()}
	m.ret = &tok
	notify(m.returnWatchers)
	return tok
}

// ConsumeReturn reads and clears the return token
func (m *Mailbox) ConsumeReturn() (ReturnToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ret == nil {
		return ReturnToken{}, false
	}
	tok := *m.ret
	m.ret = nil
	return tok, true
}

// WatchReturn is Watch for return tokens
func (m *Mailbox) WatchReturn() (<-chan struct{}, func()) {
	return m.watch(m.returnWatchers)
}

func (m *Mailbox) watch(set map[uint64]chan struct{}) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	id := m.nextWatcher
	m.nextWatcher++
	set[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(set, id)
			m.mu.Unlock()
		})
	}
}

func notify(set map[uint64]chan struct{}) {
	for _, ch := range set {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
