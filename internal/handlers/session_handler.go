package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"speechworks/internal/models"
	"speechworks/internal/service"
	"speechworks/internal/workspace"
)

// SessionHandler serves a therapist's session board
type SessionHandler struct {
	registry *workspace.Registry
	sessions *service.SessionService
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(registry *workspace.Registry, sessions *service.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		registry: registry,
		sessions: sessions,
		logger:   logger,
	}
}

type statusRequest struct {
	Status models.SessionStatus `json:"status"`
}

// workspace resolves the therapist in the path to an open workspace
func (h *SessionHandler) workspace(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	return therapistWorkspace(w, r, h.registry, h.logger)
}

func therapistWorkspace(w http.ResponseWriter, r *http.Request, registry *workspace.Registry, logger *zap.Logger) (*workspace.Workspace, bool) {
	therapistID, err := pathID(r, "therapistId")
	if err != nil {
		respondWithServiceError(w, logger, "", err)
		return nil, false
	}
	ws, err := registry.Get(therapistID)
	if err != nil {
		respondWithServiceError(w, logger, "Error opening workspace", err)
		return nil, false
	}
	return ws, true
}

// ListSessions loads the board with the therapist's sessions. The response
// names the session a finished practice run returned to, if any.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}

	filter, err := sessionFilter(r)
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	view, err := ws.Board.Load(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error loading sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func sessionFilter(r *http.Request) (models.SessionFilter, error) {
	var filter models.SessionFilter
	clientID, err := queryInt(r, "client_id", 0)
	if err != nil {
		return filter, err
	}
	filter.ClientID = int64(clientID)
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		return filter, err
	}
	if filter.From, err = queryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		return filter, err
	}
	for _, s := range queryList(r, "status") {
		filter.Statuses = append(filter.Statuses, models.SessionStatus(s))
	}
	return filter, nil
}

// Today lists the therapist's sessions scheduled for the current day
func (h *SessionHandler) Today(w http.ResponseWriter, r *http.Request) {
	therapistID, err := pathID(r, "therapistId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	sessions, err := h.sessions.Today(r.Context(), therapistID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error listing today's sessions", err)
		return
	}
	writeSessions(w, sessions)
}

// Upcoming lists open sessions in the next days (default 7)
func (h *SessionHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	therapistID, err := pathID(r, "therapistId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	days, err := queryInt(r, "days", 7)
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	sessions, err := h.sessions.Upcoming(r.Context(), therapistID, days)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error listing upcoming sessions", err)
		return
	}
	writeSessions(w, sessions)
}

func writeSessions(w http.ResponseWriter, sessions []models.TherapySession) {
	if sessions == nil {
		sessions = []models.TherapySession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// Assignments reloads a session's assignments and applies auto-completion
func (h *SessionHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	view, err := ws.Board.ReloadSession(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error loading assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ChangeStatus moves a session to the requested status
func (h *SessionHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	session, err := ws.Board.RequestStatusChange(r.Context(), sessionID, req.Status)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error changing session status", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// Practice hands an assignment to the activity host
func (h *SessionHandler) Practice(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	sessionID, err := pathID(r, "sessionId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	assignmentID, err := pathID(r, "assignmentId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	req, err := ws.Board.Practice(r.Context(), sessionID, assignmentID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error requesting practice", err)
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

// CloseWorkspace stops the therapist's board timer and activity host
func (h *SessionHandler) CloseWorkspace(w http.ResponseWriter, r *http.Request) {
	therapistID, err := pathID(r, "therapistId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	h.registry.Close(therapistID)
	w.WriteHeader(http.StatusNoContent)
}
