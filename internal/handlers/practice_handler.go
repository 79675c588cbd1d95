package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"speechworks/internal/trial"
	"speechworks/internal/workspace"
)

// PracticeHandler drives a therapist's activity host
type PracticeHandler struct {
	registry *workspace.Registry
	logger   *zap.Logger
}

// NewPracticeHandler creates a new practice handler
func NewPracticeHandler(registry *workspace.Registry, logger *zap.Logger) *PracticeHandler {
	return &PracticeHandler{
		registry: registry,
		logger:   logger,
	}
}

type startRequest struct {
	ActivityID int64 `json:"activity_id"`
	ClientID   int64 `json:"client_id"`
}

type answerRequest struct {
	Correct *bool `json:"correct"`
}

type answerResponse struct {
	Recorded bool           `json:"recorded"`
	Complete bool           `json:"complete"`
	Run      trial.Snapshot `json:"run"`
}

type abandonResponse struct {
	ReturnedTo int64 `json:"returned_to_session_id,omitempty"`
}

// ShowPractice returns the current run and the last finished run's outcome
func (h *PracticeHandler) ShowPractice(w http.ResponseWriter, r *http.Request) {
	ws, ok := therapistWorkspace(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Host.View())
}

// StartPractice starts a run for an activity and client outside any session
func (h *PracticeHandler) StartPractice(w http.ResponseWriter, r *http.Request) {
	ws, ok := therapistWorkspace(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	snap, err := ws.Host.StartPractice(r.Context(), req.ActivityID, req.ClientID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error starting practice", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// SubmitAnswer records one correct or incorrect response
func (h *PracticeHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	ws, ok := therapistWorkspace(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	if req.Correct == nil {
		respondWithError(w, h.logger, http.StatusBadRequest, "correct is required", "", nil)
		return
	}

	resp, snap, err := ws.Host.Respond(*req.Correct)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error recording response", err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{
		Recorded: resp.Status == trial.ResponseRecorded,
		Complete: resp.Complete,
		Run:      snap,
	})
}

// ResetPractice reshuffles the current run
func (h *PracticeHandler) ResetPractice(w http.ResponseWriter, r *http.Request) {
	ws, ok := therapistWorkspace(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	snap, err := ws.Host.Reset()
	if err != nil {
		respondWithServiceError(w, h.logger, "Error resetting practice", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// FinishPractice saves the run. A failed save is reported in the body, not as
// an error status, since the result was still produced.
func (h *PracticeHandler) FinishPractice(w http.ResponseWriter, r *http.Request) {
	ws, ok := therapistWorkspace(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	outcome, err := ws.Host.Finish(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, "Error finishing practice", err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// ExitPractice discards the current run
func (h *PracticeHandler) ExitPractice(w http.ResponseWriter, r *http.Request) {
	ws, ok := therapistWorkspace(w, r, h.registry, h.logger)
	if !ok {
		return
	}
	sessionID, err := ws.Host.Abandon(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, "Error abandoning practice", err)
		return
	}
	writeJSON(w, http.StatusOK, abandonResponse{ReturnedTo: sessionID})
}
