package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"speechworks/internal/service"
	"speechworks/internal/trial"
	"speechworks/internal/validation"
	"speechworks/internal/workspace"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil && logger != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status >= http.StatusInternalServerError {
			logger.Error(logMsg, zap.Error(err))
		} else {
			logger.Debug(logMsg, zap.Error(err))
		}
	}

	writeJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps err to a status code. Client errors echo the
// error text; anything unexpected is reported as an internal error.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, logMsg string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = ErrInternalServerError
	}
	respondWithError(w, logger, status, msg, logMsg, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrOutsideSessionWindow):
		return http.StatusUnprocessableEntity
	case validation.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrNoActiveRun),
		errors.Is(err, workspace.ErrCatalogLoading),
		errors.Is(err, trial.ErrNoTrials),
		errors.Is(err, trial.ErrFinished),
		errors.Is(err, trial.ErrNotStarted):
		return http.StatusConflict
	case errors.Is(err, workspace.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
