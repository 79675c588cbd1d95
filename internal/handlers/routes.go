package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// Handlers are the route groups served by the API
type Handlers struct {
	Catalog  *CatalogHandler
	Sessions *SessionHandler
	Practice *PracticeHandler
}

// NewRouter registers every route and wraps the mux in the request middleware
func NewRouter(h Handlers, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Catalog
	mux.HandleFunc("GET /api/activities", h.Catalog.ListActivities)
	mux.HandleFunc("GET /api/activities/categories", h.Catalog.Categories)
	mux.HandleFunc("GET /api/therapists/{therapistId}/clients", h.Catalog.ListClients)
	mux.HandleFunc("GET /api/therapists/{therapistId}/clients/{clientId}/progress/summary", h.Catalog.ProgressSummary)

	// Session board
	mux.HandleFunc("GET /api/therapists/{therapistId}/sessions", h.Sessions.ListSessions)
	mux.HandleFunc("GET /api/therapists/{therapistId}/sessions/today", h.Sessions.Today)
	mux.HandleFunc("GET /api/therapists/{therapistId}/sessions/upcoming", h.Sessions.Upcoming)
	mux.HandleFunc("GET /api/therapists/{therapistId}/sessions/{sessionId}/assignments", h.Sessions.Assignments)
	mux.HandleFunc("POST /api/therapists/{therapistId}/sessions/{sessionId}/status", h.Sessions.ChangeStatus)
	mux.HandleFunc("POST /api/therapists/{therapistId}/sessions/{sessionId}/assignments/{assignmentId}/practice", h.Sessions.Practice)
	mux.HandleFunc("DELETE /api/therapists/{therapistId}/workspace", h.Sessions.CloseWorkspace)

	// Activity host
	mux.HandleFunc("GET /api/therapists/{therapistId}/practice", h.Practice.ShowPractice)
	mux.HandleFunc("POST /api/therapists/{therapistId}/practice", h.Practice.StartPractice)
	mux.HandleFunc("POST /api/therapists/{therapistId}/practice/responses", h.Practice.SubmitAnswer)
	mux.HandleFunc("POST /api/therapists/{therapistId}/practice/reset", h.Practice.ResetPractice)
	mux.HandleFunc("POST /api/therapists/{therapistId}/practice/finish", h.Practice.FinishPractice)
	mux.HandleFunc("DELETE /api/therapists/{therapistId}/practice", h.Practice.ExitPractice)

	return Logging(logger)(Recover(logger)(mux))
}
