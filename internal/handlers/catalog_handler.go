package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"speechworks/internal/models"
	"speechworks/internal/service"
)

// CatalogHandler serves activities, clients and progress summaries
type CatalogHandler struct {
	catalog  *service.CatalogService
	progress *service.ProgressService
	logger   *zap.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *service.CatalogService, progress *service.ProgressService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog:  catalog,
		progress: progress,
		logger:   logger,
	}
}

// ListActivities returns active activities, optionally by category, difficulty or name
func (h *CatalogHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	difficulty, err := queryInt(r, "difficulty", 0)
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	filter := models.ActivityFilter{
		Category:        models.ActivityCategory(r.URL.Query().Get("category")),
		DifficultyLevel: difficulty,
		Search:          r.URL.Query().Get("search"),
	}

	activities, err := h.catalog.ListActivities(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error listing activities", err)
		return
	}
	if activities == nil {
		activities = []models.TherapyActivity{}
	}
	writeJSON(w, http.StatusOK, activities)
}

// Categories returns each category with its number of active activities
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	counts, err := h.catalog.Categories(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, "Error counting categories", err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ListClients returns the therapist's active clients
func (h *CatalogHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	therapistID, err := pathID(r, "therapistId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	clients, err := h.catalog.ListClients(r.Context(), therapistID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error listing clients", err)
		return
	}
	if clients == nil {
		clients = []models.Client{}
	}
	writeJSON(w, http.StatusOK, clients)
}

// ProgressSummary returns per-category accuracy and trend for a client
func (h *CatalogHandler) ProgressSummary(w http.ResponseWriter, r *http.Request) {
	therapistID, err := pathID(r, "therapistId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	clientID, err := pathID(r, "clientId")
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}
	days, err := queryInt(r, "days", 30)
	if err != nil {
		respondWithServiceError(w, h.logger, "", err)
		return
	}

	client, err := h.catalog.GetClient(r.Context(), clientID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error loading client", err)
		return
	}
	if client.TherapistID != therapistID {
		respondWithError(w, h.logger, http.StatusNotFound, "client not found", "", nil)
		return
	}

	summary, err := h.progress.Summarize(r.Context(), clientID, days)
	if err != nil {
		respondWithServiceError(w, h.logger, "Error summarizing progress", err)
		return
	}
	if summary == nil {
		summary = []models.ProgressSummary{}
	}
	writeJSON(w, http.StatusOK, summary)
}
