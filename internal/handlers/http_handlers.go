package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/antifraude/url-sentinel/internal/config"
	"github.com/antifraude/url-sentinel/internal/database"
	"github.com/antifraude/url-sentinel/internal/domain"
	"github.com/antifraude/url-sentinel/internal/lists"
	"github.com/antifraude/url-sentinel/internal/probe"
)

// URLChecker is the classification pipeline entry point
type URLChecker interface {
	Check(ctx context.Context, rawURL string) (*domain.CheckResult, error)
}

// PageFetcher retrieves page content for the probe endpoint
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*probe.FetchResult, error)
}

// HTTPHandler handles HTTP requests for the URL sentinel service
type HTTPHandler struct {
	config      *config.Config
	logger      *slog.Logger
	validate    *validator.Validate
	checker     URLChecker
	historyRepo *database.HistoryRepository
	allowRepo   *database.ListRepository
	denyRepo    *database.ListRepository
	matcher     *lists.Matcher
	fetcher     PageFetcher
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	cfg *config.Config,
	logger *slog.Logger,
	checker URLChecker,
	historyRepo *database.HistoryRepository,
	allowRepo *database.ListRepository,
	denyRepo *database.ListRepository,
	matcher *lists.Matcher,
	fetcher PageFetcher,
) *HTTPHandler {
	return &HTTPHandler{
		config:      cfg,
		logger:      logger,
		validate:    validator.New(),
		checker:     checker,
		historyRepo: historyRepo,
		allowRepo:   allowRepo,
		denyRepo:    denyRepo,
		matcher:     matcher,
		fetcher:     fetcher,
	}
}

// RegisterRoutes registers HTTP routes
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Health and status endpoints
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/status", h.handleStatus).Methods("GET")

	// Classification endpoints
	router.HandleFunc("/check", h.handleCheck).Methods("POST")
	router.HandleFunc("/probe", h.handleProbe).Methods("POST")

	// History endpoints
	historyRouter := router.PathPrefix("/history").Subrouter()
	historyRouter.HandleFunc("", h.handleListHistory).Methods("GET")
	historyRouter.HandleFunc("/{id}", h.handleGetHistory).Methods("GET")
	historyRouter.HandleFunc("/{id}", h.handleDeleteHistory).Methods("DELETE")

	// List administration endpoints
	allowRouter := router.PathPrefix("/allowlist").Subrouter()
	allowRouter.HandleFunc("", h.handleCreateListEntry(h.allowRepo, "allowlist")).Methods("POST")
	allowRouter.HandleFunc("", h.handleListEntries(h.allowRepo, "allowlist")).Methods("GET")
	allowRouter.HandleFunc("/{id}", h.handleDeactivateListEntry(h.allowRepo, "allowlist")).Methods("DELETE")

	denyRouter := router.PathPrefix("/denylist").Subrouter()
	denyRouter.HandleFunc("", h.handleCreateListEntry(h.denyRepo, "denylist")).Methods("POST")
	denyRouter.HandleFunc("", h.handleListEntries(h.denyRepo, "denylist")).Methods("GET")
	denyRouter.HandleFunc("/{id}", h.handleDeactivateListEntry(h.denyRepo, "denylist")).Methods("DELETE")
}

// Health and Status Handlers

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
		"service":   "url-sentinel",
	}

	h.writeJSON(w, http.StatusOK, health)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"service":            "url-sentinel",
		"status":             "running",
		"timestamp":          time.Now().UTC(),
		"environment":        h.config.Environment,
		"reputation_enabled": h.config.Reputation.Enabled,
		"risk_model_enabled": h.config.RiskModel.Enabled,
	}

	h.writeJSON(w, http.StatusOK, status)
}

// Classification Handlers

func (h *HTTPHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url" validate:"required,min=1,max=2048"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "url is required and must be at most 2048 characters")
		return
	}

	result, err := h.checker.Check(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("Failed to check URL", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to check URL")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleProbe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url" validate:"required,min=1,max=2048"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "url is required and must be at most 2048 characters")
		return
	}

	fetched, err := h.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		h.logger.Error("Failed to probe URL", "url", req.URL, "error", err)
		h.writeError(w, http.StatusBadGateway, "Failed to fetch page")
		return
	}

	response := map[string]interface{}{
		"final_url":    fetched.FinalURL,
		"status_code":  fetched.StatusCode,
		"content_type": fetched.ContentType,
		"truncated":    fetched.Truncated,
		"fetched_at":   fetched.FetchedAt,
		"summary":      probe.Summarize(fetched.Body),
	}

	h.writeJSON(w, http.StatusOK, response)
}

// History Handlers

func (h *HTTPHandler) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter := h.parseFilter(r)

	records, err := h.historyRepo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list history", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list history")
		return
	}

	response := map[string]interface{}{
		"records":   records,
		"page_size": filter.Limit,
		"offset":    filter.Offset,
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *HTTPHandler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	recordID := vars["id"]

	record, err := h.historyRepo.GetByID(r.Context(), recordID)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "History record not found")
		return
	}

	h.writeJSON(w, http.StatusOK, record)
}

func (h *HTTPHandler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	recordID := vars["id"]

	if err := h.historyRepo.Delete(r.Context(), recordID); err != nil {
		h.logger.Error("Failed to delete history record", "record_id", recordID, "error", err)
		h.writeError(w, http.StatusNotFound, "History record not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// List Administration Handlers

func (h *HTTPHandler) handleCreateListEntry(repo *database.ListRepository, list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type   string `json:"type" validate:"required,oneof=URL DOMAIN"`
			Value  string `json:"value" validate:"required,min=1,max=2048"`
			Reason string `json:"reason" validate:"max=512"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := h.validate.Struct(req); err != nil {
			h.writeError(w, http.StatusBadRequest, "type must be URL or DOMAIN and value is required")
			return
		}

		if err := repo.Insert(r.Context(), req.Type, req.Value, req.Reason); err != nil {
			h.logger.Error("Failed to create list entry", "list", list, "error", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to create list entry")
			return
		}
		h.matcher.Invalidate()

		h.writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true})
	}
}

func (h *HTTPHandler) handleListEntries(repo *database.ListRepository, list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := h.parseFilter(r)
		includeInactive := r.URL.Query().Get("include_inactive") == "true"

		entries, err := repo.List(r.Context(), filter, includeInactive)
		if err != nil {
			h.logger.Error("Failed to list entries", "list", list, "error", err)
			h.writeError(w, http.StatusInternalServerError, "Failed to list entries")
			return
		}

		response := map[string]interface{}{
			"entries":   entries,
			"page_size": filter.Limit,
			"offset":    filter.Offset,
		}

		h.writeJSON(w, http.StatusOK, response)
	}
}

func (h *HTTPHandler) handleDeactivateListEntry(repo *database.ListRepository, list string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		entryID := vars["id"]

		if err := repo.Deactivate(r.Context(), entryID); err != nil {
			h.logger.Error("Failed to deactivate list entry", "list", list, "entry_id", entryID, "error", err)
			h.writeError(w, http.StatusNotFound, "List entry not found")
			return
		}
		h.matcher.Invalidate()

		h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// Helper methods

func (h *HTTPHandler) parseFilter(r *http.Request) database.Filter {
	filter := database.Filter{Limit: 50}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 && l <= 500 {
			filter.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	return filter
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
