package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scorezilla/scorezilla/internal/config"
	"github.com/scorezilla/scorezilla/internal/domain"
	"github.com/scorezilla/scorezilla/internal/ledger"
	"github.com/scorezilla/scorezilla/internal/token"
	"github.com/scorezilla/scorezilla/internal/websocket"
)

// Handler provides HTTP handlers for the high-score API
type Handler struct {
	ledger *ledger.Service
	tokens *token.Service
	auth   *config.AuthConfig
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(ledgerSvc *ledger.Service, tokenSvc *token.Service, authCfg *config.AuthConfig, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledgerSvc,
		tokens: tokenSvc,
		auth:   authCfg,
		hub:    hub,
		logger: logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ScorePayload is the request body for score creation and updates
type ScorePayload struct {
	Name  string   `json:"name"`
	Score *float64 `json:"score"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", h.IssueToken)

		r.Route("/games/{gameID}/scores", func(r chi.Router) {
			// Reads require no credential
			r.Get("/", h.ListScores)
			r.Get("/admission", h.CheckAdmission)

			// Mutations require a valid bearer token
			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/", h.CreateScore)
				r.Put("/{scoreID}", h.UpdateScore)
				r.Delete("/{scoreID}", h.DeleteScore)
			})
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error to an HTTP status
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload), errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsAuthError(err):
		h.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err)
	default:
		h.logger.Error("internal error", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListScores returns up to limit ranked entries for a game
func (h *Handler) ListScores(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.ledger.List(r.Context(), gameID, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, entries)
}

// CheckAdmission answers whether a score would enter the ledger
func (h *Handler) CheckAdmission(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	scoreStr := r.URL.Query().Get("score")
	score, err := strconv.ParseFloat(scoreStr, 64)
	if scoreStr == "" || err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	qualifies, err := h.ledger.CheckAdmission(r.Context(), gameID, score)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, domain.AdmissionResult{
		GameID:    gameID,
		Score:     score,
		Qualifies: qualifies,
	})
}

// CreateScore inserts a new score entry
func (h *Handler) CreateScore(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	var payload ScorePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if payload.Score == nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidPayload)
		return
	}

	entry, err := h.ledger.Insert(r.Context(), gameID, payload.Name, *payload.Score)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    entry,
	})
}

// UpdateScore replaces an entry's name and score
func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	scoreID := chi.URLParam(r, "scoreID")

	var payload ScorePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}
	if payload.Score == nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidPayload)
		return
	}

	entry, err := h.ledger.Update(r.Context(), gameID, scoreID, payload.Name, *payload.Score)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, entry)
}

// DeleteScore removes an entry and returns it
func (h *Handler) DeleteScore(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	scoreID := chi.URLParam(r, "scoreID")

	entry, err := h.ledger.Delete(r.Context(), gameID, scoreID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, entry)
}
