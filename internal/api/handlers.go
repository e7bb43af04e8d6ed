package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maltedev/nutrition-scraper/internal/models"
	"github.com/maltedev/nutrition-scraper/internal/parser"
	"github.com/maltedev/nutrition-scraper/internal/pipeline"
	"github.com/maltedev/nutrition-scraper/internal/resolver"
)

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunSummary, error)
}

// OutboxStats reports relay backlog for the health check.
type OutboxStats interface {
	GetPendingCount(ctx context.Context) (int64, error)
	GetDeadLetterCount(ctx context.Context) (int64, error)
}

type Handlers struct {
	runner   Runner
	parser   parser.Parser
	resolver *resolver.Resolver
	stats    OutboxStats
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	lastRun *RunResponse
}

// NewHandlers wires the HTTP handlers. stats may be nil when the relay is
// disabled.
func NewHandlers(runner Runner, p parser.Parser, r *resolver.Resolver, stats OutboxStats, logger *slog.Logger) *Handlers {
	return &Handlers{
		runner:   runner,
		parser:   p,
		resolver: r,
		stats:    stats,
		logger:   logger.With("component", "api"),
	}
}

type RunResponse struct {
	Summary *pipeline.RunSummary `json:"summary"`
	Error   string               `json:"error,omitempty"`
}

// StartRun runs the pipeline and returns its summary. Only one run may be in
// flight because a run owns the browser session.
func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		h.respondError(w, http.StatusConflict, "a run is already in progress")
		return
	}
	h.running = true
	h.mu.Unlock()

	resp := &RunResponse{Error: "run aborted"}
	defer func() {
		h.mu.Lock()
		h.running = false
		h.lastRun = resp
		h.mu.Unlock()
	}()

	// A run outlives the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	summary, err := h.runner.Run(r.Context())

	resp = &RunResponse{Summary: summary}
	status := http.StatusOK
	if err != nil {
		h.logger.Error("run failed", "error", err)
		resp.Error = err.Error()
		status = http.StatusBadGateway
	}

	h.respondJSON(w, status, resp)
}

func (h *Handlers) LastRun(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.lastRun
	h.mu.Unlock()

	if last == nil {
		h.respondError(w, http.StatusNotFound, "no run has finished yet")
		return
	}
	h.respondJSON(w, http.StatusOK, last)
}

type ParseRequest struct {
	Text string `json:"text"`
}

type ParseResponse struct {
	Servings  models.ServingInfo `json:"Servings"`
	Nutrients []models.Nutrient  `json:"Nutrients"`
}

func (h *Handlers) ParseNutrition(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	servings, nutrients := h.parser.Parse(req.Text)
	h.respondJSON(w, http.StatusOK, ParseResponse{Servings: servings, Nutrients: nutrients})
}

type ResolveRequest struct {
	URL string `json:"url"`
}

type ResolveResponse struct {
	Resolved bool   `json:"resolved"`
	URL      string `json:"url,omitempty"`
}

func (h *Handlers) ResolveURL(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	resolved, ok := h.resolver.Resolve(req.URL)
	h.respondJSON(w, http.StatusOK, ResolveResponse{Resolved: ok, URL: resolved})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
	}
	status := http.StatusOK

	if h.stats != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		pendingCount, pendingErr := h.stats.GetPendingCount(ctx)
		deadLetterCount, deadErr := h.stats.GetDeadLetterCount(ctx)

		health["outbox"] = map[string]interface{}{
			"pending":     pendingCount,
			"dead_letter": deadLetterCount,
		}

		switch {
		case pendingErr != nil || deadErr != nil:
			health["status"] = "error"
			health["message"] = "outbox unavailable"
			status = http.StatusServiceUnavailable
		case deadLetterCount > 100:
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		case pendingCount > 1000:
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
	}

	h.mu.Lock()
	health["run_in_progress"] = h.running
	h.mu.Unlock()

	h.respondJSON(w, status, health)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
