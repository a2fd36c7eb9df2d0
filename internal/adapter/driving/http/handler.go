// Package httphandler is the HTTP driving adapter: webhook ingress, the
// health endpoint, and the management REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/application"
	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/ericfisherdev/hookrelay/internal/domain/port/driven"
)

// Handler serves webhook ingress and the management API.
type Handler struct {
	routingStore driven.RoutingStore
	router       *application.RouterService
	pollSvc      *application.PollService
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	routingStore driven.RoutingStore,
	router *application.RouterService,
	pollSvc *application.PollService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		routingStore: routingStore,
		router:       router,
		pollSvc:      pollSvc,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and
// wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("POST /webhook/{id}", h.WebhookByID)
	mux.HandleFunc("POST /webhook/{owner}/{repo}", h.WebhookByRepo)

	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.AddRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}", h.GetRepo)
	mux.HandleFunc("PATCH /api/v1/repos/{owner}/{repo}", h.UpdateRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.RemoveRepo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/poll", h.TriggerPoll)

	mux.HandleFunc("GET /api/v1/mutes", h.ListMutes)
	mux.HandleFunc("POST /api/v1/mutes", h.AddMute)
	mux.HandleFunc("DELETE /api/v1/mutes/{event}", h.RemoveMute)

	mux.HandleFunc("GET /api/v1/digest", h.Digest)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListRepos returns all routing entries.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	entries, err := h.routingStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list routing entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toRepoResponse(entry))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetRepo returns a single routing entry by owner/name.
func (h *Handler) GetRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	entry, err := h.routingStore.GetByFullName(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to get routing entry", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if entry == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(*entry))
}

// AddRepo registers a repository for event routing.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !isValidRepoName(req.FullName) {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}

	mode := model.DeliveryMode(req.Mode)
	if mode == "" {
		mode = model.DeliveryModeWebhook
	}
	if mode != model.DeliveryModeWebhook && mode != model.DeliveryModePolling {
		writeError(w, http.StatusBadRequest, "invalid mode: expected webhook or polling")
		return
	}

	parts := strings.SplitN(req.FullName, "/", 2)
	entry := model.RoutingEntry{
		Owner:      parts[0],
		Name:       parts[1],
		FullName:   req.FullName,
		Channel:    req.Channel,
		Secret:     req.Secret,
		Active:     true,
		Mode:       mode,
		Credential: req.Credential,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.routingStore.Add(r.Context(), entry); err != nil {
		if errors.Is(err, driven.ErrEntryAlreadyExists) {
			writeError(w, http.StatusConflict, "repository already exists")
			return
		}
		h.logger.Error("failed to add routing entry", "repo", req.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(entry))
}

// UpdateRepo applies partial updates to a routing entry.
func (h *Handler) UpdateRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	var req UpdateRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var mode *model.DeliveryMode
	if req.Mode != nil {
		m := model.DeliveryMode(*req.Mode)
		if m != model.DeliveryModeWebhook && m != model.DeliveryModePolling {
			writeError(w, http.StatusBadRequest, "invalid mode: expected webhook or polling")
			return
		}
		mode = &m
	}

	entry, err := h.routingStore.GetByFullName(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to get routing entry", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return
	}

	update := driven.RoutingUpdate{
		Channel:    req.Channel,
		Secret:     req.Secret,
		Active:     req.Active,
		Mode:       mode,
		Credential: req.Credential,
	}

	if err := h.routingStore.Update(r.Context(), entry.ID, update); err != nil {
		if errors.Is(err, driven.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		h.logger.Error("failed to update routing entry", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := h.routingStore.GetByFullName(r.Context(), fullName)
	if err != nil || updated == nil {
		h.logger.Error("failed to reload routing entry", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toRepoResponse(*updated))
}

// RemoveRepo deletes a routing entry.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if err := h.routingStore.Remove(r.Context(), fullName); err != nil {
		if errors.Is(err, driven.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		h.logger.Error("failed to remove routing entry", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// TriggerPoll runs a manual single-shot poll for one repository.
func (h *Handler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	fullName := r.PathValue("owner") + "/" + r.PathValue("repo")

	if h.pollSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "polling is not running")
		return
	}

	if err := h.pollSvc.PollNow(r.Context(), fullName); err != nil {
		switch {
		case errors.Is(err, driven.ErrEntryNotFound):
			writeError(w, http.StatusNotFound, "repository not found")
		case errors.Is(err, driven.ErrNotPollable):
			writeError(w, http.StatusConflict, "repository is not polling-enabled")
		default:
			h.logger.Error("manual poll failed", "repo", fullName, "error", err)
			writeError(w, http.StatusBadGateway, "poll failed")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMutes returns all active mutes.
func (h *Handler) ListMutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toMuteResponses(h.router.Mutes().ListActive()))
}

// AddMute installs or replaces a mute for an event type.
func (h *Handler) AddMute(w http.ResponseWriter, r *http.Request) {
	var req AddMuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EventType == "" {
		writeError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	duration, err := time.ParseDuration(req.Duration)
	if err != nil || duration <= 0 {
		writeError(w, http.StatusBadRequest, "duration must be a positive Go duration string")
		return
	}

	h.router.Mutes().Mute(req.EventType, duration, req.Actor, req.Reason)
	h.logger.Info("event type muted",
		"event_type", req.EventType,
		"duration", duration,
		"actor", req.Actor,
	)

	w.WriteHeader(http.StatusNoContent)
}

// RemoveMute lifts the mute for an event type.
func (h *Handler) RemoveMute(w http.ResponseWriter, r *http.Request) {
	eventType := r.PathValue("event")

	if !h.router.Mutes().Unmute(eventType) {
		writeError(w, http.StatusNotFound, "no active mute for event type")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Digest returns the most recent processed-event records, oldest first.
func (h *Handler) Digest(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries := h.router.Digest().Recent(limit)
	resp := make([]DigestResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toDigestResponse(entry))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health reports overall status, tracked entry counts, active mutes, and
// cumulative outcome counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	active, err := h.routingStore.ListActive(r.Context())
	if err != nil {
		h.logger.Error("health: failed to list active entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	pollable, err := h.routingStore.ListPollable(r.Context())
	if err != nil {
		h.logger.Error("health: failed to list pollable entries", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	stats := h.router.Stats().Snapshot()

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339),
		Tracked:  len(active),
		Pollable: len(pollable),
		Mutes:    toMuteResponses(h.router.Mutes().ListActive()),
		Counters: CounterResponse{
			Received: stats.Received,
			Sent:     stats.Sent,
			Dropped:  stats.Dropped,
			Ignored:  stats.Ignored,
			Muted:    stats.Muted,
		},
	})
}

// isValidRepoName validates that name is in owner/repo format where each
// part contains only alphanumeric characters, hyphens, dots, or underscores.
func isValidRepoName(name string) bool {
	parts := strings.SplitN(name, "/", 3)
	if len(parts) != 2 {
		return false
	}

	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, ch := range part {
			if !isValidRepoChar(ch) {
				return false
			}
		}
	}

	return true
}

// isValidRepoChar returns true if the rune is allowed in a repository owner
// or name.
func isValidRepoChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_'
}
