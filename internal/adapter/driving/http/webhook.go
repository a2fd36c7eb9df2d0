package httphandler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/ericfisherdev/hookrelay/internal/application"
)

// maxWebhookBodySize bounds inbound payloads. GitHub's documented maximum
// is ~25 MB for push events with large commit histories; 32 MB gives
// comfortable headroom.
const maxWebhookBodySize = 32 * 1024 * 1024

// Webhook handles the legacy single-target endpoint: no explicit routing
// target in the path, so resolution falls through to the payload identity
// and then the configured fallback.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	h.acceptWebhook(w, r, application.EventRef{})
}

// WebhookByID handles deliveries addressed to a routing entry by numeric id.
func (h *Handler) WebhookByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid routing entry id")
		return
	}

	h.acceptWebhook(w, r, application.EventRef{ID: id})
}

// WebhookByRepo handles deliveries addressed to a routing entry by
// owner/name identity.
func (h *Handler) WebhookByRepo(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	repo := r.PathValue("repo")

	if !isValidRepoName(owner + "/" + repo) {
		writeError(w, http.StatusNotFound, "unknown webhook route")
		return
	}

	h.acceptWebhook(w, r, application.EventRef{FullName: owner + "/" + repo})
}

// acceptWebhook performs structural validation, acknowledges the delivery,
// and only then runs the routing pipeline. GitHub's delivery timeout is
// short and the pipeline may make network calls, so the response must not
// wait for the delivery outcome: the response is written and flushed first,
// and processing continues on a request-detached context.
func (h *Handler) acceptWebhook(w http.ResponseWriter, r *http.Request, ref application.EventRef) {
	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		writeError(w, http.StatusBadRequest, "missing X-GitHub-Event header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")

	writeJSON(w, http.StatusOK, acceptedResponse{Accepted: true})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.logger.Debug("webhook accepted",
		"event_type", eventType,
		"delivery_id", r.Header.Get("X-GitHub-Delivery"),
	)

	outcome := h.router.ProcessWebhook(context.WithoutCancel(r.Context()), ref, eventType, signature, body)

	h.logger.Info("webhook processed",
		"event_type", eventType,
		"outcome", string(outcome),
	)
}
