package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// acceptedResponse acknowledges a webhook delivery before processing begins.
type acceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// RepoResponse is the JSON representation of a routing entry.
type RepoResponse struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Channel       string `json:"channel"`
	HasSecret     bool   `json:"has_secret"`
	Active        bool   `json:"active"`
	Mode          string `json:"mode"`
	Credential    string `json:"credential,omitempty"`
	LastCommitSHA string `json:"last_commit_sha,omitempty"`
	LastPolledAt  string `json:"last_polled_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// AddRepoRequest is the JSON body for the add repository endpoint.
type AddRepoRequest struct {
	FullName   string `json:"full_name"`
	Channel    string `json:"channel"`
	Secret     string `json:"secret"`
	Mode       string `json:"mode"`
	Credential string `json:"credential"`
}

// UpdateRepoRequest is the JSON body for the partial update endpoint. Nil
// fields are left unchanged.
type UpdateRepoRequest struct {
	Channel    *string `json:"channel"`
	Secret     *string `json:"secret"`
	Active     *bool   `json:"active"`
	Mode       *string `json:"mode"`
	Credential *string `json:"credential"`
}

// MuteResponse is the JSON representation of an active mute.
type MuteResponse struct {
	EventType string `json:"event_type"`
	ExpiresAt string `json:"expires_at"`
	Actor     string `json:"actor,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// AddMuteRequest is the JSON body for the add mute endpoint. Duration is a
// Go duration string such as "15m" or "2h".
type AddMuteRequest struct {
	EventType string `json:"event_type"`
	Duration  string `json:"duration"`
	Actor     string `json:"actor"`
	Reason    string `json:"reason"`
}

// DigestResponse is the JSON representation of one digest entry.
type DigestResponse struct {
	EventType string `json:"event_type"`
	Summary   string `json:"summary"`
	Link      string `json:"link,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Repo      string `json:"repo,omitempty"`
	Outcome   string `json:"outcome"`
	CreatedAt string `json:"created_at"`
}

// CounterResponse holds the cumulative outcome counters.
type CounterResponse struct {
	Received int64 `json:"received"`
	Sent     int64 `json:"sent"`
	Dropped  int64 `json:"dropped"`
	Ignored  int64 `json:"ignored"`
	Muted    int64 `json:"muted"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status   string          `json:"status"`
	Time     string          `json:"time"`
	Tracked  int             `json:"tracked"`
	Pollable int             `json:"pollable"`
	Mutes    []MuteResponse  `json:"mutes"`
	Counters CounterResponse `json:"counters"`
}

// toRepoResponse converts a routing entry to its JSON representation. The
// secret itself is never echoed back.
func toRepoResponse(entry model.RoutingEntry) RepoResponse {
	resp := RepoResponse{
		ID:            entry.ID,
		FullName:      entry.FullName,
		Owner:         entry.Owner,
		Name:          entry.Name,
		Channel:       entry.Channel,
		HasSecret:     entry.Secret != "",
		Active:        entry.Active,
		Mode:          string(entry.Mode),
		Credential:    entry.Credential,
		LastCommitSHA: entry.LastCommitSHA,
		LastError:     entry.LastError,
		CreatedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
	}

	if !entry.LastPolledAt.IsZero() {
		resp.LastPolledAt = entry.LastPolledAt.UTC().Format(time.RFC3339)
	}

	return resp
}

// toMuteResponses converts mute entries to their JSON representation.
func toMuteResponses(mutes []model.MuteEntry) []MuteResponse {
	resp := make([]MuteResponse, 0, len(mutes))
	for _, m := range mutes {
		resp = append(resp, MuteResponse{
			EventType: m.EventType,
			ExpiresAt: m.ExpiresAt.UTC().Format(time.RFC3339),
			Actor:     m.Actor,
			Reason:    m.Reason,
		})
	}
	return resp
}

// toDigestResponse converts a digest entry to its JSON representation.
func toDigestResponse(entry model.DigestEntry) DigestResponse {
	return DigestResponse{
		EventType: entry.EventType,
		Summary:   entry.Summary,
		Link:      entry.Link,
		Actor:     entry.Actor,
		Repo:      entry.Repo,
		Outcome:   string(entry.Outcome),
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
	}
}
