package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ericfisherdev/hookrelay/internal/adapter/driven/chat"
	"github.com/ericfisherdev/hookrelay/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_PostsArtifactAsJSON(t *testing.T) {
	var received model.Artifact
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	d := chat.NewDispatcher()
	artifact := model.Artifact{
		Text:      "alice pushed 1 commit to main",
		Link:      "https://github.com/octocat/hello-world/commit/abc123",
		EventType: "push",
		Repo:      "octocat/hello-world",
	}

	err := d.Dispatch(context.Background(), server.URL, artifact)

	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, artifact, received)
}

func TestDispatch_NonSuccessStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	d := chat.NewDispatcher()

	err := d.Dispatch(context.Background(), server.URL, model.Artifact{Text: "hi"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestDispatch_UnreachableChannel(t *testing.T) {
	d := chat.NewDispatcher()

	err := d.Dispatch(context.Background(), "http://127.0.0.1:1/hooks/nope", model.Artifact{Text: "hi"})

	assert.Error(t, err)
}

func TestDispatch_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		server.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := chat.NewDispatcher()
	err := d.Dispatch(ctx, server.URL, model.Artifact{Text: "hi"})

	assert.Error(t, err)
}
