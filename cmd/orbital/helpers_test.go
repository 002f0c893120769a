package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elee1766/orbital/src/app"
	"github.com/elee1766/orbital/src/config"
)

// relayHandler answers like the completion relay: a fixed model list and a
// two-chunk streamed reply.
func relayHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"openai/gpt-4o","name":"GPT-4o","context_length":128000},{"id":"anthropic/claude-3.5-sonnet","name":"Claude","context_length":200000},{"id":"openrouter/auto","name":"Auto","context_length":100000}]}`)
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"!\",\"reasoning\":\"greeting back\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	return mux
}

// holdingRelay opens the reply stream and keeps it open until the client
// goes away.
func holdingRelay() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Thinking\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	return newTestAppWithRelay(t, relayHandler())
}

func newTestAppWithRelay(t *testing.T, handler http.Handler) *app.App {
	t.Helper()
	relay := httptest.NewServer(handler)
	t.Cleanup(relay.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = relay.URL
	cfg.API.APIKey = "test-key"
	cfg.API.RateLimit.RequestsPerMinute = 0
	cfg.Search.Enabled = false
	cfg.Storage.Path = filepath.Join(t.TempDir(), "conversations.db")

	a, err := app.New(context.Background(), app.Options{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}
