package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/orbital/src/config"
	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/storage"
)

type fakeRelay struct {
	mu       sync.Mutex
	requests []map[string]any
}

func (f *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"id":"openrouter/auto","name":"Auto","context_length":100000,"top_provider":{"max_completion_tokens":2000}}]}`)
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.requests = append(f.requests, body)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"!\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	return mux
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, baseURL, driver string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.APIKey = "test-key"
	cfg.API.RateLimit.RequestsPerMinute = 0
	cfg.Search.Enabled = false
	cfg.Storage.Driver = driver
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state", "conversations."+driver)
	return cfg
}

func TestSendThroughApp(t *testing.T) {
	for _, driver := range []string{storage.DriverSQLite, storage.DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			relay := &fakeRelay{}
			srv := httptest.NewServer(relay.handler())
			defer srv.Close()

			cfg := testConfig(t, srv.URL, driver)
			ctx := context.Background()

			a, err := New(ctx, Options{Config: cfg})
			require.NoError(t, err)
			assert.Nil(t, a.Search)

			res, err := a.Store.Send(ctx, "", "hi there")
			require.NoError(t, err)
			require.NoError(t, res.Err)
			assert.Equal(t, "Hello!", res.Message.Content)
			assert.Equal(t, 2000, res.Stats.MaxCompletionTokens)

			relay.mu.Lock()
			require.Len(t, relay.requests, 1)
			req := relay.requests[0]
			relay.mu.Unlock()
			assert.Equal(t, true, req["stream"])
			assert.Equal(t, "openrouter/auto", req["model"])
			assert.InDelta(t, 0.7, req["temperature"], 1e-9)

			require.NoError(t, a.Close())

			reopened, err := New(ctx, Options{Config: cfg})
			require.NoError(t, err)
			defer reopened.Close()

			conv, err := reopened.Store.Get(res.ConversationID)
			require.NoError(t, err)
			assert.Equal(t, "hi there", conv.Title)
			require.Len(t, conv.Messages, 2)
			assert.Equal(t, "Hello!", conv.Messages[1].Content)
		})
	}
}

func TestEphemeralApp(t *testing.T) {
	relay := &fakeRelay{}
	srv := httptest.NewServer(relay.handler())
	defer srv.Close()

	cfg := testConfig(t, srv.URL, storage.DriverSQLite)
	a, err := New(context.Background(), Options{Config: cfg, Ephemeral: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Repository)
	_, err = a.Store.Send(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Len(t, a.Store.List(), 1)
}

func TestSearchWiring(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.Enabled = true

	assert.Nil(t, newSearch(cfg, nil, discardLogger()), "no key, no search")

	cfg.Search.APIKey = "fc-key"
	assert.NotNil(t, newSearch(cfg, nil, discardLogger()))

	cfg.Search.Enabled = false
	assert.Nil(t, newSearch(cfg, nil, discardLogger()))
}

func TestEventsReachSink(t *testing.T) {
	relay := &fakeRelay{}
	srv := httptest.NewServer(relay.handler())
	defer srv.Close()

	var mu sync.Mutex
	var types []conversation.EventType
	sink := conversation.NewSyncEventSink(nil, conversation.ProcessorFunc(func(e conversation.ConversationEvent) error {
		mu.Lock()
		types = append(types, e.GetType())
		mu.Unlock()
		return nil
	}))

	a, err := New(context.Background(), Options{Config: testConfig(t, srv.URL, storage.DriverSQLite), Events: sink, Ephemeral: true})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Store.Send(context.Background(), "", "hi")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, conversation.EventUserMessage, types[0])
	assert.Equal(t, conversation.EventStreamFinished, types[len(types)-1])
}
