package main

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elee1766/orbital/src/conversation"
)

type sseEvent struct {
	Type string
	Data map[string]any
}

func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var (
		events []sseEvent
		cur    sseEvent
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			cur.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &cur.Data))
		case line == "":
			if cur.Type != "" {
				events = append(events, cur)
			}
			cur = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestServerConversationFlow(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(newRouter(a, discardLogger()))
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/api/conversations", `{"providerId":"openai","modelId":"openai/gpt-4o"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var draft map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&draft))
	resp.Body.Close()
	id := draft["id"].(string)
	assert.Equal(t, "draft", draft["state"])
	assert.Equal(t, "openai/gpt-4o", draft["modelId"])

	resp = do(t, http.MethodPost, srv.URL+"/api/conversations/"+id+"/messages", `{"content":"say hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	events := readEvents(t, resp)
	resp.Body.Close()

	require.NotEmpty(t, events)
	assert.Equal(t, string(conversation.EventUserMessage), events[0].Type)
	assert.Equal(t, "say hello", events[0].Data["title"])
	last := events[len(events)-1]
	require.Equal(t, string(conversation.EventStreamFinished), last.Type)
	assert.Equal(t, "Hello!", last.Data["message"].(map[string]any)["content"])

	var deltas int
	for _, e := range events {
		if e.Type == string(conversation.EventDeltaApplied) {
			deltas++
		}
	}
	assert.Equal(t, 2, deltas)

	resp = do(t, http.MethodGet, srv.URL+"/api/conversations", "")
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, "idle", list[0]["state"])

	resp = do(t, http.MethodPatch, srv.URL+"/api/conversations/"+id, `{"title":"Greetings"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, http.MethodGet, srv.URL+"/api/conversations/"+id+"/export", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "Greetings.json")
	var export conversation.Export
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&export))
	resp.Body.Close()
	assert.Equal(t, "Greetings", export.Title)
	require.Len(t, export.Messages, 2)

	resp = do(t, http.MethodDelete, srv.URL+"/api/conversations/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, http.MethodGet, srv.URL+"/api/conversations/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServerErrors(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(newRouter(a, discardLogger()))
	defer srv.Close()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"unknown conversation", http.MethodGet, "/api/conversations/nope", "", http.StatusNotFound},
		{"send to unknown", http.MethodPost, "/api/conversations/nope/messages", `{"content":"hi"}`, http.StatusNotFound},
		{"empty message", http.MethodPost, "/api/conversations/nope/messages", `{"content":"  "}`, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/api/conversations/nope/messages", `{`, http.StatusBadRequest},
		{"stop idle", http.MethodPost, "/api/conversations/nope/stop", "", http.StatusConflict},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, tt.body)
			resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestServerModels(t *testing.T) {
	a := newTestApp(t)
	srv := httptest.NewServer(newRouter(a, discardLogger()))
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/api/models", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var groups []struct {
		Provider string `json:"provider"`
		Models   []any  `json:"models"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&groups))
	require.Len(t, groups, 3)
	assert.Equal(t, "anthropic", groups[0].Provider)
}
