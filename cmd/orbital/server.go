package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/elee1766/orbital/src/app"
	"github.com/elee1766/orbital/src/capability"
	"github.com/elee1766/orbital/src/conversation"
)

type server struct {
	app    *app.App
	logger *slog.Logger
}

// newRouter exposes the conversation store over HTTP. Replies stream as
// server-sent events, one per conversation event.
func newRouter(a *app.App, logger *slog.Logger) http.Handler {
	s := &server{app: a, logger: logger.With("component", "http_server")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Post("/", s.handleNewChat)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Patch("/", s.handleUpdate)
				r.Delete("/", s.handleDelete)
				r.Post("/messages", s.handleSend)
				r.Post("/stop", s.handleStop)
				r.Get("/export", s.handleExport)
			})
		})
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type conversationView struct {
	*conversation.Conversation
	State conversation.State `json:"state"`
}

func (s *server) view(conv *conversation.Conversation) conversationView {
	return conversationView{Conversation: conv, State: s.app.Store.State(conv.ID)}
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	list := s.app.Store.List()
	out := make([]conversationView, 0, len(list))
	for _, conv := range list {
		out = append(out, s.view(conv))
	}
	writeJSON(w, http.StatusOK, out)
}

type newChatRequest struct {
	ProviderID string `json:"providerId"`
	ModelID    string `json:"modelId"`
}

func (s *server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	var req newChatRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
			return
		}
	}
	draft := s.app.Store.NewChat(req.ProviderID, req.ModelID)
	writeJSON(w, http.StatusCreated, s.view(draft))
}

// lookup finds a stored conversation or the draft.
func (s *server) lookup(id string) (*conversation.Conversation, error) {
	if d := s.app.Store.Draft(); d != nil && d.ID == id {
		return d, nil
	}
	return s.app.Store.Get(id)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := s.lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(conv))
}

type updateRequest struct {
	Title      *string `json:"title"`
	ProviderID *string `json:"providerId"`
	ModelID    *string `json:"modelId"`
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	ctx := r.Context()
	if req.Title != nil {
		if err := s.app.Store.Rename(ctx, id, *req.Title); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if req.ModelID != nil {
		provider := ""
		if req.ProviderID != nil {
			provider = *req.ProviderID
		}
		if err := s.app.Store.SetModel(ctx, id, provider, *req.ModelID); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	s.handleGet(w, r)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Store.Stop(chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.app.Store.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", conversation.ExportFilename(conv)))
	if err := s.app.Store.Export(id, w); err != nil {
		s.logger.Warn("export failed", "conversation", id, "error", err)
	}
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.app.Provider.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, capability.GroupByProvider(models))
}

type sendRequest struct {
	Content string `json:"content"`
}

// handleSend streams one turn. Closing the connection stops the stream.
func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	events := &sseWriter{w: w, logger: s.logger}
	sink := conversation.NewSyncEventSink(s.logger, events)
	_, err := s.app.Store.Send(r.Context(), chi.URLParam(r, "id"), req.Content, conversation.WithEvents(sink))
	if err != nil {
		// Send fails before any event is produced.
		writeStoreError(w, err)
	}
}

// sseWriter writes conversation events as server-sent events. Headers are
// sent with the first event.
type sseWriter struct {
	w       http.ResponseWriter
	logger  *slog.Logger
	started bool
}

func (e *sseWriter) Process(event conversation.ConversationEvent) error {
	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", event.GetType(), data); err != nil {
		return err
	}
	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (e *sseWriter) Close() error { return nil }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound), errors.Is(err, conversation.ErrNoDraft):
		status = http.StatusNotFound
	case errors.Is(err, conversation.ErrStreamInFlight), errors.Is(err, conversation.ErrNotStreaming):
		status = http.StatusConflict
	case errors.Is(err, conversation.ErrEmptyMessage):
		status = http.StatusBadRequest
	}
	writeError(w, status, err)
}
