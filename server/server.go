// Package server exposes the session registry over HTTP: session CRUD,
// feedback submission, result retrieval, and a WebSocket event stream.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/deepnoodle-ai/briefing"
	"github.com/deepnoodle-ai/briefing/eventlog"
)

// Options configures a Server.
type Options struct {
	Registry *briefing.Registry
	StageLog eventlog.Logger
	Logger   *slog.Logger
}

// Server is the HTTP front end of the briefing engine.
type Server struct {
	registry *briefing.Registry
	stageLog eventlog.Logger
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates the server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, briefing.NewValidationError("registry is required")
	}
	if opts.StageLog == nil {
		opts.StageLog = eventlog.NewNullLogger()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		registry: opts.Registry,
		stageLog: opts.StageLog,
		logger:   opts.Logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /sessions/start", s.handleStart)
	s.mux.HandleFunc("GET /sessions", s.handleList)
	s.mux.HandleFunc("GET /sessions/{id}/status", s.handleStatus)
	s.mux.HandleFunc("POST /sessions/{id}/feedback", s.handleFeedback)
	s.mux.HandleFunc("GET /sessions/{id}/result", s.handleResult)
	s.mux.HandleFunc("GET /sessions/{id}/logs", s.handleLogs)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /sessions/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var config briefing.SessionConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		s.writeError(w, briefing.NewValidationError("invalid request body: %v", err))
		return
	}
	session, err := s.registry.Create(r.Context(), config)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("session started", "session_id", session.ID, "topic", session.Topic)
	s.writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.registry.List(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.registry.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

type feedbackRequest struct {
	CheckpointType briefing.CheckpointType `json:"checkpoint_type"`
	Decision       string                  `json:"decision"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, briefing.NewValidationError("invalid request body: %v", err))
		return
	}
	// The checkpoint type may also arrive as a query parameter.
	if qt := r.URL.Query().Get("checkpoint_type"); qt != "" {
		req.CheckpointType = briefing.CheckpointType(qt)
	}
	id := r.PathValue("id")
	if err := s.registry.SubmitFeedback(r.Context(), id, req.CheckpointType, req.Decision); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      id,
		"checkpoint_type": req.CheckpointType,
		"accepted":        true,
	})
}

type resultResponse struct {
	SessionID      string                       `json:"session_id"`
	Status         briefing.Status              `json:"status"`
	Topic          string                       `json:"topic"`
	PlanSummary    string                       `json:"plan_summary,omitempty"`
	Outline        string                       `json:"outline,omitempty"`
	Brief          string                       `json:"brief,omitempty"`
	FormattedBrief string                       `json:"formatted_brief,omitempty"`
	Claims         []briefing.Claim             `json:"claims,omitempty"`
	CitationMap    map[string]briefing.Citation `json:"citation_map,omitempty"`
	Sources        []briefing.Source            `json:"sources,omitempty"`
}

// handleResult returns whatever the pipeline has produced so far; before
// completion that is a partial result.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.registry.CheckpointState(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, &resultResponse{
		SessionID:      id,
		Status:         state.Status,
		Topic:          state.Topic,
		PlanSummary:    state.PlanSummary,
		Outline:        state.Outline,
		Brief:          state.Brief,
		FormattedBrief: state.FormattedBrief,
		Claims:         state.Claims,
		CitationMap:    state.CitationMap,
		Sources:        state.PrioritizedSources,
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.registry.Get(id); err != nil {
		s.writeError(w, err)
		return
	}
	history, err := s.stageLog.StageHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"stages":     history,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.stageLog.DeleteHistory(r.Context(), id); err != nil {
		s.logger.Warn("failed to delete stage history", "session_id", id, "error", err)
	}
	s.logger.Info("session deleted", "session_id", id)
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.registry.Subscribe(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.registry.Unsubscribe(id, sub)
		s.logger.Warn("websocket accept failed", "session_id", id, "error", err)
		return
	}
	defer s.registry.Unsubscribe(id, sub)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-sub.Events():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.registry.List()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, briefing.ErrSessionNotFound):
		status = http.StatusNotFound
	case briefing.IsValidationError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]any{"error": err.Error()})
}
