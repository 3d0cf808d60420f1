// Package httpapi exposes the capture engine over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/scrollshot"
	"github.com/hazyhaar/scrollshot/internal/encoder"
	"github.com/hazyhaar/scrollshot/kit"
)

// Engine is the part of the capture engine the API needs.
type Engine interface {
	Capture(ctx context.Context, req scrollshot.Request) (*scrollshot.Output, error)
	CaptureAsync(ctx context.Context, req scrollshot.Request) string
	Session(id string) (scrollshot.Snapshot, bool)
	CancelSession(id string) bool
}

// Service serves the capture API.
type Service struct {
	engine Engine
	logger *slog.Logger
}

// New creates a Service.
func New(engine Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, logger: logger}
}

// Router builds the API router.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.enrichContext)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/captures", s.handleCreate)
	r.Get("/v1/captures/{session_id}", s.handleStatus)
	r.Get("/v1/captures/{session_id}/artifact", s.handleArtifact)
	r.Delete("/v1/captures/{session_id}", s.handleCancel)
	return r
}

func (s *Service) enrichContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreateRequest is the body for POST /v1/captures.
type CreateRequest struct {
	scrollshot.Request

	// Async returns immediately with a session ID to poll.
	Async bool `json:"async,omitempty"`
}

// handleCreate starts a capture. Synchronous requests answer with the
// artifact bytes; asynchronous ones with 202 and the session ID.
// POST /v1/captures
func (s *Service) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	if req.Async {
		id := s.engine.CaptureAsync(r.Context(), req.Request)
		writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id})
		return
	}

	out, err := s.engine.Capture(r.Context(), req.Request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	serveArtifact(w, out)
}

// handleStatus reports session progress.
// GET /v1/captures/{session_id}
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	snap, ok := s.engine.Session(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleArtifact serves the finished artifact bytes.
// GET /v1/captures/{session_id}/artifact
func (s *Service) handleArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	snap, ok := s.engine.Session(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	if snap.Status != "complete" || snap.Output == nil {
		http.Error(w, "capture not complete", http.StatusConflict)
		return
	}
	serveArtifact(w, snap.Output)
}

// handleCancel cancels a running session.
// DELETE /v1/captures/{session_id}
func (s *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if !s.engine.CancelSession(id) {
		http.Error(w, "session is not running", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": true})
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	ce := scrollshot.Classify(err)
	status := http.StatusInternalServerError
	switch ce.Kind {
	case scrollshot.ElementNotFound:
		status = http.StatusNotFound
	case scrollshot.PermissionDenied:
		status = http.StatusForbidden
	}
	s.logger.Warn("httpapi: capture failed", "kind", ce.Kind.String(), "error", err)
	writeJSON(w, status, map[string]any{
		"error":              ce.UserMessage,
		"kind":               ce.Kind.String(),
		"severity":           ce.Severity.String(),
		"fallback_available": ce.Fallback,
	})
}

func serveArtifact(w http.ResponseWriter, out *scrollshot.Output) {
	w.Header().Set("Content-Type", encoder.MIMEType(out.Format))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Bytes)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
