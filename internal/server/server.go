// Package server exposes the pipeline over HTTP: starting runs, reading
// reports and summaries, and watching run progress over SSE or websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"legisum/internal/artifact"
	"legisum/internal/engine"
	"legisum/internal/model"
	"legisum/internal/pipeline"
	"legisum/internal/store"
	"legisum/internal/summary"
)

// Config wires a Server. Store, Engine, and Cache are required.
type Config struct {
	Store   store.Store
	Engine  engine.Generator
	Cache   *summary.Cache
	Archive artifact.Archive
}

type Server struct {
	cfg  Config
	runs *registry
}

func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Engine == nil || cfg.Cache == nil {
		return nil, fmt.Errorf("server: store, engine, and cache are required")
	}
	return &Server{cfg: cfg, runs: newRegistry()}, nil
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/events", s.handleRunSSE)
		r.Get("/runs/{id}/ws", s.handleRunWS)
		r.Get("/summaries/{kind}/{id}", s.handleGetSummary)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

// ListenAndServe serves with h2c so HTTP/2 works without TLS.
func (s *Server) ListenAndServe(port string) error {
	log.Printf("server: listening on %s", port)
	return http.ListenAndServe(port, h2c.NewHandler(s.Handler(), &http2.Server{}))
}

type startRunRequest struct {
	Style string `json:"style"`
	Scope string `json:"scope,omitempty"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Style) == "" {
		req.Style = "concise"
	}
	scope, err := pipeline.ParseScope(req.Scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.startRun(req.Style, scope)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// startRun registers the run entry, then launches the pipeline in the
// background, so watchers can attach before the first event.
func (s *Server) startRun(style string, scope pipeline.Scope) (string, error) {
	runID := uuid.NewString()
	entry := s.runs.create(runID)
	runner, err := pipeline.NewRunner(pipeline.Config{
		Store:   s.cfg.Store,
		Engine:  s.cfg.Engine,
		Cache:   s.cfg.Cache,
		Archive: s.cfg.Archive,
		Emitter: pipeline.EmitterFunc(entry.emit),
	})
	if err != nil {
		return "", err
	}
	go func() {
		report, runErr := runner.RunWithID(context.Background(), runID, style, scope)
		entry.finish(report, runErr)
	}()
	return runID, nil
}

type runView struct {
	RunID  string              `json:"run_id"`
	Status string              `json:"status"`
	Report *pipeline.RunReport `json:"report,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	entry, ok := s.runs.get(runID)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	report, errMsg, done := entry.snapshot()
	view := runView{RunID: runID, Status: "running"}
	if done {
		view.Status = "done"
		view.Report = report
		if errMsg != "" {
			view.Status = "failed"
			view.Error = errMsg
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	ref := model.EntityRef{
		Kind: model.EntityKind(chi.URLParam(r, "kind")),
		ID:   chi.URLParam(r, "id"),
	}
	if err := ref.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	style := strings.TrimSpace(r.URL.Query().Get("style"))
	if style == "" {
		style = "concise"
	}
	sum, err := s.cfg.Store.GetSummary(r.Context(), ref, style)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "summary not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}
