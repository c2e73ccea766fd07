// Package server exposes the pipeline over HTTP. POST /api/runs starts a
// run and streams its events as newline-delimited JSON, ending with the
// final run record. GET /api/runs/{id} returns the last-known record for
// live and persisted runs.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/store"
)

// Server routes pipeline runs over HTTP. The store is optional; without it
// only live runs are queryable.
type Server struct {
	pipeline *quill.Pipeline
	store    *store.Store
	logger   *slog.Logger
	registry *runRegistry
}

type runRegistry struct {
	mu   sync.Mutex
	runs map[string]*quill.Run
}

func newRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*quill.Run)}
}

func (r *runRegistry) set(id string, run *quill.Run) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id] = run
}

func (r *runRegistry) get(id string) (*quill.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// New builds a Server around a configured pipeline. Pass a nil store to
// disable persistence and a nil logger to use the default.
func New(pipeline *quill.Pipeline, st *store.Store, logger *slog.Logger) (*Server, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		pipeline: pipeline,
		store:    st,
		logger:   logger,
		registry: newRegistry(),
	}, nil
}

// Routes returns the HTTP handler for the API surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.handleRunCreate)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	return s.logMiddleware(mux)
}

type runRequest struct {
	Brief        quill.Brief        `json:"brief"`
	BrandProfile quill.BrandProfile `json:"brand_profile"`
}

func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	run, err := s.pipeline.Run(r.Context(), req.Brief, req.BrandProfile)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, quill.ErrValidation) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.registry.set(run.ID(), run)

	s.streamRun(w, run)
}

// streamRun writes one JSON object per line: an acceptance line carrying
// the run id, then every pipeline event in order, then the terminal run
// record. Each line is flushed so clients observe progress live.
func (s *Server) streamRun(w http.ResponseWriter, run *quill.Run) {
	h := w.Header()
	h.Set("Content-Type", "application/x-ndjson")
	h.Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	writeLine := func(v any) {
		_ = enc.Encode(v)
		if flusher != nil {
			flusher.Flush()
		}
	}

	writeLine(wireEvent{Type: eventRunAccepted, RunID: run.ID()})

	for ev := range run.Next() {
		writeLine(newWireEvent(ev))
	}

	rec := s.finalRecord(run)
	writeLine(wireState{Type: eventRunState, Run: rec})
}

// finalRecord snapshots the terminal run and persists it when a store is
// configured. Persistence failures are logged, never surfaced to the
// streaming client.
func (s *Server) finalRecord(run *quill.Run) store.Record {
	state := run.State()
	var artifact *quill.Artifact
	if state.Status == quill.StatusComplete {
		artifact, _ = run.Artifact()
	}
	rec := store.NewRecord(state, artifact)

	if s.store != nil {
		if err := s.store.Save(nil, rec); err != nil {
			s.logger.Error("persist run failed", "run_id", rec.RunID, "error", err)
		}
	}
	return rec
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleRunGet(w, r, id)
	case http.MethodDelete:
		s.handleRunCancel(w, r, id)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRunGet(w http.ResponseWriter, r *http.Request, id string) {
	if run, ok := s.registry.get(id); ok {
		state := run.State()
		var artifact *quill.Artifact
		if state.Status == quill.StatusComplete {
			artifact, _ = run.Artifact()
		}
		writeJSON(w, store.NewRecord(state, artifact))
		return
	}

	if s.store != nil {
		rec, err := s.store.Get(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rec != nil {
			writeJSON(w, *rec)
			return
		}
	}
	http.Error(w, "run not found", http.StatusNotFound)
}

func (s *Server) handleRunCancel(w http.ResponseWriter, r *http.Request, id string) {
	run, ok := s.registry.get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	run.Cancel()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(store.NewRecord(run.State(), nil))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
