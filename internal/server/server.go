// Package server exposes task submission over HTTP and runs submitted tasks
// in a background worker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ken0yuan/auto-ai-web/internal/agent"
	"github.com/ken0yuan/auto-ai-web/internal/taskstore"
)

// Runner executes one task against a URL. The production runner launches a
// browser page and drives the agent loop; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, url, task string) (*agent.Outcome, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, url, task string) (*agent.Outcome, error)

func (f RunnerFunc) Run(ctx context.Context, url, task string) (*agent.Outcome, error) {
	return f(ctx, url, task)
}

// Server ties the router, store and worker together.
type Server struct {
	log    *zap.Logger
	store  *taskstore.Store
	runner Runner
	router chi.Router
}

// New creates the server.
func New(log *zap.Logger, store *taskstore.Store, runner Runner) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:    log.Named("server"),
		store:  store,
		runner: runner,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Get("/health", s.handleHealth)
	r.Post("/submit", s.handleSubmit)
	r.Get("/status/{id}", s.handleStatus)
	s.router = r
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe starts the HTTP listener and the worker, blocking until ctx
// is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	go s.workerLoop(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type submitRequest struct {
	URL  string `json:"url"`
	Task string `json:"task"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	req.Task = strings.TrimSpace(req.Task)
	if req.URL == "" || req.Task == "" {
		writeError(w, http.StatusBadRequest, "url and task are required")
		return
	}

	t, err := s.store.Create(r.Context(), req.URL, req.Task)
	if err != nil {
		s.log.Error("create task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not store task")
		return
	}
	s.log.Info("task submitted", zap.String("id", t.ID), zap.String("url", t.URL))
	writeJSON(w, http.StatusAccepted, t)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.store.Get(r.Context(), id)
	if errors.Is(err, taskstore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such task")
		return
	}
	if err != nil {
		s.log.Error("get task", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// workerLoop drains pending tasks one at a time. Browser sessions do not
// share well, so there is no parallelism here; a queued task waits for the
// running one to finish.
func (s *Server) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.drainPending(ctx)
		}
	}
}

func (s *Server) drainPending(ctx context.Context) {
	for {
		t, err := s.store.NextPending(ctx)
		if errors.Is(err, taskstore.ErrNotFound) {
			return
		}
		if err != nil {
			s.log.Error("claim task", zap.Error(err))
			return
		}
		s.runTask(ctx, t)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Server) runTask(ctx context.Context, t *taskstore.Task) {
	s.log.Info("running task", zap.String("id", t.ID), zap.String("url", t.URL))

	outcome, err := s.runner.Run(ctx, t.URL, t.Task)
	switch {
	case err != nil && outcome != nil:
		// The loop ran out of steps; keep the partial history count.
		s.storeResult(t.ID, func() error {
			return s.store.Fail(context.Background(), t.ID, err.Error(), outcome.Steps)
		})
	case err != nil:
		s.storeResult(t.ID, func() error {
			return s.store.Fail(context.Background(), t.ID, err.Error(), 0)
		})
	default:
		s.storeResult(t.ID, func() error {
			return s.store.Complete(context.Background(), t.ID, outcome.Message, outcome.Steps)
		})
	}
}

func (s *Server) storeResult(id string, write func() error) {
	if err := write(); err != nil {
		s.log.Error("store result", zap.String("id", id), zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
