// Package server exposes the latest report and live pipeline progress over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/ideaforge/internal/progress/sse"
	"github.com/thebtf/ideaforge/internal/report"
	"github.com/thebtf/ideaforge/pkg/models"
)

// RunFunc runs the pipeline once and returns its report.
type RunFunc func(ctx context.Context) (models.Report, error)

// ErrRunInProgress is returned by Trigger while a run is active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// RunStatus describes the most recent run.
type RunStatus struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
	Running    bool      `json:"running"`
	// Pending is set while a follow-up run is queued behind the active one.
	Pending bool `json:"pending,omitempty"`
}

// Server serves /health, /api/ideas, /api/runs and /api/events.
type Server struct {
	startTime   time.Time
	ctx         context.Context
	router      *chi.Mux
	broadcaster *sse.Broadcaster
	run         RunFunc
	latest      atomic.Pointer[models.Report]
	version     string
	status      RunStatus
	wg          sync.WaitGroup
	mu          sync.Mutex
	pending     bool
}

// New creates a Server. run may be nil, in which case runs cannot be triggered.
// Runs started by the server are cancelled when ctx is done.
func New(ctx context.Context, version string, broadcaster *sse.Broadcaster, run RunFunc) *Server {
	s := &Server{
		startTime:   time.Now(),
		ctx:         ctx,
		router:      chi.NewRouter(),
		broadcaster: broadcaster,
		run:         run,
		version:     version,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/ideas", s.handleIdeas)
		r.Get("/runs/latest", s.handleRunStatus)
		r.Post("/runs", s.handleTrigger)
		if s.broadcaster != nil {
			r.Get("/events", s.broadcaster.ServeHTTP)
		}
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetReport replaces the report served by /api/ideas.
func (s *Server) SetReport(r models.Report) {
	s.latest.Store(&r)
}

// Report returns the latest report, if any.
func (s *Server) Report() (models.Report, bool) {
	r := s.latest.Load()
	if r == nil {
		return models.Report{}, false
	}
	return *r, true
}

// Trigger starts a pipeline run in the background. It fails with ErrRunInProgress
// while a run is active.
func (s *Server) Trigger() error {
	return s.start(false)
}

// Schedule starts a pipeline run like Trigger, but while a run is active it queues one
// follow-up run instead of failing. Calls made during the same run coalesce into it.
func (s *Server) Schedule() error {
	return s.start(true)
}

func (s *Server) start(queue bool) error {
	if s.run == nil {
		return errors.New("no pipeline configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		if !queue {
			return ErrRunInProgress
		}
		s.pending = true
		return nil
	}
	s.status = RunStatus{StartedAt: time.Now(), Running: true}
	s.wg.Add(1)
	go s.loop()
	return nil
}

// loop runs the pipeline, then once more for each coalesced Schedule call.
func (s *Server) loop() {
	defer s.wg.Done()
	for {
		rep, err := s.run(s.ctx)
		if err != nil {
			log.Error().Err(err).Msg("Pipeline run failed")
		} else {
			s.SetReport(rep)
			log.Info().Int("ideas", len(rep.Ideas)).Msg("Report updated")
		}

		s.mu.Lock()
		s.status.Running = false
		s.status.FinishedAt = time.Now()
		if err != nil {
			s.status.Error = err.Error()
		}
		again := s.pending && s.ctx.Err() == nil
		s.pending = false
		if again {
			s.status = RunStatus{StartedAt: time.Now(), Running: true}
		}
		s.mu.Unlock()

		if !again {
			return
		}
		log.Info().Msg("Starting queued pipeline run")
	}
}

// Wait blocks until runs started by Trigger or Schedule, queued ones included, have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Status returns the state of the most recent run.
func (s *Server) Status() RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.Pending = s.pending
	return status
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	}
	if r, ok := s.Report(); ok {
		resp["last_report"] = r.GeneratedAt
	}
	if s.broadcaster != nil {
		resp["sse_clients"] = s.broadcaster.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIdeas(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.Report()
	if !ok {
		writeError(w, http.StatusNotFound, "no report yet")
		return
	}
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		rep.Ideas = report.Top(rep, n)
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleTrigger(w http.ResponseWriter, _ *http.Request) {
	err := s.Trigger()
	switch {
	case errors.Is(err, ErrRunInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, s.Status())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
