// Package server exposes orchestration runs over HTTP.
//
//	GET    /healthz
//	GET    /v1/tools
//	POST   /v1/runs            run a question; ?async=true returns a job ID
//	GET    /v1/runs            list async jobs
//	GET    /v1/runs/{id}       async job status and response
//	DELETE /v1/runs/{id}       cancel an async job
//	POST   /v1/configs         generate a tool configuration for a question
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ZanzyTHEbar/taskweave"
	"github.com/ZanzyTHEbar/taskweave/internal/configgen"
	"github.com/ZanzyTHEbar/taskweave/internal/eventbus"
)

const (
	DefaultJobRetention    = time.Hour
	DefaultShutdownTimeout = 10 * time.Second

	// minCleanupInterval bounds how often finished jobs are swept.
	minCleanupInterval = time.Second
)

// Server serves runs of one configuration document. Every request gets its
// own orchestrator and result store.
type Server struct {
	doc       taskweave.Document
	opts      []taskweave.Option
	generator *configgen.Generator
	bus       eventbus.EventBus
	logger    *slog.Logger
	jobs      *Jobs

	retention       time.Duration
	shutdownTimeout time.Duration
	router          chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithOrchestratorOptions passes options to every orchestrator the server builds.
func WithOrchestratorOptions(opts ...taskweave.Option) Option {
	return func(s *Server) { s.opts = append(s.opts, opts...) }
}

// WithGenerator enables POST /v1/configs.
func WithGenerator(g *configgen.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithEventBus publishes job events and forwards the bus to every orchestrator.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithJobRetention sets how long finished async jobs stay queryable.
func WithJobRetention(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New validates doc by building an orchestrator once and returns the server.
func New(ctx context.Context, doc taskweave.Document, opts ...Option) (*Server, error) {
	s := &Server{
		doc:             doc,
		logger:          slog.Default(),
		retention:       DefaultJobRetention,
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	s.opts = append(s.opts, taskweave.WithLogger(s.logger))
	if s.bus != nil {
		s.opts = append(s.opts, taskweave.WithEventBus(s.bus))
	}
	if _, err := s.orchestrator(ctx); err != nil {
		return nil, err
	}
	s.jobs = NewJobs(s.bus, s.logger)
	s.router = s.routes()
	return s, nil
}

func (s *Server) orchestrator(ctx context.Context) (*taskweave.Orchestrator, error) {
	opts := append(append([]taskweave.Option(nil), s.opts...), taskweave.WithStore(taskweave.NewResultStore()))
	return taskweave.New(ctx, s.doc, opts...)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tools", s.listTools)
		r.Post("/runs", s.createRun)
		r.Get("/runs", s.listRuns)
		r.Get("/runs/{id}", s.getRun)
		r.Delete("/runs/{id}", s.cancelRun)
		r.Post("/configs", s.generateConfig)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Jobs returns the async job registry.
func (s *Server) Jobs() *Jobs { return s.jobs }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and waits for async runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(cleanupInterval(s.retention))
	defer ticker.Stop()
	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ticker.C:
			if n := s.jobs.Cleanup(s.retention); n > 0 {
				s.logger.Debug("cleaned up finished jobs", "count", n)
			}
		case <-ctx.Done():
			s.logger.Info("http server shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			shutdownErr := srv.Shutdown(shutdownCtx)
			if err := s.jobs.WaitContext(shutdownCtx); err != nil {
				n := s.jobs.CancelAll()
				s.logger.Warn("cancelled unfinished jobs at shutdown", "count", n)
			}
			if shutdownErr != nil {
				return fmt.Errorf("http shutdown: %w", shutdownErr)
			}
			return nil
		}
	}
}

func cleanupInterval(retention time.Duration) time.Duration {
	return max(retention/4, minCleanupInterval)
}

func (s *Server) run(ctx context.Context, question string) (*taskweave.Response, error) {
	o, err := s.orchestrator(ctx)
	if err != nil {
		return nil, err
	}
	return o.Invoke(ctx, taskweave.Request{Question: question})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	o, err := s.orchestrator(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"framework": o.Framework(),
		"order":     o.Plan().Order(),
		"tools":     o.Plan().Tools(),
	})
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req taskweave.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := req.Text()
	if question == "" {
		writeError(w, http.StatusBadRequest, taskweave.NewMissingQuestionError().Error())
		return
	}

	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	if async {
		id := s.jobs.Submit(question, s.run)
		w.Header().Set("Location", "/v1/runs/"+id)
		writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": string(JobRunning)})
		return
	}

	resp, err := s.run(r.Context(), question)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.List())
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	cancelled, err := s.jobs.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if !cancelled {
		writeError(w, http.StatusConflict, "run already finished")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// configRequest is the body of POST /v1/configs. Tools and Tags narrow the
// registry the generator may pick from.
type configRequest struct {
	taskweave.Request
	Tools []string `json:"tools,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

func (s *Server) generateConfig(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusNotImplemented, "config generation is not enabled")
		return
	}
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := req.Text()
	if question == "" {
		writeError(w, http.StatusBadRequest, taskweave.NewMissingQuestionError().Error())
		return
	}
	gen, err := s.generator.Narrow(req.Tools, req.Tags)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	doc, err := gen.Generate(r.Context(), question)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// statusFor maps orchestration errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, taskweave.ErrMissingQuestion):
		return http.StatusBadRequest
	case errors.Is(err, taskweave.ErrInvalidConfig),
		errors.Is(err, taskweave.ErrUnknownDependency),
		errors.Is(err, taskweave.ErrCycleDetected),
		errors.Is(err, taskweave.ErrUnsupportedFramework),
		errors.Is(err, taskweave.ErrUnsupportedKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
