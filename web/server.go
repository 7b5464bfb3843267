// Package web serves the latest report over HTTP and refreshes it on a
// schedule.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"jira-flow-metrics/config"
	"jira-flow-metrics/metrics"
	"jira-flow-metrics/report"
	"jira-flow-metrics/telemetry"
)

// RefreshFunc computes a fresh report.
type RefreshFunc func(ctx context.Context) (*report.Report, error)

// Options configures a Server.
type Options struct {
	Refresh RefreshFunc
	Columns report.Columns
	// RefreshCron is a five field cron expression or a descriptor such as
	// @hourly. Empty disables the scheduled refresh.
	RefreshCron string
	Location    *time.Location
	// Timeout bounds one request and one refresh.
	Timeout  time.Duration
	Recorder *telemetry.Recorder
}

// Server handles HTTP requests
type Server struct {
	Router chi.Router

	log      zerolog.Logger
	timeout  time.Duration
	location *time.Location
	rec      *telemetry.Recorder
	cron     *cron.Cron

	refreshing sync.Mutex

	mu          sync.RWMutex
	refresh     RefreshFunc
	columns     report.Columns
	current     *report.Report
	refreshedAt time.Time
	lastErr     error
	schedule    string
	entry       cron.EntryID
}

var errNoReport = errors.New("no report computed yet")

// NewServer creates a new web server. The first report is computed by
// Refresh or the schedule, never here.
func NewServer(opts Options, log zerolog.Logger) (*Server, error) {
	if opts.Refresh == nil {
		return nil, errors.New("web: nil refresh function")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	s := &Server{
		log:      log.With().Str("component", "web").Logger(),
		timeout:  opts.Timeout,
		location: opts.Location,
		rec:      opts.Recorder,
		refresh:  opts.Refresh,
		columns:  opts.Columns,
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithParser(config.CronParser),
		),
	}

	if err := s.reschedule(opts.RefreshCron); err != nil {
		return nil, err
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", s.healthCheck)
	r.Handle("/metrics", s.rec.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/issues", s.records(func(rep *report.Report) []metrics.Record { return rep.IssueRecords }))
		r.Get("/issues.csv", s.csv(report.IssuesFile,
			func(c report.Columns) []string { return c.Issues },
			func(rep *report.Report) []metrics.Record { return rep.IssueRecords }))
		r.Get("/sprints", s.records(func(rep *report.Report) []metrics.Record { return rep.SprintRecords }))
		r.Get("/sprints.csv", s.csv(report.SprintsFile,
			func(c report.Columns) []string { return c.Sprints },
			func(rep *report.Report) []metrics.Record { return rep.SprintRecords }))
		r.Get("/pullrequests", s.records(func(rep *report.Report) []metrics.Record { return rep.PullRequestRecords }))
		r.Get("/pullrequests.csv", s.csv(report.PullRequestsFile,
			func(c report.Columns) []string { return c.PullRequests },
			func(rep *report.Report) []metrics.Record { return rep.PullRequestRecords }))
		r.Get("/summary", s.summary)
		r.Post("/refresh", s.refreshNow)
	})

	s.Router = r
}

// Reconfigure applies a reloaded configuration: the refresh function, the
// column orders and the refresh schedule. The current report stays until the
// next refresh. Timeout and location changes only take effect on restart.
// On error nothing changes.
func (s *Server) Reconfigure(opts Options) error {
	if opts.Refresh == nil {
		return errors.New("web: nil refresh function")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.RefreshCron != s.schedule {
		if err := s.reschedule(opts.RefreshCron); err != nil {
			return err
		}
		s.log.Info().Str("schedule", opts.RefreshCron).Msg("refresh schedule changed")
	}
	if opts.Timeout > 0 && opts.Timeout != s.timeout {
		s.log.Warn().Dur("timeout", opts.Timeout).Dur("current", s.timeout).
			Msg("server.timeout changed, restart to apply")
	}
	if opts.Location != nil && opts.Location.String() != s.location.String() {
		s.log.Warn().Str("location", opts.Location.String()).Str("current", s.location.String()).
			Msg("calendar timezone changed, restart to reschedule in it")
	}

	s.refresh = opts.Refresh
	s.columns = opts.Columns
	return nil
}

// reschedule replaces the cron entry with one for spec. An invalid spec keeps
// the current entry.
func (s *Server) reschedule(spec string) error {
	var sched cron.Schedule
	if spec != "" {
		var err error
		if sched, err = config.CronParser.Parse(spec); err != nil {
			return fmt.Errorf("web: refresh schedule %q: %w", spec, err)
		}
	}

	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	if sched != nil {
		s.entry = s.cron.Schedule(sched, cron.FuncJob(s.scheduled))
	}
	s.schedule = spec
	return nil
}

// Refresh recomputes the report. Concurrent calls run one after the other.
// A failed refresh keeps the previous report.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshing.Lock()
	defer s.refreshing.Unlock()

	s.mu.RLock()
	refresh := s.refresh
	s.mu.RUnlock()

	started := time.Now()
	rep, err := refresh(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		s.log.Error().Err(err).Msg("report refresh failed, keeping previous report")
		return err
	}
	s.current = rep
	s.refreshedAt = time.Now()
	s.log.Info().
		Int("issues", len(rep.IssueRecords)).
		Int("pull_requests", len(rep.PullRequestRecords)).
		Dur("took", time.Since(started)).
		Msg("report refreshed")
	return nil
}

func (s *Server) scheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.log.Info().Msg("cron: refreshing report")
	_ = s.Refresh(ctx)
}

func (s *Server) snapshot() (*report.Report, report.Columns, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.columns, s.refreshedAt, s.lastErr
}

// Start computes the first report, starts the schedule and serves on addr
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		_ = s.Refresh(refreshCtx)
	}()

	s.cron.Start()
	defer s.cron.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	s.log.Info().Str("addr", addr).Msg("starting jira flow metrics server")
	s.log.Info().Msg("endpoints: /health /metrics /api/{issues,sprints,pullrequests}[.csv] /api/summary POST /api/refresh")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	rep, _, refreshedAt, lastErr := s.snapshot()

	body := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "jira-flow-metrics",
		"ready":     rep != nil,
	}
	if !refreshedAt.IsZero() {
		body["refreshed_at"] = refreshedAt.UTC()
	}
	if lastErr != nil {
		body["last_error"] = lastErr.Error()
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) records(pick func(*report.Report) []metrics.Record) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, _, refreshedAt, _ := s.snapshot()
		if rep == nil {
			s.writeError(w, http.StatusServiceUnavailable, errNoReport)
			return
		}
		rows := pick(rep)
		if rows == nil {
			rows = []metrics.Record{}
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":       "success",
			"data":         rows,
			"count":        len(rows),
			"refreshed_at": refreshedAt.UTC(),
		})
	}
}

func (s *Server) csv(name string, cols func(report.Columns) []string, pick func(*report.Report) []metrics.Record) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, columns, _, _ := s.snapshot()
		if rep == nil {
			s.writeError(w, http.StatusServiceUnavailable, errNoReport)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if err := report.WriteCSV(w, cols(columns), pick(rep)); err != nil {
			s.log.Error().Err(err).Str("file", name).Msg("writing csv response")
		}
	}
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	rep, _, _, _ := s.snapshot()
	if rep == nil {
		s.writeError(w, http.StatusServiceUnavailable, errNoReport)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   rep.Summary,
	})
}

func (s *Server) refreshNow(w http.ResponseWriter, r *http.Request) {
	if err := s.Refresh(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	_, _, refreshedAt, _ := s.snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"refreshed_at": refreshedAt.UTC(),
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]any{
		"status": "error",
		"error":  err.Error(),
	})
}
