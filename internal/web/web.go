package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coursecal/internal/config"
	"coursecal/internal/crossref"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/match"
	"coursecal/internal/metrics"
	"coursecal/internal/model"
	"coursecal/internal/refresh"
)

const (
	// eventsMaxAge bounds how stale the in-memory feed may be before a
	// request triggers a refetch. The cron refresher normally keeps it fresh.
	eventsMaxAge = 15 * time.Minute

	maxRequestBody = 4 << 20
)

// Server provides the HTTP API over the schedule feed and the
// cross-reference engine.
type Server struct {
	cfg       *config.Config
	refresher *refresh.Refresher
	matcher   *match.Matcher
	metrics   *metrics.Metrics
	now       func() time.Time
	router    chi.Router
}

// NewServer constructs a new Server. m may be nil, in which case /metrics
// is not mounted.
func NewServer(cfg *config.Config, r *refresh.Refresher, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:       cfg,
		refresher: r,
		matcher:   MatcherFromConfig(cfg.Match, nil),
		metrics:   m,
		now:       time.Now,
		router:    chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// MatcherFromConfig builds a Matcher from configuration. Non-empty override
// keywords take precedence over the configured ones.
func MatcherFromConfig(mc config.MatchConfig, override []model.KeywordPair) *match.Matcher {
	keywords := mc.Keywords
	if len(override) > 0 {
		keywords = override
	}
	return match.New(match.Config{
		Keywords: keywords,
		Fallback: match.Fallback(mc.Fallback),
	})
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth != nil &&
		s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every route it wraps with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="coursecal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is cancelled, then
// shuts down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		appLog.Info("HTTP server stopped")
		return nil
	}
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// /health is always reachable without credentials.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled")
			r.Use(s.basicAuthMiddleware)
		}

		r.Get("/api/events", s.handleEvents)
		r.Post("/api/crossref", s.handleCrossRef)
		r.Post("/api/crossref.ics", s.handleCrossRefICS)

		if s.metrics != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events    []model.Event `json:"events"`
	RangeEnd  time.Time     `json:"range_end"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// handleEvents returns feed events starting within the requested horizon.
//
// GET /api/events?days=30
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	days := s.daysParam(r)

	snap, err := s.refresher.Events(r.Context(), eventsMaxAge)
	if err != nil {
		writeFetchError(w, err)
		return
	}

	rangeEnd := crossref.Cutoff(s.now(), days)
	writeJSON(w, http.StatusOK, eventsResponse{
		Events:    crossref.Upcoming(snap.Events, rangeEnd),
		RangeEnd:  rangeEnd,
		UpdatedAt: snap.UpdatedAt,
	})
}

// crossRefRequest is the body of POST /api/crossref.
type crossRefRequest struct {
	Assignments []model.Assignment  `json:"assignments"`
	Keywords    []model.KeywordPair `json:"keywords,omitempty"`
}

// handleCrossRef matches the posted assignments against the feed.
//
// POST /api/crossref?days=30
func (s *Server) handleCrossRef(w http.ResponseWriter, r *http.Request) {
	results, ok := s.crossReference(w, r, "json")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleCrossRefICS is handleCrossRef rendered as a subscribable ICS feed.
func (s *Server) handleCrossRefICS(w http.ResponseWriter, r *http.Request) {
	results, ok := s.crossReference(w, r, "ics")
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.ExportDeadlines(results, s.now())))
}

func (s *Server) crossReference(w http.ResponseWriter, r *http.Request, format string) ([]model.CrossRefResult, bool) {
	var req crossRefRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}

	snap, err := s.refresher.Events(r.Context(), eventsMaxAge)
	if err != nil {
		writeFetchError(w, err)
		return nil, false
	}

	m := s.matcher
	if len(req.Keywords) > 0 {
		m = MatcherFromConfig(s.cfg.Match, req.Keywords)
	}
	x := crossref.New(m, crossref.WithClock(s.now))
	results := x.Run(req.Assignments, snap.Events, s.daysParam(r))

	if s.metrics != nil {
		s.metrics.CrossRefRuns.WithLabelValues(format).Inc()
		for _, res := range results {
			s.metrics.CrossRefMatch.Observe(float64(len(res.MatchedEvents)))
		}
	}
	appLog.Info("crossref request",
		"assignments", len(req.Assignments),
		"events", len(snap.Events),
		"format", format,
		"request_id", middleware.GetReqID(r.Context()),
	)
	return results, true
}

func (s *Server) daysParam(r *http.Request) int {
	days := parseIntDefault(r.URL.Query().Get("days"), s.cfg.DaysAhead)
	if days <= 0 {
		days = s.cfg.DaysAhead
	}
	return days
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeFetchError(w http.ResponseWriter, err error) {
	var fe *ics.FetchError
	switch {
	case errors.As(err, &fe):
		writeError(w, http.StatusBadGateway, fe.Error())
	case errors.Is(err, refresh.ErrNoFeed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		appLog.Error("schedule unavailable", err)
		writeError(w, http.StatusBadGateway, "schedule feed unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
