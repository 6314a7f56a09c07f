// Package collector is the HTTP endpoint the relay delivers to. Accepted
// records are queued for the worker; read endpoints serve what the worker
// has indexed.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/project-tktt/request-relay/internal/common/cleaner"
	"github.com/project-tktt/request-relay/internal/common/indexer"
	"github.com/project-tktt/request-relay/internal/common/normalizer"
	"github.com/project-tktt/request-relay/internal/dispatch"
	"github.com/project-tktt/request-relay/internal/domain"
	"github.com/project-tktt/request-relay/internal/logx"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// defaultMaxBudget is the upper bound of /jobs when max_budget is absent
const defaultMaxBudget = 9999

// Publisher queues accepted records
type Publisher interface {
	Publish(ctx context.Context, job *domain.RawJob) error
}

// Server is the HTTP adapter of the collector
type Server struct {
	pub      Publisher
	store    indexer.Store
	cleaner  *cleaner.Cleaner
	norm     *normalizer.Normalizer
	scraper  Scraper
	settings SettingsStore
	log      zerolog.Logger

	mux    *http.ServeMux
	server *http.Server

	newID func() string
	now   func() time.Time
}

// Option configures optional collector features
type Option func(*Server)

// WithScraper enables POST /scrape
func WithScraper(sc Scraper) Option {
	return func(s *Server) { s.scraper = sc }
}

// WithSettings replaces the in-memory store behind POST /config
func WithSettings(st SettingsStore) Option {
	return func(s *Server) { s.settings = st }
}

// NewServer creates a collector listening on addr
func NewServer(addr string, pub Publisher, store indexer.Store, clean *cleaner.Cleaner, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		pub:      pub,
		store:    store,
		cleaner:  clean,
		norm:     normalizer.NewNormalizer(),
		settings: NewMemorySettings(Settings{}),
		log:      logx.Component(logger, "collector"),
		mux:      http.NewServeMux(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.withCORS(s.withAccessLog(s.mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /add-job", s.handleAddJob)
	s.mux.HandleFunc("GET /jobs-cached", s.handleJobsCached)
	s.mux.HandleFunc("GET /jobs", s.handleJobs)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("POST /scrape", s.handleScrape)
	s.mux.HandleFunc("POST /config", s.handleConfig)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type jobsResponse struct {
	Success   bool          `json:"success"`
	Jobs      []*domain.Job `json:"jobs"`
	Total     int           `json:"total"`
	Timestamp string        `json:"timestamp"`
}

func (s *Server) handleAddJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var rec domain.JobRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rec = s.cleaner.CleanRecord(rec)
	if rec.Title == "" {
		s.writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if rec.Budget < 0 {
		s.writeError(w, http.StatusBadRequest, "budget must not be negative")
		return
	}

	raw := &domain.RawJob{
		ID:         s.newID(),
		Source:     string(domain.SourceRelay),
		Record:     rec,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.pub.Publish(r.Context(), raw); err != nil {
		s.log.Error().Err(err).Str("title", rec.Title).Msg("publish job")
		s.writeError(w, http.StatusServiceUnavailable, "queue unavailable")
		return
	}

	s.log.Debug().Str("job_id", raw.ID).Str("title", rec.Title).Int("budget", rec.Budget).Msg("job accepted")
	s.writeJSON(w, http.StatusOK, dispatch.SubmitResponse{Success: true, ID: raw.ID})
}

func (s *Server) handleJobsCached(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.Count(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("count jobs")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, dispatch.Status{Success: true, Total: n})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := s.store.List(r.Context(), f)
	if err != nil {
		s.log.Error().Err(err).Msg("list jobs")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}

	s.writeJSON(w, http.StatusOK, jobsResponse{
		Success:   true,
		Jobs:      jobs,
		Total:     len(jobs),
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("job stats")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseFilter reads category, min_budget, max_budget and limit
func parseFilter(r *http.Request) (indexer.Filter, error) {
	q := r.URL.Query()
	maxBudget := defaultMaxBudget
	f := indexer.Filter{
		Category:  strings.TrimSpace(q.Get("category")),
		MaxBudget: &maxBudget,
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"min_budget", &f.MinBudget},
		{"max_budget", &maxBudget},
		{"limit", &f.Limit},
	}
	for _, p := range ints {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return indexer.Filter{}, errors.New("invalid " + p.key)
		}
		*p.dst = n
	}
	return f, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}
