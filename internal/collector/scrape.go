package collector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/project-tktt/request-relay/internal/common/extractor"
	"github.com/project-tktt/request-relay/internal/domain"
)

// Scraper fetches the listing page on the collector's side
type Scraper interface {
	Scrape(ctx context.Context, s Settings) ([]domain.JobRecord, error)
}

// PageScraper loads one listing page with Colly and extracts its cards.
// Each call builds a fresh loader so per-request credentials never leak
// into later calls.
type PageScraper struct {
	pageURL   string
	base      extractor.LoaderConfig
	extractor *extractor.CardExtractor
}

// NewPageScraper scrapes pageURL with base as the default request settings
func NewPageScraper(pageURL string, base extractor.LoaderConfig, ext *extractor.CardExtractor) *PageScraper {
	if base.CookieName == "" {
		base.CookieName = "hodor_creds"
	}
	return &PageScraper{pageURL: pageURL, base: base, extractor: ext}
}

func (p *PageScraper) Scrape(ctx context.Context, s Settings) ([]domain.JobRecord, error) {
	cfg := p.base
	if s.Session != "" {
		cfg.CookieValue = s.Session
	}
	if proxy := s.Proxy(); proxy != "" {
		cfg.ProxyURL = proxy
	}

	loader, err := extractor.NewCollyLoader(p.pageURL, cfg)
	if err != nil {
		return nil, err
	}
	return p.extractor.ExtractFrom(ctx, loader)
}

type scrapeRequest struct {
	SessionKey string `json:"sessionKey"`
}

type scrapeResponse struct {
	Success bool          `json:"success"`
	Jobs    []*domain.Job `json:"jobs"`
	Total   int           `json:"total"`
	Source  string        `json:"source"`
}

// handleScrape fetches the listing page with the caller's session (or the
// stored one) and returns the processed jobs, highest score first. Nothing
// is queued or indexed.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.scraper == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scraping not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req scrapeRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	settings, err := s.settings.Load(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if key := strings.TrimSpace(req.SessionKey); key != "" {
		settings.Session = key
	}
	if settings.Session == "" {
		s.writeError(w, http.StatusBadRequest, "Session key required")
		return
	}

	records, err := s.scraper.Scrape(r.Context(), settings)
	if err != nil {
		s.log.Error().Err(err).Msg("scrape page")
		s.writeError(w, http.StatusBadGateway, "could not load page")
		return
	}

	receivedAt := s.now().UTC()
	raws := make([]*domain.RawJob, 0, len(records))
	for _, rec := range records {
		raws = append(raws, &domain.RawJob{
			ID:         s.newID(),
			Source:     string(domain.SourceScrape),
			Record:     s.cleaner.CleanRecord(rec),
			ReceivedAt: receivedAt,
		})
	}
	jobs := s.norm.NormalizeAll(raws)

	s.log.Info().Int("scraped", len(records)).Int("kept", len(jobs)).Msg("scrape finished")
	s.writeJSON(w, http.StatusOK, scrapeResponse{
		Success: true,
		Jobs:    jobs,
		Total:   len(jobs),
		Source:  string(domain.SourceScrape),
	})
}
