package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hash fields written by POST /config
const (
	fieldSession       = "fiverr_session"
	fieldScraperAPIKey = "scraper_api_key"
	fieldProxyURL      = "proxy_url"
)

const scraperAPIProxyHost = "proxy-server.scraperapi.com:8001"

// Settings are the credentials used by POST /scrape
type Settings struct {
	Session       string
	ScraperAPIKey string
	ProxyURL      string
}

// Proxy returns the proxy for page requests. An explicit proxy wins over the
// ScraperAPI key; empty means a direct request.
func (s Settings) Proxy() string {
	if s.ProxyURL != "" {
		return s.ProxyURL
	}
	if s.ScraperAPIKey == "" {
		return ""
	}
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword("scraperapi", s.ScraperAPIKey),
		Host:   scraperAPIProxyHost,
	}
	return u.String()
}

// SettingsStore persists Settings between requests
type SettingsStore interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// RedisSettings keeps settings in a Redis hash. It can share the hash used
// for relay preferences since the field names differ.
type RedisSettings struct {
	client *redis.Client
	key    string
}

func NewRedisSettings(client *redis.Client, hashKey string) *RedisSettings {
	if hashKey == "" {
		hashKey = "relay:prefs"
	}
	return &RedisSettings{client: client, key: hashKey}
}

func (r *RedisSettings) Load(ctx context.Context) (Settings, error) {
	vals, err := r.client.HMGet(ctx, r.key, fieldSession, fieldScraperAPIKey, fieldProxyURL).Result()
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	str := func(v any) string {
		s, _ := v.(string)
		return s
	}
	return Settings{
		Session:       str(vals[0]),
		ScraperAPIKey: str(vals[1]),
		ProxyURL:      str(vals[2]),
	}, nil
}

func (r *RedisSettings) Save(ctx context.Context, s Settings) error {
	err := r.client.HSet(ctx, r.key,
		fieldSession, s.Session,
		fieldScraperAPIKey, s.ScraperAPIKey,
		fieldProxyURL, s.ProxyURL,
	).Err()
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// MemorySettings is a process-local SettingsStore
type MemorySettings struct {
	mu sync.RWMutex
	s  Settings
}

func NewMemorySettings(initial Settings) *MemorySettings {
	return &MemorySettings{s: initial}
}

func (m *MemorySettings) Load(context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s, nil
}

func (m *MemorySettings) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	m.s = s
	m.mu.Unlock()
	return nil
}

// configRequest fields are optional; absent ones keep their stored value
type configRequest struct {
	ScraperAPIKey *string `json:"scraper_api_key"`
	Session       *string `json:"fiverr_session"`
	ProxyURL      *string `json:"proxy_url"`
}

type configResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	var req configRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProxyURL != nil && *req.ProxyURL != "" {
		if u, err := url.Parse(*req.ProxyURL); err != nil || u.Scheme == "" || u.Host == "" {
			s.writeError(w, http.StatusBadRequest, "invalid proxy_url")
			return
		}
	}

	cur, err := s.settings.Load(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("load settings")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if req.ScraperAPIKey != nil {
		cur.ScraperAPIKey = *req.ScraperAPIKey
	}
	if req.Session != nil {
		cur.Session = *req.Session
	}
	if req.ProxyURL != nil {
		cur.ProxyURL = *req.ProxyURL
	}
	if err := s.settings.Save(r.Context(), cur); err != nil {
		s.log.Error().Err(err).Msg("save settings")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.log.Info().
		Bool("session_set", cur.Session != "").
		Bool("api_key_set", cur.ScraperAPIKey != "").
		Bool("proxy_set", cur.ProxyURL != "").
		Msg("configuration updated")
	s.writeJSON(w, http.StatusOK, configResponse{Success: true, Message: "Configuration updated"})
}
