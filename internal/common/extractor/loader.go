package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// LoaderConfig holds the page request settings
type LoaderConfig struct {
	UserAgent string
	ProxyURL  string
	Timeout   time.Duration
	// Session cookie sent with the page request; skipped when Value is empty
	CookieName  string
	CookieValue string
}

// CollyLoader fetches a listing page with Colly and parses it with goquery
type CollyLoader struct {
	collector *colly.Collector
	pageURL   string
	config    LoaderConfig
}

// NewCollyLoader creates a loader for pageURL
func NewCollyLoader(pageURL string, config LoaderConfig) (*CollyLoader, error) {
	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.AllowURLRevisit(),
	)

	if config.Timeout > 0 {
		c.SetRequestTimeout(config.Timeout)
	}

	if config.ProxyURL != "" {
		if err := c.SetProxy(config.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	if config.CookieValue != "" {
		cookie := &http.Cookie{Name: config.CookieName, Value: config.CookieValue, Path: "/"}
		if err := c.SetCookies(pageURL, []*http.Cookie{cookie}); err != nil {
			return nil, fmt.Errorf("set cookies: %w", err)
		}
	}

	return &CollyLoader{
		collector: c,
		pageURL:   pageURL,
		config:    config,
	}, nil
}

func (l *CollyLoader) Name() string {
	return l.pageURL
}

// Load visits the page once and returns the parsed document
func (l *CollyLoader) Load(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc *goquery.Document
	var loadErr error

	c := l.collector.Clone()

	c.OnRequest(func(r *colly.Request) {
		// Emulate a browser navigation
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Cache-Control", "max-age=0")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})

	c.OnResponse(func(r *colly.Response) {
		parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			loadErr = fmt.Errorf("parse html: %w", err)
			return
		}
		doc = parsed
	})

	c.OnError(func(r *colly.Response, err error) {
		loadErr = fmt.Errorf("colly error: %w (status: %d)", err, r.StatusCode)
	})

	if err := c.Visit(l.pageURL); err != nil && loadErr == nil {
		return nil, fmt.Errorf("visit page: %w", err)
	}

	if loadErr != nil {
		return nil, loadErr
	}

	if doc == nil {
		return nil, fmt.Errorf("no document from %s", l.pageURL)
	}

	return doc, nil
}

// ReaderLoader parses a document from an io.Reader
type ReaderLoader struct {
	open func() (io.ReadCloser, error)
	name string
}

// NewReaderLoader reads the page from r. The reader is consumed by the first Load.
func NewReaderLoader(name string, r io.Reader) *ReaderLoader {
	return &ReaderLoader{
		name: name,
		open: func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}
}

// NewFileLoader reads the page from a saved HTML file on every Load
func NewFileLoader(path string) *ReaderLoader {
	return &ReaderLoader{
		name: path,
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

func (l *ReaderLoader) Name() string {
	return l.name
}

func (l *ReaderLoader) Load(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rc, err := l.open()
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer rc.Close()

	doc, err := goquery.NewDocumentFromReader(rc)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}
