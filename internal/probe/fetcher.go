package probe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/antifraude/url-sentinel/internal/config"
)

// FetchResult is the raw outcome of fetching a page
type FetchResult struct {
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Truncated   bool
	FetchedAt   time.Time
}

// Fetcher retrieves page content for analyst inspection. Bodies are capped at
// a configured size so a hostile page cannot exhaust memory. Redirects are
// followed and the final URL is reported, since phishing campaigns commonly
// hide behind redirect chains.
type Fetcher struct {
	client *http.Client
	cfg    config.ProbeConfig
	logger *slog.Logger
}

// NewFetcher creates a page fetcher
func NewFetcher(cfg config.ProbeConfig, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch retrieves a URL and returns up to MaxBodyBytes of its body
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building probe request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("Probe fetch failed", "url", url, "error", err)
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	// Read one byte past the cap to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading page body: %w", err)
	}
	truncated := int64(len(body)) > f.cfg.MaxBodyBytes
	if truncated {
		body = body[:f.cfg.MaxBodyBytes]
	}

	return &FetchResult{
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Truncated:   truncated,
		FetchedAt:   time.Now().UTC(),
	}, nil
}
