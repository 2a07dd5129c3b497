package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
)

// PageFetcher downloads raw HTML for the heuristic path.
type PageFetcher struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
	logger       logger.Logger
}

// NewPageFetcher creates a fetcher with its own request timeout.
func NewPageFetcher(cfg config.FetchConfig, log logger.Logger) *PageFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = config.DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &PageFetcher{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       log.With(logger.Component("page_fetcher")),
	}
}

// FetchHTML performs a GET for pageURL and returns the body. Non-2xx
// responses wrap ErrUnexpectedStatus.
func (f *PageFetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("page request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return "", fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}

	f.logger.Debug("Fetched page",
		logger.String("url", pageURL),
		logger.Int("status", resp.StatusCode),
		logger.Int("bytes", len(body)),
		logger.Duration("duration", time.Since(startTime)),
	)

	return string(body), nil
}
