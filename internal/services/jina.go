package services

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
)

// JinaClient fetches page markdown through the Jina AI Reader.
type JinaClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	logger     logger.Logger
}

// NewJinaClient creates a Jina Reader client. An empty API key returns
// ErrMissingCredential.
func NewJinaClient(cfg config.ScraperConfig, log logger.Logger) (*JinaClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("jina: %w", ErrMissingCredential)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://r.jina.ai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &JinaClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		logger:     log.With(logger.Component("jina")),
	}, nil
}

// Name returns the scraper name used in logs and results.
func (j *JinaClient) Name() string {
	return "jina"
}

// FetchMarkdown renders pageURL to markdown with a single reader request.
func (j *JinaClient) FetchMarkdown(ctx context.Context, pageURL string) (string, error) {
	startTime := time.Now()

	// Construct Jina Reader URL
	jinaURL := fmt.Sprintf("%s/%s", j.baseURL, pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jinaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+j.apiKey)
	req.Header.Set("X-Return-Format", "markdown")
	req.Header.Set("Accept", "text/plain")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("jina request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: jina returned status %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Handle gzip encoding if present
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read jina response: %w", err)
	}

	markdown := strings.TrimSpace(string(content))
	if len(markdown) < minScrapedContentChars {
		return "", fmt.Errorf("%w: %d chars from jina, might be an error page", ErrContentTooShort, len(markdown))
	}

	j.logger.Info("Jina scrape succeeded",
		logger.String("url", pageURL),
		logger.Int("chars", len(markdown)),
		logger.Duration("duration", time.Since(startTime)),
	)

	return markdown, nil
}
