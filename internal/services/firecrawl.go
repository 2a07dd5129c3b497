package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mendableai/firecrawl-go"
	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
)

// Minimum length of managed scrape output for it to be worth extracting from.
const minScrapedContentChars = 50

// MarkdownScraper is a managed scraping service that renders a page to markdown.
type MarkdownScraper interface {
	Name() string
	FetchMarkdown(ctx context.Context, pageURL string) (string, error)
}

// firecrawlScraper is the part of the FireCrawl SDK the client uses.
type firecrawlScraper interface {
	ScrapeURL(url string, params *firecrawl.ScrapeParams) (*firecrawl.FirecrawlDocument, error)
}

// FireCrawlClient fetches main-content markdown through FireCrawl.
type FireCrawlClient struct {
	client  firecrawlScraper
	timeout time.Duration
	logger  logger.Logger
}

// NewFireCrawlClient creates a FireCrawl client. An empty API key returns
// ErrMissingCredential.
func NewFireCrawlClient(cfg config.ScraperConfig, log logger.Logger) (*FireCrawlClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("firecrawl: %w", ErrMissingCredential)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.firecrawl.dev"
	}

	app, err := firecrawl.NewFirecrawlApp(cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize FireCrawl client: %w", err)
	}

	return newFireCrawlClient(app, cfg.Timeout, log), nil
}

func newFireCrawlClient(client firecrawlScraper, timeout time.Duration, log logger.Logger) *FireCrawlClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &FireCrawlClient{
		client:  client,
		timeout: timeout,
		logger:  log.With(logger.Component("firecrawl")),
	}
}

// Name returns the scraper name used in logs and results.
func (fc *FireCrawlClient) Name() string {
	return "firecrawl"
}

// FetchMarkdown scrapes pageURL and returns its main content as markdown.
// The SDK call has no context support, so it is raced against ctx and the
// client timeout.
func (fc *FireCrawlClient) FetchMarkdown(ctx context.Context, pageURL string) (string, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, fc.timeout)
	defer cancel()

	onlyMainContent := true
	params := &firecrawl.ScrapeParams{
		Formats:         []string{"markdown"},
		OnlyMainContent: &onlyMainContent,
	}

	type scrapeResult struct {
		doc *firecrawl.FirecrawlDocument
		err error
	}
	done := make(chan scrapeResult, 1)

	fc.logger.Debug("Starting FireCrawl scrape", logger.String("url", pageURL))

	go func() {
		doc, err := fc.client.ScrapeURL(pageURL, params)
		done <- scrapeResult{doc: doc, err: err}
	}()

	var result scrapeResult
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("FireCrawl scrape aborted: %w", ctx.Err())
	case result = <-done:
	}

	if result.err != nil {
		return "", fmt.Errorf("FireCrawl scrape failed: %w", result.err)
	}
	if result.doc == nil {
		return "", fmt.Errorf("%w: FireCrawl returned no document", ErrContentTooShort)
	}

	markdown := strings.TrimSpace(result.doc.Markdown)
	if len(markdown) < minScrapedContentChars {
		return "", fmt.Errorf("%w: %d chars from FireCrawl", ErrContentTooShort, len(markdown))
	}

	fc.logger.Info("FireCrawl scrape succeeded",
		logger.String("url", pageURL),
		logger.Int("chars", len(markdown)),
		logger.Duration("duration", time.Since(startTime)),
	)

	return markdown, nil
}
