package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

// Strategy names recorded in ExtractionResult.Attempts. Managed scrapers
// record under their own Name().
const (
	StrategyManagedAI   = "managed_ai"
	StrategyDirectFetch = "direct_fetch"
	StrategyHeuristicAI = "heuristic_ai"
)

// Result messages
const (
	MessageManagedSuccess   = "Tour details extracted successfully"
	MessageHeuristicAI      = "Tour details extracted from the page with AI assistance"
	MessageHeuristicOnly    = "Tour details extracted with basic parsing; please review before saving"
	MessageExtractionFailed = "Could not extract tour details"
)

// TourExtractor turns a validated tour URL into an ExtractionResult.
type TourExtractor interface {
	Extract(ctx context.Context, tourURL string) models.ExtractionResult
}

// PageGetter fetches raw HTML for the heuristic path.
type PageGetter interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// ServiceDeps wires the collaborators of TourExtractionService. Scrapers and
// AI may be empty; Fetcher, Heuristic and Normalizer are required.
type ServiceDeps struct {
	Scrapers   []MarkdownScraper
	AI         *StructuredExtractor
	Fetcher    PageGetter
	Heuristic  *HeuristicExtractor
	Normalizer *Normalizer
	Metrics    *ExtractionMetrics
	Logger     logger.Logger
}

// TourExtractionService runs the fallback chain: managed scrape with AI
// extraction, then direct fetch with heuristics and optional AI enhancement.
// Every path ends in normalization, so the returned record is always complete.
type TourExtractionService struct {
	scrapers   []MarkdownScraper
	ai         *StructuredExtractor
	fetcher    PageGetter
	heuristic  *HeuristicExtractor
	normalizer *Normalizer
	metrics    *ExtractionMetrics
	logger     logger.Logger
}

// NewTourExtractionService creates the orchestrator from explicit dependencies.
func NewTourExtractionService(deps ServiceDeps) *TourExtractionService {
	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &TourExtractionService{
		scrapers:   deps.Scrapers,
		ai:         deps.AI,
		fetcher:    deps.Fetcher,
		heuristic:  deps.Heuristic,
		normalizer: deps.Normalizer,
		metrics:    deps.Metrics,
		logger:     log.With(logger.Component("orchestrator")),
	}
}

// NewTourExtractionServiceFromConfig builds every collaborator from cfg.
// Strategies without credentials are left out.
func NewTourExtractionServiceFromConfig(cfg *config.Config, log logger.Logger, metrics *ExtractionMetrics) *TourExtractionService {
	if log == nil {
		log = logger.NewNop()
	}

	var scrapers []MarkdownScraper
	if cfg.Firecrawl.APIKey != "" {
		if client, err := NewFireCrawlClient(cfg.Firecrawl, log); err != nil {
			log.Warn("FireCrawl disabled", logger.Error(err))
		} else {
			scrapers = append(scrapers, client)
		}
	}
	if cfg.Jina.APIKey != "" {
		if client, err := NewJinaClient(cfg.Jina, log); err != nil {
			log.Warn("Jina disabled", logger.Error(err))
		} else {
			scrapers = append(scrapers, client)
		}
	}

	providers := NewCompletionProviders(cfg, log)

	service := NewTourExtractionService(ServiceDeps{
		Scrapers:   scrapers,
		AI:         NewStructuredExtractor(providers, cfg.Extraction.ExcerptChars, log, metrics),
		Fetcher:    NewPageFetcher(cfg.Fetch, log),
		Heuristic:  NewHeuristicExtractor(cfg.Extraction.MaxContacts, log),
		Normalizer: NewNormalizer(cfg.Extraction.MaxContacts, log),
		Metrics:    metrics,
		Logger:     log,
	})

	service.logger.Info("Extraction service configured",
		logger.Strings("scrapers", service.ScraperNames()),
		logger.Strings("ai_providers", service.ai.ProviderNames()),
	)

	return service
}

// ScraperNames lists the configured managed scrapers in the order they are tried.
func (s *TourExtractionService) ScraperNames() []string {
	names := make([]string, len(s.scrapers))
	for i, scraper := range s.scrapers {
		names[i] = scraper.Name()
	}
	return names
}

type extractionState int

const (
	stateTryManagedScrape extractionState = iota
	stateTryHeuristic
	stateDone
)

// extractionRun carries the state of one Extract call.
type extractionRun struct {
	url    string
	result models.ExtractionResult
}

func (r *extractionRun) attempt(strategy string, err error) {
	a := models.StrategyAttempt{Strategy: strategy, Success: err == nil}
	if err != nil {
		a.Error = err.Error()
	}
	r.result.Attempts = append(r.result.Attempts, a)
}

func (r *extractionRun) failureChain() string {
	var parts []string
	for _, a := range r.result.Attempts {
		if !a.Success {
			parts = append(parts, a.Strategy+": "+a.Error)
		}
	}
	return strings.Join(parts, "; ")
}

// Extract runs the fallback chain for tourURL. The URL must already be
// validated. It never returns a partially populated record: when every
// strategy fails the record holds defaults and Success is false.
func (s *TourExtractionService) Extract(ctx context.Context, tourURL string) models.ExtractionResult {
	startTime := time.Now()

	run := &extractionRun{
		url: tourURL,
		result: models.ExtractionResult{
			ExtractionID: uuid.NewString(),
			Source:       models.SourceNone,
			Attempts:     []models.StrategyAttempt{},
		},
	}

	s.logger.Info("Starting tour extraction",
		logger.String("url", tourURL),
		logger.String("extraction_id", run.result.ExtractionID),
	)

	state := stateTryManagedScrape
	for state != stateDone {
		switch state {
		case stateTryManagedScrape:
			state = s.tryManagedScrape(ctx, run)
		case stateTryHeuristic:
			state = s.tryHeuristic(ctx, run)
		default:
			state = stateDone
		}
	}

	run.result.ProcessingMS = time.Since(startTime).Milliseconds()
	run.result.ExtractedAt = time.Now().UTC()

	s.metrics.RecordExtraction(run.result.Source, run.result.Success, time.Since(startTime))
	s.logger.Info("Tour extraction finished",
		logger.String("url", tourURL),
		logger.String("extraction_id", run.result.ExtractionID),
		logger.String("source", run.result.Source),
		logger.Bool("success", run.result.Success),
		logger.Int64("processing_ms", run.result.ProcessingMS),
	)

	return run.result
}

// tryManagedScrape asks each managed scraper in turn for markdown and hands
// the first usable document to the AI extractor.
func (s *TourExtractionService) tryManagedScrape(ctx context.Context, run *extractionRun) extractionState {
	if len(s.scrapers) == 0 {
		s.logger.Debug("No managed scraper configured", logger.String("url", run.url))
		return stateTryHeuristic
	}
	if !s.ai.HasProviders() {
		s.logger.Debug("Managed scrape skipped, no AI provider configured", logger.String("url", run.url))
		return stateTryHeuristic
	}

	for _, scraper := range s.scrapers {
		markdown, err := scraper.FetchMarkdown(ctx, run.url)
		s.record(run, scraper.Name(), err)
		if err != nil {
			s.logger.Warn("Managed scrape failed",
				logger.String("scraper", scraper.Name()),
				logger.String("url", run.url),
				logger.Error(err),
			)
			continue
		}

		fields, provider, err := s.ai.ExtractFields(ctx, markdown, run.url, nil)
		s.record(run, StrategyManagedAI, err)
		if err != nil {
			// Another scraper would feed the same providers; go straight to the heuristic path
			return stateTryHeuristic
		}

		run.result.Data = s.normalizer.Normalize(run.url, fields)
		run.result.Success = true
		run.result.Message = MessageManagedSuccess
		run.result.Source = models.SourceManagedScrape
		run.result.Scraper = scraper.Name()
		run.result.Provider = provider
		return stateDone
	}

	return stateTryHeuristic
}

// tryHeuristic fetches the page directly, extracts rule-based candidates and
// lets AI refine them when a provider is available.
func (s *TourExtractionService) tryHeuristic(ctx context.Context, run *extractionRun) extractionState {
	html, err := s.fetcher.FetchHTML(ctx, run.url)
	s.record(run, StrategyDirectFetch, err)
	if err != nil {
		s.logger.Error("Direct fetch failed, returning defaults",
			logger.String("url", run.url),
			logger.Error(err),
		)
		run.result.Data = s.normalizer.Normalize(run.url, nil)
		run.result.Success = false
		run.result.Message = fmt.Sprintf("%s: %s", MessageExtractionFailed, run.failureChain())
		run.result.Source = models.SourceNone
		return stateDone
	}

	candidates := s.heuristic.ExtractCandidates(html, run.url)

	if s.ai.HasProviders() {
		fields, provider, err := s.enhance(ctx, run.url, candidates)
		s.record(run, StrategyHeuristicAI, err)
		if err == nil {
			run.result.Data = s.normalizer.Normalize(run.url, candidates.Fields.Overlay(fields))
			run.result.Success = true
			run.result.Message = MessageHeuristicAI
			run.result.Source = models.SourceHeuristicAI
			run.result.Provider = provider
			return stateDone
		}
	}

	run.result.Data = s.normalizer.Normalize(run.url, candidates.Fields)
	run.result.Success = true
	run.result.Message = MessageHeuristicOnly
	run.result.Source = models.SourceHeuristic
	return stateDone
}

func (s *TourExtractionService) enhance(ctx context.Context, pageURL string, candidates HeuristicResult) (models.PartialRecord, string, error) {
	if strings.TrimSpace(candidates.Text) == "" {
		return nil, "", fmt.Errorf("%w: page has no visible text", ErrContentTooShort)
	}
	return s.ai.ExtractFields(ctx, candidates.Text, pageURL, candidates.Fields)
}

func (s *TourExtractionService) record(run *extractionRun, strategy string, err error) {
	run.attempt(strategy, err)
	s.metrics.RecordStrategyAttempt(strategy, err == nil)
}
