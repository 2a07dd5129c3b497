package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

type fakeScraper struct {
	name     string
	markdown string
	err      error
	calls    int
}

func (f *fakeScraper) Name() string { return f.name }

func (f *fakeScraper) FetchMarkdown(ctx context.Context, pageURL string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.markdown, f.err
}

type fakePageGetter struct {
	html  string
	err   error
	calls int
}

func (f *fakePageGetter) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.html, f.err
}

func newTestService(scrapers []MarkdownScraper, fetcher PageGetter, metrics *ExtractionMetrics, providers ...CompletionProvider) *TourExtractionService {
	return NewTourExtractionService(ServiceDeps{
		Scrapers:   scrapers,
		AI:         NewStructuredExtractor(providers, 4000, logger.NewNop(), metrics),
		Fetcher:    fetcher,
		Heuristic:  newTestHeuristicExtractor(),
		Normalizer: newTestNormalizer(),
		Metrics:    metrics,
		Logger:     logger.NewNop(),
	})
}

func attemptNames(result models.ExtractionResult) []string {
	names := make([]string, len(result.Attempts))
	for i, a := range result.Attempts {
		names[i] = a.Strategy
	}
	return names
}

func TestTourExtractionService_ManagedScrapeSuccess(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", markdown: sampleMarkdown}
	fetcher := &fakePageGetter{html: sampleTourHTML}
	ai := &fakeProvider{name: "openai", response: `{
		"title": "Bali Escape",
		"duration": "4N/5D",
		"destinations": ["Bali", "  Bali  ", "xy"],
		"tour_status": "coming soon",
		"starting_price": "₹45,999"
	}`}

	result := newTestService([]MarkdownScraper{firecrawl}, fetcher, nil, ai).Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, MessageManagedSuccess, result.Message)
	assert.Equal(t, models.SourceManagedScrape, result.Source)
	assert.Equal(t, "firecrawl", result.Scraper)
	assert.Equal(t, "openai", result.Provider)
	assert.NotEmpty(t, result.ExtractionID)
	assert.False(t, result.ExtractedAt.IsZero())

	record := result.Data
	assert.Equal(t, testTourURL, record.TourLink)
	assert.Equal(t, "Bali Escape", record.Title)
	assert.Equal(t, 5, record.DurationDays)
	assert.Equal(t, 4, record.DurationNights)
	assert.Equal(t, []string{"Bali"}, record.Destinations)
	assert.Equal(t, models.TourStatusComingSoon, record.TourStatus)
	assert.Equal(t, 45999.0, record.StartingPrice)

	assert.Equal(t, 0, fetcher.calls, "fallback path must not run after a managed success")
	assert.Equal(t, []string{"firecrawl", StrategyManagedAI}, attemptNames(result))
}

func TestTourExtractionService_SecondScraperUsedAfterFirstFails(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", err: errors.New("402 payment required")}
	jina := &fakeScraper{name: "jina", markdown: sampleMarkdown}
	ai := &fakeProvider{name: "gemini", response: `{"title": "Bali Escape", "duration_days": "3 days"}`}

	result := newTestService([]MarkdownScraper{firecrawl, jina}, &fakePageGetter{}, nil, ai).
		Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, "jina", result.Scraper)
	assert.Equal(t, 3, result.Data.DurationDays)
	assert.Equal(t, 2, result.Data.DurationNights)
	assert.Equal(t, []string{"firecrawl", "jina", StrategyManagedAI}, attemptNames(result))
	assert.False(t, result.Attempts[0].Success)
	assert.Contains(t, result.Attempts[0].Error, "402")
}

func TestTourExtractionService_HeuristicWithAIEnhancement(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", err: ErrContentTooShort}
	fetcher := &fakePageGetter{html: sampleTourHTML}
	ai := &fakeProvider{name: "openai", response: `{"title": "Bali Escape", "meals_included": "yes", "duration_days": 0}`}

	result := newTestService([]MarkdownScraper{firecrawl}, fetcher, nil, ai).Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, models.SourceHeuristicAI, result.Source)
	assert.Equal(t, MessageHeuristicAI, result.Message)
	assert.Equal(t, "openai", result.Provider)
	assert.Empty(t, result.Scraper)

	record := result.Data
	assert.Equal(t, "Bali Escape", record.Title, "AI values win over heuristic candidates")
	assert.True(t, record.MealsIncluded)
	assert.Equal(t, 5, record.DurationDays, "an empty AI value keeps the heuristic candidate")
	assert.Equal(t, 4, record.DurationNights)
	assert.Equal(t, []string{"Bali", "Singapore"}, record.Destinations)

	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0], "Sunset cruise", "heuristic text reaches the AI prompt")
	assert.Equal(t, []string{"firecrawl", StrategyDirectFetch, StrategyHeuristicAI}, attemptNames(result))
}

func TestTourExtractionService_PureHeuristicWithoutAI(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", markdown: sampleMarkdown}
	fetcher := &fakePageGetter{html: sampleTourHTML}

	result := newTestService([]MarkdownScraper{firecrawl}, fetcher, nil).Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, models.SourceHeuristic, result.Source)
	assert.Equal(t, MessageHeuristicOnly, result.Message)
	assert.Equal(t, 0, firecrawl.calls, "managed scrape needs an AI provider")

	record := result.Data
	assert.Equal(t, "Bali Escape 5 Days 4 Nights", record.Title)
	assert.Equal(t, "Bali-Holidays", record.ProviderName)
	assert.Equal(t, models.TourTypeGroup, record.TourType)
	assert.Equal(t, models.PriceTypeStartingFrom, record.PriceType)
	assert.Contains(t, record.ContactLink, "hello@bali-holidays.example")
	assert.Equal(t, []string{StrategyDirectFetch}, attemptNames(result))
}

func TestTourExtractionService_RefusalMovesToNextProvider(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", markdown: sampleMarkdown}
	fetcher := &fakePageGetter{html: sampleTourHTML}
	refusing := &fakeProvider{name: "openai", response: `{"error": "I cannot access this page"}`}
	working := &fakeProvider{name: "gemini", response: `{"title": "Bali Escape", "duration": "5 days 4 nights"}`}

	result := newTestService([]MarkdownScraper{firecrawl}, fetcher, nil, refusing, working).
		Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, models.SourceManagedScrape, result.Source)
	assert.Equal(t, "gemini", result.Provider)
	assert.Equal(t, "Bali Escape", result.Data.Title)
	assert.Equal(t, 5, result.Data.DurationDays)
	assert.Equal(t, 0, fetcher.calls)
}

func TestTourExtractionService_RefusalFallsBackToHeuristics(t *testing.T) {
	testCases := []struct {
		name     string
		response string
	}{
		{"error object", `{"error": "I cannot access this page"}`},
		{"empty data list", `{"data": []}`},
		{"message object", `{"message": "content not a tour"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			firecrawl := &fakeScraper{name: "firecrawl", markdown: sampleMarkdown}
			fetcher := &fakePageGetter{html: sampleTourHTML}
			ai := &fakeProvider{name: "openai", response: tc.response}

			result := newTestService([]MarkdownScraper{firecrawl}, fetcher, nil, ai).
				Extract(context.Background(), testTourURL)

			assert.True(t, result.Success)
			assert.Equal(t, models.SourceHeuristic, result.Source)
			assert.Equal(t, 1, fetcher.calls)
			assert.Equal(t, "Bali Escape 5 Days 4 Nights", result.Data.Title)
			assert.Equal(t, 5, result.Data.DurationDays)
			require.Len(t, result.Attempts, 4)
			assert.False(t, result.Attempts[1].Success)
			assert.Contains(t, result.Attempts[1].Error, ErrEmptyAIResponse.Error())
		})
	}
}

func TestTourExtractionService_AIFailureFallsBackToHeuristics(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", markdown: sampleMarkdown}
	jina := &fakeScraper{name: "jina", markdown: sampleMarkdown}
	fetcher := &fakePageGetter{html: sampleTourHTML}
	ai := &fakeProvider{name: "openai", response: "{}"}

	result := newTestService([]MarkdownScraper{firecrawl, jina}, fetcher, nil, ai).Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, models.SourceHeuristic, result.Source)
	assert.Equal(t, "Bali Escape 5 Days 4 Nights", result.Data.Title)

	// each alternative is tried at most once
	assert.Equal(t, 1, firecrawl.calls)
	assert.Equal(t, 0, jina.calls)
	assert.Equal(t, 1, fetcher.calls)
	assert.Len(t, ai.prompts, 2)
	assert.Equal(t, []string{"firecrawl", StrategyManagedAI, StrategyDirectFetch, StrategyHeuristicAI}, attemptNames(result))
}

func TestTourExtractionService_EverythingUnavailable(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", err: errors.New("dial tcp: connection refused")}
	fetcher := &fakePageGetter{err: errors.New("403 forbidden")}
	ai := &fakeProvider{name: "openai", err: errors.New("503 service unavailable")}

	result := newTestService([]MarkdownScraper{firecrawl}, fetcher, nil, ai).Extract(context.Background(), testTourURL)

	assert.False(t, result.Success)
	assert.Equal(t, models.SourceNone, result.Source)
	assert.Contains(t, result.Message, MessageExtractionFailed)
	assert.Contains(t, result.Message, "firecrawl: dial tcp: connection refused")
	assert.Contains(t, result.Message, "direct_fetch: 403 forbidden")

	expected := models.NewTourExtractionRecord(testTourURL)
	assert.Equal(t, expected, result.Data)
	assert.Equal(t, 0, result.Data.DurationDays)
	assert.Equal(t, "", result.Data.Title)
	assert.Empty(t, ai.prompts, "AI never sees a page that could not be fetched")
}

func TestTourExtractionService_Totality(t *testing.T) {
	testCases := []struct {
		name     string
		scrapers []MarkdownScraper
		fetcher  *fakePageGetter
		ai       *fakeProvider
	}{
		{"managed", []MarkdownScraper{&fakeScraper{name: "firecrawl", markdown: sampleMarkdown}}, &fakePageGetter{}, &fakeProvider{name: "openai", response: `{"title": "x"}`}},
		{"heuristic ai", nil, &fakePageGetter{html: sampleTourHTML}, &fakeProvider{name: "openai", response: `{"destinations": "Bali, Ubud"}`}},
		{"heuristic", nil, &fakePageGetter{html: "<html><body>nothing useful</body></html>"}, nil},
		{"empty page", nil, &fakePageGetter{html: ""}, &fakeProvider{name: "openai", response: `{"title": "x"}`}},
		{"failed", nil, &fakePageGetter{err: errors.New("timeout")}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var providers []CompletionProvider
			if tc.ai != nil {
				providers = append(providers, tc.ai)
			}

			result := newTestService(tc.scrapers, tc.fetcher, nil, providers...).Extract(context.Background(), testTourURL)

			payload, err := json.Marshal(result.Data)
			require.NoError(t, err)

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(payload, &decoded))
			assert.Len(t, decoded, 27, "every schema field is present")
			for key, value := range decoded {
				assert.NotNil(t, value, "field %s must not be null", key)
			}
			assert.Equal(t, testTourURL, result.Data.TourLink)
			assert.GreaterOrEqual(t, result.Data.DurationDays, 0)
			assert.GreaterOrEqual(t, result.Data.DurationNights, 0)
			if result.Data.DurationDays > 0 || result.Data.DurationNights > 0 {
				assert.Equal(t, result.Data.DurationDays, result.Data.DurationNights+1)
			}
		})
	}
}

func TestTourExtractionService_EmptyPageSkipsAI(t *testing.T) {
	ai := &fakeProvider{name: "openai", response: `{"title": "x"}`}

	result := newTestService(nil, &fakePageGetter{html: "<html><body></body></html>"}, nil, ai).
		Extract(context.Background(), testTourURL)

	assert.True(t, result.Success)
	assert.Equal(t, models.SourceHeuristic, result.Source)
	assert.Empty(t, ai.prompts)
	require.Len(t, result.Attempts, 2)
	assert.Contains(t, result.Attempts[1].Error, ErrContentTooShort.Error())
}

func TestTourExtractionService_Cancelled(t *testing.T) {
	firecrawl := &fakeScraper{name: "firecrawl", markdown: sampleMarkdown}
	ai := &fakeProvider{name: "openai", response: `{"title": "x"}`}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestService([]MarkdownScraper{firecrawl}, &fakePageGetter{html: sampleTourHTML}, nil, ai).Extract(ctx, testTourURL)

	assert.False(t, result.Success)
	assert.Equal(t, models.NewTourExtractionRecord(testTourURL), result.Data)
	assert.Empty(t, ai.prompts)
}

func TestTourExtractionService_RecordsMetrics(t *testing.T) {
	metrics := NewExtractionMetrics(prometheus.NewRegistry())
	firecrawl := &fakeScraper{name: "firecrawl", err: ErrContentTooShort}
	ai := &fakeProvider{name: "openai", response: `{"title": "Bali Escape"}`}

	newTestService([]MarkdownScraper{firecrawl}, &fakePageGetter{html: sampleTourHTML}, metrics, ai).
		Extract(context.Background(), testTourURL)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ExtractionsTotal.WithLabelValues(models.SourceHeuristicAI, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StrategyAttempts.WithLabelValues("firecrawl", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StrategyAttempts.WithLabelValues(StrategyDirectFetch, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderCalls.WithLabelValues("openai", "success")))
}

func TestTourExtractionService_ScraperNames(t *testing.T) {
	service := newTestService([]MarkdownScraper{&fakeScraper{name: "firecrawl"}, &fakeScraper{name: "jina"}}, &fakePageGetter{}, nil)
	assert.Equal(t, []string{"firecrawl", "jina"}, service.ScraperNames())
}
