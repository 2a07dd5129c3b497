package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

// fakeProvider answers with a canned response and records prompts.
type fakeProvider struct {
	name     string
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CompleteStructured(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func newTestStructuredExtractor(providers ...CompletionProvider) *StructuredExtractor {
	return NewStructuredExtractor(providers, 4000, logger.NewNop(), nil)
}

func TestStructuredExtractor_FirstProviderWins(t *testing.T) {
	first := &fakeProvider{name: "openai", response: `{"title": "Bali Escape", "duration_days": 5}`}
	second := &fakeProvider{name: "gemini", response: `{"title": "unused"}`}

	fields, provider, err := newTestStructuredExtractor(first, second).
		ExtractFields(context.Background(), "Bali Escape 5 days", testTourURL, nil)

	require.NoError(t, err)
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "Bali Escape", fields[models.FieldTitle])
	assert.Len(t, first.prompts, 1)
	assert.Empty(t, second.prompts, "later providers must not be called after a success")
}

func TestStructuredExtractor_FallsThroughProviders(t *testing.T) {
	failing := &fakeProvider{name: "openai", err: errors.New("connection reset")}
	malformed := &fakeProvider{name: "gemini", response: "I cannot help with that."}
	working := &fakeProvider{name: "anthropic", response: "```json\n{\"title\": \"Thailand Highlights\"}\n```"}

	fields, provider, err := newTestStructuredExtractor(failing, malformed, working).
		ExtractFields(context.Background(), "text", testTourURL, nil)

	require.NoError(t, err)
	assert.Equal(t, "anthropic", provider)
	assert.Equal(t, "Thailand Highlights", fields[models.FieldTitle])

	// Each provider is tried exactly once
	assert.Len(t, failing.prompts, 1)
	assert.Len(t, malformed.prompts, 1)
	assert.Len(t, working.prompts, 1)
}

func TestStructuredExtractor_AllProvidersFail(t *testing.T) {
	extractor := newTestStructuredExtractor(
		&fakeProvider{name: "openai", err: errors.New("timeout")},
		&fakeProvider{name: "gemini", response: "{}"},
	)

	_, _, err := extractor.ExtractFields(context.Background(), "text", testTourURL, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllProvidersFailed))
	assert.Contains(t, err.Error(), "openai: timeout")
	assert.Contains(t, err.Error(), "gemini:")
}

func TestStructuredExtractor_NoProviders(t *testing.T) {
	extractor := newTestStructuredExtractor()
	assert.False(t, extractor.HasProviders())

	_, _, err := extractor.ExtractFields(context.Background(), "text", testTourURL, nil)
	assert.True(t, errors.Is(err, ErrNoAIProviders))
}

func TestStructuredExtractor_Cancelled(t *testing.T) {
	provider := &fakeProvider{name: "openai", response: `{"title": "x"}`}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestStructuredExtractor(provider).ExtractFields(ctx, "text", testTourURL, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, provider.prompts)
}

func TestBuildExtractionPrompt(t *testing.T) {
	pageText := strings.Repeat("é", 5000)
	hints := models.PartialRecord{models.FieldTitle: "Heuristic Title"}

	prompt := BuildExtractionPrompt(pageText, testTourURL, hints, 100)

	assert.Contains(t, prompt, testTourURL)
	assert.Contains(t, prompt, DurationRules)
	assert.Contains(t, prompt, `"FIT" | "Group" | "Customizable"`)
	assert.Contains(t, prompt, `"Live" | "Draft" | "Coming Soon"`)
	assert.Contains(t, prompt, `"title":"Heuristic Title"`)
	assert.Contains(t, prompt, strings.Repeat("é", 100))
	assert.NotContains(t, prompt, strings.Repeat("é", 101))

	for _, field := range []string{models.FieldVisaSupportIncluded, models.FieldDepartureMonths, models.FieldPromotionalTagline} {
		assert.Contains(t, prompt, `"`+field+`"`)
	}
}

func TestBuildExtractionPrompt_NoHints(t *testing.T) {
	prompt := BuildExtractionPrompt("short page", testTourURL, nil, 0)
	assert.NotContains(t, prompt, "CANDIDATE VALUES")
	assert.Contains(t, prompt, "short page")
}

func TestParseStructuredResponse(t *testing.T) {
	testCases := []struct {
		name          string
		raw           string
		expectedTitle string
		expectedErr   error
		expectError   bool
	}{
		{name: "plain", raw: `{"title": "A"}`, expectedTitle: "A"},
		{name: "fenced", raw: "```json\n{\"title\": \"B\"}\n```", expectedTitle: "B"},
		{name: "prose around object", raw: "Here you go: {\"title\": \"C\"} Hope that helps", expectedTitle: "C"},
		{name: "data envelope", raw: `{"data": {"title": "D"}}`, expectedTitle: "D"},
		{name: "tour envelope", raw: `{"tour": {"title": "E", "duration_days": 3}}`, expectedTitle: "E"},
		{name: "empty object", raw: `{}`, expectedErr: ErrEmptyAIResponse, expectError: true},
		{name: "empty envelope", raw: `{"data": {}}`, expectedErr: ErrEmptyAIResponse, expectError: true},
		{name: "no object", raw: "Sorry, no tour found.", expectedErr: ErrEmptyAIResponse, expectError: true},
		{name: "malformed", raw: `{"title": "F",}`, expectError: true},
		{name: "camelCase field", raw: `{"durationDays": 4, "Title": "G"}`},
		{name: "duration text only", raw: `{"duration": "4N/5D"}`},
		{name: "error object", raw: `{"error": "I cannot access this page"}`, expectedErr: ErrEmptyAIResponse, expectError: true},
		{name: "message object", raw: `{"message": "content not a tour"}`, expectedErr: ErrEmptyAIResponse, expectError: true},
		{name: "empty list envelope", raw: `{"data": []}`, expectedErr: ErrEmptyAIResponse, expectError: true},
		{name: "defaults only", raw: `{"tour_link": "https://x.example", "title": "", "destinations": [], "duration_days": 0, "flights_included": false}`, expectedErr: ErrEmptyAIResponse, expectError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields, err := ParseStructuredResponse(tc.raw)
			if tc.expectError {
				require.Error(t, err)
				if tc.expectedErr != nil {
					assert.True(t, errors.Is(err, tc.expectedErr), "got %v", err)
				}
				return
			}
			require.NoError(t, err)
			if tc.expectedTitle != "" {
				assert.Equal(t, tc.expectedTitle, fields[models.FieldTitle])
			}
			assert.NotEmpty(t, fields)
		})
	}
}

func TestCleanJSONResponse(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"Clean JSON", `{"title": "x"}`, `{"title": "x"}`},
		{"JSON with markdown code blocks", "```json\n{\"title\": \"x\"}\n```", `{"title": "x"}`},
		{"JSON with just backticks", "```\n{\"title\": \"x\"}\n```", `{"title": "x"}`},
		{"JSON with extra whitespace", "  \n  {\"title\": \"x\"}  \n  ", `{"title": "x"}`},
		{"Plain text response", "I'm unable to extract structured data.", "I'm unable to extract structured data."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if result := cleanJSONResponse(tc.input); result != tc.expected {
				t.Errorf("Expected: %q, got: %q", tc.expected, result)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "héllo", truncateRunes("héllo", 10))
	assert.Equal(t, "", truncateRunes("héllo", 0))
}

func TestNewCompletionProviders(t *testing.T) {
	cfg := &config.Config{
		ProviderOrder: []string{config.ProviderAnthropic, config.ProviderGemini, config.ProviderOpenAI},
		OpenAI:        config.ProviderConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
		Anthropic:     config.ProviderConfig{APIKey: "sk-ant-test", Model: "claude-3-5-haiku-latest"},
	}

	providers := NewCompletionProviders(cfg, logger.NewNop())

	require.Len(t, providers, 2)
	assert.Equal(t, config.ProviderAnthropic, providers[0].Name())
	assert.Equal(t, config.ProviderOpenAI, providers[1].Name())
}
