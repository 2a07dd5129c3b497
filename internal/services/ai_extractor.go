package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

const defaultExcerptChars = 4000

// systemInstruction is sent as the system message by every provider.
const systemInstruction = "You are an expert at extracting structured data about travel tour packages " +
	"from web page content. Reply with a single JSON object and nothing else."

// CompletionProvider is a language-model backend that answers a prompt with
// a JSON document.
type CompletionProvider interface {
	Name() string
	CompleteStructured(ctx context.Context, prompt string) (string, error)
}

// StructuredExtractor asks completion providers, in preference order, to turn
// page text into schema fields. Each provider is tried at most once.
type StructuredExtractor struct {
	providers    []CompletionProvider
	excerptChars int
	logger       logger.Logger
	metrics      *ExtractionMetrics
}

// NewStructuredExtractor creates an extractor over providers in the given order.
func NewStructuredExtractor(providers []CompletionProvider, excerptChars int, log logger.Logger, metrics *ExtractionMetrics) *StructuredExtractor {
	if excerptChars <= 0 {
		excerptChars = defaultExcerptChars
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &StructuredExtractor{
		providers:    providers,
		excerptChars: excerptChars,
		logger:       log.With(logger.Component("ai_extractor")),
		metrics:      metrics,
	}
}

// HasProviders reports whether at least one provider is configured.
func (e *StructuredExtractor) HasProviders() bool {
	return e != nil && len(e.providers) > 0
}

// ProviderNames lists the configured providers in preference order.
func (e *StructuredExtractor) ProviderNames() []string {
	if e == nil {
		return nil
	}
	names := make([]string, len(e.providers))
	for i, p := range e.providers {
		names[i] = p.Name()
	}
	return names
}

// NewCompletionProviders instantiates the providers named in cfg.ProviderOrder
// that have credentials, preserving the order.
func NewCompletionProviders(cfg *config.Config, log logger.Logger) []CompletionProvider {
	if log == nil {
		log = logger.NewNop()
	}

	var providers []CompletionProvider
	for _, name := range cfg.ProviderOrder {
		providerCfg, ok := cfg.Provider(name)
		if !ok || providerCfg.APIKey == "" {
			log.Debug("Skipping AI provider without credentials", logger.String("provider", name))
			continue
		}

		var (
			provider CompletionProvider
			err      error
		)
		switch name {
		case config.ProviderOpenAI:
			provider, err = NewOpenAIClient(providerCfg)
		case config.ProviderGemini:
			provider, err = NewGeminiClient(providerCfg)
		case config.ProviderAnthropic:
			provider, err = NewAnthropicClient(providerCfg)
		}
		if err != nil {
			log.Warn("Failed to create AI provider", logger.String("provider", name), logger.Error(err))
			continue
		}
		providers = append(providers, provider)
	}

	return providers
}

// ExtractFields returns the fields of the first provider that answers with a
// usable JSON object, along with that provider's name.
func (e *StructuredExtractor) ExtractFields(ctx context.Context, pageText, pageURL string, hints models.PartialRecord) (models.PartialRecord, string, error) {
	if !e.HasProviders() {
		return nil, "", ErrNoAIProviders
	}

	prompt := BuildExtractionPrompt(pageText, pageURL, hints, e.excerptChars)

	var failures []string
	for _, provider := range e.providers {
		if err := ctx.Err(); err != nil {
			return nil, "", fmt.Errorf("AI extraction cancelled: %w", err)
		}

		startTime := time.Now()
		raw, err := provider.CompleteStructured(ctx, prompt)
		if err == nil {
			var fields models.PartialRecord
			fields, err = ParseStructuredResponse(raw)
			if err == nil {
				e.metrics.RecordProviderCall(provider.Name(), true, time.Since(startTime))
				e.logger.Info("AI extraction succeeded",
					logger.String("provider", provider.Name()),
					logger.String("url", pageURL),
					logger.Int("fields", len(fields)),
					logger.Duration("duration", time.Since(startTime)),
				)
				return fields, provider.Name(), nil
			}
		}

		e.metrics.RecordProviderCall(provider.Name(), false, time.Since(startTime))
		e.logger.Warn("AI provider failed",
			logger.String("provider", provider.Name()),
			logger.String("url", pageURL),
			logger.Error(err),
		)
		failures = append(failures, fmt.Sprintf("%s: %v", provider.Name(), err))
	}

	return nil, "", fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(failures, "; "))
}

// BuildExtractionPrompt assembles the schema, the duration rules, a bounded
// excerpt of the page text and optional heuristic hints into one instruction.
func BuildExtractionPrompt(pageText, pageURL string, hints models.PartialRecord, excerptChars int) string {
	if excerptChars <= 0 {
		excerptChars = defaultExcerptChars
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Extract the details of the tour package described on %s.\n\n", pageURL)
	b.WriteString(schemaDescription())
	b.WriteString("\n")
	b.WriteString(DurationRules)
	b.WriteString("\n\n")

	if len(hints) > 0 {
		if data, err := json.Marshal(hints); err == nil {
			b.WriteString("CANDIDATE VALUES FOUND BY RULE-BASED PARSING (verify against the content, correct if wrong):\n")
			b.Write(data)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("PAGE CONTENT:\n")
	b.WriteString(truncateRunes(pageText, excerptChars))
	b.WriteString("\n\nReturn only the JSON object.")

	return b.String()
}

func schemaDescription() string {
	quote := func(values []string) string {
		return `"` + strings.Join(values, `" | "`) + `"`
	}

	return fmt.Sprintf(`Return a JSON object with exactly these fields:
{
  "%s": string (tour name, cleaned of site branding),
  "%s": [string] (cities, regions or countries visited),
  "%s": integer,
  "%s": integer,
  "%s": %s,
  "%s": string (operator or brand name),
  "%s": string (phone numbers, emails or contact URLs joined with "%s"),
  "%s": %s,
  "%s": [string],
  "%s": [string],
  "%s": [string] (key experiences),
  "%s": [string],
  "%s": [string] (month names),
  "%s": [string],
  "%s": string (two or three sentences),
  "%s": string,
  "%s": string,
  "%s": number (lowest advertised price, digits only),
  "%s": %s,
  "%s": string,
  "%s": string,
  "%s": boolean,
  "%s": boolean,
  "%s": boolean,
  "%s": boolean,
  "%s": boolean
}
Use "" for unknown strings, [] for unknown lists, 0 for unknown numbers and false for unknown inclusions.
`,
		models.FieldTitle,
		models.FieldDestinations,
		models.FieldDurationDays,
		models.FieldDurationNights,
		models.FieldTourType, quote(models.TourTypes),
		models.FieldProviderName,
		models.FieldContactLink, models.ContactSeparator,
		models.FieldTourStatus, quote(models.TourStatuses),
		models.FieldCategories,
		models.FieldTags,
		models.FieldHighlights,
		models.FieldDepartureCities,
		models.FieldDepartureMonths,
		models.FieldOffersType,
		models.FieldSummary,
		models.FieldDiscountDetails,
		models.FieldPromotionalTagline,
		models.FieldStartingPrice,
		models.FieldPriceType, quote(models.PriceTypes),
		models.FieldTourStartLocation,
		models.FieldTourDropLocation,
		models.FieldFlightsIncluded,
		models.FieldHotelsIncluded,
		models.FieldMealsIncluded,
		models.FieldTransfersIncluded,
		models.FieldVisaSupportIncluded,
	)
}

// envelopeKeys are wrappers some models put around the requested object.
var envelopeKeys = []string{"data", "tour", "tour_details", "result"}

// ParseStructuredResponse turns a raw completion into fields: code fences are
// stripped, the outermost object is decoded and a single envelope is unwrapped.
// An empty object is ErrEmptyAIResponse.
func ParseStructuredResponse(raw string) (models.PartialRecord, error) {
	cleaned := cleanJSONResponse(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrEmptyAIResponse)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse AI response JSON: %w", err)
	}

	if len(fields) == 1 {
		for _, key := range envelopeKeys {
			if inner, ok := fields[key].(map[string]interface{}); ok {
				fields = inner
				break
			}
		}
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty JSON object", ErrEmptyAIResponse)
	}
	if !hasRecordValue(fields) {
		return nil, fmt.Errorf("%w: no tour fields in response", ErrEmptyAIResponse)
	}

	return models.PartialRecord(fields), nil
}

// hasRecordValue reports whether fields holds a non-empty value for at least
// one extracted record field or a free-text duration. Refusals such as
// {"error": "..."} hold none.
func hasRecordValue(fields map[string]interface{}) bool {
	for key, value := range fields {
		if models.IsEmptyValue(value) {
			continue
		}
		if matchFieldName(key, "duration") {
			return true
		}
		for _, name := range models.ExtractedFields {
			if matchFieldName(key, name) {
				return true
			}
		}
	}
	return false
}

// cleanJSONResponse removes markdown code blocks and surrounding whitespace.
func cleanJSONResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	}
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSuffix(cleaned, "```")
	}

	return strings.TrimSpace(cleaned)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
