package services

import (
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

const (
	defaultMaxContacts   = 5
	minDestinationLength = 3
)

// Normalizer turns loosely typed extractor output into a fully populated
// TourExtractionRecord. It is safe for concurrent use.
type Normalizer struct {
	maxContacts int
	logger      logger.Logger
}

// NewNormalizer creates a normalizer that keeps at most maxContacts contact
// tokens.
func NewNormalizer(maxContacts int, log logger.Logger) *Normalizer {
	if maxContacts <= 0 {
		maxContacts = defaultMaxContacts
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Normalizer{
		maxContacts: maxContacts,
		logger:      log.With(logger.Component("normalizer")),
	}
}

// Normalize decodes fields onto a defaulted record for tourLink and cleans
// the result. It never fails: values that cannot be coerced keep their default.
func (n *Normalizer) Normalize(tourLink string, fields models.PartialRecord) models.TourExtractionRecord {
	record := models.NewTourExtractionRecord(tourLink)

	if len(fields) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			MatchName:        matchFieldName,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				stringSliceHook,
				stringHook,
				intHook,
				decimalHook,
				boolHook,
			),
			Result: &record,
		})
		if err != nil {
			n.logger.Error("Failed to build record decoder", logger.Error(err))
		} else if err := decoder.Decode(map[string]interface{}(fields)); err != nil {
			// Fields that decoded cleanly are kept; the rest stay at their default
			n.logger.Debug("Some candidate fields could not be decoded",
				logger.String("tour_link", tourLink),
				logger.Error(err),
			)
		}
	}

	// The record always describes the page that was requested
	record.TourLink = tourLink

	if record.DurationDays <= 0 && record.DurationNights <= 0 {
		if text, ok := fields["duration"].(string); ok {
			if days, nights, found := ParseDuration(text); found {
				record.DurationDays, record.DurationNights = days, nights
			}
		}
	}

	return n.Clean(record)
}

// Clean applies duration reconciliation, enum mapping and list/contact
// cleaning to a record. Clean(Clean(r)) == Clean(r).
func (n *Normalizer) Clean(record models.TourExtractionRecord) models.TourExtractionRecord {
	record.TourLink = strings.TrimSpace(record.TourLink)
	record.Title = collapseWhitespace(record.Title)
	record.ProviderName = collapseWhitespace(record.ProviderName)
	record.Summary = collapseWhitespace(record.Summary)
	record.DiscountDetails = collapseWhitespace(record.DiscountDetails)
	record.PromotionalTagline = collapseWhitespace(record.PromotionalTagline)
	record.TourStartLocation = collapseWhitespace(record.TourStartLocation)
	record.TourDropLocation = collapseWhitespace(record.TourDropLocation)

	record.TourType = models.MatchEnum(record.TourType, models.TourTypes)
	record.TourStatus = models.MatchEnum(record.TourStatus, models.TourStatuses)
	record.PriceType = models.MatchEnum(record.PriceType, models.PriceTypes)

	record.DurationDays, record.DurationNights = ReconcileDuration(record.DurationDays, record.DurationNights)

	if record.StartingPrice < 0 || math.IsNaN(record.StartingPrice) || math.IsInf(record.StartingPrice, 0) {
		record.StartingPrice = 0
	}

	record.Destinations = CleanDestinations(record.Destinations)
	record.Categories = cleanList(record.Categories)
	record.Tags = cleanList(record.Tags)
	record.Highlights = cleanList(record.Highlights)
	record.DepartureCities = cleanList(record.DepartureCities)
	record.DepartureMonths = cleanList(record.DepartureMonths)
	record.OffersType = cleanList(record.OffersType)

	record.ContactLink = CleanContact(record.ContactLink, n.maxContacts)

	return record
}

// CleanDestinations collapses whitespace, drops entries shorter than three
// characters and removes identical duplicates, preserving order.
func CleanDestinations(destinations []string) []string {
	out := make([]string, 0, len(destinations))
	seen := make(map[string]bool, len(destinations))
	for _, d := range destinations {
		d = collapseWhitespace(d)
		if utf8.RuneCountInString(d) < minDestinationLength || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// CleanContact normalises a " | " separated contact string: whitespace is
// collapsed, duplicates removed and at most maxTokens tokens kept.
func CleanContact(contact string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = defaultMaxContacts
	}

	var tokens []string
	seen := make(map[string]bool)
	for _, token := range strings.Split(contact, "|") {
		token = collapseWhitespace(token)
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
		if len(tokens) == maxTokens {
			break
		}
	}

	return strings.Join(tokens, models.ContactSeparator)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = collapseWhitespace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// matchFieldName treats duration_days, durationDays and DurationDays as the
// same key.
func matchFieldName(mapKey, fieldName string) bool {
	return fieldKey(mapKey) == fieldKey(fieldName)
}

func fieldKey(s string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(s))
}

var stringSliceType = reflect.TypeOf([]string{})

// stringSliceHook accepts comma separated strings and mixed lists for []string fields.
func stringSliceHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != stringSliceType {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return splitList(v), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case map[string]interface{}:
		if s := scalarString(v); s != "" {
			return []string{s}, nil
		}
		return []string{}, nil
	}
	return data, nil
}

// stringHook flattens lists into a single string and ignores values that
// have no sensible text form.
func stringHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}

	switch v := data.(type) {
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, models.ContactSeparator), nil
	case []string:
		return strings.Join(v, models.ContactSeparator), nil
	case map[string]interface{}:
		return scalarString(v), nil
	case bool:
		return "", nil
	}
	return data, nil
}

func intHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String, reflect.Float32, reflect.Float64:
		return CoerceInt(data), nil
	case reflect.Slice, reflect.Map, reflect.Bool:
		return 0, nil
	}
	return data, nil
}

func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Float64 {
		return data, nil
	}

	switch from.Kind() {
	case reflect.String:
		return CoerceDecimal(data), nil
	case reflect.Slice, reflect.Map, reflect.Bool:
		return 0.0, nil
	}
	return data, nil
}

func boolHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Bool {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return parseFlag(v), nil
	case []interface{}, map[string]interface{}:
		return false, nil
	}
	return data, nil
}

// parseFlag reads affirmative inclusion wording ("yes", "included") as true.
func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "included", "include", "provided", "available":
		return true
	}
	return false
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '|'
	})

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// scalarString renders list items the models return: plain scalars, or
// objects carrying a name/title/text field.
func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]interface{}:
		for _, key := range []string{"name", "title", "text", "value"} {
			if s, ok := val[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
