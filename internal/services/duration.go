package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// durationPattern is one rule of the ordered duration grammar. The first
// matching rule wins.
type durationPattern struct {
	name    string
	re      *regexp.Regexp
	daysAt  int // capture group holding days, 0 when absent
	nightAt int // capture group holding nights, 0 when absent
}

// durationPatterns are evaluated in order against free text.
var durationPatterns = []durationPattern{
	{
		name:    "days_nights",
		re:      regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*days?\b[\s,/&+-]*(?:and\s+)?(\d{1,3})\s*-?\s*nights?\b`),
		daysAt:  1,
		nightAt: 2,
	},
	{
		name:    "nights_days",
		re:      regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*nights?\b[\s,/&+-]*(?:and\s+)?(\d{1,3})\s*-?\s*days?\b`),
		daysAt:  2,
		nightAt: 1,
	},
	{
		name:   "day_tour",
		re:     regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*days?\s+(?:tour|trip|package|itinerary|holiday)\b`),
		daysAt: 1,
	},
	{
		name:    "night_tour",
		re:      regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*nights?\s+(?:tour|trip|package|itinerary|holiday)\b`),
		nightAt: 1,
	},
	{
		name:    "nd_shorthand",
		re:      regexp.MustCompile(`(?i)\b(\d{1,3})\s*N\s*/\s*(\d{1,3})\s*D\b`),
		daysAt:  2,
		nightAt: 1,
	},
	{
		name:    "dn_shorthand",
		re:      regexp.MustCompile(`(?i)\b(\d{1,3})\s*D\s*/\s*(\d{1,3})\s*N\b`),
		daysAt:  1,
		nightAt: 2,
	},
	{
		name:   "lone_days",
		re:     regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*days?\b`),
		daysAt: 1,
	},
	{
		name:    "lone_nights",
		re:      regexp.MustCompile(`(?i)\b(\d{1,3})\s*-?\s*nights?\b`),
		nightAt: 1,
	},
}

// DurationRules is the natural-language form of the duration grammar and the
// reconciliation rule. It is embedded in the AI prompt so that model output is
// aligned with ParseDuration and ReconcileDuration.
const DurationRules = `DURATION RULES:
- "N days M nights" or "M nights N days" -> duration_days=N, duration_nights=M
- "N day tour" -> duration_days=N, duration_nights=N-1
- "N night tour" -> duration_nights=N, duration_days=N+1
- "MN/ND" shorthand such as "4N/5D" -> duration_nights=M, duration_days=N; "5D/4N" -> duration_days=5, duration_nights=4
- a lone "N days" -> duration_days=N, duration_nights=N-1
- a lone "N nights" -> duration_nights=N, duration_days=N+1
- if no duration is stated anywhere, use 0 for both
- both values are whole non-negative numbers`

// ParseDuration applies the ordered duration grammar to text and returns
// reconciled day and night counts. ok is false when nothing matched.
func ParseDuration(text string) (days, nights int, ok bool) {
	for _, pattern := range durationPatterns {
		match := pattern.re.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		if pattern.daysAt > 0 {
			days, _ = strconv.Atoi(match[pattern.daysAt])
		}
		if pattern.nightAt > 0 {
			nights, _ = strconv.Atoi(match[pattern.nightAt])
		}

		days, nights = ReconcileDuration(days, nights)
		if days == 0 && nights == 0 {
			// "0 days" carries no information; keep looking
			continue
		}
		return days, nights, true
	}

	return 0, 0, false
}

// ReconcileDuration clamps negatives to zero and derives a missing day or
// night count from the other one.
//
// An explicit "5 days, 0 nights" input becomes 5 days 4 nights. This mirrors
// the behaviour callers have always seen; see DESIGN.md before changing it.
func ReconcileDuration(days, nights int) (int, int) {
	if days < 0 {
		days = 0
	}
	if nights < 0 {
		nights = 0
	}

	if days > 0 && nights == 0 {
		nights = days - 1
	}
	if nights > 0 && days == 0 {
		days = nights + 1
	}

	return days, nights
}

var (
	digitRunPattern = regexp.MustCompile(`-?\d+`)
	decimalPattern  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
)

// CoerceInt converts a loosely typed value to an int. Strings use their first
// digit run ("5 days" -> 5, "approx. 7" -> 7); anything unusable is 0.
func CoerceInt(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case int32:
		return int(val)
	case int64:
		return int(val)
	case float32:
		return int(val)
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0
		}
		return int(val)
	case string:
		match := digitRunPattern.FindString(val)
		if match == "" {
			return 0
		}
		n, err := strconv.Atoi(match)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// CoerceDecimal converts a loosely typed price to a non-negative float.
// Thousands separators are dropped ("₹45,999" -> 45999).
func CoerceDecimal(v interface{}) float64 {
	var f float64
	switch val := v.(type) {
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case float32:
		f = float64(val)
	case float64:
		f = val
	case string:
		match := decimalPattern.FindString(val)
		if match == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
		if err != nil {
			return 0
		}
		f = parsed
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
