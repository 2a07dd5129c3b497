package models

import "strings"

// Tour type values
const (
	TourTypeFIT          = "FIT"
	TourTypeGroup        = "Group"
	TourTypeCustomizable = "Customizable"
)

// Tour status values
const (
	TourStatusLive       = "Live"
	TourStatusDraft      = "Draft"
	TourStatusComingSoon = "Coming Soon"
)

// Price type values
const (
	PriceTypeFixed        = "Fixed"
	PriceTypeStartingFrom = "Starting From"
)

// TourTypes lists valid tour types; the first entry is the default.
var TourTypes = []string{TourTypeFIT, TourTypeGroup, TourTypeCustomizable}

// TourStatuses lists valid tour statuses; the first entry is the default.
var TourStatuses = []string{TourStatusLive, TourStatusDraft, TourStatusComingSoon}

// PriceTypes lists valid price types; the first entry is the default.
var PriceTypes = []string{PriceTypeFixed, PriceTypeStartingFrom}

// ContactSeparator joins multiple phone/email/URL tokens in ContactLink.
const ContactSeparator = " | "

// Schema field names, shared by every extractor and by the AI prompt.
const (
	FieldTourLink            = "tour_link"
	FieldTitle               = "title"
	FieldDestinations        = "destinations"
	FieldDurationDays        = "duration_days"
	FieldDurationNights      = "duration_nights"
	FieldTourType            = "tour_type"
	FieldProviderName        = "provider_name"
	FieldContactLink         = "contact_link"
	FieldTourStatus          = "tour_status"
	FieldCategories          = "categories"
	FieldTags                = "tags"
	FieldHighlights          = "highlights"
	FieldDepartureCities     = "departure_cities"
	FieldDepartureMonths     = "departure_months"
	FieldOffersType          = "offers_type"
	FieldSummary             = "summary"
	FieldDiscountDetails     = "discount_details"
	FieldPromotionalTagline  = "promotional_tagline"
	FieldStartingPrice       = "starting_price"
	FieldPriceType           = "price_type"
	FieldTourStartLocation   = "tour_start_location"
	FieldTourDropLocation    = "tour_drop_location"
	FieldFlightsIncluded     = "flights_included"
	FieldHotelsIncluded      = "hotels_included"
	FieldMealsIncluded       = "meals_included"
	FieldTransfersIncluded   = "transfers_included"
	FieldVisaSupportIncluded = "visa_support_included"
)

// ExtractedFields lists the fields an extractor can supply. TourLink is
// always the requested URL and is not among them.
var ExtractedFields = []string{
	FieldTitle, FieldDestinations, FieldDurationDays, FieldDurationNights,
	FieldTourType, FieldProviderName, FieldContactLink, FieldTourStatus,
	FieldCategories, FieldTags, FieldHighlights, FieldDepartureCities,
	FieldDepartureMonths, FieldOffersType, FieldSummary, FieldDiscountDetails,
	FieldPromotionalTagline, FieldStartingPrice, FieldPriceType,
	FieldTourStartLocation, FieldTourDropLocation, FieldFlightsIncluded,
	FieldHotelsIncluded, FieldMealsIncluded, FieldTransfersIncluded,
	FieldVisaSupportIncluded,
}

// TourExtractionRecord is the canonical structured description of one tour page.
// Every field always holds a value; absent information is the field default.
type TourExtractionRecord struct {
	TourLink       string   `json:"tour_link"`
	Title          string   `json:"title"`
	Destinations   []string `json:"destinations"`
	DurationDays   int      `json:"duration_days"`
	DurationNights int      `json:"duration_nights"`
	TourType       string   `json:"tour_type"`   // FIT|Group|Customizable
	ProviderName   string   `json:"provider_name"`
	ContactLink    string   `json:"contact_link"`
	TourStatus     string   `json:"tour_status"` // Live|Draft|Coming Soon

	Categories      []string `json:"categories"`
	Tags            []string `json:"tags"`
	Highlights      []string `json:"highlights"`
	DepartureCities []string `json:"departure_cities"`
	DepartureMonths []string `json:"departure_months"`
	OffersType      []string `json:"offers_type"`

	Summary            string `json:"summary"`
	DiscountDetails    string `json:"discount_details"`
	PromotionalTagline string `json:"promotional_tagline"`

	StartingPrice float64 `json:"starting_price"`
	PriceType     string  `json:"price_type"` // Fixed|Starting From

	TourStartLocation string `json:"tour_start_location"`
	TourDropLocation  string `json:"tour_drop_location"`

	// Inclusions
	FlightsIncluded     bool `json:"flights_included"`
	HotelsIncluded      bool `json:"hotels_included"`
	MealsIncluded       bool `json:"meals_included"`
	TransfersIncluded   bool `json:"transfers_included"`
	VisaSupportIncluded bool `json:"visa_support_included"`
}

// NewTourExtractionRecord returns a record holding every default value.
func NewTourExtractionRecord(tourLink string) TourExtractionRecord {
	return TourExtractionRecord{
		TourLink:        tourLink,
		Destinations:    []string{},
		TourType:        TourTypes[0],
		TourStatus:      TourStatuses[0],
		Categories:      []string{},
		Tags:            []string{},
		Highlights:      []string{},
		DepartureCities: []string{},
		DepartureMonths: []string{},
		OffersType:      []string{},
		PriceType:       PriceTypes[0],
	}
}

// PartialRecord holds loosely typed candidate values keyed by schema field
// name. Extractors produce it; the normalizer turns it into a record.
type PartialRecord map[string]interface{}

// Clone returns a shallow copy of the partial record.
func (p PartialRecord) Clone() PartialRecord {
	out := make(PartialRecord, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Overlay returns a copy of p where every non-empty value of other replaces
// the value in p. Empty strings, empty lists, nil, zero numbers and false
// never overwrite an existing candidate.
func (p PartialRecord) Overlay(other PartialRecord) PartialRecord {
	out := p.Clone()
	for k, v := range other {
		if IsEmptyValue(v) {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
			continue
		}
		out[k] = v
	}
	return out
}

// IsEmptyValue reports whether v carries no extracted information.
func IsEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []string:
		return len(val) == 0
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	case bool:
		return !val
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	}
	return false
}

// MatchEnum returns the canonical spelling of value within allowed, comparing
// case-insensitively and ignoring separators, or the first allowed value.
func MatchEnum(value string, allowed []string) string {
	key := enumKey(value)
	for _, candidate := range allowed {
		if enumKey(candidate) == key {
			return candidate
		}
	}
	return allowed[0]
}

func enumKey(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(s))
}
