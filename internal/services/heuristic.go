package services

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

// Minimum rune count for readability text to be preferred over body text.
const minArticleRunes = 300

const maxHighlights = 10

// HeuristicResult holds rule-based candidates and the visible page text.
type HeuristicResult struct {
	Fields models.PartialRecord
	Text   string
}

type selectorRule struct {
	selector string
	attr     string // read this attribute instead of the element text
}

var titleRules = []selectorRule{
	{selector: "h1"},
	{selector: "h2"},
	{selector: ".title"},
	{selector: ".tour-title"},
	{selector: `[class*="title"]`},
	{selector: `meta[property="og:title"]`, attr: "content"},
	{selector: `meta[name="title"]`, attr: "content"},
	{selector: "title"},
}

var summaryRules = []selectorRule{
	{selector: `meta[name="description"]`, attr: "content"},
	{selector: `meta[property="og:description"]`, attr: "content"},
	{selector: ".description"},
	{selector: ".tour-description"},
	{selector: `[class*="description"]`},
}

const contactElementSelector = `[class*="contact"], [id*="contact"], [class*="phone"], [id*="phone"], ` +
	`[class*="email"], [id*="email"], [class*="address"], [id*="address"]`

const highlightSelector = `.highlights li, .tour-highlights li, #highlights li, [class*="highlight"] li`

// knownDestinations is the reference list matched against title and summary.
var knownDestinations = []string{
	"Bali", "Thailand", "Singapore", "Maldives", "Dubai", "Europe", "India", "Japan", "Korea",
	"Australia", "New Zealand", "USA", "Canada", "Mexico", "Brazil", "Argentina", "South Africa",
	"Egypt", "Morocco", "Turkey", "Greece", "Italy", "Spain", "France", "Germany", "Netherlands",
	"Belgium", "Switzerland", "Austria", "Czech Republic", "Poland", "Hungary", "Romania",
	"Bulgaria", "Croatia", "Slovenia", "Slovakia", "Lithuania", "Latvia", "Estonia", "Finland",
	"Sweden", "Norway", "Denmark", "Iceland", "Ireland", "UK", "Portugal", "Malta", "Cyprus",
}

var destinationPatterns = compileDestinationPatterns(knownDestinations)

var (
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{8,}\d`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	pricePattern = regexp.MustCompile(`(?i)(starting\s+(?:from|at)|starts\s+(?:from|at)|from|only)?\s*(?:₹|\brs\.?|\binr|\$|\busd|€|\beur|£|\bgbp|\baed)\s*(\d[\d,]*(?:\.\d{1,2})?)`)
)

// HeuristicExtractor derives candidate fields from raw HTML with CSS
// selectors and regular expressions. It never fails structurally.
type HeuristicExtractor struct {
	maxContacts int
	logger      logger.Logger
}

// NewHeuristicExtractor creates a heuristic extractor.
func NewHeuristicExtractor(maxContacts int, log logger.Logger) *HeuristicExtractor {
	if maxContacts <= 0 {
		maxContacts = defaultMaxContacts
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &HeuristicExtractor{
		maxContacts: maxContacts,
		logger:      log.With(logger.Component("heuristic")),
	}
}

// ExtractCandidates returns rule-based field candidates for the page and its
// visible text. Fields it cannot determine are left out or empty.
func (h *HeuristicExtractor) ExtractCandidates(html, pageURL string) HeuristicResult {
	fields := models.PartialRecord{
		models.FieldProviderName: ProviderNameFromURL(pageURL),
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		h.logger.Warn("Failed to parse HTML", logger.String("url", pageURL), logger.Error(err))
		fields[models.FieldTourType] = models.TourTypeFIT
		return HeuristicResult{Fields: fields}
	}

	article := h.readArticle(html, pageURL)

	title := firstMatch(doc, titleRules)
	if title == "" {
		title = collapseWhitespace(article.Title)
	}
	summary := firstMatch(doc, summaryRules)
	if summary == "" {
		summary = collapseWhitespace(article.Excerpt)
	}

	bodyText := collapseWhitespace(spacedText(doc.Find("body")))
	if bodyText == "" {
		bodyText = collapseWhitespace(spacedText(doc.Selection))
	}

	text := bodyText
	if articleText := collapseWhitespace(article.TextContent); utf8.RuneCountInString(articleText) >= minArticleRunes {
		text = articleText
	}

	fields[models.FieldTitle] = title
	fields[models.FieldSummary] = summary
	fields[models.FieldDestinations] = matchDestinations(title + " " + summary)
	fields[models.FieldTourType] = guessTourType(title + " " + summary)
	fields[models.FieldContactLink] = h.extractContacts(doc, bodyText)
	fields[models.FieldHighlights] = extractHighlights(doc)

	for _, candidate := range []string{title, summary, bodyText} {
		if days, nights, ok := ParseDuration(candidate); ok {
			fields[models.FieldDurationDays] = days
			fields[models.FieldDurationNights] = nights
			break
		}
	}

	if price, priceType, ok := extractPrice(title + " " + summary + " " + bodyText); ok {
		fields[models.FieldStartingPrice] = price
		fields[models.FieldPriceType] = priceType
	}

	h.logger.Debug("Heuristic candidates extracted",
		logger.String("url", pageURL),
		logger.String("title", title),
		logger.Int("text_chars", utf8.RuneCountInString(text)),
	)

	return HeuristicResult{Fields: fields, Text: text}
}

func (h *HeuristicExtractor) readArticle(html, pageURL string) readability.Article {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return readability.Article{}
	}

	article, err := readability.FromReader(strings.NewReader(html), parsedURL)
	if err != nil {
		h.logger.Debug("Readability found no article", logger.String("url", pageURL), logger.Error(err))
		return readability.Article{}
	}
	return article
}

// extractContacts unions tel:/mailto: targets, phone and email matches in the
// visible text and short contact-like elements.
func (h *HeuristicExtractor) extractContacts(doc *goquery.Document, bodyText string) string {
	var tokens []string

	doc.Find(`a[href^="tel:"], a[href^="mailto:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		target := href
		if idx := strings.Index(target, ":"); idx >= 0 {
			target = target[idx+1:]
		}
		if idx := strings.Index(target, "?"); idx >= 0 {
			target = target[:idx]
		}
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		if target = strings.TrimSpace(target); target != "" {
			tokens = append(tokens, target)
		}
	})

	for _, match := range phonePattern.FindAllString(bodyText, -1) {
		match = strings.TrimSpace(match)
		if models.IsValidPhoneNumber(match) {
			tokens = append(tokens, match)
		}
	}
	for _, match := range emailPattern.FindAllString(bodyText, -1) {
		if models.IsValidEmail(match) {
			tokens = append(tokens, match)
		}
	}

	doc.Find(contactElementSelector).Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "form" || goquery.NodeName(s) == "input" {
			return
		}
		text := collapseWhitespace(spacedText(s))
		if text == "" || utf8.RuneCountInString(text) > 100 {
			return
		}
		if !strings.ContainsAny(text, "0123456789@") {
			return
		}
		for _, token := range tokens {
			if strings.Contains(text, token) {
				return
			}
		}
		tokens = append(tokens, text)
	})

	return CleanContact(strings.Join(tokens, "|"), h.maxContacts)
}

// ProviderNameFromURL derives a brand name from the page host:
// "www.bali-holidays.com" becomes "Bali-Holidays".
func ProviderNameFromURL(pageURL string) string {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return ""
	}

	label := host
	if idx := strings.Index(host, "."); idx >= 0 {
		label = host[:idx]
	}
	return titleCase(label)
}

func titleCase(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		if unicode.IsLetter(r) {
			if upperNext {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			upperNext = false
			continue
		}
		upperNext = true
		b.WriteRune(r)
	}
	return b.String()
}

func firstMatch(doc *goquery.Document, rules []selectorRule) string {
	for _, rule := range rules {
		var value string
		doc.Find(rule.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if rule.attr != "" {
				value, _ = s.Attr(rule.attr)
			} else {
				value = spacedText(s)
			}
			value = collapseWhitespace(value)
			return value == ""
		})
		if value != "" {
			return value
		}
	}
	return ""
}

// spacedText returns the text of s with a space between nodes, skipping
// script and style content.
func spacedText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "#text":
			b.WriteString(child.Text())
			b.WriteByte(' ')
		case "script", "style", "noscript", "template", "svg", "#comment":
		default:
			b.WriteString(spacedText(child))
			b.WriteByte(' ')
		}
	})
	return b.String()
}

func compileDestinationPatterns(names []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(names))
	for i, name := range names {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	}
	return patterns
}

func matchDestinations(text string) []string {
	out := make([]string, 0)
	for i, pattern := range destinationPatterns {
		if pattern.MatchString(text) {
			out = append(out, knownDestinations[i])
		}
	}
	return out
}

func guessTourType(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "group"):
		return models.TourTypeGroup
	case strings.Contains(lower, "custom"):
		return models.TourTypeCustomizable
	}
	return models.TourTypeFIT
}

// extractPrice finds the first currency-prefixed amount. A leading "from" or
// "starting" marks it as a starting price.
func extractPrice(text string) (float64, string, bool) {
	for _, match := range pricePattern.FindAllStringSubmatch(text, -1) {
		price := CoerceDecimal(match[2])
		if price <= 0 {
			continue
		}
		if match[1] != "" && !strings.EqualFold(match[1], "only") {
			return price, models.PriceTypeStartingFrom, true
		}
		return price, models.PriceTypeFixed, true
	}
	return 0, "", false
}

func extractHighlights(doc *goquery.Document) []string {
	out := make([]string, 0)
	doc.Find(highlightSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapseWhitespace(spacedText(s))
		if text != "" && utf8.RuneCountInString(text) <= 200 {
			out = append(out, text)
		}
		return len(out) < maxHighlights
	})
	return cleanList(out)
}
