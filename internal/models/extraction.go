package models

import "time"

// Extraction source values
const (
	SourceManagedScrape = "managed_scrape"
	SourceHeuristicAI   = "heuristic_ai"
	SourceHeuristic     = "heuristic"
	SourceNone          = "none"
)

// ExtractionResult wraps a fully populated record with an outcome flag.
// Success and Message communicate confidence, never structural completeness.
type ExtractionResult struct {
	Success      bool                 `json:"success"`
	Message      string               `json:"message"`
	Data         TourExtractionRecord `json:"data"`
	ExtractionID string               `json:"extraction_id"`
	Source       string               `json:"source"`
	Scraper      string               `json:"scraper,omitempty"`
	Provider     string               `json:"provider,omitempty"`
	Attempts     []StrategyAttempt    `json:"attempts"`
	ProcessingMS int64                `json:"processing_ms"`
	ExtractedAt  time.Time            `json:"extracted_at"`
	Cached       bool                 `json:"cached,omitempty"`
}

// StrategyAttempt records one step of the fallback chain.
type StrategyAttempt struct {
	Strategy string `json:"strategy"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}
