package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ExtractionMetrics tracks outcomes of the extraction pipeline. A nil
// *ExtractionMetrics is valid and records nothing.
type ExtractionMetrics struct {
	ExtractionsTotal     *prometheus.CounterVec
	ExtractionDuration   *prometheus.HistogramVec
	StrategyAttempts     *prometheus.CounterVec
	ProviderCalls        *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	CacheLookups         *prometheus.CounterVec
}

// NewExtractionMetrics registers the pipeline metrics with reg.
func NewExtractionMetrics(reg prometheus.Registerer) *ExtractionMetrics {
	factory := promauto.With(reg)

	return &ExtractionMetrics{
		ExtractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_extractions_total",
			Help: "Total tour extractions by producing source and outcome",
		}, []string{"source", "outcome"}),

		ExtractionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tour_extraction_duration_seconds",
			Help:    "End-to-end time to extract one tour page",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 180},
		}, []string{"source"}),

		StrategyAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_extraction_strategy_attempts_total",
			Help: "Attempts of each fallback strategy by outcome",
		}, []string{"strategy", "outcome"}),

		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_extraction_ai_calls_total",
			Help: "AI provider calls by provider and outcome",
		}, []string{"provider", "outcome"}),

		ProviderCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tour_extraction_ai_call_duration_seconds",
			Help:    "Latency of AI provider calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45},
		}, []string{"provider"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tour_extraction_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordExtraction records one completed Extract call.
func (em *ExtractionMetrics) RecordExtraction(source string, success bool, processingTime time.Duration) {
	if em == nil {
		return
	}
	em.ExtractionsTotal.WithLabelValues(source, outcome(success)).Inc()
	em.ExtractionDuration.WithLabelValues(source).Observe(processingTime.Seconds())
}

// RecordStrategyAttempt records one step of the fallback chain.
func (em *ExtractionMetrics) RecordStrategyAttempt(strategy string, success bool) {
	if em == nil {
		return
	}
	em.StrategyAttempts.WithLabelValues(strategy, outcome(success)).Inc()
}

// RecordProviderCall records one AI provider call.
func (em *ExtractionMetrics) RecordProviderCall(provider string, success bool, duration time.Duration) {
	if em == nil {
		return
	}
	em.ProviderCalls.WithLabelValues(provider, outcome(success)).Inc()
	em.ProviderCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordCacheLookup records a cache lookup result: "hit", "miss" or "error".
func (em *ExtractionMetrics) RecordCacheLookup(result string) {
	if em == nil {
		return
	}
	em.CacheLookups.WithLabelValues(result).Inc()
}
