package services

import (
	"tour-details-extractor/internal/config"
)

const geminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewGeminiClient creates a Gemini provider through Gemini's
// OpenAI-compatible endpoint.
func NewGeminiClient(cfg config.ProviderConfig) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiOpenAIBaseURL
	}
	return newOpenAICompatibleClient(config.ProviderGemini, cfg)
}
