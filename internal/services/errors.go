package services

import "errors"

var (
	// ErrMissingCredential is returned when a client has no API key configured.
	ErrMissingCredential = errors.New("missing API credential")
	// ErrContentTooShort is returned when fetched content is too short to be a tour page.
	ErrContentTooShort = errors.New("content too short")
	// ErrNoAIProviders is returned when no completion provider is configured.
	ErrNoAIProviders = errors.New("no AI providers configured")
	// ErrAllProvidersFailed is returned when every completion provider failed.
	ErrAllProvidersFailed = errors.New("all AI providers failed")
	// ErrEmptyAIResponse is returned when a provider answers without usable JSON.
	ErrEmptyAIResponse = errors.New("empty AI response")
	// ErrUnexpectedStatus is returned for non-2xx upstream responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)
