package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"tour-details-extractor/internal/config"
)

const defaultProviderTimeout = 45 * time.Second

// OpenAIClient is a CompletionProvider backed by the OpenAI chat completions
// API or any endpoint compatible with it.
type OpenAIClient struct {
	client      *openai.Client
	name        string
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAIClient creates an OpenAI provider. An empty API key returns
// ErrMissingCredential.
func NewOpenAIClient(cfg config.ProviderConfig) (*OpenAIClient, error) {
	return newOpenAICompatibleClient(config.ProviderOpenAI, cfg)
}

func newOpenAICompatibleClient(name string, cfg config.ProviderConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingCredential)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProviderTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1500
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		name:        name,
		model:       cfg.Model,
		temperature: 0.1,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

// Name returns the provider name used in logs and results.
func (o *OpenAIClient) Name() string {
	return o.name
}

// CompleteStructured sends prompt in JSON mode and returns the raw answer.
func (o *OpenAIClient) CompleteStructured(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemInstruction,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", o.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices from %s", ErrEmptyAIResponse, o.name)
	}

	return resp.Choices[0].Message.Content, nil
}
