// Package config loads extractor configuration from an optional YAML file,
// a .env file and environment variables.
//
// Missing API credentials are not errors: an empty key means the matching
// strategy or provider is skipped at runtime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration.
type Config struct {
	Firecrawl     ScraperConfig  `mapstructure:"firecrawl"`
	Jina          ScraperConfig  `mapstructure:"jina"`
	OpenAI        ProviderConfig `mapstructure:"openai"`
	Gemini        ProviderConfig `mapstructure:"gemini"`
	Anthropic     ProviderConfig `mapstructure:"anthropic"`
	ProviderOrder []string       `mapstructure:"provider_order"`
	Fetch         FetchConfig    `mapstructure:"fetch"`
	Extraction    ExtractConfig  `mapstructure:"extraction"`
	Cache         CacheConfig    `mapstructure:"cache"`
	Archive       ArchiveConfig  `mapstructure:"archive"`
	Logging       LoggingConfig  `mapstructure:"logging"`
	Server        ServerConfig   `mapstructure:"server"`
}

// ScraperConfig configures a managed scrape service.
type ScraperConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ProviderConfig configures one language-model provider.
type ProviderConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// FetchConfig configures the direct page fetch used by the heuristic path.
type FetchConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// ExtractConfig tunes the extraction pipeline.
type ExtractConfig struct {
	ExcerptChars int `mapstructure:"excerpt_chars"`
	MaxContacts  int `mapstructure:"max_contacts"`
}

// CacheConfig selects an optional result cache. Backend is "", "redis" or "dynamodb".
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	RedisURL      string        `mapstructure:"redis_url"`
	DynamoDBTable string        `mapstructure:"dynamodb_table"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ArchiveConfig enables archiving of extraction results to S3.
type ArchiveConfig struct {
	S3Bucket string `mapstructure:"s3_bucket"`
	Region   string `mapstructure:"region"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ServerConfig configures the HTTP entry point.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Provider names accepted in ProviderOrder.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"firecrawl.api_key":         "FIRECRAWL_API_KEY",
	"firecrawl.base_url":        "FIRECRAWL_API_URL",
	"firecrawl.timeout":         "FIRECRAWL_TIMEOUT",
	"jina.api_key":              "JINA_API_KEY",
	"jina.base_url":             "JINA_BASE_URL",
	"jina.timeout":              "JINA_TIMEOUT",
	"openai.api_key":            "OPENAI_API_KEY",
	"openai.model":              "OPENAI_MODEL",
	"openai.base_url":           "OPENAI_BASE_URL",
	"openai.timeout":            "OPENAI_TIMEOUT",
	"gemini.api_key":            "GEMINI_API_KEY",
	"gemini.model":              "GEMINI_MODEL",
	"gemini.base_url":           "GEMINI_BASE_URL",
	"gemini.timeout":            "GEMINI_TIMEOUT",
	"anthropic.api_key":         "ANTHROPIC_API_KEY",
	"anthropic.model":           "ANTHROPIC_MODEL",
	"anthropic.base_url":        "ANTHROPIC_BASE_URL",
	"anthropic.timeout":         "ANTHROPIC_TIMEOUT",
	"provider_order":            "AI_PROVIDER_ORDER",
	"fetch.user_agent":          "FETCH_USER_AGENT",
	"fetch.timeout":             "FETCH_TIMEOUT",
	"fetch.max_body_bytes":      "FETCH_MAX_BODY_BYTES",
	"extraction.excerpt_chars":  "EXTRACTION_EXCERPT_CHARS",
	"extraction.max_contacts":   "EXTRACTION_MAX_CONTACTS",
	"cache.backend":             "CACHE_BACKEND",
	"cache.redis_url":           "CACHE_REDIS_URL",
	"cache.dynamodb_table":      "CACHE_DYNAMODB_TABLE",
	"cache.ttl":                 "CACHE_TTL",
	"archive.s3_bucket":         "ARCHIVE_S3_BUCKET",
	"archive.region":            "AWS_REGION",
	"logging.level":             "LOG_LEVEL",
	"logging.development":       "LOG_DEVELOPMENT",
	"server.addr":               "HTTP_ADDR",
}

// DefaultUserAgent identifies the direct page fetch. Browser-like so that
// ordinary sites serve full markup, with a product token for site owners.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 TourDetailsExtractor/1.0"

func setDefaults(v *viper.Viper) {
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev")
	v.SetDefault("firecrawl.timeout", 120*time.Second)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.timeout", 60*time.Second)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 45*time.Second)
	v.SetDefault("openai.max_tokens", 1500)
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai/")
	v.SetDefault("gemini.timeout", 45*time.Second)
	v.SetDefault("gemini.max_tokens", 1500)
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.timeout", 45*time.Second)
	v.SetDefault("anthropic.max_tokens", 1500)
	v.SetDefault("provider_order", []string{ProviderOpenAI, ProviderGemini, ProviderAnthropic})

	v.SetDefault("fetch.user_agent", DefaultUserAgent)
	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.max_body_bytes", int64(5<<20))

	v.SetDefault("extraction.excerpt_chars", 4000)
	v.SetDefault("extraction.max_contacts", 5)

	v.SetDefault("cache.ttl", 6*time.Hour)
	v.SetDefault("archive.region", "us-west-2")

	v.SetDefault("logging.level", "info")
	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment are used.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ProviderOrder = normalizeProviderOrder(cfg.ProviderOrder)
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot be honoured.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "none":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache backend redis requires CACHE_REDIS_URL")
		}
	case "dynamodb":
		if c.Cache.DynamoDBTable == "" {
			return fmt.Errorf("cache backend dynamodb requires CACHE_DYNAMODB_TABLE")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Extraction.ExcerptChars <= 0 {
		return fmt.Errorf("extraction excerpt_chars must be positive, got %d", c.Extraction.ExcerptChars)
	}
	if c.Extraction.MaxContacts <= 0 {
		return fmt.Errorf("extraction max_contacts must be positive, got %d", c.Extraction.MaxContacts)
	}
	return nil
}

// normalizeProviderOrder lower-cases, drops unknown names and duplicates.
// A single env value such as "openai, gemini" arrives as one element, so
// every element is split again on commas.
func normalizeProviderOrder(order []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(order))
	for _, raw := range order {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			switch name {
			case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
			default:
				continue
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			result = append(result, name)
		}
	}
	return result
}

// Provider returns the configuration for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderOpenAI:
		return c.OpenAI, true
	case ProviderGemini:
		return c.Gemini, true
	case ProviderAnthropic:
		return c.Anthropic, true
	}
	return ProviderConfig{}, false
}
