package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

const defaultCacheTTL = 6 * time.Hour

// ResultCache stores successful extraction results keyed by GenerateCacheKey.
// Get reports a miss with found=false and a nil error.
type ResultCache interface {
	Get(ctx context.Context, key string) (result models.ExtractionResult, found bool, err error)
	Set(ctx context.Context, key string, result models.ExtractionResult) error
}

// NewResultCache builds the cache selected by cfg.Backend. It returns nil
// when caching is disabled.
func NewResultCache(ctx context.Context, cfg config.CacheConfig, region string, log logger.Logger) (ResultCache, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "redis":
		return NewRedisResultCache(cfg.RedisURL, cfg.TTL, log)
	case "dynamodb":
		opts := []func(*awsconfig.LoadOptions) error{}
		if region != "" {
			opts = append(opts, awsconfig.WithRegion(region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return NewDynamoResultCache(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.TTL, log), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// RedisResultCache keeps results as JSON strings with a TTL.
type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisResultCache connects lazily to the Redis instance at redisURL.
func NewRedisResultCache(redisURL string, ttl time.Duration, log logger.Logger) (*RedisResultCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return newRedisResultCache(redis.NewClient(opts), ttl, log), nil
}

func newRedisResultCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisResultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisResultCache{
		client: client,
		ttl:    ttl,
		logger: log.With(logger.Component("redis_cache")),
	}
}

func (c *RedisResultCache) key(cacheKey string) string {
	return fmt.Sprintf("extraction:%s", cacheKey)
}

// Get loads a cached result.
func (c *RedisResultCache) Get(ctx context.Context, cacheKey string) (models.ExtractionResult, bool, error) {
	var result models.ExtractionResult

	payload, err := c.client.Get(ctx, c.key(cacheKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, false, nil
	}
	if err != nil {
		return result, false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, &result); err != nil {
		return result, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return result, true, nil
}

// Set stores result under cacheKey for the configured TTL.
func (c *RedisResultCache) Set(ctx context.Context, cacheKey string, result models.ExtractionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if err := c.client.Set(ctx, c.key(cacheKey), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	c.logger.Debug("Cached extraction result",
		logger.String("cache_key", cacheKey),
		logger.Duration("ttl", c.ttl),
	)
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisResultCache) Close() error {
	return c.client.Close()
}

// CachedExtractor serves repeated requests for the same tour URL from a
// ResultCache. Only successful results are stored. Cache failures are logged
// and never change the extraction outcome.
type CachedExtractor struct {
	next    TourExtractor
	cache   ResultCache
	metrics *ExtractionMetrics
	logger  logger.Logger
}

// NewCachedExtractor wraps next. A nil cache returns next unchanged.
func NewCachedExtractor(next TourExtractor, cache ResultCache, metrics *ExtractionMetrics, log logger.Logger) TourExtractor {
	if cache == nil {
		return next
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedExtractor{
		next:    next,
		cache:   cache,
		metrics: metrics,
		logger:  log.With(logger.Component("result_cache")),
	}
}

// Extract returns a cached result when one exists, otherwise delegates.
func (c *CachedExtractor) Extract(ctx context.Context, tourURL string) models.ExtractionResult {
	cacheKey := models.GenerateCacheKey(tourURL)

	cached, found, err := c.cache.Get(ctx, cacheKey)
	switch {
	case err != nil:
		c.metrics.RecordCacheLookup("error")
		c.logger.Warn("Cache lookup failed",
			logger.String("cache_key", cacheKey),
			logger.Error(err),
		)
	case found:
		c.metrics.RecordCacheLookup("hit")
		c.logger.Info("Serving cached extraction",
			logger.String("url", tourURL),
			logger.String("extraction_id", cached.ExtractionID),
		)
		cached.Cached = true
		cached.Data.TourLink = tourURL
		return cached
	default:
		c.metrics.RecordCacheLookup("miss")
	}

	result := c.next.Extract(ctx, tourURL)
	if !result.Success {
		return result
	}

	if err := c.cache.Set(ctx, cacheKey, result); err != nil {
		c.logger.Warn("Failed to cache extraction",
			logger.String("cache_key", cacheKey),
			logger.Error(err),
		)
	}
	return result
}
