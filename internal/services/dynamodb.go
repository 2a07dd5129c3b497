package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

// dynamoAPI is the subset of the DynamoDB client used by the result cache.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// cachedExtractionItem is the table layout. ExpiresAt is the table's TTL
// attribute (epoch seconds).
type cachedExtractionItem struct {
	CacheKey     string `dynamodbav:"cache_key"`
	TourLink     string `dynamodbav:"tour_link"`
	ExtractionID string `dynamodbav:"extraction_id"`
	Source       string `dynamodbav:"source"`
	Result       string `dynamodbav:"result"`
	CreatedAt    string `dynamodbav:"created_at"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
}

// DynamoResultCache stores extraction results in a DynamoDB table keyed by cache_key
type DynamoResultCache struct {
	client dynamoAPI
	table  string
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

// NewDynamoResultCache creates a new DynamoDB-backed result cache
func NewDynamoResultCache(client dynamoAPI, table string, ttl time.Duration, log logger.Logger) *DynamoResultCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &DynamoResultCache{
		client: client,
		table:  table,
		ttl:    ttl,
		now:    time.Now,
		logger: log.With(logger.Component("dynamodb_cache")),
	}
}

// Get retrieves a cached result by key. Items past expires_at are misses
// since DynamoDB deletes expired items lazily.
func (c *DynamoResultCache) Get(ctx context.Context, cacheKey string) (models.ExtractionResult, bool, error) {
	var result models.ExtractionResult

	output, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: cacheKey},
		},
	})
	if err != nil {
		return result, false, fmt.Errorf("failed to get cached extraction: %w", err)
	}

	if output.Item == nil {
		return result, false, nil
	}

	var item cachedExtractionItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return result, false, fmt.Errorf("failed to unmarshal cached extraction: %w", err)
	}

	if item.ExpiresAt > 0 && c.now().Unix() >= item.ExpiresAt {
		c.logger.Debug("Cached extraction expired", logger.String("cache_key", cacheKey))
		return result, false, nil
	}

	if err := json.Unmarshal([]byte(item.Result), &result); err != nil {
		return result, false, fmt.Errorf("failed to decode cached extraction: %w", err)
	}
	return result, true, nil
}

// Set stores result with an expires_at of now plus the cache TTL
func (c *DynamoResultCache) Set(ctx context.Context, cacheKey string, result models.ExtractionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode extraction: %w", err)
	}

	now := c.now().UTC()
	item, err := attributevalue.MarshalMap(cachedExtractionItem{
		CacheKey:     cacheKey,
		TourLink:     result.Data.TourLink,
		ExtractionID: result.ExtractionID,
		Source:       result.Source,
		Result:       string(payload),
		CreatedAt:    now.Format(time.RFC3339),
		ExpiresAt:    now.Add(c.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cached extraction: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to cache extraction: %w", err)
	}

	return nil
}
