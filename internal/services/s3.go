package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
)

// s3PutAPI is the subset of the S3 client used by the archive.
type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3UploadResult represents the result of an S3 upload operation
type S3UploadResult struct {
	Key         string    `json:"key"`
	Location    string    `json:"location"`
	ETag        string    `json:"etag"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ContentType string    `json:"content_type"`
}

// S3Archive stores extraction results as JSON documents for later review
type S3Archive struct {
	client     s3PutAPI
	bucketName string
	region     string
	logger     logger.Logger
}

// NewS3Archive loads the default AWS configuration and returns an archive
// writing to cfg.S3Bucket.
func NewS3Archive(ctx context.Context, cfg config.ArchiveConfig, log logger.Logger) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newS3Archive(s3.NewFromConfig(awsCfg), cfg.S3Bucket, awsCfg.Region, log), nil
}

func newS3Archive(client s3PutAPI, bucketName, region string, log logger.Logger) *S3Archive {
	if log == nil {
		log = logger.NewNop()
	}
	return &S3Archive{
		client:     client,
		bucketName: bucketName,
		region:     region,
		logger:     log.With(logger.Component("s3_archive")),
	}
}

// ArchiveKey returns extractions/YYYY/MM/DD/<extraction_id>.json for result.
func ArchiveKey(result models.ExtractionResult) string {
	extractedAt := result.ExtractedAt
	if extractedAt.IsZero() {
		extractedAt = time.Now()
	}
	return fmt.Sprintf("extractions/%s/%s.json", extractedAt.UTC().Format("2006/01/02"), result.ExtractionID)
}

// ArchiveResult uploads result as indented JSON under ArchiveKey.
func (s *S3Archive) ArchiveResult(ctx context.Context, result models.ExtractionResult) (*S3UploadResult, error) {
	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction result to JSON: %w", err)
	}

	uploaded, err := s.uploadJSON(ctx, jsonData, ArchiveKey(result), "application/json")
	if err != nil {
		return nil, err
	}

	s.logger.Info("Archived extraction result",
		logger.String("key", uploaded.Key),
		logger.String("extraction_id", result.ExtractionID),
		logger.Int64("size", uploaded.Size),
	)
	return uploaded, nil
}

// uploadJSON is a helper method to upload JSON data to S3
func (s *S3Archive) uploadJSON(ctx context.Context, data []byte, key, contentType string) (*S3UploadResult, error) {
	// Ensure key doesn't start with /
	key = strings.TrimPrefix(key, "/")

	result, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"uploaded-by": "tour-details-extractor",
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	etag := ""
	if result != nil && result.ETag != nil {
		etag = strings.Trim(*result.ETag, `"`)
	}

	return &S3UploadResult{
		Key:         key,
		Location:    fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucketName, s.region, key),
		ETag:        etag,
		Size:        int64(len(data)),
		UploadedAt:  time.Now(),
		ContentType: contentType,
	}, nil
}
