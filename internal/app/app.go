// Package app assembles the extraction pipeline shared by every entry point.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"tour-details-extractor/internal/api"
	"tour-details-extractor/internal/config"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/services"
)

// App holds the wired pipeline.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	Registry  *prometheus.Registry
	Metrics   *services.ExtractionMetrics
	Extractor services.TourExtractor
	Handler   *api.ExtractHandler

	cache services.ResultCache
}

// New loads configuration from configPath (may be empty) and wires the pipeline.
func New(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return Wire(ctx, cfg, log)
}

// Wire builds the pipeline from an already loaded configuration.
func Wire(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewExtractionMetrics(registry)

	var extractor services.TourExtractor = services.NewTourExtractionServiceFromConfig(cfg, log, metrics)

	cache, err := services.NewResultCache(ctx, cfg.Cache, cfg.Archive.Region, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	extractor = services.NewCachedExtractor(extractor, cache, metrics, log)

	var archiver api.ResultArchiver
	if cfg.Archive.S3Bucket != "" {
		s3Archive, err := services.NewS3Archive(ctx, cfg.Archive, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive: %w", err)
		}
		archiver = s3Archive
	}

	log.Info("Tour extractor ready",
		logger.String("cache_backend", cfg.Cache.Backend),
		logger.Bool("archive_enabled", archiver != nil),
	)

	return &App{
		Config:    cfg,
		Logger:    log,
		Registry:  registry,
		Metrics:   metrics,
		Extractor: extractor,
		Handler:   api.NewExtractHandler(extractor, archiver, log),
		cache:     cache,
	}, nil
}

// Close releases connections held by the result cache.
func (a *App) Close() error {
	if closer, ok := a.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("failed to close result cache: %w", err)
		}
	}
	return nil
}
