package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"tour-details-extractor/internal/api"
	"tour-details-extractor/internal/app"
	"tour-details-extractor/internal/logger"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 5 * time.Minute
	shutdownTimeout = 30 * time.Second
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	a, err := app.New(context.Background(), *configPath)
	if err != nil {
		log.Fatalf("Failed to initialize extractor: %v", err)
	}
	defer func() { _ = a.Logger.Sync() }()
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("Failed to close app", logger.Error(err))
		}
	}()

	if !a.Config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      api.NewRouter(a.Handler, a.Registry, a.Logger),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	go func() {
		a.Logger.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("HTTP server failed", logger.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.Logger.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.Logger.Error("Graceful shutdown failed", logger.Error(err))
	}
}
