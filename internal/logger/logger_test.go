package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tour-details-extractor/internal/logger"
)

func TestNew_BuildsUsableLogger(t *testing.T) {
	l, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	require.NotNil(t, l)

	enriched := l.With(logger.Component("test"), logger.String("url", "https://example.com"))
	assert.NotSame(t, l, enriched)

	// Calls below the configured level must not panic.
	enriched.Debug("filtered")
	enriched.Warn("kept", logger.Error(errors.New("boom")), logger.Int("attempt", 1))
}

func TestNewNop_DiscardsEverything(t *testing.T) {
	l := logger.NewNop()
	l.Info("nothing", logger.Bool("ok", true))
	assert.NotNil(t, l.With(logger.Component("nop")))
}
