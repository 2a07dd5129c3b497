package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"tour-details-extractor/internal/app"
	"tour-details-extractor/internal/models"
	"tour-details-extractor/internal/services"
)

// DefaultTimeout bounds a whole extraction run from the command line
const DefaultTimeout = 5 * time.Minute

func newRootCmd() *cobra.Command {
	var (
		configPath string
		timeout    time.Duration
		compact    bool
		strict     bool
	)

	cmd := &cobra.Command{
		Use:   "extract_tour <url>",
		Short: "Extract structured tour details from a tour page",
		Long: `Extract runs the full extraction pipeline against one tour page and
prints the result as JSON.

Examples:
  # Extract a tour page using credentials from the environment or .env
  extract_tour https://www.example-travel.com/tours/bali-escape

  # Fail with a non-zero exit code when the page could not be fetched
  extract_tour --strict https://www.example-travel.com/tours/bali-escape`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := models.ValidateTourURL(args[0]); err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer func() { _ = a.Logger.Sync() }()
			defer func() { _ = a.Close() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			return run(ctx, a.Extractor, args[0], !compact, strict, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", DefaultTimeout, "overall extraction timeout")
	cmd.Flags().BoolVar(&compact, "compact", false, "print compact JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when extraction fails")

	return cmd
}

// run extracts link and writes the result JSON to out.
func run(ctx context.Context, extractor services.TourExtractor, link string, pretty, strict bool, out io.Writer) error {
	result := extractor.Extract(ctx, link)

	encoder := json.NewEncoder(out)
	if pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if strict && !result.Success {
		return fmt.Errorf("extraction failed: %s", result.Message)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
