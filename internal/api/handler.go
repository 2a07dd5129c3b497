// Package api maps transport requests onto the tour extraction pipeline.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
	"tour-details-extractor/internal/services"
)

// ExtractPath is the route served by every transport.
const ExtractPath = "/api/tours/extract"

// CORSHeaders are returned on every response, including preflight.
var CORSHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token",
	"Access-Control-Allow-Methods": "POST,OPTIONS",
}

// ExtractRequest is the request body. TourLink takes precedence over URL.
type ExtractRequest struct {
	TourLink string `json:"tour_link"`
	URL      string `json:"url"`
}

// Link returns the requested tour URL.
func (r ExtractRequest) Link() string {
	if link := strings.TrimSpace(r.TourLink); link != "" {
		return link
	}
	return strings.TrimSpace(r.URL)
}

// ErrorResponse is returned for requests that never reach the pipeline.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ResultArchiver stores finished results. *services.S3Archive implements it.
type ResultArchiver interface {
	ArchiveResult(ctx context.Context, result models.ExtractionResult) (*services.S3UploadResult, error)
}

// ExtractHandler validates extraction requests and runs the extractor.
type ExtractHandler struct {
	extractor services.TourExtractor
	archiver  ResultArchiver
	logger    logger.Logger
}

// NewExtractHandler creates a handler. archiver may be nil.
func NewExtractHandler(extractor services.TourExtractor, archiver ResultArchiver, log logger.Logger) *ExtractHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &ExtractHandler{
		extractor: extractor,
		archiver:  archiver,
		logger:    log.With(logger.Component("api")),
	}
}

// Handle processes a raw request body and returns the HTTP status and the
// value to encode as the response. Invalid input maps to 400; every
// extraction outcome, successful or not, maps to 200.
func (h *ExtractHandler) Handle(ctx context.Context, body []byte) (int, interface{}) {
	var req ExtractRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Error:   err.Error(),
		}
	}

	link := req.Link()
	if err := models.ValidateTourURL(link); err != nil {
		h.logger.Info("Rejected tour link", logger.String("url", link), logger.Error(err))
		return http.StatusBadRequest, ErrorResponse{
			Message: "Invalid tour link",
			Error:   err.Error(),
		}
	}

	result := h.extractor.Extract(ctx, link)

	if h.archiver != nil {
		if _, err := h.archiver.ArchiveResult(ctx, result); err != nil {
			h.logger.Warn("Failed to archive extraction result",
				logger.String("extraction_id", result.ExtractionID),
				logger.Error(err),
			)
		}
	}

	return http.StatusOK, result
}
