package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tour-details-extractor/internal/logger"
	"tour-details-extractor/internal/models"
	"tour-details-extractor/internal/services"
)

const tourURL = "https://www.bali-holidays.example/tours/bali-escape"

type stubExtractor struct {
	success bool
	urls    []string
}

func (s *stubExtractor) Extract(ctx context.Context, link string) models.ExtractionResult {
	s.urls = append(s.urls, link)
	result := models.ExtractionResult{
		Success:      s.success,
		Data:         models.NewTourExtractionRecord(link),
		ExtractionID: "id-1",
		Source:       models.SourceHeuristic,
	}
	if !s.success {
		result.Source = models.SourceNone
		result.Message = services.MessageExtractionFailed
	}
	return result
}

type stubArchiver struct {
	archived []string
	err      error
}

func (s *stubArchiver) ArchiveResult(ctx context.Context, result models.ExtractionResult) (*services.S3UploadResult, error) {
	s.archived = append(s.archived, result.ExtractionID)
	if s.err != nil {
		return nil, s.err
	}
	return &services.S3UploadResult{Key: "extractions/" + result.ExtractionID + ".json"}, nil
}

func TestExtractHandler_Handle(t *testing.T) {
	testCases := []struct {
		name           string
		body           string
		success        bool
		expectedStatus int
		expectedURL    string
	}{
		{"tour_link", `{"tour_link": "` + tourURL + `"}`, true, http.StatusOK, tourURL},
		{"url alias", `{"url": "  ` + tourURL + `  "}`, true, http.StatusOK, tourURL},
		{"tour_link wins", `{"tour_link": "` + tourURL + `", "url": "https://other.example"}`, true, http.StatusOK, tourURL},
		{"failed extraction is still 200", `{"tour_link": "` + tourURL + `"}`, false, http.StatusOK, tourURL},
		{"missing link", `{}`, true, http.StatusBadRequest, ""},
		{"ftp scheme", `{"tour_link": "ftp://example.com/tour"}`, true, http.StatusBadRequest, ""},
		{"relative", `{"tour_link": "/tours/bali"}`, true, http.StatusBadRequest, ""},
		{"malformed json", `{"tour_link":`, true, http.StatusBadRequest, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			extractor := &stubExtractor{success: tc.success}
			handler := NewExtractHandler(extractor, nil, logger.NewNop())

			status, response := handler.Handle(context.Background(), []byte(tc.body))

			assert.Equal(t, tc.expectedStatus, status)
			if tc.expectedStatus != http.StatusOK {
				assert.Empty(t, extractor.urls, "invalid input never reaches the extractor")
				errResp, ok := response.(ErrorResponse)
				require.True(t, ok)
				assert.False(t, errResp.Success)
				assert.NotEmpty(t, errResp.Error)
				return
			}

			require.Equal(t, []string{tc.expectedURL}, extractor.urls)
			result, ok := response.(models.ExtractionResult)
			require.True(t, ok)
			assert.Equal(t, tc.success, result.Success)
			assert.Equal(t, tc.expectedURL, result.Data.TourLink)
		})
	}
}

func TestExtractHandler_Archives(t *testing.T) {
	archiver := &stubArchiver{err: errors.New("AccessDenied")}
	handler := NewExtractHandler(&stubExtractor{success: true}, archiver, nil)

	status, _ := handler.Handle(context.Background(), []byte(`{"tour_link": "`+tourURL+`"}`))

	assert.Equal(t, http.StatusOK, status, "archive failures do not change the response")
	assert.Equal(t, []string{"id-1"}, archiver.archived)
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics := services.NewExtractionMetrics(registry)
	metrics.RecordCacheLookup("miss")

	extractor := &stubExtractor{success: true}
	router := NewRouter(NewExtractHandler(extractor, nil, nil), registry, logger.NewNop())

	t.Run("extract", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, ExtractPath, strings.NewReader(`{"tour_link": "`+tourURL+`"}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

		var result models.ExtractionResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.True(t, result.Success)
		assert.Equal(t, tourURL, result.Data.TourLink)
	})

	t.Run("invalid url", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, ExtractPath, strings.NewReader(`{"tour_link": "not a url"}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, ExtractPath, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "POST,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "healthy")
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "tour_extraction_cache_lookups_total")
	})
}
