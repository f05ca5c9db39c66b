package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/config"
	"github.com/crmforge/dedupe/pkg/engine"
	"github.com/crmforge/dedupe/pkg/models"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e, err := engine.New(&config.Config{
		AppName:         "dedupe-test",
		MergeBackupTTL:  time.Hour,
		MetricsInterval: time.Minute,
	}, logger, engine.Sources{})
	require.NoError(t, err)
	return e
}

func TestRouteRegistration(t *testing.T) {
	e := newTestEngine(t)
	srv := echo.New()
	e.RegisterRoutes(srv, "test")

	// registered paths never 404, even when a handler fails for other reasons
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/matching-rules"},
		{http.MethodGet, "/api/v1/strategies"},
		{http.MethodGet, "/api/v1/duplicates"},
		{http.MethodGet, "/api/v1/workflows"},
		{http.MethodGet, "/api/v1/jobs"},
		{http.MethodGet, "/api/v1/health"},
		{http.MethodGet, "/api/v1/health/live"},
		{http.MethodGet, "/api/v1/metrics"},
	}

	for _, p := range paths {
		t.Run(p.path, func(t *testing.T) {
			req := httptest.NewRequest(p.method, p.path, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			assert.NotEqual(t, http.StatusNotFound, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchingRuleRequestShape(t *testing.T) {
	t.Run("ValidRequest", func(t *testing.T) {
		req := models.CreateMatchingRuleRequest{
			Name:       "contacts",
			RecordType: models.RecordTypeContact,
			IsActive:   true,
			Fields: []models.FieldMatchingConfig{
				{Field: "email", DataType: models.FieldTypeEmail, Weight: 3, Algorithms: []string{"email"}},
			},
			Thresholds: models.MatchingThresholds{AutoMerge: 95, HumanReview: 70, Ignore: 40},
		}

		data, err := json.Marshal(req)
		require.NoError(t, err)

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(data, &parsed))
		assert.Equal(t, "contacts", parsed["name"])
		assert.NotNil(t, parsed["fields"])
		assert.NotNil(t, parsed["thresholds"])
	})

	t.Run("ThresholdOrdering", func(t *testing.T) {
		thresholds := models.MatchingThresholds{AutoMerge: 95, HumanReview: 70, Ignore: 40}
		assert.Greater(t, thresholds.AutoMerge, thresholds.HumanReview)
		assert.Greater(t, thresholds.HumanReview, thresholds.Ignore)
	})
}

func TestReviewRequestShape(t *testing.T) {
	req := models.ReviewDuplicateRequest{
		Status:     models.DuplicateStatusFalsePositive,
		ReviewedBy: "analyst@example.com",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, "false_positive", parsed["status"])
	assert.Equal(t, "analyst@example.com", parsed["reviewed_by"])
}

func TestStartBatchRequestShape(t *testing.T) {
	threshold := 92.5
	req := models.StartBatchRequest{
		RecordType:   models.RecordTypeContact,
		SourceSystem: "salesforce",
		Options: models.BatchOptions{
			BatchSize:          50,
			MaxConcurrency:     4,
			AutoMergeThreshold: &threshold,
		},
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded models.StartBatchRequest
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, models.RecordTypeContact, decoded.RecordType)
	require.NotNil(t, decoded.Options.AutoMergeThreshold)
	assert.Equal(t, threshold, *decoded.Options.AutoMergeThreshold)
}
