package engine

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/config"
	"github.com/crmforge/dedupe/pkg/detection"
	"github.com/crmforge/dedupe/pkg/models"
)

type fakeSource struct {
	records []models.Record
}

func (f *fakeSource) GetCandidateRecords(_ context.Context, _ models.Record, _ models.RecordType, _ string) ([]models.Record, error) {
	return f.records, nil
}

func (f *fakeSource) GetRecord(_ context.Context, _ models.RecordType, id string) (models.Record, error) {
	for _, rec := range f.records {
		if rec.ID() == id {
			return rec, nil
		}
	}
	return nil, models.ErrDuplicateNotFound
}

func (f *fakeSource) ListRecords(_ context.Context, _ models.RecordType, _ string) ([]models.Record, error) {
	return f.records, nil
}

func testConfig() *config.Config {
	return &config.Config{
		AppName:         "dedupe-test",
		RedisHost:       "", // in-memory store
		MergeBackupTTL:  time.Hour,
		MetricsInterval: time.Minute,
		BatchSize:       100,
		MaxConcurrency:  5,
	}
}

func newEngine(t *testing.T, source *fakeSource) *Engine {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e, err := New(testConfig(), logger, Sources{
		Candidates: source,
		Records:    source,
		Lister:     source,
	})
	require.NoError(t, err)
	return e
}

func TestNewWiresEverything(t *testing.T) {
	e := newEngine(t, &fakeSource{})

	assert.NotNil(t, e.Store)
	assert.NotNil(t, e.Rules)
	assert.NotNil(t, e.Strategies)
	assert.NotNil(t, e.Duplicates)
	assert.NotNil(t, e.Workflows)
	assert.NotNil(t, e.Jobs)
	assert.NotNil(t, e.Emitter)
	assert.NotNil(t, e.Scorer)
	assert.NotNil(t, e.Merger)
	assert.NotNil(t, e.Detection)
	assert.NotNil(t, e.WorkflowSvc)
	assert.NotNil(t, e.Orchestrator)
	assert.NotNil(t, e.Monitor)
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, &fakeSource{})

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Stop(ctx))
}

func TestEndToEndDetection(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{records: []models.Record{
		{"id": "rec-1", "email": "john@example.com", "name": "John Smith"},
		{"id": "rec-2", "email": "john@example.com", "name": "Jon Smith"},
	}}
	e := newEngine(t, source)

	_, err := e.Rules.Create(ctx, models.CreateMatchingRuleRequest{
		Name:       "contacts",
		RecordType: models.RecordTypeContact,
		IsActive:   true,
		Fields: []models.FieldMatchingConfig{
			{Field: "email", DataType: models.FieldTypeEmail, Weight: 3, Algorithms: []string{"email"}, NormalizeBeforeMatch: true},
			{Field: "name", DataType: models.FieldTypeString, Weight: 1, Algorithms: []string{"jaroWinkler"}},
		},
		Thresholds: models.MatchingThresholds{AutoMerge: 95, HumanReview: 70, Ignore: 40},
	})
	require.NoError(t, err)

	found, err := e.Detection.Detect(ctx, source.records[0], models.RecordTypeContact, "salesforce", detection.Options{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "rec-2", found[0].CandidateRecordID)

	snapshot, err := e.Monitor.Recompute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.TotalDuplicates)
}
