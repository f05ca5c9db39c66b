package batch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/internal/repositories/batchjob"
	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	"github.com/crmforge/dedupe/internal/repositories/matchingrule"
	"github.com/crmforge/dedupe/internal/repositories/strategy"
	"github.com/crmforge/dedupe/pkg/detection"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/fingerprint"
	"github.com/crmforge/dedupe/pkg/merging"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/scoring"
	"github.com/crmforge/dedupe/pkg/store"
)

// fakeSource serves both the batch record set and detection candidates from
// the same slice.
type fakeSource struct {
	records []models.Record
	listErr error

	// test hooks, run inside the corresponding call
	onList       func()
	onCandidates func()
}

func (f *fakeSource) ListRecords(_ context.Context, _ models.RecordType, _ string) ([]models.Record, error) {
	if f.onList != nil {
		f.onList()
	}
	return f.records, f.listErr
}

func (f *fakeSource) GetCandidateRecords(_ context.Context, _ models.Record, _ models.RecordType, _ string) ([]models.Record, error) {
	if f.onCandidates != nil {
		f.onCandidates()
	}
	return f.records, nil
}

func (f *fakeSource) GetRecord(_ context.Context, _ models.RecordType, id string) (models.Record, error) {
	for _, rec := range f.records {
		if rec.ID() == id {
			return rec, nil
		}
	}
	return nil, errors.New("record not found")
}

type fixture struct {
	orchestrator *Orchestrator
	source       *fakeSource
	duplicates   *duplicate.Repository
	strategies   *strategy.Repository
	store        *store.MemoryStore
	publisher    *events.MemoryPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	st := store.NewMemoryStore()
	publisher := events.NewMemoryPublisher()
	emitter := events.NewEmitter(publisher, logger)
	rules := matchingrule.NewRepository(st, logger)
	duplicates := duplicate.NewRepository(st, logger)
	strategies := strategy.NewRepository(st, logger)
	jobs := batchjob.NewRepository(st, logger)
	source := &fakeSource{}
	merger := merging.NewEngine(logger, duplicates, strategies, source, st, emitter, time.Hour)
	pipeline := detection.NewPipeline(logger, rules, duplicates, source, scoring.NewEngine(logger), merger, emitter)

	_, err := rules.Create(ctx, models.CreateMatchingRuleRequest{
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

	return &fixture{
		orchestrator: NewOrchestrator(logger, jobs, source, pipeline, merger, st, emitter),
		source:       source,
		duplicates:   duplicates,
		strategies:   strategies,
		store:        st,
		publisher:    publisher,
	}
}

func (f *fixture) startAndWait(t *testing.T, req models.StartBatchRequest) *models.BatchDetectionJob {
	t.Helper()
	ctx := context.Background()

	job, err := f.orchestrator.Start(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)

	f.orchestrator.Wait()

	final, err := f.orchestrator.Get(ctx, job.ID)
	require.NoError(t, err)
	return final
}

func contactPair() []models.Record {
	return []models.Record{
		{"id": "rec-1", "email": "john@example.com", "name": "John Smith"},
		{"id": "rec-2", "email": "john@example.com", "name": "John Smith"},
		{"id": "rec-3", "email": "alice@elsewhere.net", "name": "Alice Jones"},
	}
}

func TestJobRunsToCompletion(t *testing.T) {
	f := newFixture(t)
	f.source.records = contactPair()

	job := f.startAndWait(t, models.StartBatchRequest{
		RecordType: models.RecordTypeContact,
		Options:    models.BatchOptions{BatchSize: 2, MaxConcurrency: 2},
	})

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.Progress.TotalRecords)
	assert.Equal(t, 3, job.Progress.ProcessedRecords)
	require.NotNil(t, job.Result)
	// rec-1 finds rec-2 and rec-2 finds rec-1
	assert.Equal(t, 2, job.Result.DuplicatesFound)
	assert.Empty(t, job.Result.Errors)
	assert.GreaterOrEqual(t, job.Result.Performance.TotalTimeMs, int64(0))
	assert.NotNil(t, job.Progress.CompletedAt)

	assert.Len(t, f.publisher.ByType(events.TypeBatchStarted), 1)
	assert.Len(t, f.publisher.ByType(events.TypeBatchCompleted), 1)
	assert.NotEmpty(t, f.publisher.ByType(events.TypeBatchProgress))
}

func TestJobAutoMerge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.records = contactPair()

	_, err := f.strategies.Create(ctx, models.CreateStrategyRequest{
		Name:       "default",
		RecordType: models.RecordTypeAny,
		IsDefault:  true,
		MergeRules: []models.MergeRule{
			{Field: "name", Strategy: models.MergeLongest, Priority: 1},
		},
	})
	require.NoError(t, err)

	threshold := 90.0
	job := f.startAndWait(t, models.StartBatchRequest{
		RecordType: models.RecordTypeContact,
		Options:    models.BatchOptions{AutoMergeThreshold: &threshold},
	})

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	// both directions of the pair are detected and merged
	assert.Equal(t, 2, job.Result.AutoMerged)

	merged, err := f.duplicates.List(ctx, duplicate.ListFilter{Status: models.DuplicateStatusMerged})
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}

func TestJobFailsWhenListingFails(t *testing.T) {
	f := newFixture(t)
	f.source.listErr = errors.New("source system unavailable")

	job := f.startAndWait(t, models.StartBatchRequest{RecordType: models.RecordTypeContact})

	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "source system unavailable")
	assert.Len(t, f.publisher.ByType(events.TypeBatchFailed), 1)
}

func TestJobAbsorbsRecordFailures(t *testing.T) {
	f := newFixture(t)
	// no active rule for accounts, so every record's detection fails
	f.source.records = []models.Record{
		{"id": "acc-1", "name": "Acme"},
		{"id": "acc-2", "name": "Acme Inc"},
	}

	job := f.startAndWait(t, models.StartBatchRequest{RecordType: models.RecordTypeAccount})

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Progress.ProcessedRecords)
	require.Len(t, job.Result.Errors, 2)
	assert.Equal(t, models.BatchErrorWarning, job.Result.Errors[0].Severity)
	assert.NotEmpty(t, job.Result.Errors[0].RecordID)
}

func TestJobCancellation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.records = contactPair()

	// cancel while the runner is still listing records so the first
	// between-chunk check observes the flag
	idCh := make(chan string, 1)
	f.source.onList = func() {
		_, err := f.orchestrator.Cancel(ctx, <-idCh)
		require.NoError(t, err)
	}

	job, err := f.orchestrator.Start(ctx, models.StartBatchRequest{RecordType: models.RecordTypeContact})
	require.NoError(t, err)
	idCh <- job.ID

	f.orchestrator.Wait()

	final, err := f.orchestrator.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, final.Status)
	assert.Equal(t, 0, final.Progress.ProcessedRecords)
	assert.Empty(t, f.publisher.ByType(events.TypeBatchCompleted))

	_, err = f.orchestrator.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, models.ErrJobTerminal)
}

func TestJobCancelDuringChunkIsPreserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.records = contactPair()

	// all records fit in one chunk, so the cancel arrives while the chunk is
	// being processed and only the progress write can observe it
	idCh := make(chan string, 1)
	var once sync.Once
	f.source.onCandidates = func() {
		once.Do(func() {
			_, err := f.orchestrator.Cancel(ctx, <-idCh)
			require.NoError(t, err)
		})
	}

	job, err := f.orchestrator.Start(ctx, models.StartBatchRequest{RecordType: models.RecordTypeContact})
	require.NoError(t, err)
	idCh <- job.ID

	f.orchestrator.Wait()

	final, err := f.orchestrator.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, final.Status)
	assert.Empty(t, f.publisher.ByType(events.TypeBatchCompleted))
}

func TestJobSkipsRecentlyProcessed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	record := models.Record{"id": "rec-1", "email": "john@example.com", "name": "John Smith"}
	f.source.records = []models.Record{record}

	key := processedKey(models.RecordTypeContact, "rec-1")
	require.NoError(t, f.store.Put(ctx, key, []byte(fingerprint.Record(record)), time.Hour))

	job := f.startAndWait(t, models.StartBatchRequest{
		RecordType: models.RecordTypeContact,
		Options:    models.BatchOptions{SkipRecentlyProcessed: true},
	})

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 0, job.Result.RecordsProcessed)
}

func TestJobReprocessesChangedRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	record := models.Record{"id": "rec-1", "email": "john@example.com", "name": "John Smith"}
	f.source.records = []models.Record{record}

	// stale marker from a previous run of a different version of the record
	stale := models.Record{"id": "rec-1", "email": "john@example.com", "name": "J Smith"}
	key := processedKey(models.RecordTypeContact, "rec-1")
	require.NoError(t, f.store.Put(ctx, key, []byte(fingerprint.Record(stale)), time.Hour))

	job := f.startAndWait(t, models.StartBatchRequest{
		RecordType: models.RecordTypeContact,
		Options:    models.BatchOptions{SkipRecentlyProcessed: true},
	})

	assert.Equal(t, models.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, 1, job.Result.RecordsProcessed)
}

func TestJobMaxRuntimeExceeded(t *testing.T) {
	f := newFixture(t)
	f.source.records = contactPair()
	// the first chunk overruns the deadline, so the check before the second
	// chunk trips
	f.source.onCandidates = func() { time.Sleep(5 * time.Millisecond) }

	job := f.startAndWait(t, models.StartBatchRequest{
		RecordType: models.RecordTypeContact,
		Options:    models.BatchOptions{BatchSize: 1, MaxRuntime: time.Millisecond},
	})

	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "maximum runtime exceeded")
}
