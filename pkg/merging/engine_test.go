package merging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	"github.com/crmforge/dedupe/internal/repositories/strategy"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

type fakeRecords struct {
	records map[string]models.Record
}

func (f *fakeRecords) GetRecord(_ context.Context, _ models.RecordType, id string) (models.Record, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}
	return rec, nil
}

type fixture struct {
	engine     *Engine
	duplicates *duplicate.Repository
	strategies *strategy.Repository
	publisher  *events.MemoryPublisher
	store      *store.MemoryStore
	records    *fakeRecords
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	st := store.NewMemoryStore()
	publisher := events.NewMemoryPublisher()
	emitter := events.NewEmitter(publisher, logger)
	duplicates := duplicate.NewRepository(st, logger)
	strategies := strategy.NewRepository(st, logger)
	records := &fakeRecords{records: map[string]models.Record{
		"rec-1": {
			"id":         "rec-1",
			"name":       "John Smith",
			"email":      "john@example.com",
			"phone":      "",
			"updated_at": time.Now().UTC().Add(-48 * time.Hour).Format(time.RFC3339),
		},
		"rec-2": {
			"id":         "rec-2",
			"name":       "John A. Smith",
			"email":      "john.smith@example.com",
			"phone":      "555-123-4567",
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		},
	}}

	return &fixture{
		engine:     NewEngine(logger, duplicates, strategies, records, st, emitter, time.Hour),
		duplicates: duplicates,
		strategies: strategies,
		publisher:  publisher,
		store:      st,
		records:    records,
	}
}

func (f *fixture) createStrategy(t *testing.T, req models.CreateStrategyRequest) *models.DeduplicationStrategy {
	t.Helper()
	strat, err := f.strategies.Create(context.Background(), req)
	require.NoError(t, err)
	return strat
}

func (f *fixture) createDuplicate(t *testing.T) *models.DuplicateRecord {
	t.Helper()
	dup, err := f.duplicates.Create(context.Background(), &models.DuplicateRecord{
		SourceRecordID:    "rec-1",
		CandidateRecordID: "rec-2",
		RecordType:        models.RecordTypeContact,
		ConfidenceScore:   95,
		Status:            models.DuplicateStatusPending,
	})
	require.NoError(t, err)
	return dup
}

func defaultStrategyReq() models.CreateStrategyRequest {
	return models.CreateStrategyRequest{
		Name:       "contact default",
		RecordType: models.RecordTypeContact,
		IsDefault:  true,
		MergeRules: []models.MergeRule{
			{Field: "name", Strategy: models.MergeLongest, Priority: 1},
			{Field: "email", Strategy: models.MergeKeepSource, Priority: 2},
			{Field: "phone", Strategy: models.MergeNewest, Priority: 3},
		},
	}
}

func TestMergeDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.createStrategy(t, defaultStrategyReq())
	dup := f.createDuplicate(t)

	receipt, err := f.engine.MergeDuplicate(ctx, dup.ID)
	require.NoError(t, err)

	assert.Equal(t, "rec-1", receipt.MergedRecordID)
	assert.Equal(t, "rec-2", receipt.RemovedRecordID)
	assert.Equal(t, "John A. Smith", receipt.MergedData["name"]) // longest
	assert.Equal(t, "john@example.com", receipt.MergedData["email"])
	assert.Equal(t, "555-123-4567", receipt.MergedData["phone"]) // source empty, target wins
	assert.ElementsMatch(t, []string{"name", "email", "phone"}, receipt.FieldsMerged)

	stored, err := f.duplicates.Get(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateStatusMerged, stored.Status)

	merged := f.publisher.ByType(events.TypeDuplicatesMerged)
	require.Len(t, merged, 1)
}

func TestMergeDuplicateOnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.createStrategy(t, defaultStrategyReq())
	dup := f.createDuplicate(t)

	_, err := f.engine.MergeDuplicate(ctx, dup.ID)
	require.NoError(t, err)

	_, err = f.engine.MergeDuplicate(ctx, dup.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyMerged)
}

func TestMergeDuplicateConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.createStrategy(t, defaultStrategyReq())
	dup := f.createDuplicate(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = f.engine.MergeDuplicate(ctx, dup.ID)
		}()
	}
	wg.Wait()

	// exactly one attempt wins, the other observes the completed merge
	var successes, losers int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrAlreadyMerged):
			losers++
		default:
			t.Fatalf("unexpected merge error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, losers)

	assert.Len(t, f.publisher.ByType(events.TypeDuplicatesMerged), 1)

	stored, err := f.duplicates.Get(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateStatusMerged, stored.Status)
}

func TestMergeDuplicateNoStrategy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	dup := f.createDuplicate(t)

	_, err := f.engine.MergeDuplicate(ctx, dup.ID)
	assert.ErrorIs(t, err, models.ErrStrategyNotFound)

	// merge failure leaves the duplicate pending and emits a merge error
	stored, err := f.duplicates.Get(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateStatusPending, stored.Status)
	assert.Len(t, f.publisher.ByType(events.TypeMergeError), 1)
}

func TestMergeDuplicateUniversalFallback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := defaultStrategyReq()
	req.RecordType = models.RecordTypeAny
	f.createStrategy(t, req)
	dup := f.createDuplicate(t)

	receipt, err := f.engine.MergeDuplicate(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, "contact default", receipt.Strategy)
}

func TestMergeDuplicateBackup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := defaultStrategyReq()
	req.BackupBeforeMerge = true
	f.createStrategy(t, req)
	dup := f.createDuplicate(t)

	receipt, err := f.engine.MergeDuplicate(ctx, dup.ID)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.BackupKey)

	data, err := f.store.Get(ctx, receipt.BackupKey)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rec-1")
	assert.Contains(t, string(data), "rec-2")
}

func TestMergeDuplicateDeferredFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := defaultStrategyReq()
	req.ConflictResolutions = []models.ConflictResolution{
		{Field: "email", Mode: models.ConflictModeManual, RequiresApproval: true},
	}
	f.createStrategy(t, req)
	dup := f.createDuplicate(t)

	receipt, err := f.engine.MergeDuplicate(ctx, dup.ID)
	require.NoError(t, err)

	assert.Contains(t, receipt.DeferredFields, "email")
	assert.NotContains(t, receipt.FieldsMerged, "email")
	// the deferred field keeps the source value untouched
	assert.Equal(t, "john@example.com", receipt.MergedData["email"])
}

func TestMergeCustomStrategy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	RegisterCustomMerger("prefer_target_upper", func(_ string, _, targetVal any) any {
		return targetVal
	})

	req := defaultStrategyReq()
	req.MergeRules = []models.MergeRule{
		{Field: "name", Strategy: models.MergeCustom, CustomMerger: "prefer_target_upper", Priority: 1},
	}
	f.createStrategy(t, req)
	dup := f.createDuplicate(t)

	receipt, err := f.engine.MergeDuplicate(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, "John A. Smith", receipt.MergedData["name"])
}
