package duplicate

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

func newTestRepo() *Repository {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewRepository(store.NewMemoryStore(), logger)
}

func pendingDuplicate() *models.DuplicateRecord {
	return &models.DuplicateRecord{
		SourceRecordID:    "rec-1",
		CandidateRecordID: "rec-2",
		RecordType:        models.RecordTypeContact,
		ConfidenceScore:   95,
		Status:            models.DuplicateStatusPending,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	created, err := repo.Create(ctx, pendingDuplicate())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.SourceRecordID, got.SourceRecordID)
	assert.Equal(t, models.DuplicateStatusPending, got.Status)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrDuplicateNotFound)
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	created, err := repo.Create(ctx, pendingDuplicate())
	require.NoError(t, err)

	merged, err := repo.TransitionStatus(ctx, created.ID, models.DuplicateStatusPending, models.DuplicateStatusMerged)
	require.NoError(t, err)
	assert.Equal(t, models.DuplicateStatusMerged, merged.Status)

	// losing the race surfaces as ErrAlreadyMerged
	_, err = repo.TransitionStatus(ctx, created.ID, models.DuplicateStatusPending, models.DuplicateStatusMerged)
	assert.ErrorIs(t, err, models.ErrAlreadyMerged)
}

func TestTransitionStatusConflict(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	dup := pendingDuplicate()
	dup.Status = models.DuplicateStatusIgnored
	created, err := repo.Create(ctx, dup)
	require.NoError(t, err)

	_, err = repo.TransitionStatus(ctx, created.ID, models.DuplicateStatusPending, models.DuplicateStatusMerged)
	assert.ErrorIs(t, err, models.ErrStatusConflict)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	first := pendingDuplicate()
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	second := pendingDuplicate()
	second.RecordType = models.RecordTypeLead
	second.Status = models.DuplicateStatusMerged
	second.ConfidenceScore = 60
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := repo.List(ctx, ListFilter{Status: models.DuplicateStatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	leads, err := repo.List(ctx, ListFilter{RecordType: models.RecordTypeLead})
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	confident, err := repo.List(ctx, ListFilter{MinConfidence: 90})
	require.NoError(t, err)
	assert.Len(t, confident, 1)
}
