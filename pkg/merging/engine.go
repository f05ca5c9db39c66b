// Package merging collapses confirmed duplicate pairs according to a
// deduplication strategy.
package merging

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	"github.com/crmforge/dedupe/internal/repositories/strategy"
	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

const backupKeyPrefix = "merge_backup:"

// RecordSource fetches full records from the owning source systems.
type RecordSource interface {
	GetRecord(ctx context.Context, recordType models.RecordType, recordID string) (models.Record, error)
}

// Engine applies merge strategies to detected duplicates.
type Engine struct {
	logger     ectologger.Logger
	duplicates *duplicate.Repository
	strategies *strategy.Repository
	records    RecordSource
	store      store.Store
	emitter    *events.Emitter
	merger     *FieldMerger
	backupTTL  time.Duration

	// one mutex per duplicate ID; concurrent merges of the same duplicate
	// serialize here before the status check-and-set
	locks sync.Map
}

// NewEngine creates a new merge engine
func NewEngine(
	logger ectologger.Logger,
	duplicates *duplicate.Repository,
	strategies *strategy.Repository,
	records RecordSource,
	st store.Store,
	emitter *events.Emitter,
	backupTTL time.Duration,
) *Engine {
	return &Engine{
		logger:     logger,
		duplicates: duplicates,
		strategies: strategies,
		records:    records,
		store:      st,
		emitter:    emitter,
		merger:     NewFieldMerger(),
		backupTTL:  backupTTL,
	}
}

// MergeDuplicate collapses the candidate record of a pending duplicate into
// its source record. Exactly one of two concurrent merges for the same
// duplicate succeeds; the loser gets ErrAlreadyMerged.
func (e *Engine) MergeDuplicate(ctx context.Context, duplicateID string) (*models.MergeReceipt, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Engine.MergeDuplicate")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"method":       "MergeDuplicate",
		"duplicate_id": duplicateID,
	})

	mu, _ := e.locks.LoadOrStore(duplicateID, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	dup, err := e.duplicates.Get(ctx, duplicateID)
	if err != nil {
		return nil, err
	}
	if dup.Status == models.DuplicateStatusMerged {
		return nil, models.ErrAlreadyMerged
	}
	if dup.Status != models.DuplicateStatusPending {
		return nil, models.ErrStatusConflict
	}

	receipt, err := e.merge(ctx, dup)
	if err != nil {
		log.WithError(err).Error("Merge failed")
		e.emitter.EmitMergeError(ctx, duplicateID, err)
		return nil, err
	}

	if _, err := e.duplicates.TransitionStatus(ctx, duplicateID, models.DuplicateStatusPending, models.DuplicateStatusMerged); err != nil {
		return nil, err
	}

	e.emitter.EmitDuplicatesMerged(ctx, receipt)

	log.WithFields(map[string]any{
		"merged_record_id":  receipt.MergedRecordID,
		"removed_record_id": receipt.RemovedRecordID,
		"fields_merged":     len(receipt.FieldsMerged),
		"deferred_fields":   len(receipt.DeferredFields),
	}).Info("Merged duplicate pair")

	return receipt, nil
}

func (e *Engine) merge(ctx context.Context, dup *models.DuplicateRecord) (*models.MergeReceipt, error) {
	strat, err := e.strategies.DefaultForType(ctx, dup.RecordType)
	if err != nil {
		return nil, err
	}

	source, err := e.records.GetRecord(ctx, dup.RecordType, dup.SourceRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source record %s: %w", dup.SourceRecordID, err)
	}
	target, err := e.records.GetRecord(ctx, dup.RecordType, dup.CandidateRecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate record %s: %w", dup.CandidateRecordID, err)
	}

	var backupKey string
	if strat.BackupBeforeMerge {
		backupKey, err = e.backup(ctx, dup.ID, source, target)
		if err != nil {
			return nil, fmt.Errorf("failed to back up records before merge: %w", err)
		}
	}

	approvalRequired := make(map[string]bool)
	for _, cr := range strat.ConflictResolutions {
		if cr.RequiresApproval {
			approvalRequired[cr.Field] = true
		}
	}

	// survivor starts as a copy of the source record
	merged := make(models.Record, len(source))
	for k, v := range source {
		merged[k] = v
	}

	rules := make([]models.MergeRule, len(strat.MergeRules))
	copy(rules, strat.MergeRules)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})

	var fieldsMerged, deferred []string
	for _, rule := range rules {
		if approvalRequired[rule.Field] {
			deferred = append(deferred, rule.Field)
			continue
		}

		value := e.merger.MergeField(rule, source, target)
		if value == nil {
			continue
		}
		merged[rule.Field] = value
		fieldsMerged = append(fieldsMerged, rule.Field)
	}

	return &models.MergeReceipt{
		DuplicateID:     dup.ID,
		MergedRecordID:  dup.SourceRecordID,
		RemovedRecordID: dup.CandidateRecordID,
		MergedData:      merged,
		FieldsMerged:    fieldsMerged,
		DeferredFields:  deferred,
		Strategy:        strat.Name,
		BackupKey:       backupKey,
		MergedAt:        time.Now().UTC(),
	}, nil
}

// backup snapshots both records into the store under a TTL'd key so a merge
// can be audited or reversed.
func (e *Engine) backup(ctx context.Context, duplicateID string, source, target models.Record) (string, error) {
	snapshot := map[string]any{
		"duplicate_id": duplicateID,
		"source":       source,
		"target":       target,
		"taken_at":     time.Now().UTC(),
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}

	key := backupKeyPrefix + uuid.New().String()
	if err := e.store.Put(ctx, key, data, e.backupTTL); err != nil {
		return "", err
	}
	return key, nil
}
