// Package batch orchestrates detection runs over whole record sets as
// asynchronous jobs.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"

	"github.com/crmforge/dedupe/internal/repositories/batchjob"
	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/detection"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/fingerprint"
	"github.com/crmforge/dedupe/pkg/merging"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

const (
	defaultBatchSize      = 100
	defaultMaxConcurrency = 5

	// markers for SkipRecentlyProcessed
	processedKeyPrefix = "processed:"
	processedTTL       = 24 * time.Hour
)

// RecordLister fetches the full record set a batch job scans.
type RecordLister interface {
	ListRecords(ctx context.Context, recordType models.RecordType, sourceSystem string) ([]models.Record, error)
}

// Orchestrator runs batch detection jobs.
type Orchestrator struct {
	logger   ectologger.Logger
	jobs     *batchjob.Repository
	records  RecordLister
	pipeline *detection.Pipeline
	merger   *merging.Engine
	store    store.Store
	emitter  *events.Emitter

	wg sync.WaitGroup
}

// NewOrchestrator creates a new batch orchestrator
func NewOrchestrator(
	logger ectologger.Logger,
	jobs *batchjob.Repository,
	records RecordLister,
	pipeline *detection.Pipeline,
	merger *merging.Engine,
	st store.Store,
	emitter *events.Emitter,
) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		jobs:     jobs,
		records:  records,
		pipeline: pipeline,
		merger:   merger,
		store:    st,
		emitter:  emitter,
	}
}

// Start queues a batch detection job and runs it asynchronously. The returned
// job is in the queued state; poll Get for progress.
func (o *Orchestrator) Start(ctx context.Context, req models.StartBatchRequest) (*models.BatchDetectionJob, error) {
	ctx, span := tracing.StartSpan(ctx, "batch.Orchestrator.Start")
	defer span.End()

	opts := req.Options
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = defaultMaxConcurrency
	}

	job := &models.BatchDetectionJob{
		RecordType:   req.RecordType,
		SourceSystem: req.SourceSystem,
		Status:       models.JobStatusQueued,
		Options:      opts,
	}

	created, err := o.jobs.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	o.logger.WithContext(ctx).WithFields(map[string]any{
		"job_id":      created.ID,
		"record_type": created.RecordType,
	}).Info("Queued batch detection job")

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// the job outlives the request that started it
		o.run(context.Background(), created.ID)
	}()

	return created, nil
}

// Get retrieves a job by ID
func (o *Orchestrator) Get(ctx context.Context, id string) (*models.BatchDetectionJob, error) {
	return o.jobs.Get(ctx, id)
}

// List retrieves all jobs
func (o *Orchestrator) List(ctx context.Context) ([]*models.BatchDetectionJob, error) {
	return o.jobs.List(ctx)
}

// Cancel requests cooperative cancellation of a queued or running job. The
// runner observes the flag between chunks.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*models.BatchDetectionJob, error) {
	ctx, span := tracing.StartSpan(ctx, "batch.Orchestrator.Cancel")
	defer span.End()

	job, err := o.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, models.ErrJobTerminal
	}

	job.Status = models.JobStatusCancelled
	if err := o.jobs.Update(ctx, job); err != nil {
		return nil, err
	}

	o.logger.WithContext(ctx).WithField("job_id", id).Info("Cancelled batch job")
	return job, nil
}

// Wait blocks until all running jobs have finished. Used during shutdown.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, jobID string) {
	log := o.logger.WithContext(ctx).WithField("job_id", jobID)

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		log.WithError(err).Error("Failed to load batch job")
		return
	}
	if job.Status != models.JobStatusQueued {
		// cancelled before it ever ran
		return
	}

	records, err := o.records.ListRecords(ctx, job.RecordType, job.SourceSystem)
	if err != nil {
		o.fail(ctx, job, fmt.Errorf("failed to list records: %w", err))
		return
	}

	// a cancel may have landed while records were being listed
	job, err = o.jobs.Get(ctx, jobID)
	if err != nil {
		log.WithError(err).Error("Failed to reload batch job")
		return
	}
	if job.Status == models.JobStatusCancelled {
		log.Info("Batch job cancelled before processing began")
		return
	}

	started := time.Now().UTC()
	job.Status = models.JobStatusRunning
	job.Progress.TotalRecords = len(records)
	job.Progress.StartedAt = &started
	if err := o.jobs.Update(ctx, job); err != nil {
		o.fail(ctx, job, err)
		return
	}
	o.emitter.EmitBatchStarted(ctx, job)

	var deadline time.Time
	if job.Options.MaxRuntime > 0 {
		deadline = started.Add(job.Options.MaxRuntime)
	}

	result := &models.BatchDetectionResult{}
	cancelled := false

	for offset := 0; offset < len(records); offset += job.Options.BatchSize {
		// cooperative cancellation and runtime guard, checked between chunks
		current, err := o.jobs.Get(ctx, jobID)
		if err == nil && current.Status == models.JobStatusCancelled {
			cancelled = true
			job.Status = models.JobStatusCancelled
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			o.fail(ctx, job, errors.New("maximum runtime exceeded"))
			return
		}

		end := min(offset+job.Options.BatchSize, len(records))
		o.processChunk(ctx, job, records[offset:end], result)

		job.Progress.ProcessedRecords = result.RecordsProcessed
		job.Progress.DuplicatesFound = result.DuplicatesFound
		job.Progress.Errors = len(result.Errors)
		if err := o.persistProgress(ctx, job); err != nil {
			o.fail(ctx, job, err)
			return
		}
		o.emitter.EmitBatchProgress(ctx, job)
	}

	// a cancel during the final chunk lands via persistProgress
	if job.Status == models.JobStatusCancelled {
		cancelled = true
	}

	completed := time.Now().UTC()
	elapsed := completed.Sub(started)
	result.Performance = models.BatchPerformance{TotalTimeMs: elapsed.Milliseconds()}
	if result.RecordsProcessed > 0 {
		result.Performance.AvgTimePerRecordMs = float64(elapsed.Milliseconds()) / float64(result.RecordsProcessed)
	}
	if elapsed > 0 {
		result.Performance.RecordsPerSecond = float64(result.RecordsProcessed) / elapsed.Seconds()
	}

	job.Progress.CompletedAt = &completed
	job.Result = result
	if !cancelled {
		job.Status = models.JobStatusCompleted
	}

	if err := o.jobs.Update(ctx, job); err != nil {
		log.WithError(err).Error("Failed to persist batch job result")
		return
	}

	if cancelled {
		log.WithFields(map[string]any{"records_processed": result.RecordsProcessed}).Info("Batch job cancelled")
		return
	}

	o.emitter.EmitBatchCompleted(ctx, job)
	log.WithFields(map[string]any{
		"records_processed": result.RecordsProcessed,
		"duplicates_found":  result.DuplicatesFound,
		"auto_merged":       result.AutoMerged,
		"errors":            len(result.Errors),
	}).Info("Batch job completed")
}

// processChunk runs detection for one chunk on a bounded worker pool. Record
// failures are recorded and absorbed; they never abort the job.
func (o *Orchestrator) processChunk(ctx context.Context, job *models.BatchDetectionJob, chunk []models.Record, result *models.BatchDetectionResult) {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(job.Options.MaxConcurrency)

	for _, record := range chunk {
		g.Go(func() error {
			processed, duplicates, autoMerged, err := o.processRecord(gctx, job, record)

			mu.Lock()
			defer mu.Unlock()
			if processed {
				result.RecordsProcessed++
			}
			result.DuplicatesFound += duplicates
			result.AutoMerged += autoMerged
			if err != nil {
				result.Errors = append(result.Errors, models.BatchError{
					RecordID:   record.ID(),
					Message:    err.Error(),
					Severity:   models.BatchErrorWarning,
					OccurredAt: time.Now().UTC(),
				})
			}
			return nil
		})
	}

	// workers never return errors; failures are collected per record
	_ = g.Wait()
}

func (o *Orchestrator) processRecord(ctx context.Context, job *models.BatchDetectionJob, record models.Record) (processed bool, duplicates, autoMerged int, err error) {
	// skip only when the record content is unchanged since the last run
	hash := fingerprint.Record(record)
	if job.Options.SkipRecentlyProcessed {
		key := processedKey(job.RecordType, record.ID())
		if prev, getErr := o.store.Get(ctx, key); getErr == nil && !fingerprint.Changed(string(prev), hash) {
			return false, 0, 0, nil
		}
	}

	found, err := o.pipeline.Detect(ctx, record, job.RecordType, job.SourceSystem, detection.Options{
		RuleID: job.Options.RuleID,
		Method: "batch",
	})
	if err != nil {
		return true, 0, 0, err
	}

	if threshold := job.Options.AutoMergeThreshold; threshold != nil {
		for _, dup := range found {
			if dup.ConfidenceScore < *threshold {
				continue
			}
			if _, mergeErr := o.merger.MergeDuplicate(ctx, dup.ID); mergeErr != nil {
				if !errors.Is(mergeErr, models.ErrAlreadyMerged) {
					o.logger.WithContext(ctx).WithError(mergeErr).WithField("duplicate_id", dup.ID).Warn("Batch auto-merge failed")
				}
				continue
			}
			autoMerged++
		}
	}

	if job.Options.SkipRecentlyProcessed {
		key := processedKey(job.RecordType, record.ID())
		if putErr := o.store.Put(ctx, key, []byte(hash), processedTTL); putErr != nil {
			o.logger.WithContext(ctx).WithError(putErr).Warn("Failed to write processed marker")
		}
	}

	return true, len(found), autoMerged, nil
}

// persistProgress writes the runner's progress counters while carrying forward
// the stored status, so a cancellation arriving mid-chunk is never overwritten.
func (o *Orchestrator) persistProgress(ctx context.Context, job *models.BatchDetectionJob) error {
	current, err := o.jobs.Get(ctx, job.ID)
	if err != nil {
		return err
	}
	job.Status = current.Status
	return o.jobs.Update(ctx, job)
}

func (o *Orchestrator) fail(ctx context.Context, job *models.BatchDetectionJob, cause error) {
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	now := time.Now().UTC()
	job.Progress.CompletedAt = &now

	if err := o.jobs.Update(ctx, job); err != nil {
		o.logger.WithContext(ctx).WithError(err).Error("Failed to persist failed batch job")
	}
	o.emitter.EmitBatchFailed(ctx, job)

	o.logger.WithContext(ctx).WithError(cause).WithField("job_id", job.ID).Error("Batch job failed")
}

func processedKey(recordType models.RecordType, recordID string) string {
	return processedKeyPrefix + string(recordType) + ":" + recordID
}
