// Package metrics periodically recomputes aggregate duplicate statistics and
// derives the service health verdict from them. Snapshots are derived data,
// stale by at most one recompute interval.
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/robfig/cron/v3"

	"github.com/crmforge/dedupe/internal/repositories/batchjob"
	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	workflowrepo "github.com/crmforge/dedupe/internal/repositories/workflow"
	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

const snapshotKey = "metrics:snapshot"

// performance tier thresholds
const (
	excellentMaxDetectionMs = 100.0
	goodMaxDetectionMs      = 500.0
	fairMaxDetectionMs      = 2000.0

	excellentMaxFalsePositiveRate = 0.05
	goodMaxFalsePositiveRate      = 0.10
	fairMaxFalsePositiveRate      = 0.20
)

// health thresholds
const (
	unhealthyFalsePositiveRate = 0.25
	unhealthyAvgDetectionMs    = 5000.0
	degradedFalsePositiveRate  = 0.10
	degradedPendingWorkflows   = 100
	degradedActiveJobs         = 10
)

// Monitor recomputes duplicate metrics on a schedule and answers health checks.
type Monitor struct {
	logger     ectologger.Logger
	duplicates *duplicate.Repository
	workflows  *workflowrepo.Repository
	jobs       *batchjob.Repository
	store      store.Store
	emitter    *events.Emitter
	scheduler  *cron.Cron

	mu     sync.RWMutex
	latest *models.DuplicateMetrics
}

// NewMonitor creates a new metrics monitor
func NewMonitor(
	logger ectologger.Logger,
	duplicates *duplicate.Repository,
	workflows *workflowrepo.Repository,
	jobs *batchjob.Repository,
	st store.Store,
	emitter *events.Emitter,
) *Monitor {
	return &Monitor{
		logger:     logger,
		duplicates: duplicates,
		workflows:  workflows,
		jobs:       jobs,
		store:      st,
		emitter:    emitter,
		scheduler:  cron.New(cron.WithSeconds()),
	}
}

// Start schedules periodic recomputation at the given interval
func (m *Monitor) Start(interval time.Duration) error {
	_, err := m.scheduler.AddFunc("@every "+interval.String(), func() {
		if _, err := m.Recompute(context.Background()); err != nil {
			m.logger.WithError(err).Error("Scheduled metrics recompute failed")
		}
	})
	if err != nil {
		return err
	}

	m.scheduler.Start()
	m.logger.WithField("interval", interval.String()).Info("Started metrics monitor")
	return nil
}

// Stop halts the scheduler
func (m *Monitor) Stop() {
	m.scheduler.Stop()
}

// Recompute rebuilds the metrics snapshot from the repositories, persists it
// and emits a metricsUpdated event.
func (m *Monitor) Recompute(ctx context.Context) (*models.DuplicateMetrics, error) {
	ctx, span := tracing.StartSpan(ctx, "metrics.Monitor.Recompute")
	defer span.End()

	duplicates, err := m.duplicates.List(ctx, duplicate.ListFilter{})
	if err != nil {
		return nil, err
	}

	workflows, err := m.workflows.List(ctx, workflowrepo.ListFilter{})
	if err != nil {
		return nil, err
	}

	jobs, err := m.jobs.List(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := compute(duplicates, workflows, jobs)

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	if err := m.store.Put(ctx, snapshotKey, data, 0); err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("Failed to persist metrics snapshot")
	}

	m.mu.Lock()
	m.latest = snapshot
	m.mu.Unlock()

	m.emitter.EmitMetricsUpdated(ctx, snapshot)

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"total_duplicates": snapshot.TotalDuplicates,
		"performance":      snapshot.Performance,
	}).Debug("Recomputed duplicate metrics")

	return snapshot, nil
}

// Latest returns the most recent snapshot. It falls back to the persisted
// snapshot after a restart and recomputes when none exists yet.
func (m *Monitor) Latest(ctx context.Context) (*models.DuplicateMetrics, error) {
	m.mu.RLock()
	latest := m.latest
	m.mu.RUnlock()
	if latest != nil {
		return latest, nil
	}

	data, err := m.store.Get(ctx, snapshotKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return m.Recompute(ctx)
		}
		return nil, err
	}

	var snapshot models.DuplicateMetrics
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.latest = &snapshot
	m.mu.Unlock()

	return &snapshot, nil
}

// Health derives the operational verdict from the latest metrics and the
// store's reachability.
func (m *Monitor) Health(ctx context.Context) *models.HealthStatus {
	ctx, span := tracing.StartSpan(ctx, "metrics.Monitor.Health")
	defer span.End()

	status := &models.HealthStatus{
		Status:    models.HealthHealthy,
		CheckedAt: time.Now().UTC(),
	}

	if err := m.store.Ping(ctx); err != nil {
		m.logger.WithContext(ctx).WithError(err).Error("Store unreachable")
		status.Status = models.HealthUnhealthy
		return status
	}

	snapshot, err := m.Latest(ctx)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("No metrics available for health check")
		status.Status = models.HealthDegraded
		return status
	}

	status.PendingWorkflows = snapshot.PendingWorkflows
	status.ActiveJobs = snapshot.ActiveJobs
	status.AvgDetectionMs = snapshot.AvgDetectionTimeMs
	status.FalsePositivePct = snapshot.FalsePositiveRate * 100

	switch {
	case snapshot.FalsePositiveRate > unhealthyFalsePositiveRate,
		snapshot.AvgDetectionTimeMs > unhealthyAvgDetectionMs:
		status.Status = models.HealthUnhealthy
	case snapshot.FalsePositiveRate > degradedFalsePositiveRate,
		snapshot.PendingWorkflows > degradedPendingWorkflows,
		snapshot.ActiveJobs > degradedActiveJobs:
		status.Status = models.HealthDegraded
	}

	return status
}

func compute(duplicates []*models.DuplicateRecord, workflows []*models.ResolutionWorkflow, jobs []*models.BatchDetectionJob) *models.DuplicateMetrics {
	snapshot := &models.DuplicateMetrics{
		TotalDuplicates: len(duplicates),
		ByStatus:        make(map[models.DuplicateStatus]int),
		ByRecordType:    make(map[models.RecordType]int),
		BySourceSystem:  make(map[string]int),
		ComputedAt:      time.Now().UTC(),
	}

	midnight := snapshot.ComputedAt.Truncate(24 * time.Hour)

	var confidenceSum, detectionMsSum float64
	var reviewed, falsePositives, autoMerge, manualReview int

	for _, dup := range duplicates {
		snapshot.ByStatus[dup.Status]++
		snapshot.ByRecordType[dup.RecordType]++
		if dup.SourceSystem != "" {
			snapshot.BySourceSystem[dup.SourceSystem]++
		}

		confidenceSum += dup.ConfidenceScore
		detectionMsSum += float64(dup.Metadata.DetectionTimeMs)

		if dup.Status != models.DuplicateStatusPending {
			reviewed++
		}
		if dup.Status == models.DuplicateStatusFalsePositive {
			falsePositives++
		}
		switch dup.Metadata.Recommendation {
		case models.RecommendationAutoMerge:
			autoMerge++
		case models.RecommendationReview:
			manualReview++
		}

		if !dup.CreatedAt.Before(midnight) {
			snapshot.DetectedToday++
		}
	}

	if len(duplicates) > 0 {
		total := float64(len(duplicates))
		snapshot.AverageConfidence = confidenceSum / total
		snapshot.AvgDetectionTimeMs = detectionMsSum / total
		snapshot.AutoMergeRate = float64(autoMerge) / total
		snapshot.ManualReviewRate = float64(manualReview) / total
	}
	if reviewed > 0 {
		snapshot.FalsePositiveRate = float64(falsePositives) / float64(reviewed)
		snapshot.DetectionAccuracy = float64(reviewed-falsePositives) / float64(reviewed)
	}

	for _, wf := range workflows {
		if wf.Status == models.WorkflowStatusPending || wf.Status == models.WorkflowStatusInProgress {
			snapshot.PendingWorkflows++
		}
	}
	for _, job := range jobs {
		if !job.IsTerminal() {
			snapshot.ActiveJobs++
		}
	}

	snapshot.Performance = tier(snapshot.AvgDetectionTimeMs, snapshot.FalsePositiveRate)
	return snapshot
}

func tier(avgDetectionMs, falsePositiveRate float64) models.PerformanceTier {
	switch {
	case avgDetectionMs <= excellentMaxDetectionMs && falsePositiveRate <= excellentMaxFalsePositiveRate:
		return models.TierExcellent
	case avgDetectionMs <= goodMaxDetectionMs && falsePositiveRate <= goodMaxFalsePositiveRate:
		return models.TierGood
	case avgDetectionMs <= fairMaxDetectionMs && falsePositiveRate <= fairMaxFalsePositiveRate:
		return models.TierFair
	default:
		return models.TierPoor
	}
}
