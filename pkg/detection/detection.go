// Package detection runs the duplicate detection pipeline for a single
// incoming record.
package detection

import (
	"context"
	"errors"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/crmforge/dedupe/internal/repositories/duplicate"
	"github.com/crmforge/dedupe/internal/repositories/matchingrule"
	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/events"
	"github.com/crmforge/dedupe/pkg/merging"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/scoring"
)

// CandidateSource supplies the records a new record is compared against.
type CandidateSource interface {
	GetCandidateRecords(ctx context.Context, record models.Record, recordType models.RecordType, sourceSystem string) ([]models.Record, error)
}

// Options control a single detection run.
type Options struct {
	// RuleID pins detection to a specific rule instead of the first active
	// rule for the record type.
	RuleID string
	// AutoMerge merges pairs scoring at or above the rule's auto-merge
	// threshold immediately.
	AutoMerge bool
	// RealTime emits a duplicateDetected event per created duplicate.
	RealTime bool
	// Method tags the created duplicates (realtime, batch).
	Method string
}

// Pipeline detects duplicates for incoming records. It never mutates the
// records it is given.
type Pipeline struct {
	logger     ectologger.Logger
	rules      *matchingrule.Repository
	duplicates *duplicate.Repository
	candidates CandidateSource
	scorer     *scoring.Engine
	merger     *merging.Engine
	emitter    *events.Emitter
}

// NewPipeline creates a new detection pipeline
func NewPipeline(
	logger ectologger.Logger,
	rules *matchingrule.Repository,
	duplicates *duplicate.Repository,
	candidates CandidateSource,
	scorer *scoring.Engine,
	merger *merging.Engine,
	emitter *events.Emitter,
) *Pipeline {
	return &Pipeline{
		logger:     logger,
		rules:      rules,
		duplicates: duplicates,
		candidates: candidates,
		scorer:     scorer,
		merger:     merger,
		emitter:    emitter,
	}
}

// Detect scores the record against its candidates and persists every pair at
// or above the rule's ignore threshold as a pending duplicate. Internal
// failures emit a detectionError event and propagate.
func (p *Pipeline) Detect(ctx context.Context, record models.Record, recordType models.RecordType, sourceSystem string, opts Options) ([]*models.DuplicateRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "detection.Pipeline.Detect")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"method":        "Detect",
		"record_id":     record.ID(),
		"record_type":   recordType,
		"source_system": sourceSystem,
	})

	started := time.Now()

	duplicates, err := p.detect(ctx, record, recordType, sourceSystem, opts, started)
	if err != nil {
		log.WithError(err).Error("Detection failed")
		p.emitter.EmitDetectionError(ctx, record.ID(), recordType, sourceSystem, err)
		return nil, err
	}

	log.WithFields(map[string]any{
		"duplicates_found":  len(duplicates),
		"detection_time_ms": time.Since(started).Milliseconds(),
	}).Debug("Detection completed")

	return duplicates, nil
}

func (p *Pipeline) detect(ctx context.Context, record models.Record, recordType models.RecordType, sourceSystem string, opts Options, started time.Time) ([]*models.DuplicateRecord, error) {
	rule, err := p.selectRule(ctx, recordType, opts.RuleID)
	if err != nil {
		return nil, err
	}

	candidates, err := p.candidates.GetCandidateRecords(ctx, record, recordType, sourceSystem)
	if err != nil {
		return nil, err
	}

	method := opts.Method
	if method == "" {
		method = "realtime"
	}

	var duplicates []*models.DuplicateRecord
	for _, candidate := range candidates {
		if candidate.ID() == record.ID() {
			continue
		}

		score := p.scorer.Score(record, candidate, rule)
		if score.Excluded || score.ConfidenceScore < rule.Thresholds.Ignore {
			continue
		}

		dup := &models.DuplicateRecord{
			SourceRecordID:    record.ID(),
			SourceSystem:      sourceSystem,
			CandidateRecordID: candidate.ID(),
			CandidateSystem:   sourceSystem,
			RecordType:        recordType,
			ConfidenceScore:   score.ConfidenceScore,
			MatchedFields:     score.MatchedFields,
			DetectionMethod:   method,
			Status:            models.DuplicateStatusPending,
			Metadata: models.DuplicateMetadata{
				RuleID:          rule.ID,
				Recommendation:  score.Recommendation,
				DetectionTimeMs: time.Since(started).Milliseconds(),
			},
		}

		created, err := p.duplicates.Create(ctx, dup)
		if err != nil {
			return nil, err
		}

		if opts.AutoMerge && score.ConfidenceScore >= rule.Thresholds.AutoMerge {
			if _, err := p.merger.MergeDuplicate(ctx, created.ID); err != nil && !errors.Is(err, models.ErrAlreadyMerged) {
				// auto-merge failure leaves the duplicate pending for review
				p.logger.WithContext(ctx).WithError(err).WithField("duplicate_id", created.ID).Warn("Auto-merge failed")
			} else {
				created, err = p.duplicates.Get(ctx, created.ID)
				if err != nil {
					return nil, err
				}
			}
		}

		if opts.RealTime {
			p.emitter.EmitDuplicateDetected(ctx, created)
		}

		duplicates = append(duplicates, created)
	}

	return duplicates, nil
}

// selectRule resolves the matching rule for a run. An explicit rule ID wins;
// otherwise the first active rule for the record type is used.
func (p *Pipeline) selectRule(ctx context.Context, recordType models.RecordType, ruleID string) (*models.MatchingRule, error) {
	if ruleID != "" {
		return p.rules.Get(ctx, ruleID)
	}

	active, err := p.rules.ListActiveByRecordType(ctx, recordType)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, models.ErrRuleNotFound
	}
	return active[0], nil
}
