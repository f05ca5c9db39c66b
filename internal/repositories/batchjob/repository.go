// Package batchjob persists batch detection jobs in the key-value store.
package batchjob

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

const keyPrefix = "batch_job:"

// Repository handles batch detection job persistence
type Repository struct {
	store  store.Store
	logger ectologger.Logger

	mu    sync.RWMutex
	cache map[string]*models.BatchDetectionJob
}

// NewRepository creates a new batch job repository
func NewRepository(st store.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  st,
		logger: logger,
		cache:  make(map[string]*models.BatchDetectionJob),
	}
}

// Create persists a new queued job
func (r *Repository) Create(ctx context.Context, job *models.BatchDetectionJob) (*models.BatchDetectionJob, error) {
	ctx, span := tracing.StartSpan(ctx, "batchjob.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.JobStatusQueued
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := r.save(ctx, job); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create batch job")
		return nil, err
	}

	return job, nil
}

// Get retrieves a job by ID. The cache is skipped so progress written by the
// runner goroutine is always observed.
func (r *Repository) Get(ctx context.Context, id string) (*models.BatchDetectionJob, error) {
	ctx, span := tracing.StartSpan(ctx, "batchjob.Repository.Get")
	defer span.End()

	data, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrJobNotFound
		}
		return nil, err
	}

	var job models.BatchDetectionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = &job
	r.mu.Unlock()

	return &job, nil
}

// List retrieves all jobs, newest first
func (r *Repository) List(ctx context.Context) ([]*models.BatchDetectionJob, error) {
	ctx, span := tracing.StartSpan(ctx, "batchjob.Repository.List")
	defer span.End()

	keys, err := r.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	jobs := make([]*models.BatchDetectionJob, 0, len(keys))
	for _, key := range keys {
		job, err := r.Get(ctx, key[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, models.ErrJobNotFound) {
				continue
			}
			return nil, err
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs, nil
}

// Update persists a modified job
func (r *Repository) Update(ctx context.Context, job *models.BatchDetectionJob) error {
	ctx, span := tracing.StartSpan(ctx, "batchjob.Repository.Update")
	defer span.End()

	job.UpdatedAt = time.Now().UTC()
	return r.save(ctx, job)
}

func (r *Repository) save(ctx context.Context, job *models.BatchDetectionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, keyPrefix+job.ID, data, 0); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[job.ID] = job
	r.mu.Unlock()

	return nil
}
