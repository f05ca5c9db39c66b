// Package workflow persists resolution workflows in the key-value store.
package workflow

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

const keyPrefix = "workflow:"

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status   models.WorkflowStatus
	Assignee string
}

// Repository handles resolution workflow persistence
type Repository struct {
	store  store.Store
	logger ectologger.Logger

	mu    sync.RWMutex
	cache map[string]*models.ResolutionWorkflow
}

// NewRepository creates a new workflow repository
func NewRepository(st store.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  st,
		logger: logger,
		cache:  make(map[string]*models.ResolutionWorkflow),
	}
}

// Create persists a new workflow
func (r *Repository) Create(ctx context.Context, wf *models.ResolutionWorkflow) (*models.ResolutionWorkflow, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	if wf.Status == "" {
		wf.Status = models.WorkflowStatusPending
	}
	wf.CreatedAt = now
	wf.UpdatedAt = now

	if err := r.save(ctx, wf); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create workflow")
		return nil, err
	}

	return wf, nil
}

// Get retrieves a workflow by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.ResolutionWorkflow, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Repository.Get")
	defer span.End()

	r.mu.RLock()
	if wf, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return wf, nil
	}
	r.mu.RUnlock()

	data, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrWorkflowNotFound
		}
		return nil, err
	}

	var wf models.ResolutionWorkflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = &wf
	r.mu.Unlock()

	return &wf, nil
}

// GetByDuplicateID finds the workflow attached to a duplicate, if any
func (r *Repository) GetByDuplicateID(ctx context.Context, duplicateID string) (*models.ResolutionWorkflow, error) {
	workflows, err := r.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}

	for _, wf := range workflows {
		if wf.DuplicateID == duplicateID {
			return wf, nil
		}
	}
	return nil, models.ErrWorkflowNotFound
}

// List retrieves workflows matching the filter, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*models.ResolutionWorkflow, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Repository.List")
	defer span.End()

	keys, err := r.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.ResolutionWorkflow, 0, len(keys))
	for _, key := range keys {
		wf, err := r.Get(ctx, key[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, models.ErrWorkflowNotFound) {
				continue
			}
			return nil, err
		}
		if filter.Status != "" && wf.Status != filter.Status {
			continue
		}
		if filter.Assignee != "" && wf.Assignee != filter.Assignee {
			continue
		}
		workflows = append(workflows, wf)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// Update persists a modified workflow
func (r *Repository) Update(ctx context.Context, wf *models.ResolutionWorkflow) error {
	ctx, span := tracing.StartSpan(ctx, "workflow.Repository.Update")
	defer span.End()

	wf.UpdatedAt = time.Now().UTC()
	return r.save(ctx, wf)
}

func (r *Repository) save(ctx context.Context, wf *models.ResolutionWorkflow) error {
	data, err := json.Marshal(wf)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, keyPrefix+wf.ID, data, 0); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[wf.ID] = wf
	r.mu.Unlock()

	return nil
}
