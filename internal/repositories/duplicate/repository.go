// Package duplicate persists detected duplicate records. Duplicates are
// append-only: they transition status but are never deleted.
package duplicate

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

const keyPrefix = "duplicate:"

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status        models.DuplicateStatus
	RecordType    models.RecordType
	SourceSystem  string
	MinConfidence float64
}

// Repository handles duplicate record persistence
type Repository struct {
	store  store.Store
	logger ectologger.Logger

	mu    sync.RWMutex
	cache map[string]*models.DuplicateRecord
}

// NewRepository creates a new duplicate repository
func NewRepository(st store.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  st,
		logger: logger,
		cache:  make(map[string]*models.DuplicateRecord),
	}
}

// Create persists a newly detected duplicate
func (r *Repository) Create(ctx context.Context, dup *models.DuplicateRecord) (*models.DuplicateRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	if dup.ID == "" {
		dup.ID = uuid.New().String()
	}
	if dup.Status == "" {
		dup.Status = models.DuplicateStatusPending
	}
	dup.CreatedAt = now
	dup.UpdatedAt = now

	if err := r.save(ctx, dup); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create duplicate record")
		return nil, err
	}

	return dup, nil
}

// Get retrieves a duplicate by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.DuplicateRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.Get")
	defer span.End()

	r.mu.RLock()
	if dup, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return dup, nil
	}
	r.mu.RUnlock()

	data, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrDuplicateNotFound
		}
		return nil, err
	}

	var dup models.DuplicateRecord
	if err := json.Unmarshal(data, &dup); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = &dup
	r.mu.Unlock()

	return &dup, nil
}

// List retrieves duplicates matching the filter, newest first
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*models.DuplicateRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.List")
	defer span.End()

	keys, err := r.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	duplicates := make([]*models.DuplicateRecord, 0, len(keys))
	for _, key := range keys {
		dup, err := r.Get(ctx, key[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, models.ErrDuplicateNotFound) {
				continue
			}
			return nil, err
		}
		if filter.Status != "" && dup.Status != filter.Status {
			continue
		}
		if filter.RecordType != "" && dup.RecordType != filter.RecordType {
			continue
		}
		if filter.SourceSystem != "" && dup.SourceSystem != filter.SourceSystem {
			continue
		}
		if dup.ConfidenceScore < filter.MinConfidence {
			continue
		}
		duplicates = append(duplicates, dup)
	}

	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].CreatedAt.After(duplicates[j].CreatedAt)
	})

	return duplicates, nil
}

// Update persists a modified duplicate record
func (r *Repository) Update(ctx context.Context, dup *models.DuplicateRecord) error {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.Update")
	defer span.End()

	dup.UpdatedAt = time.Now().UTC()
	return r.save(ctx, dup)
}

// TransitionStatus moves a duplicate from one status to another. The transition
// only happens when the current status still matches, so two concurrent merges
// of the same duplicate cannot both succeed.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to models.DuplicateStatus) (*models.DuplicateRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "duplicate.Repository.TransitionStatus")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	dup, err := r.getLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if dup.Status != from {
		if dup.Status == models.DuplicateStatusMerged {
			return nil, models.ErrAlreadyMerged
		}
		return nil, models.ErrStatusConflict
	}

	updated := *dup
	updated.Status = to
	updated.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&updated)
	if err != nil {
		return nil, err
	}
	if err := r.store.Put(ctx, keyPrefix+id, data, 0); err != nil {
		return nil, err
	}
	r.cache[id] = &updated

	return &updated, nil
}

func (r *Repository) getLocked(ctx context.Context, id string) (*models.DuplicateRecord, error) {
	if dup, ok := r.cache[id]; ok {
		return dup, nil
	}

	data, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrDuplicateNotFound
		}
		return nil, err
	}

	var dup models.DuplicateRecord
	if err := json.Unmarshal(data, &dup); err != nil {
		return nil, err
	}
	r.cache[id] = &dup
	return &dup, nil
}

func (r *Repository) save(ctx context.Context, dup *models.DuplicateRecord) error {
	data, err := json.Marshal(dup)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, keyPrefix+dup.ID, data, 0); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[dup.ID] = dup
	r.mu.Unlock()

	return nil
}
