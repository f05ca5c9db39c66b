// Package strategy persists deduplication strategies in the key-value store.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/crmforge/dedupe/internal/tracing"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/store"
)

const keyPrefix = "strategy:"

// Repository handles deduplication strategy persistence
type Repository struct {
	store  store.Store
	logger ectologger.Logger

	mu    sync.RWMutex
	cache map[string]*models.DeduplicationStrategy
}

// NewRepository creates a new strategy repository
func NewRepository(st store.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  st,
		logger: logger,
		cache:  make(map[string]*models.DeduplicationStrategy),
	}
}

// Create creates a new deduplication strategy. Making a strategy the default
// demotes the previous default for the same record type.
func (r *Repository) Create(ctx context.Context, req models.CreateStrategyRequest) (*models.DeduplicationStrategy, error) {
	ctx, span := tracing.StartSpan(ctx, "strategy.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Create",
		"record_type": req.RecordType,
		"name":        req.Name,
	})

	now := time.Now().UTC()
	strat := &models.DeduplicationStrategy{
		ID:                  uuid.New().String(),
		Name:                req.Name,
		RecordType:          req.RecordType,
		IsDefault:           req.IsDefault,
		MergeRules:          req.MergeRules,
		ConflictResolutions: req.ConflictResolutions,
		PreserveAuditTrail:  req.PreserveAuditTrail,
		BackupBeforeMerge:   req.BackupBeforeMerge,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := strat.Validate(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if strat.IsDefault {
		if err := r.demoteDefault(ctx, strat.RecordType); err != nil {
			log.WithError(err).Error("Failed to demote previous default strategy")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create strategy")
		}
	}

	if err := r.save(ctx, strat); err != nil {
		log.WithError(err).Error("Failed to create strategy")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create strategy")
	}

	log.WithFields(map[string]any{"id": strat.ID}).Info("Created deduplication strategy")
	return strat, nil
}

// Get retrieves a strategy by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.DeduplicationStrategy, error) {
	ctx, span := tracing.StartSpan(ctx, "strategy.Repository.Get")
	defer span.End()

	r.mu.RLock()
	if strat, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return strat, nil
	}
	r.mu.RUnlock()

	data, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrStrategyNotFound
		}
		return nil, err
	}

	var strat models.DeduplicationStrategy
	if err := json.Unmarshal(data, &strat); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = &strat
	r.mu.Unlock()

	return &strat, nil
}

// List retrieves all strategies
func (r *Repository) List(ctx context.Context) ([]*models.DeduplicationStrategy, error) {
	ctx, span := tracing.StartSpan(ctx, "strategy.Repository.List")
	defer span.End()

	keys, err := r.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	strategies := make([]*models.DeduplicationStrategy, 0, len(keys))
	for _, key := range keys {
		strat, err := r.Get(ctx, key[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, models.ErrStrategyNotFound) {
				continue
			}
			return nil, err
		}
		strategies = append(strategies, strat)
	}

	return strategies, nil
}

// DefaultForType finds the default strategy for a record type, falling back to
// the universal default when no type-specific one exists.
func (r *Repository) DefaultForType(ctx context.Context, recordType models.RecordType) (*models.DeduplicationStrategy, error) {
	ctx, span := tracing.StartSpan(ctx, "strategy.Repository.DefaultForType")
	defer span.End()

	strategies, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var universal *models.DeduplicationStrategy
	for _, strat := range strategies {
		if !strat.IsDefault {
			continue
		}
		if strat.RecordType == recordType {
			return strat, nil
		}
		if strat.RecordType == models.RecordTypeAny {
			universal = strat
		}
	}

	if universal != nil {
		return universal, nil
	}
	return nil, models.ErrStrategyNotFound
}

// Delete removes a strategy
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "strategy.Repository.Delete")
	defer span.End()

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	if err := r.store.Delete(ctx, keyPrefix+id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.WithContext(ctx).WithField("id", id).Info("Deleted deduplication strategy")
	return nil
}

func (r *Repository) demoteDefault(ctx context.Context, recordType models.RecordType) error {
	strategies, err := r.List(ctx)
	if err != nil {
		return err
	}

	for _, strat := range strategies {
		if strat.IsDefault && strat.RecordType == recordType {
			demoted := *strat
			demoted.IsDefault = false
			demoted.UpdatedAt = time.Now().UTC()
			if err := r.save(ctx, &demoted); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Repository) save(ctx context.Context, strat *models.DeduplicationStrategy) error {
	data, err := json.Marshal(strat)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, keyPrefix+strat.ID, data, 0); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[strat.ID] = strat
	r.mu.Unlock()

	return nil
}
