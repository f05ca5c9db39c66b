// Package matchingrule persists matching rules in the key-value store with a
// read-through cache.
package matchingrule

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

const keyPrefix = "matching_rule:"

// Repository handles matching rule persistence
type Repository struct {
	store  store.Store
	logger ectologger.Logger

	mu    sync.RWMutex
	cache map[string]*models.MatchingRule
}

// NewRepository creates a new matching rule repository
func NewRepository(st store.Store, logger ectologger.Logger) *Repository {
	return &Repository{
		store:  st,
		logger: logger,
		cache:  make(map[string]*models.MatchingRule),
	}
}

// Create creates a new matching rule
func (r *Repository) Create(ctx context.Context, req models.CreateMatchingRuleRequest) (*models.MatchingRule, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingrule.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":      "Create",
		"record_type": req.RecordType,
		"name":        req.Name,
	})

	now := time.Now().UTC()
	rule := &models.MatchingRule{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		RecordType:  req.RecordType,
		IsActive:    req.IsActive,
		Fields:      req.Fields,
		Thresholds:  req.Thresholds,
		Algorithms:  req.Algorithms,
		Exclusions:  req.Exclusions,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := rule.Validate(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := r.save(ctx, rule); err != nil {
		log.WithError(err).Error("Failed to create matching rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create matching rule")
	}

	log.WithFields(map[string]any{"id": rule.ID}).Info("Created matching rule")
	return rule, nil
}

// Get retrieves a matching rule by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.MatchingRule, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingrule.Repository.Get")
	defer span.End()

	r.mu.RLock()
	if rule, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return rule, nil
	}
	r.mu.RUnlock()

	data, err := r.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, models.ErrRuleNotFound
		}
		return nil, err
	}

	var rule models.MatchingRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[id] = &rule
	r.mu.Unlock()

	return &rule, nil
}

// List retrieves all matching rules
func (r *Repository) List(ctx context.Context) ([]*models.MatchingRule, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingrule.Repository.List")
	defer span.End()

	keys, err := r.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}

	rules := make([]*models.MatchingRule, 0, len(keys))
	for _, key := range keys {
		rule, err := r.Get(ctx, key[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, models.ErrRuleNotFound) {
				continue
			}
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

// ListActiveByRecordType retrieves the active rules for a record type
func (r *Repository) ListActiveByRecordType(ctx context.Context, recordType models.RecordType) ([]*models.MatchingRule, error) {
	rules, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var active []*models.MatchingRule
	for _, rule := range rules {
		if rule.IsActive && rule.RecordType == recordType {
			active = append(active, rule)
		}
	}
	return active, nil
}

// Update applies a partial update to a matching rule
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateMatchingRuleRequest) (*models.MatchingRule, error) {
	ctx, span := tracing.StartSpan(ctx, "matchingrule.Repository.Update")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method": "Update",
		"id":     id,
	})

	rule, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *rule
	if req.Name != nil {
		updated.Name = *req.Name
	}
	if req.Description != nil {
		updated.Description = req.Description
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if req.Fields != nil {
		updated.Fields = req.Fields
	}
	if req.Thresholds != nil {
		updated.Thresholds = *req.Thresholds
	}
	if req.Exclusions != nil {
		updated.Exclusions = req.Exclusions
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := updated.Validate(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := r.save(ctx, &updated); err != nil {
		log.WithError(err).Error("Failed to update matching rule")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update matching rule")
	}

	log.Info("Updated matching rule")
	return &updated, nil
}

// Delete removes a matching rule
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "matchingrule.Repository.Delete")
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

	r.logger.WithContext(ctx).WithField("id", id).Info("Deleted matching rule")
	return nil
}

func (r *Repository) save(ctx context.Context, rule *models.MatchingRule) error {
	data, err := json.Marshal(rule)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, keyPrefix+rule.ID, data, 0); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache[rule.ID] = rule
	r.mu.Unlock()

	return nil
}
