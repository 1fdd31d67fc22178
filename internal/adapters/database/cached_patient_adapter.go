package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/observability"
)

const defaultPatientCacheTTL = 300

func patientCacheKey(id string) string {
	return fmt.Sprintf("patient:summary:%s", id)
}

// CachedPatientAdapter puts a read-through cache in front of a PatientRepository.
// Cache errors degrade to a database read; they are never returned.
type CachedPatientAdapter struct {
	adapter    repositories.PatientRepository
	cache      providers.CacheProvider
	ttlSeconds int
	metrics    *observability.Metrics
}

// NewCachedPatientAdapter creates a new cached patient adapter
func NewCachedPatientAdapter(adapter repositories.PatientRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) repositories.PatientRepository {
	if ttlSeconds <= 0 {
		ttlSeconds = defaultPatientCacheTTL
	}
	return &CachedPatientAdapter{
		adapter:    adapter,
		cache:      cache,
		ttlSeconds: ttlSeconds,
		metrics:    metrics,
	}
}

// GetSummary retrieves a patient with caching
func (a *CachedPatientAdapter) GetSummary(ctx context.Context, patientID string) (*entities.PatientSummary, error) {
	key := patientCacheKey(patientID)
	logger := observability.LoggerFromContext(ctx)

	if cached, err := a.cache.Get(ctx, key); err == nil {
		var summary entities.PatientSummary
		if err := json.Unmarshal(cached, &summary); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "patient:summary")
			return &summary, nil
		}
		logger.Warn().Err(err).Str("patient_id", patientID).Msg("discarding undecodable cached patient")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "patient:summary")

	summary, err := a.adapter.GetSummary(ctx, patientID)
	if err != nil {
		return nil, err
	}
	a.store(ctx, *summary)
	return summary, nil
}

// GetSummaries serves what it can from one MGET and loads the rest in a
// single database query.
func (a *CachedPatientAdapter) GetSummaries(ctx context.Context, patientIDs []string) (map[string]entities.PatientSummary, error) {
	lookup := make(map[string]entities.PatientSummary, len(patientIDs))
	if len(patientIDs) == 0 {
		return lookup, nil
	}

	keys := make([]string, len(patientIDs))
	for i, id := range patientIDs {
		keys[i] = patientCacheKey(id)
	}

	cached, err := a.cache.GetMulti(ctx, keys)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("patient cache unavailable, reading from database")
		cached = nil
	}

	var missing []string
	for i, id := range patientIDs {
		if data, ok := cached[keys[i]]; ok {
			var summary entities.PatientSummary
			if err := json.Unmarshal(data, &summary); err == nil {
				lookup[id] = summary
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(lookup) > 0 {
		observability.RecordCacheHit(ctx, a.metrics, "patient:summary")
	}
	if len(missing) == 0 {
		return lookup, nil
	}
	observability.RecordCacheMiss(ctx, a.metrics, "patient:summary")

	loaded, err := a.adapter.GetSummaries(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, summary := range loaded {
		lookup[id] = summary
		a.store(ctx, summary)
	}
	return lookup, nil
}

func (a *CachedPatientAdapter) store(ctx context.Context, summary entities.PatientSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, patientCacheKey(summary.ID), data, a.ttlSeconds); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("patient_id", summary.ID).Msg("failed to cache patient")
	}
}
