package database_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/careconnect/backend/internal/adapters/database"
	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
)

type MockPatientRepository struct {
	mock.Mock
}

func (m *MockPatientRepository) GetSummary(ctx context.Context, patientID string) (*entities.PatientSummary, error) {
	args := m.Called(ctx, patientID)
	summary, _ := args.Get(0).(*entities.PatientSummary)
	return summary, args.Error(1)
}

func (m *MockPatientRepository) GetSummaries(ctx context.Context, patientIDs []string) (map[string]entities.PatientSummary, error) {
	args := m.Called(ctx, patientIDs)
	lookup, _ := args.Get(0).(map[string]entities.PatientSummary)
	return lookup, args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockCache) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	args := m.Called(ctx, keys)
	found, _ := args.Get(0).(map[string][]byte)
	return found, args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	return m.Called(ctx, key, value, expirationSeconds).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestCachedPatientAdapter_GetSummaryHit(t *testing.T) {
	repo := new(MockPatientRepository)
	cache := new(MockCache)
	data, _ := json.Marshal(entities.PatientSummary{ID: "p1", FullName: "Ada Obi"})
	cache.On("Get", mock.Anything, "patient:summary:p1").Return(data, nil)

	summary, err := database.NewCachedPatientAdapter(repo, cache, 60, nil).GetSummary(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "Ada Obi", summary.FullName)
	repo.AssertNotCalled(t, "GetSummary", mock.Anything, mock.Anything)
}

func TestCachedPatientAdapter_GetSummaryMissPopulatesCache(t *testing.T) {
	repo := new(MockPatientRepository)
	cache := new(MockCache)
	cache.On("Get", mock.Anything, "patient:summary:p1").Return(nil, providers.ErrCacheMiss)
	repo.On("GetSummary", mock.Anything, "p1").Return(&entities.PatientSummary{ID: "p1", FullName: "Ada Obi"}, nil)
	cache.On("Set", mock.Anything, "patient:summary:p1", mock.Anything, 60).Return(errors.New("redis down"))

	summary, err := database.NewCachedPatientAdapter(repo, cache, 60, nil).GetSummary(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", summary.ID)
	cache.AssertExpectations(t)
}

func TestCachedPatientAdapter_GetSummariesMergesCacheAndDatabase(t *testing.T) {
	repo := new(MockPatientRepository)
	cache := new(MockCache)
	cachedA, _ := json.Marshal(entities.PatientSummary{ID: "a", FullName: "Cached A"})

	cache.On("GetMulti", mock.Anything, []string{"patient:summary:a", "patient:summary:b"}).
		Return(map[string][]byte{"patient:summary:a": cachedA}, nil)
	repo.On("GetSummaries", mock.Anything, []string{"b"}).
		Return(map[string]entities.PatientSummary{"b": {ID: "b", FullName: "Loaded B"}}, nil)
	cache.On("Set", mock.Anything, "patient:summary:b", mock.Anything, 300).Return(nil)

	lookup, err := database.NewCachedPatientAdapter(repo, cache, 0, nil).GetSummaries(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, "Cached A", lookup["a"].FullName)
	assert.Equal(t, "Loaded B", lookup["b"].FullName)
	repo.AssertExpectations(t)
}

func TestCachedPatientAdapter_GetSummariesCacheDown(t *testing.T) {
	repo := new(MockPatientRepository)
	cache := new(MockCache)
	cache.On("GetMulti", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	repo.On("GetSummaries", mock.Anything, []string{"a"}).
		Return(map[string]entities.PatientSummary{"a": {ID: "a"}}, nil)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	lookup, err := database.NewCachedPatientAdapter(repo, cache, 60, nil).GetSummaries(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, lookup, 1)
}
