package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/careconnect/backend/internal/application/services"
	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
)

func TestCacheWarmingService_WarmCache(t *testing.T) {
	insights := new(MockInsightRepository)
	patients := new(MockPatientRepository)

	insights.On("ListRecent", mock.Anything, 50).Return([]*entities.Insight{
		{ID: "1", PatientID: "A"},
		{ID: "2", PatientID: "B"},
		{ID: "3", PatientID: "A"},
	}, nil)
	patients.On("GetSummaries", mock.Anything, []string{"A", "B"}).Return(map[string]entities.PatientSummary{
		"A": {ID: "A"},
		"B": {ID: "B"},
	}, nil)

	svc := services.NewCacheWarmingService(insights, patients, nil, 50)
	n, err := svc.WarmCache(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	patients.AssertExpectations(t)
}

func TestCacheWarmingService_WarmCacheNothingRecent(t *testing.T) {
	insights := new(MockInsightRepository)
	patients := new(MockPatientRepository)
	insights.On("ListRecent", mock.Anything, 100).Return([]*entities.Insight{}, nil)

	n, err := services.NewCacheWarmingService(insights, patients, nil, 0).WarmCache(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	patients.AssertNotCalled(t, "GetSummaries", mock.Anything, mock.Anything)
}

func TestCacheWarmingService_WarmCacheErrors(t *testing.T) {
	insights := new(MockInsightRepository)
	insights.On("ListRecent", mock.Anything, 10).Return(nil, errors.New("db down"))

	_, err := services.NewCacheWarmingService(insights, new(MockPatientRepository), nil, 10).WarmCache(context.Background())
	assert.ErrorContains(t, err, "failed to fetch recent insights")
}

func TestCacheWarmingService_WarmsOnInsightEvents(t *testing.T) {
	insights := new(MockInsightRepository)
	patients := new(MockPatientRepository)
	bus := new(MockEventBus)

	events := make(chan *entities.InsightEvent, 1)
	bus.On("Subscribe", mock.Anything, providers.EventChannelInsightUpdates).
		Return((<-chan *entities.InsightEvent)(events), nil)
	insights.On("ListRecent", mock.Anything, 10).Return([]*entities.Insight{}, nil)
	warmed := make(chan struct{})
	patients.On("GetSummary", mock.Anything, "p-7").
		Run(func(mock.Arguments) { close(warmed) }).
		Return(&entities.PatientSummary{ID: "p-7"}, nil)

	svc := services.NewCacheWarmingService(insights, patients, bus, 10)
	require.NoError(t, svc.Start(context.Background(), 0))
	defer svc.Stop()

	assert.Error(t, svc.Start(context.Background(), 0), "second start is rejected")

	events <- entities.NewInsightGeneratedEvent(&entities.Insight{ID: "i", PatientID: "p-7", RiskScore: 81})

	select {
	case <-warmed:
	case <-time.After(time.Second):
		t.Fatal("patient summary was not warmed")
	}
}

func TestCacheWarmingService_SubscribeFailure(t *testing.T) {
	bus := new(MockEventBus)
	bus.On("Subscribe", mock.Anything, providers.EventChannelInsightUpdates).
		Return(nil, errors.New("redis down"))

	svc := services.NewCacheWarmingService(new(MockInsightRepository), new(MockPatientRepository), bus, 10)
	assert.Error(t, svc.Start(context.Background(), time.Minute))
	svc.Stop()
}
