package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/careconnect/backend/internal/application/services"
	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/repositories"
)

func TestVitalsContextFetcher_Latest(t *testing.T) {
	hr := 120
	repo := new(MockVitalsRepository)
	repo.On("GetLatestByPatient", mock.Anything, "p1").Return(&entities.VitalsSnapshot{HeartRate: &hr}, nil)
	repo.On("GetLatestByPatient", mock.Anything, "p2").Return(nil, repositories.ErrNotFound)
	repo.On("GetLatestByPatient", mock.Anything, "p3").Return(nil, errors.New("timeout"))

	fetcher := services.NewVitalsContextFetcher(repo)

	assert.Equal(t, &hr, fetcher.Latest(context.Background(), "p1").HeartRate)
	assert.Nil(t, fetcher.Latest(context.Background(), "p2"))
	assert.Nil(t, fetcher.Latest(context.Background(), "p3"))
}

func TestVitalsContextFetcher_Disabled(t *testing.T) {
	var fetcher *services.VitalsContextFetcher
	assert.Nil(t, fetcher.Latest(context.Background(), "p1"))
	assert.Nil(t, services.NewVitalsContextFetcher(nil).Latest(context.Background(), "p1"))
}
