package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
)

type MockInsightRepository struct {
	mock.Mock
}

func (m *MockInsightRepository) Create(ctx context.Context, insight *entities.Insight) (*entities.Insight, error) {
	args := m.Called(ctx, insight)
	if fn, ok := args.Get(0).(func(context.Context, *entities.Insight) *entities.Insight); ok {
		return fn(ctx, insight), args.Error(1)
	}
	stored, _ := args.Get(0).(*entities.Insight)
	return stored, args.Error(1)
}

func (m *MockInsightRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]*entities.Insight, error) {
	args := m.Called(ctx, patientID, limit)
	insights, _ := args.Get(0).([]*entities.Insight)
	return insights, args.Error(1)
}

func (m *MockInsightRepository) ListRecent(ctx context.Context, limit int) ([]*entities.Insight, error) {
	args := m.Called(ctx, limit)
	insights, _ := args.Get(0).([]*entities.Insight)
	return insights, args.Error(1)
}

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

type MockVitalsRepository struct {
	mock.Mock
}

func (m *MockVitalsRepository) GetLatestByPatient(ctx context.Context, patientID string) (*entities.VitalsSnapshot, error) {
	args := m.Called(ctx, patientID)
	vitals, _ := args.Get(0).(*entities.VitalsSnapshot)
	return vitals, args.Error(1)
}

type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) List(ctx context.Context, prefix string, opts providers.ListOptions) ([]providers.StorageObject, error) {
	args := m.Called(ctx, prefix, opts)
	objects, _ := args.Get(0).([]providers.StorageObject)
	return objects, args.Error(1)
}

func (m *MockObjectStorage) Download(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.InsightEvent) error {
	return m.Called(ctx, channel, event).Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.InsightEvent, error) {
	args := m.Called(ctx, channel)
	ch, _ := args.Get(0).(<-chan *entities.InsightEvent)
	return ch, args.Error(1)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}

type stubExtractor struct {
	result entities.ExtractedText
	input  []byte
}

func (s *stubExtractor) Extract(_ context.Context, data []byte) entities.ExtractedText {
	s.input = data
	return s.result
}
