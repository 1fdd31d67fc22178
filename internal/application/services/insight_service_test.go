package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/careconnect/backend/internal/analysis"
	"github.com/careconnect/backend/internal/application/services"
	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/domain/repositories"
	apperrors "github.com/careconnect/backend/pkg/errors"
)

type pipeline struct {
	insights  *MockInsightRepository
	patients  *MockPatientRepository
	vitals    *MockVitalsRepository
	storage   *MockObjectStorage
	events    *MockEventBus
	extractor *stubExtractor
	service   *services.InsightService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	p := &pipeline{
		insights:  new(MockInsightRepository),
		patients:  new(MockPatientRepository),
		vitals:    new(MockVitalsRepository),
		storage:   new(MockObjectStorage),
		events:    new(MockEventBus),
		extractor: &stubExtractor{},
	}
	p.service = services.NewInsightService(services.InsightServiceDeps{
		Insights:  p.insights,
		Patients:  p.patients,
		Locator:   services.NewDocumentLocator(p.storage, "{patient_id}", 100),
		Storage:   p.storage,
		Extractor: p.extractor,
		Vitals:    services.NewVitalsContextFetcher(p.vitals),
		Analyzer:  analysis.NewAnalyzer(nil, nil, analysis.DefaultConfig()),
		Events:    p.events,
	}, services.InsightServiceConfig{})
	return p
}

func (p *pipeline) withDocument(patientID string) {
	p.patients.On("GetSummary", mock.Anything, patientID).Return(&entities.PatientSummary{ID: patientID}, nil)
	p.storage.On("List", mock.Anything, patientID, mock.Anything).
		Return([]providers.StorageObject{{Name: "discharge.pdf", CreatedAt: "2024-05-01T08:00:00Z"}}, nil)
	p.storage.On("Download", mock.Anything, patientID+"/discharge.pdf").Return([]byte("%PDF-1.7"), nil)
}

func storedCopy(insight *entities.Insight) *entities.Insight {
	stored := *insight
	stored.ID = "ins-1"
	stored.CreatedAt = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return &stored
}

func TestGeneratePatientInsight_Success(t *testing.T) {
	p := newPipeline(t)
	p.withDocument("p1")
	p.extractor.result = entities.ExtractedText{
		Text: "History of myocardial infarction. Now with sepsis. Admitted overnight.",
		Mode: entities.ExtractionModeDigital,
	}
	spo2 := 89.0
	latestVitals := &entities.VitalsSnapshot{ID: "v1", PatientID: "p1", OxygenSaturation: &spo2}
	p.vitals.On("GetLatestByPatient", mock.Anything, "p1").Return(latestVitals, nil)

	creator := "nurse-7"
	p.insights.On("Create", mock.Anything, mock.MatchedBy(func(i *entities.Insight) bool {
		return i.PatientID == "p1" && i.CreatedBy == &creator && i.ModelVersion == analysis.HeuristicModelVersion
	})).Return(func(_ context.Context, i *entities.Insight) *entities.Insight { return storedCopy(i) }, nil)
	p.events.On("Publish", mock.Anything, providers.EventChannelInsightUpdates, mock.Anything).Return(nil)
	p.events.On("Publish", mock.Anything, "insights:patient:p1", mock.Anything).Return(errors.New("redis down"))

	view, msg, err := p.service.GeneratePatientInsight(context.Background(), "p1", &creator)
	require.NoError(t, err)

	assert.Equal(t, services.MsgInsightGenerated, msg)
	assert.Equal(t, "ins-1", view.ID)
	assert.Equal(t, 92, view.RiskScore)
	assert.Equal(t, entities.RiskLevelHigh, view.RiskLevel)
	assert.Equal(t, []string{"Myocardial Infarction", "Sepsis", "Recent oxygen saturation 89%"}, view.RiskFactors)
	assert.Equal(t, "p1/discharge.pdf", view.SourceDocument.StoragePath)
	assert.Equal(t, "discharge.pdf", view.SourceDocument.FileName)
	assert.Equal(t, entities.ExtractionModeDigital, view.SourceDocument.ExtractionMode)
	assert.Same(t, latestVitals, view.LatestVitals)
	assert.Equal(t, p.extractor.result.Text, view.SourceExcerpt)
	assert.Equal(t, []byte("%PDF-1.7"), p.extractor.input)
	p.events.AssertNumberOfCalls(t, "Publish", 2)
}

func TestGeneratePatientInsight_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(p *pipeline)
		wantMsg  string
		wantType apperrors.ErrorType
	}{
		{
			name: "unknown patient",
			setup: func(p *pipeline) {
				p.patients.On("GetSummary", mock.Anything, "p1").Return(nil, repositories.ErrNotFound)
			},
			wantMsg:  services.MsgPatientNotFound,
			wantType: apperrors.ErrorTypeNotFound,
		},
		{
			name: "no document",
			setup: func(p *pipeline) {
				p.patients.On("GetSummary", mock.Anything, "p1").Return(&entities.PatientSummary{ID: "p1"}, nil)
				p.storage.On("List", mock.Anything, "p1", mock.Anything).Return([]providers.StorageObject{}, nil)
			},
			wantMsg:  services.MsgNoDocument,
			wantType: apperrors.ErrorTypeNotFound,
		},
		{
			name: "listing failure",
			setup: func(p *pipeline) {
				p.patients.On("GetSummary", mock.Anything, "p1").Return(&entities.PatientSummary{ID: "p1"}, nil)
				p.storage.On("List", mock.Anything, "p1", mock.Anything).Return(nil, errors.New("403"))
			},
			wantMsg:  services.MsgListingFailed,
			wantType: apperrors.ErrorTypeExternal,
		},
		{
			name: "download failure",
			setup: func(p *pipeline) {
				p.patients.On("GetSummary", mock.Anything, "p1").Return(&entities.PatientSummary{ID: "p1"}, nil)
				p.storage.On("List", mock.Anything, "p1", mock.Anything).Return([]providers.StorageObject{{Name: "a.pdf"}}, nil)
				p.storage.On("Download", mock.Anything, "p1/a.pdf").Return(nil, providers.ErrObjectNotFound)
			},
			wantMsg:  services.MsgDownloadFailed,
			wantType: apperrors.ErrorTypeExternal,
		},
		{
			name: "empty download",
			setup: func(p *pipeline) {
				p.patients.On("GetSummary", mock.Anything, "p1").Return(&entities.PatientSummary{ID: "p1"}, nil)
				p.storage.On("List", mock.Anything, "p1", mock.Anything).Return([]providers.StorageObject{{Name: "a.pdf"}}, nil)
				p.storage.On("Download", mock.Anything, "p1/a.pdf").Return([]byte{}, nil)
			},
			wantMsg:  services.MsgDownloadFailed,
			wantType: apperrors.ErrorTypeExternal,
		},
		{
			name: "unreadable pdf",
			setup: func(p *pipeline) {
				p.withDocument("p1")
				p.extractor.result = entities.ExtractedText{Mode: entities.ExtractionModeUnreadable}
			},
			wantMsg:  services.MsgUnreadablePDF,
			wantType: apperrors.ErrorTypeExtraction,
		},
		{
			name: "ocr error",
			setup: func(p *pipeline) {
				p.withDocument("p1")
				p.extractor.result = entities.ExtractedText{Mode: entities.ExtractionModeOCRError}
			},
			wantMsg:  services.MsgOCRFailed,
			wantType: apperrors.ErrorTypeExtraction,
		},
		{
			name: "ocr found no text",
			setup: func(p *pipeline) {
				p.withDocument("p1")
				p.extractor.result = entities.ExtractedText{Text: " \n\t", Mode: entities.ExtractionModeOCR}
			},
			wantMsg:  "OCR engine did not detect any readable text inside PDF",
			wantType: apperrors.ErrorTypeExtraction,
		},
		{
			name: "insert returned nothing",
			setup: func(p *pipeline) {
				p.withDocument("p1")
				p.extractor.result = entities.ExtractedText{Text: "Stable.", Mode: entities.ExtractionModeDigital}
				p.vitals.On("GetLatestByPatient", mock.Anything, "p1").Return(nil, repositories.ErrNotFound)
				p.insights.On("Create", mock.Anything, mock.Anything).Return(nil, repositories.ErrNoRowReturned)
			},
			wantMsg:  services.MsgInsightNotReturned,
			wantType: apperrors.ErrorTypeInternal,
		},
		{
			name: "insert failed",
			setup: func(p *pipeline) {
				p.withDocument("p1")
				p.extractor.result = entities.ExtractedText{Text: "Stable.", Mode: entities.ExtractionModeDigital}
				p.vitals.On("GetLatestByPatient", mock.Anything, "p1").Return(nil, repositories.ErrNotFound)
				p.insights.On("Create", mock.Anything, mock.Anything).
					Return(nil, apperrors.NewInternalError("failed to insert insight", errors.New("fk violation")))
			},
			wantMsg:  "Failed to persist AI insight: failed to insert insight",
			wantType: apperrors.ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t)
			tt.setup(p)

			view, msg, err := p.service.GeneratePatientInsight(context.Background(), "p1", nil)

			assert.Nil(t, view)
			assert.Equal(t, tt.wantMsg, msg)
			assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
			p.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGeneratePatientInsight_RequiresPatientID(t *testing.T) {
	p := newPipeline(t)

	_, msg, err := p.service.GeneratePatientInsight(context.Background(), "  ", nil)

	assert.Equal(t, services.MsgPatientIDRequired, msg)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestGeneratePatientInsight_PatientLookupErrorIsNotFatal(t *testing.T) {
	p := newPipeline(t)
	p.patients.On("GetSummary", mock.Anything, "p1").Return(nil, errors.New("timeout"))
	p.storage.On("List", mock.Anything, "p1", mock.Anything).Return([]providers.StorageObject{}, nil)

	_, msg, _ := p.service.GeneratePatientInsight(context.Background(), "p1", nil)

	assert.Equal(t, services.MsgNoDocument, msg)
}

func TestGetPatientInsights(t *testing.T) {
	p := newPipeline(t)
	p.insights.On("ListByPatient", mock.Anything, "p1", 5).Return([]*entities.Insight{
		{ID: "i2", PatientID: "p1", RiskScore: 65},
		{ID: "i1", PatientID: "p1", RiskScore: 30},
	}, nil)

	views, msg, err := p.service.GetPatientInsights(context.Background(), "p1", 0)
	require.NoError(t, err)

	assert.Equal(t, services.MsgInsightsFetched, msg)
	require.Len(t, views, 2)
	assert.Equal(t, entities.RiskLevelElevated, views[0].RiskLevel)
	assert.Equal(t, entities.RiskLevelLow, views[1].RiskLevel)
}

func TestGetPatientInsights_StorageErrorIsReported(t *testing.T) {
	p := newPipeline(t)
	p.insights.On("ListByPatient", mock.Anything, "p1", 3).Return(nil, errors.New("connection refused"))

	views, msg, err := p.service.GetPatientInsights(context.Background(), "p1", 3)

	assert.Error(t, err)
	assert.Empty(t, views)
	assert.NotNil(t, views)
	assert.Equal(t, "Failed to fetch insights: connection refused", msg)
}

func TestListLatestInsights_ReducesToOnePerPatient(t *testing.T) {
	p := newPipeline(t)
	t3 := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	p.insights.On("ListRecent", mock.Anything, 100).Return([]*entities.Insight{
		{ID: "a-t3", PatientID: "A", RiskScore: 85, CreatedAt: t3},
		{ID: "a-t2", PatientID: "A", CreatedAt: t3.Add(-time.Hour)},
		{ID: "b-1", PatientID: "B", CreatedAt: t3.Add(-2 * time.Hour)},
		{ID: "a-t1", PatientID: "A", CreatedAt: t3.Add(-3 * time.Hour)},
	}, nil)
	p.patients.On("GetSummaries", mock.Anything, []string{"A", "B"}).Return(map[string]entities.PatientSummary{
		"A": {ID: "A", FullName: "Ada Obi"},
	}, nil)

	latest, msg, err := p.service.ListLatestInsights(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, services.MsgLatestInsights, msg)
	require.Len(t, latest, 2)
	assert.Equal(t, "a-t3", latest[0].Insight.ID)
	assert.Equal(t, "Ada Obi", latest[0].Patient.FullName)
	assert.Equal(t, entities.RiskLevelHigh, latest[0].Insight.RiskLevel)
	assert.Equal(t, "b-1", latest[1].Insight.ID)
	assert.Equal(t, entities.PatientSummary{ID: "B"}, latest[1].Patient)
}

func TestListLatestInsights_Empty(t *testing.T) {
	p := newPipeline(t)
	p.insights.On("ListRecent", mock.Anything, 10).Return([]*entities.Insight{}, nil)

	latest, msg, err := p.service.ListLatestInsights(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, services.MsgNoInsightsYet, msg)
	assert.NotNil(t, latest)
	assert.Empty(t, latest)
	p.patients.AssertNotCalled(t, "GetSummaries", mock.Anything, mock.Anything)
}

func TestListLatestInsights_Failures(t *testing.T) {
	t.Run("listing fails", func(t *testing.T) {
		p := newPipeline(t)
		p.insights.On("ListRecent", mock.Anything, 100).Return(nil, errors.New("boom"))

		_, msg, err := p.service.ListLatestInsights(context.Background(), 0)
		assert.Error(t, err)
		assert.Equal(t, "Failed to list insights: boom", msg)
	})

	t.Run("patient metadata fails", func(t *testing.T) {
		p := newPipeline(t)
		p.insights.On("ListRecent", mock.Anything, 100).Return([]*entities.Insight{{ID: "i", PatientID: "A"}}, nil)
		p.patients.On("GetSummaries", mock.Anything, []string{"A"}).Return(nil, errors.New("boom"))

		latest, _, err := p.service.ListLatestInsights(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, "A", latest[0].Patient.ID)
	})
}
