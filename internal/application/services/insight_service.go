package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/observability"
	apperrors "github.com/careconnect/backend/pkg/errors"
)

// Caller-facing messages.
const (
	MsgInsightGenerated   = "AI insight generated successfully"
	MsgPatientIDRequired  = "Patient ID is required"
	MsgPatientNotFound    = "Patient not found"
	MsgNoDocument         = "No PDF found for this patient in storage bucket"
	MsgListingFailed      = "Unable to list patient documents in storage"
	MsgDownloadFailed     = "Unable to download PDF from document storage"
	MsgUnreadablePDF      = "Uploaded PDF could not be opened for text extraction"
	MsgOCRFailed          = "OCR engine failed while processing PDF"
	MsgNoReadableText     = "OCR engine did not detect any readable text inside PDF"
	MsgAnalysisFailed     = "Risk analysis failed"
	MsgInsightNotReturned = "Database did not return the stored insight"
	MsgInsightsFetched    = "Insights fetched successfully"
	MsgLatestInsights     = "Latest insights fetched"
	MsgNoInsightsYet      = "No insights available yet"
)

const (
	defaultPatientListLimit = 5
	defaultLatestListLimit  = 100
)

// TextExtractor turns PDF bytes into text tagged with how it was obtained.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) entities.ExtractedText
}

// RiskAnalyzer scores document text.
type RiskAnalyzer interface {
	Analyze(ctx context.Context, text string, vitals *entities.VitalsSnapshot) (*entities.RiskAnalysis, error)
}

// InsightServiceConfig holds list defaults.
type InsightServiceConfig struct {
	DefaultLimit int
	LatestLimit  int
}

// InsightService runs the document-to-insight pipeline and serves stored insights.
type InsightService struct {
	insights  repositories.InsightRepository
	patients  repositories.PatientRepository
	locator   *DocumentLocator
	storage   providers.ObjectStorage
	extractor TextExtractor
	vitals    *VitalsContextFetcher
	analyzer  RiskAnalyzer
	events    providers.EventBus
	metrics   *observability.Metrics
	cfg       InsightServiceConfig
	now       func() time.Time
}

// InsightServiceDeps groups the collaborators of InsightService. Events,
// Patients and Metrics are optional.
type InsightServiceDeps struct {
	Insights  repositories.InsightRepository
	Patients  repositories.PatientRepository
	Locator   *DocumentLocator
	Storage   providers.ObjectStorage
	Extractor TextExtractor
	Vitals    *VitalsContextFetcher
	Analyzer  RiskAnalyzer
	Events    providers.EventBus
	Metrics   *observability.Metrics
}

// NewInsightService creates a new insight service
func NewInsightService(deps InsightServiceDeps, cfg InsightServiceConfig) *InsightService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaultPatientListLimit
	}
	if cfg.LatestLimit <= 0 {
		cfg.LatestLimit = defaultLatestListLimit
	}
	return &InsightService{
		insights:  deps.Insights,
		patients:  deps.Patients,
		locator:   deps.Locator,
		storage:   deps.Storage,
		extractor: deps.Extractor,
		vitals:    deps.Vitals,
		analyzer:  deps.Analyzer,
		events:    deps.Events,
		metrics:   deps.Metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GeneratePatientInsight analyzes the patient's newest PDF and stores a new
// insight. No row is written when any step before persistence fails.
func (s *InsightService) GeneratePatientInsight(ctx context.Context, patientID string, createdBy *string) (*entities.InsightView, string, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, MsgPatientIDRequired, apperrors.NewValidationError(MsgPatientIDRequired)
	}

	ctx, span := observability.StartSpan(ctx, "insights.generate", attribute.String("patient.id", patientID))
	defer span.End()

	start := s.now()
	logger := observability.PatientLogger(ctx, patientID)

	if err := s.checkPatient(ctx, patientID); err != nil {
		return nil, apperrors.Message(err), err
	}

	document, err := s.locator.LatestPDF(ctx, patientID)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, MsgNoDocument, apperrors.NewNotFoundError(MsgNoDocument)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to list patient documents")
		observability.RecordError(span, err)
		return nil, MsgListingFailed, apperrors.NewExternalError(MsgListingFailed, err)
	}

	data, err := s.storage.Download(ctx, document.StoragePath)
	if err == nil && len(data) == 0 {
		err = errors.New("empty object")
	}
	if err != nil {
		logger.Error().Err(err).Str("path", document.StoragePath).Msg("failed to download patient document")
		observability.RecordError(span, err)
		return nil, MsgDownloadFailed, apperrors.NewExternalError(MsgDownloadFailed, err)
	}

	extracted := s.extractor.Extract(ctx, data)
	if msg, failed := extractionFailure(extracted); failed {
		logger.Warn().Str("path", document.StoragePath).Str("mode", string(extracted.Mode)).Msg(msg)
		return nil, msg, apperrors.NewExtractionError(msg)
	}
	extractedAt := s.now().UTC()

	latestVitals := s.vitals.Latest(ctx, patientID)

	analysis, err := s.analyzer.Analyze(ctx, extracted.Text, latestVitals)
	if err != nil {
		observability.RecordError(span, err)
		return nil, MsgAnalysisFailed, apperrors.NewInternalError(MsgAnalysisFailed, err)
	}

	stored, err := s.insights.Create(ctx, analysis.ToInsight(patientID, createdBy))
	if errors.Is(err, repositories.ErrNoRowReturned) {
		logger.Error().Msg("insert returned no insight row")
		return nil, MsgInsightNotReturned, apperrors.NewInternalError(MsgInsightNotReturned, err)
	}
	if err != nil {
		msg := "Failed to persist AI insight: " + apperrors.Message(err)
		logger.Error().Err(err).Msg("failed to insert insight")
		observability.RecordError(span, err)
		return nil, msg, apperrors.NewInternalError(msg, err)
	}

	s.publish(ctx, stored)
	observability.RecordInsight(ctx, s.metrics, string(stored.Level()), stored.ModelVersion, s.now().Sub(start))
	logger.Info().
		Str("insight_id", stored.ID).
		Int("risk_score", stored.RiskScore).
		Str("model_version", stored.ModelVersion).
		Str("mode", string(extracted.Mode)).
		Msg("insight generated")

	view := entities.NewInsightView(stored)
	view.SourceDocument = &entities.SourceDocument{
		StoragePath:    document.StoragePath,
		FileName:       document.Name,
		ExtractionMode: extracted.Mode,
		ExtractedAt:    extractedAt,
	}
	view.LatestVitals = latestVitals
	view.SourceExcerpt = analysis.SourceExcerpt
	return view, MsgInsightGenerated, nil
}

// checkPatient rejects unknown patients. Lookup errors other than not-found
// are logged and ignored; the insert's foreign key is the final check.
func (s *InsightService) checkPatient(ctx context.Context, patientID string) error {
	if s.patients == nil {
		return nil
	}
	_, err := s.patients.GetSummary(ctx, patientID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.NewNotFoundError(MsgPatientNotFound)
	}
	if err != nil {
		observability.PatientLogger(ctx, patientID).Warn().Err(err).Msg("patient lookup failed, continuing")
	}
	return nil
}

func extractionFailure(extracted entities.ExtractedText) (string, bool) {
	switch extracted.Mode {
	case entities.ExtractionModeUnreadable:
		return MsgUnreadablePDF, true
	case entities.ExtractionModeOCRError:
		return MsgOCRFailed, true
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return MsgNoReadableText, true
	}
	return "", false
}

func (s *InsightService) publish(ctx context.Context, insight *entities.Insight) {
	if s.events == nil {
		return
	}
	event := entities.NewInsightGeneratedEvent(insight)
	for _, channel := range []string{providers.EventChannelInsightUpdates, providers.GetPatientChannel(insight.PatientID)} {
		if err := s.events.Publish(ctx, channel, event); err != nil {
			observability.PatientLogger(ctx, insight.PatientID).Warn().Err(err).Str("channel", channel).Msg("failed to publish insight event")
		}
	}
}

// GetPatientInsights returns up to limit stored insights, newest first.
func (s *InsightService) GetPatientInsights(ctx context.Context, patientID string, limit int) ([]*entities.InsightView, string, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return []*entities.InsightView{}, MsgPatientIDRequired, apperrors.NewValidationError(MsgPatientIDRequired)
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	insights, err := s.insights.ListByPatient(ctx, patientID, limit)
	if err != nil {
		msg := "Failed to fetch insights: " + apperrors.Message(err)
		observability.PatientLogger(ctx, patientID).Error().Err(err).Msg("failed to fetch insights")
		return []*entities.InsightView{}, msg, apperrors.NewInternalError(msg, err)
	}

	views := make([]*entities.InsightView, 0, len(insights))
	for _, insight := range insights {
		views = append(views, entities.NewInsightView(insight))
	}
	return views, MsgInsightsFetched, nil
}

// ListLatestInsights reduces the newest limit insights to one per patient and
// joins patient identity. Patients missing from the lookup get an ID-only summary.
func (s *InsightService) ListLatestInsights(ctx context.Context, limit int) ([]entities.LatestInsight, string, error) {
	if limit <= 0 {
		limit = s.cfg.LatestLimit
	}

	recent, err := s.insights.ListRecent(ctx, limit)
	if err != nil {
		msg := "Failed to list insights: " + apperrors.Message(err)
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("failed to list recent insights")
		return []entities.LatestInsight{}, msg, apperrors.NewInternalError(msg, err)
	}

	latest := LatestPerPatient(recent)
	if latest.Len() == 0 {
		return []entities.LatestInsight{}, MsgNoInsightsYet, nil
	}

	lookup := map[string]entities.PatientSummary{}
	if s.patients != nil {
		found, err := s.patients.GetSummaries(ctx, latest.Keys())
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("patient metadata lookup failed")
		} else {
			lookup = found
		}
	}

	combined := make([]entities.LatestInsight, 0, latest.Len())
	latest.Each(func(patientID string, insight *entities.Insight) {
		patient, ok := lookup[patientID]
		if !ok {
			patient = entities.PatientSummary{ID: patientID}
		}
		combined = append(combined, entities.LatestInsight{
			Patient: patient,
			Insight: entities.NewInsightView(insight),
		})
	})
	return combined, MsgLatestInsights, nil
}
