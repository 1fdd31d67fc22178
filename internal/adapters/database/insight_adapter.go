package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/clients/postgres"
	"github.com/careconnect/backend/internal/infrastructure/observability"
	apperrors "github.com/careconnect/backend/pkg/errors"
)

const insightsTable = "ai_insights"

var insightColumns = []interface{}{
	"id", "patient_id", "risk_score", "ai_summary",
	"risk_factors", "recommendations", "key_terms",
	"confidence_score", "model_version", "created_by", "created_at",
}

// InsightAdapter implements InsightRepository on the ai_insights table.
// Rows are only ever inserted.
type InsightAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewInsightAdapter creates a new insight adapter
func NewInsightAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.InsightRepository {
	return &InsightAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// Create inserts the insight and returns the row as stored.
func (a *InsightAdapter) Create(ctx context.Context, insight *entities.Insight) (*entities.Insight, error) {
	record, err := insightRecord(insight)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode insight", err)
	}

	query, args, err := a.db.Insert(insightsTable).
		Rows(record).
		Returning(insightColumns...).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build insert query", err)
	}

	start := time.Now()
	stored, err := scanInsight(a.client.DB().QueryRowContext(ctx, query, args...))
	observability.RecordDBMetric(ctx, a.metrics, "insert_insight", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNoRowReturned
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to insert insight", err)
	}
	return stored, nil
}

// ListByPatient returns the newest insights for one patient.
func (a *InsightAdapter) ListByPatient(ctx context.Context, patientID string, limit int) ([]*entities.Insight, error) {
	ds := a.db.Select(insightColumns...).
		From(insightsTable).
		Where(goqu.Ex{"patient_id": patientID})
	return a.list(ctx, ds, limit, "list_patient_insights")
}

// ListRecent returns the newest insights across all patients.
func (a *InsightAdapter) ListRecent(ctx context.Context, limit int) ([]*entities.Insight, error) {
	ds := a.db.Select(insightColumns...).From(insightsTable)
	return a.list(ctx, ds, limit, "list_recent_insights")
}

func (a *InsightAdapter) list(ctx context.Context, ds *goqu.SelectDataset, limit int, op string) ([]*entities.Insight, error) {
	ds = ds.Order(goqu.I("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, a.metrics, op, time.Since(start)) }()

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list insights", err)
	}
	defer rows.Close()

	insights := make([]*entities.Insight, 0)
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan insight", err)
		}
		insights = append(insights, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate insights", err)
	}
	return insights, nil
}

func insightRecord(insight *entities.Insight) (goqu.Record, error) {
	riskFactors, err := encodeList(insight.RiskFactors)
	if err != nil {
		return nil, err
	}
	recommendations, err := encodeList(insight.Recommendations)
	if err != nil {
		return nil, err
	}
	keyTerms, err := encodeList(insight.KeyTerms)
	if err != nil {
		return nil, err
	}

	id := insight.ID
	if id == "" {
		id = uuid.NewString()
	}

	var createdBy interface{}
	if insight.CreatedBy != nil {
		createdBy = *insight.CreatedBy
	}

	return goqu.Record{
		"id":               id,
		"patient_id":       insight.PatientID,
		"risk_score":       insight.RiskScore,
		"ai_summary":       insight.AISummary,
		"risk_factors":     riskFactors,
		"recommendations":  recommendations,
		"key_terms":        keyTerms,
		"confidence_score": insight.ConfidenceScore,
		"model_version":    insight.ModelVersion,
		"created_by":       createdBy,
	}, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInsight(row rowScanner) (*entities.Insight, error) {
	insight := &entities.Insight{}
	var riskFactors, recommendations, keyTerms []byte
	var createdBy sql.NullString

	err := row.Scan(
		&insight.ID,
		&insight.PatientID,
		&insight.RiskScore,
		&insight.AISummary,
		&riskFactors,
		&recommendations,
		&keyTerms,
		&insight.ConfidenceScore,
		&insight.ModelVersion,
		&createdBy,
		&insight.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if insight.RiskFactors, err = decodeList(riskFactors); err != nil {
		return nil, fmt.Errorf("risk_factors: %w", err)
	}
	if insight.Recommendations, err = decodeList(recommendations); err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	if insight.KeyTerms, err = decodeList(keyTerms); err != nil {
		return nil, fmt.Errorf("key_terms: %w", err)
	}
	if createdBy.Valid {
		insight.CreatedBy = &createdBy.String
	}
	return insight, nil
}

func encodeList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}

func decodeList(raw []byte) ([]string, error) {
	items := []string{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}
