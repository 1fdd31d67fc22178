package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/careconnect/backend/pkg/errors"
)

// VitalsAdapter reads the vital_uploads table.
type VitalsAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewVitalsAdapter creates a new vitals adapter
func NewVitalsAdapter(client *postgres.Client) repositories.VitalsRepository {
	return &VitalsAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetLatestByPatient returns the reading with the newest recorded_at.
func (a *VitalsAdapter) GetLatestByPatient(ctx context.Context, patientID string) (*entities.VitalsSnapshot, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "heart_rate",
		"blood_pressure_systolic", "blood_pressure_diastolic",
		"oxygen_saturation", "recorded_at",
	).From("vital_uploads").
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.I("recorded_at").Desc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	vitals := &entities.VitalsSnapshot{}
	var heartRate, systolic, diastolic sql.NullInt64
	var oxygen sql.NullFloat64

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&vitals.ID,
		&vitals.PatientID,
		&heartRate,
		&systolic,
		&diastolic,
		&oxygen,
		&vitals.RecordedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get latest vitals", err)
	}

	vitals.HeartRate = intPtr(heartRate)
	vitals.BloodPressureSystolic = intPtr(systolic)
	vitals.BloodPressureDiastolic = intPtr(diastolic)
	if oxygen.Valid {
		vitals.OxygenSaturation = &oxygen.Float64
	}
	return vitals, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
