package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/careconnect/backend/pkg/errors"
)

var patientColumns = []interface{}{
	"id", "first_name", "last_name", "gender", "date_of_birth", "medical_record_number",
}

// PatientAdapter projects patient identity out of the patients table.
type PatientAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewPatientAdapter creates a new patient adapter
func NewPatientAdapter(client *postgres.Client) repositories.PatientRepository {
	return &PatientAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetSummary returns one patient or repositories.ErrNotFound.
func (a *PatientAdapter) GetSummary(ctx context.Context, patientID string) (*entities.PatientSummary, error) {
	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.Ex{"id": patientID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	summary, err := scanPatient(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get patient", err)
	}
	return summary, nil
}

// GetSummaries fetches identities for ids in a single IN query.
func (a *PatientAdapter) GetSummaries(ctx context.Context, patientIDs []string) (map[string]entities.PatientSummary, error) {
	lookup := make(map[string]entities.PatientSummary, len(patientIDs))
	if len(patientIDs) == 0 {
		return lookup, nil
	}

	query, args, err := a.db.Select(patientColumns...).
		From("patients").
		Where(goqu.C("id").In(patientIDs)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to fetch patients", err)
	}
	defer rows.Close()

	for rows.Next() {
		summary, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan patient", err)
		}
		lookup[summary.ID] = *summary
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate patients", err)
	}
	return lookup, nil
}

func scanPatient(row rowScanner) (*entities.PatientSummary, error) {
	var id string
	var firstName, lastName, gender, mrn sql.NullString
	var dob sql.NullTime

	if err := row.Scan(&id, &firstName, &lastName, &gender, &dob, &mrn); err != nil {
		return nil, err
	}

	summary := &entities.PatientSummary{
		ID:       id,
		FullName: entities.FullNameOf(firstName.String, lastName.String),
	}
	if gender.Valid {
		summary.Gender = &gender.String
	}
	if mrn.Valid {
		summary.MedicalRecordNumber = &mrn.String
	}
	if dob.Valid {
		d := dob.Time.In(time.UTC)
		summary.DateOfBirth = &d
	}
	return summary, nil
}
