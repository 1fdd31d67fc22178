package repositories

import (
	"context"
	"errors"

	"github.com/careconnect/backend/internal/domain/entities"
)

// ErrNotFound is returned when a lookup matches no rows.
var ErrNotFound = errors.New("record not found")

// ErrNoRowReturned is returned when an insert did not hand back the stored row.
var ErrNoRowReturned = errors.New("insert returned no row")

// InsightRepository defines append-only storage for AI insights.
type InsightRepository interface {
	// Create inserts a new insight and returns the stored row with server-assigned fields.
	Create(ctx context.Context, insight *entities.Insight) (*entities.Insight, error)

	// ListByPatient returns up to limit insights for a patient, newest first.
	ListByPatient(ctx context.Context, patientID string, limit int) ([]*entities.Insight, error)

	// ListRecent returns up to limit insights across all patients, newest first.
	ListRecent(ctx context.Context, limit int) ([]*entities.Insight, error)
}
