package repositories

import (
	"context"

	"github.com/careconnect/backend/internal/domain/entities"
)

// PatientRepository reads minimal patient identity.
type PatientRepository interface {
	// GetSummary returns one patient's identity, or ErrNotFound.
	GetSummary(ctx context.Context, patientID string) (*entities.PatientSummary, error)

	// GetSummaries batch-fetches identities keyed by patient ID. Unknown IDs are omitted.
	GetSummaries(ctx context.Context, patientIDs []string) (map[string]entities.PatientSummary, error)
}
