package repositories

import (
	"context"

	"github.com/careconnect/backend/internal/domain/entities"
)

// VitalsRepository reads vital-sign uploads. It never writes.
type VitalsRepository interface {
	// GetLatestByPatient returns the most recently recorded vitals, or ErrNotFound.
	GetLatestByPatient(ctx context.Context, patientID string) (*entities.VitalsSnapshot, error)
}
