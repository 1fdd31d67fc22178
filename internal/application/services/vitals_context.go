package services

import (
	"context"
	"errors"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/repositories"
	"github.com/careconnect/backend/internal/infrastructure/observability"
)

// VitalsContextFetcher supplies optional vitals for scoring. It never fails:
// missing readings and lookup errors both yield nil.
type VitalsContextFetcher struct {
	repo repositories.VitalsRepository
}

// NewVitalsContextFetcher creates a fetcher. A nil repo disables vitals context.
func NewVitalsContextFetcher(repo repositories.VitalsRepository) *VitalsContextFetcher {
	return &VitalsContextFetcher{repo: repo}
}

// Latest returns the newest vitals for patientID, or nil.
func (f *VitalsContextFetcher) Latest(ctx context.Context, patientID string) *entities.VitalsSnapshot {
	if f == nil || f.repo == nil {
		return nil
	}

	vitals, err := f.repo.GetLatestByPatient(ctx, patientID)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			observability.PatientLogger(ctx, patientID).Warn().Err(err).Msg("vitals lookup failed, scoring without vitals")
		}
		return nil
	}
	return vitals
}
