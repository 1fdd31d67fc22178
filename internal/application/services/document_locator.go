package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/careconnect/backend/internal/domain/entities"
	"github.com/careconnect/backend/internal/domain/providers"
)

// PatientIDPlaceholder is substituted into the storage path template.
const PatientIDPlaceholder = "{patient_id}"

const defaultListLimit = 100

// ErrDocumentNotFound means the patient's namespace holds no PDF.
var ErrDocumentNotFound = errors.New("no PDF document found for patient")

// DocumentLocator finds the newest PDF in a patient's storage namespace.
type DocumentLocator struct {
	storage      providers.ObjectStorage
	pathTemplate string
	listLimit    int
}

// NewDocumentLocator creates a locator over storage.
func NewDocumentLocator(storage providers.ObjectStorage, pathTemplate string, listLimit int) *DocumentLocator {
	if pathTemplate == "" {
		pathTemplate = PatientIDPlaceholder
	}
	if listLimit <= 0 {
		listLimit = defaultListLimit
	}
	return &DocumentLocator{storage: storage, pathTemplate: pathTemplate, listLimit: listLimit}
}

// PatientPrefix renders the namespace for patientID without surrounding slashes.
func (l *DocumentLocator) PatientPrefix(patientID string) string {
	return strings.Trim(strings.ReplaceAll(l.pathTemplate, PatientIDPlaceholder, patientID), "/")
}

// LatestPDF returns the most recently created PDF. It returns
// ErrDocumentNotFound for an empty or PDF-less namespace and a wrapped
// storage error when the listing itself fails.
func (l *DocumentLocator) LatestPDF(ctx context.Context, patientID string) (*entities.ClinicalDocument, error) {
	prefix := l.PatientPrefix(patientID)

	objects, err := l.storage.List(ctx, prefix, providers.ListOptions{Limit: l.listLimit})
	if err != nil {
		return nil, fmt.Errorf("list patient documents: %w", err)
	}

	var pdfs []providers.StorageObject
	for _, obj := range objects {
		if strings.HasSuffix(strings.ToLower(obj.Name), ".pdf") {
			pdfs = append(pdfs, obj)
		}
	}
	if len(pdfs) == 0 {
		return nil, ErrDocumentNotFound
	}

	// RFC 3339 timestamps order lexically; a missing timestamp sorts last.
	sort.SliceStable(pdfs, func(i, j int) bool {
		return pdfs[i].CreatedAt > pdfs[j].CreatedAt
	})

	latest := pdfs[0]
	path := latest.Name
	if prefix != "" {
		path = prefix + "/" + latest.Name
	}
	return &entities.ClinicalDocument{
		StoragePath: path,
		Name:        latest.Name,
		CreatedAt:   latest.CreatedAt,
	}, nil
}
