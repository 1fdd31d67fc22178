package entities

import (
	"strings"
	"time"
)

// PatientSummary is the minimal patient identity shown next to insights.
type PatientSummary struct {
	ID                  string     `json:"id"`
	FullName            string     `json:"fullName"`
	Gender              *string    `json:"gender"`
	DateOfBirth         *time.Time `json:"dateOfBirth"`
	MedicalRecordNumber *string    `json:"medicalRecordNumber"`
}

// FullNameOf joins first and last names, dropping empty parts.
func FullNameOf(firstName, lastName string) string {
	return strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
}
