package entities

import "time"

// VitalsSnapshot is a patient's most recent structured vital-sign reading.
// Fields are nil when the reading did not capture them.
type VitalsSnapshot struct {
	ID                     string    `json:"id" db:"id"`
	PatientID              string    `json:"patient_id" db:"patient_id"`
	HeartRate              *int      `json:"heart_rate" db:"heart_rate"`
	BloodPressureSystolic  *int      `json:"blood_pressure_systolic" db:"blood_pressure_systolic"`
	BloodPressureDiastolic *int      `json:"blood_pressure_diastolic" db:"blood_pressure_diastolic"`
	OxygenSaturation       *float64  `json:"oxygen_saturation" db:"oxygen_saturation"`
	RecordedAt             time.Time `json:"recorded_at" db:"recorded_at"`
}
