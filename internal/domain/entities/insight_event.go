package entities

import (
	"time"

	"github.com/google/uuid"
)

// InsightEventType represents the type of insight event
type InsightEventType string

const (
	InsightEventTypeGenerated InsightEventType = "insight.generated"
)

// InsightEvent announces a newly stored insight
type InsightEvent struct {
	ID           string           `json:"id"`
	EventType    InsightEventType `json:"event_type"`
	PatientID    string           `json:"patient_id"`
	InsightID    string           `json:"insight_id"`
	RiskScore    int              `json:"risk_score"`
	RiskLevel    RiskLevel        `json:"risk_level"`
	ModelVersion string           `json:"model_version"`
	Timestamp    time.Time        `json:"timestamp"`
}

// NewInsightGeneratedEvent creates an event for a stored insight
func NewInsightGeneratedEvent(insight *Insight) *InsightEvent {
	return &InsightEvent{
		ID:           uuid.NewString(),
		EventType:    InsightEventTypeGenerated,
		PatientID:    insight.PatientID,
		InsightID:    insight.ID,
		RiskScore:    insight.RiskScore,
		RiskLevel:    insight.Level(),
		ModelVersion: insight.ModelVersion,
		Timestamp:    time.Now().UTC(),
	}
}
