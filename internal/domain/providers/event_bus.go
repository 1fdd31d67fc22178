package providers

import (
	"context"

	"github.com/careconnect/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.InsightEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.InsightEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelInsightUpdates carries every stored insight
	EventChannelInsightUpdates = "insights:updates"

	// EventChannelPatientPrefix is the prefix for patient-specific channels
	EventChannelPatientPrefix = "insights:patient:"
)

// GetPatientChannel returns the channel name for a specific patient
func GetPatientChannel(patientID string) string {
	return EventChannelPatientPrefix + patientID
}
