package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pharmatrace/trace-engine/pkg/logging"
)

// Typed is anything that knows its CloudEvents type
type Typed interface {
	EventType() string
}

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// Source returns the source attribute stamped on every event
func (f *EventFactory) Source() string { return f.source }

// CreateEvent builds an envelope and copies the correlation and actor ids found in ctx
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data any) *CloudEvent {
	event := &CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.NewString(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if ctx != nil {
		if v, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
			event.CorrelationID = v
		}
		if v, ok := ctx.Value(logging.ActorIDKey).(string); ok {
			event.ActorID = v
		}
	}
	return event
}

// FromEvent wraps a typed payload, using its own type string
func (f *EventFactory) FromEvent(ctx context.Context, subject string, payload Typed) *CloudEvent {
	return f.CreateEvent(ctx, payload.EventType(), subject, payload)
}
