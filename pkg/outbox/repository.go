package outbox

import (
	"context"
	"time"

	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
)

// Repository persists outbox rows
type Repository interface {
	Save(ctx context.Context, event *OutboxEvent) error
	SaveAll(ctx context.Context, events []*OutboxEvent) error
	// FindUnpublished returns undelivered rows below their retry budget, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string) error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
	DeletePublished(ctx context.Context, olderThan time.Duration) (int64, error)
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}

// EventProducer delivers a CloudEvent to a topic
type EventProducer interface {
	PublishEvent(ctx context.Context, topic string, event *cloudevents.CloudEvent) error
}
