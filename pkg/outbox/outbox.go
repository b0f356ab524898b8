package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
)

// DefaultMaxRetries bounds delivery attempts of one outbox row
const DefaultMaxRetries = 10

// OutboxEvent is a CloudEvent waiting in the store for delivery to Kafka.
// It is written in the same transaction as the state change it describes.
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEvent serializes a CloudEvent into an outbox row
func NewOutboxEvent(aggregateID, aggregateType, topic string, ce *cloudevents.CloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(ce)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.NewString(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     ce.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry reports whether delivery should be attempted again
func (e *OutboxEvent) ShouldRetry() bool {
	return !e.IsPublished() && e.RetryCount < e.MaxRetries
}

// ToCloudEvent decodes the stored envelope
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.CloudEvent, error) {
	var ce cloudevents.CloudEvent
	if err := json.Unmarshal(e.Payload, &ce); err != nil {
		return nil, err
	}
	return &ce, nil
}
