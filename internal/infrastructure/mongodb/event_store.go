package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
	"github.com/pharmatrace/trace-engine/pkg/kafka"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
	"github.com/pharmatrace/trace-engine/pkg/outbox"
	outboxMongo "github.com/pharmatrace/trace-engine/pkg/outbox/mongodb"
)

const traceEventsCollection = "trace_events"

// EventStore appends EPCIS events. Each insert and its outbox row commit together.
type EventStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	outbox     *outboxMongo.OutboxRepository
	factory    *cloudevents.EventFactory
	observer   *pkgmongo.Observer
}

func NewEventStore(db *mongo.Database, factory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) *EventStore {
	return &EventStore{
		client:     db.Client(),
		collection: db.Collection(traceEventsCollection),
		outbox:     outboxMongo.NewOutboxRepository(db),
		factory:    factory,
		observer:   pkgmongo.NewObserver(traceEventsCollection, m, logger),
	}
}

func (s *EventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "epcList", Value: 1}, {Key: "eventTime", Value: -1}}},
		{Keys: bson.D{{Key: "childEpcs", Value: 1}, {Key: "eventTime", Value: -1}}},
		{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "eventTime", Value: -1}}},
		{Keys: bson.D{{Key: "bizStep", Value: 1}, {Key: "eventTime", Value: -1}}},
	})
	return err
}

func (s *EventStore) Append(ctx context.Context, event *domain.TraceEvent) (string, error) {
	ce := s.factory.CreateEvent(ctx, event.CloudEventType(), "epcis/"+event.ID, event)
	row, err := outbox.NewOutboxEvent(event.ID, string(event.Type), kafka.Topics.EPCISEvents, ce)
	if err != nil {
		return "", fmt.Errorf("failed to create outbox event: %w", err)
	}

	err = s.observer.Do(ctx, "append", func() error {
		return pkgmongo.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) error {
			if _, err := s.collection.InsertOne(sessCtx, event); err != nil {
				return fmt.Errorf("failed to insert trace event: %w", err)
			}
			return s.outbox.Save(sessCtx, row)
		})
	})
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

// FindByIdentifier returns the events referencing epc as parent, child or
// list member, newest first
func (s *EventStore) FindByIdentifier(ctx context.Context, epc string, limit int) ([]*domain.TraceEvent, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"parentId": epc},
		bson.M{"childEpcs": epc},
		bson.M{"epcList": epc},
	}}
	opts := options.Find().SetSort(pkgmongo.SortDescending("eventTime")).SetLimit(int64(limit))

	var events []*domain.TraceEvent
	err := s.observer.Do(ctx, "find_by_identifier", func() error {
		cursor, err := s.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &events)
	})
	return events, err
}
