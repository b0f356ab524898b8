package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
	"github.com/pharmatrace/trace-engine/pkg/outbox"
	outboxMongo "github.com/pharmatrace/trace-engine/pkg/outbox/mongodb"
)

// eventSource is an aggregate carrying pending domain events
type eventSource interface {
	GetDomainEvents() []domain.DomainEvent
	ClearDomainEvents()
}

// outboxWriter commits an aggregate write and its outbox rows in one transaction
type outboxWriter struct {
	client  *mongo.Client
	outbox  *outboxMongo.OutboxRepository
	factory *cloudevents.EventFactory
}

func newOutboxWriter(db *mongo.Database, factory *cloudevents.EventFactory) *outboxWriter {
	return &outboxWriter{
		client:  db.Client(),
		outbox:  outboxMongo.NewOutboxRepository(db),
		factory: factory,
	}
}

// aggregate identifies the outbox rows of one write
type aggregate struct {
	id      string
	kind    string
	subject string
	topic   string
}

func (w *outboxWriter) commit(ctx context.Context, agg aggregate, src eventSource, write func(sessCtx mongo.SessionContext) error) error {
	err := pkgmongo.WithTransaction(ctx, w.client, func(sessCtx mongo.SessionContext) error {
		if err := write(sessCtx); err != nil {
			return err
		}

		pending := src.GetDomainEvents()
		if len(pending) == 0 {
			return nil
		}
		rows := make([]*outbox.OutboxEvent, 0, len(pending))
		for _, event := range pending {
			ce := w.factory.FromEvent(sessCtx, agg.subject, event)
			row, err := outbox.NewOutboxEvent(agg.id, agg.kind, agg.topic, ce)
			if err != nil {
				return fmt.Errorf("failed to create outbox event: %w", err)
			}
			rows = append(rows, row)
		}
		return w.outbox.SaveAll(sessCtx, rows)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	src.ClearDomainEvents()
	return nil
}

// EnsureIndexes creates the outbox indexes shared by every repository
func (w *outboxWriter) EnsureIndexes(ctx context.Context) error {
	return w.outbox.EnsureIndexes(ctx)
}
