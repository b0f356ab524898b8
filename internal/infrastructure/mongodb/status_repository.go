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
)

const statusCollection = "status_records"

// StatusRepository is the append-only status history
type StatusRepository struct {
	collection *mongo.Collection
	writer     *outboxWriter
	observer   *pkgmongo.Observer
}

func NewStatusRepository(db *mongo.Database, factory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) *StatusRepository {
	return &StatusRepository{
		collection: db.Collection(statusCollection),
		writer:     newOutboxWriter(db, factory),
		observer:   pkgmongo.NewObserver(statusCollection, m, logger),
	}
}

func (r *StatusRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "batchId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "sgtin", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return err
	}
	return r.writer.EnsureIndexes(ctx)
}

func (r *StatusRepository) Append(ctx context.Context, rec *domain.StatusRecord) error {
	agg := aggregate{id: rec.ID, kind: "StatusRecord", subject: "status/" + rec.ID, topic: kafka.Topics.LifecycleEvents}
	return r.observer.Do(ctx, "append", func() error {
		return r.writer.commit(ctx, agg, rec, func(sessCtx mongo.SessionContext) error {
			if _, err := r.collection.InsertOne(sessCtx, rec); err != nil {
				return fmt.Errorf("failed to insert status record: %w", err)
			}
			return nil
		})
	})
}

// keyFilter ORs every non-empty key field
func keyFilter(key domain.StatusKey) bson.M {
	var or bson.A
	if key.ProductID != "" {
		or = append(or, bson.M{"productId": key.ProductID})
	}
	if key.BatchID != "" {
		or = append(or, bson.M{"batchId": key.BatchID})
	}
	if key.SGTIN != "" {
		or = append(or, bson.M{"sgtin": key.SGTIN})
	}
	return bson.M{"$or": or}
}

func (r *StatusRepository) FindLatest(ctx context.Context, key domain.StatusKey) (*domain.StatusRecord, error) {
	if key.IsEmpty() {
		return nil, domain.ErrMissingStatusKey
	}
	opts := options.FindOne().SetSort(pkgmongo.SortDescending("createdAt"))

	var rec domain.StatusRecord
	err := r.observer.Do(ctx, "find_latest", func() error {
		return r.collection.FindOne(ctx, keyFilter(key), opts).Decode(&rec)
	})
	if pkgmongo.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *StatusRepository) FindHistory(ctx context.Context, key domain.StatusKey, limit int) ([]*domain.StatusRecord, error) {
	if key.IsEmpty() {
		return nil, domain.ErrMissingStatusKey
	}
	opts := options.Find().SetSort(pkgmongo.SortDescending("createdAt")).SetLimit(int64(limit))

	var records []*domain.StatusRecord
	err := r.observer.Do(ctx, "find_history", func() error {
		cursor, err := r.collection.Find(ctx, keyFilter(key), opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &records)
	})
	return records, err
}
