package mongodb

import (
	"context"
	"fmt"
	"time"

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

const returnsCollection = "return_records"

type ReturnRepository struct {
	collection *mongo.Collection
	writer     *outboxWriter
	observer   *pkgmongo.Observer
}

func NewReturnRepository(db *mongo.Database, factory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) *ReturnRepository {
	return &ReturnRepository{
		collection: db.Collection(returnsCollection),
		writer:     newOutboxWriter(db, factory),
		observer:   pkgmongo.NewObserver(returnsCollection, m, logger),
	}
}

func (r *ReturnRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}}},
		{Keys: bson.D{{Key: "direction", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

// Save inserts a new return record and queues its domain events on the outbox
func (r *ReturnRepository) Save(ctx context.Context, rec *domain.ReturnRecord) error {
	rec.UpdatedAt = pkgmongo.Now()

	return r.observer.Do(ctx, "save", func() error {
		return r.writer.commit(ctx, r.outboxAggregate(rec.ID), rec, func(sessCtx mongo.SessionContext) error {
			if _, err := r.collection.InsertOne(sessCtx, rec); err != nil {
				return fmt.Errorf("failed to save return record: %w", err)
			}
			return nil
		})
	})
}

// Update replaces the stored return record only while its status is still from.
// The claim is cleared with the write.
func (r *ReturnRepository) Update(ctx context.Context, rec *domain.ReturnRecord, from domain.ReturnStatus) error {
	rec.UpdatedAt = pkgmongo.Now()
	rec.ClaimedUntil = nil

	return r.observer.Do(ctx, "update", func() error {
		return r.writer.commit(ctx, r.outboxAggregate(rec.ID), rec, func(sessCtx mongo.SessionContext) error {
			result, err := r.collection.ReplaceOne(sessCtx, bson.M{"_id": rec.ID, "status": from}, rec)
			if err != nil {
				return fmt.Errorf("failed to update return record: %w", err)
			}
			if result.MatchedCount == 0 {
				return fmt.Errorf("%w: return record %s is no longer %s", domain.ErrInvalidState, rec.ID, from)
			}
			return nil
		})
	})
}

// Claim leases the return record for ttl if it is in status from and unclaimed
func (r *ReturnRepository) Claim(ctx context.Context, id string, from domain.ReturnStatus, ttl time.Duration) (*domain.ReturnRecord, error) {
	var rec domain.ReturnRecord
	err := r.observer.Do(ctx, "claim", func() error {
		return r.collection.FindOneAndUpdate(ctx, claimFilter(id, from), claimUpdate(ttl), returnAfter()).Decode(&rec)
	})
	if err == nil {
		return &rec, nil
	}
	if !pkgmongo.IsNoDocuments(err) {
		return nil, fmt.Errorf("failed to claim return record: %w", err)
	}

	// nothing matched: tell a missing record from a moved or claimed one
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load return record: %w", err)
	}
	if current == nil {
		return nil, domain.ErrReturnNotFound
	}
	return nil, fmt.Errorf("%w: return record %s is %s or claimed", domain.ErrInvalidState, id, current.Status)
}

func (r *ReturnRepository) Unclaim(ctx context.Context, id string) error {
	return r.observer.Do(ctx, "unclaim", func() error {
		_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, unclaimUpdate())
		return err
	})
}

func (r *ReturnRepository) outboxAggregate(id string) aggregate {
	return aggregate{id: id, kind: "ReturnRecord", subject: "return/" + id, topic: kafka.Topics.LifecycleEvents}
}

func (r *ReturnRepository) FindByID(ctx context.Context, id string) (*domain.ReturnRecord, error) {
	var rec domain.ReturnRecord
	err := r.observer.Do(ctx, "find", func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	})
	if pkgmongo.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *ReturnRepository) FindByBatchID(ctx context.Context, batchID string) ([]*domain.ReturnRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, "find_by_batch", bson.M{"batchId": batchID}, opts)
}

func (r *ReturnRepository) FindPending(ctx context.Context, direction domain.ReturnDirection, limit int) ([]*domain.ReturnRecord, error) {
	filter := bson.M{"direction": direction, "status": domain.ReturnPending}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, "find_pending", filter, opts)
}

func (r *ReturnRepository) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*domain.ReturnRecord, error) {
	var recs []*domain.ReturnRecord
	err := r.observer.Do(ctx, op, func() error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &recs)
	})
	return recs, err
}
