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

const destructionCollection = "destruction_requests"

type DestructionRepository struct {
	collection *mongo.Collection
	writer     *outboxWriter
	observer   *pkgmongo.Observer
}

func NewDestructionRepository(db *mongo.Database, factory *cloudevents.EventFactory, m *metrics.Metrics, logger *logging.Logger) *DestructionRepository {
	return &DestructionRepository{
		collection: db.Collection(destructionCollection),
		writer:     newOutboxWriter(db, factory),
		observer:   pkgmongo.NewObserver(destructionCollection, m, logger),
	}
}

func (r *DestructionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "batchId", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

// Save inserts a new destruction request and queues its domain events on the outbox
func (r *DestructionRepository) Save(ctx context.Context, req *domain.DestructionRequest) error {
	req.UpdatedAt = pkgmongo.Now()

	return r.observer.Do(ctx, "save", func() error {
		return r.writer.commit(ctx, r.outboxAggregate(req.ID), req, func(sessCtx mongo.SessionContext) error {
			if _, err := r.collection.InsertOne(sessCtx, req); err != nil {
				return fmt.Errorf("failed to save destruction request: %w", err)
			}
			return nil
		})
	})
}

// Update replaces the stored destruction request only while its status is still from.
// The claim is cleared with the write.
func (r *DestructionRepository) Update(ctx context.Context, req *domain.DestructionRequest, from domain.DestructionStatus) error {
	req.UpdatedAt = pkgmongo.Now()
	req.ClaimedUntil = nil

	return r.observer.Do(ctx, "update", func() error {
		return r.writer.commit(ctx, r.outboxAggregate(req.ID), req, func(sessCtx mongo.SessionContext) error {
			result, err := r.collection.ReplaceOne(sessCtx, bson.M{"_id": req.ID, "status": from}, req)
			if err != nil {
				return fmt.Errorf("failed to update destruction request: %w", err)
			}
			if result.MatchedCount == 0 {
				return fmt.Errorf("%w: destruction request %s is no longer %s", domain.ErrInvalidState, req.ID, from)
			}
			return nil
		})
	})
}

// Claim leases the destruction request for ttl if it is in status from and unclaimed
func (r *DestructionRepository) Claim(ctx context.Context, id string, from domain.DestructionStatus, ttl time.Duration) (*domain.DestructionRequest, error) {
	var req domain.DestructionRequest
	err := r.observer.Do(ctx, "claim", func() error {
		return r.collection.FindOneAndUpdate(ctx, claimFilter(id, from), claimUpdate(ttl), returnAfter()).Decode(&req)
	})
	if err == nil {
		return &req, nil
	}
	if !pkgmongo.IsNoDocuments(err) {
		return nil, fmt.Errorf("failed to claim destruction request: %w", err)
	}

	// nothing matched: tell a missing record from a moved or claimed one
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load destruction request: %w", err)
	}
	if current == nil {
		return nil, domain.ErrDestructionNotFound
	}
	return nil, fmt.Errorf("%w: destruction request %s is %s or claimed", domain.ErrInvalidState, id, current.Status)
}

func (r *DestructionRepository) Unclaim(ctx context.Context, id string) error {
	return r.observer.Do(ctx, "unclaim", func() error {
		_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, unclaimUpdate())
		return err
	})
}

func (r *DestructionRepository) outboxAggregate(id string) aggregate {
	return aggregate{id: id, kind: "DestructionRequest", subject: "destruction/" + id, topic: kafka.Topics.LifecycleEvents}
}

func (r *DestructionRepository) FindByID(ctx context.Context, id string) (*domain.DestructionRequest, error) {
	var req domain.DestructionRequest
	err := r.observer.Do(ctx, "find", func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&req)
	})
	if pkgmongo.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *DestructionRepository) FindByBatchID(ctx context.Context, batchID string) ([]*domain.DestructionRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, "find_by_batch", bson.M{"batchId": batchID}, opts)
}

// FindByStatus returns requests in status, oldest first
func (r *DestructionRepository) FindByStatus(ctx context.Context, status domain.DestructionStatus, limit int) ([]*domain.DestructionRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(int64(limit))
	return r.find(ctx, "find_by_status", bson.M{"status": status}, opts)
}

func (r *DestructionRepository) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*domain.DestructionRequest, error) {
	var reqs []*domain.DestructionRequest
	err := r.observer.Do(ctx, op, func() error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &reqs)
	})
	return reqs, err
}
