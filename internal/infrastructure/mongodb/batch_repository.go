package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
)

const batchesCollection = "batches"

// BatchRepository stores batches. Every quantity change is a single UpdateOne
// whose filter carries the stock condition.
type BatchRepository struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

func NewBatchRepository(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *BatchRepository {
	return &BatchRepository{
		collection: db.Collection(batchesCollection),
		observer:   pkgmongo.NewObserver(batchesCollection, m, logger),
	}
}

func (r *BatchRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "batchNumber", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "gtin", Value: 1}}},
	})
	return err
}

// Create inserts a new batch
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	return r.observer.Do(ctx, "insert", func() error {
		_, err := r.collection.InsertOne(ctx, batch)
		return err
	})
}

func (r *BatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	var batch domain.Batch
	err := r.observer.Do(ctx, "find", func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&batch)
	})
	if pkgmongo.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *BatchRepository) TryReserve(ctx context.Context, id string, n int64) error {
	return r.reserve(ctx, id, n, bson.M{"qty": -n})
}

func (r *BatchRepository) TryReserveForShipment(ctx context.Context, id string, n int64) error {
	return r.reserve(ctx, id, n, bson.M{"qty": -n, "sentQty": n})
}

func (r *BatchRepository) reserve(ctx context.Context, id string, n int64, inc bson.M) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}
	filter := bson.M{"_id": id, "qty": bson.M{"$gte": n}}
	update := bson.M{"$inc": inc, "$set": bson.M{"updatedAt": pkgmongo.Now()}}

	var result *mongo.UpdateResult
	err := r.observer.Do(ctx, "reserve", func() error {
		var err error
		result, err = r.collection.UpdateOne(ctx, filter, update)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reserve batch quantity: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	// nothing matched: tell a missing batch from short stock
	batch, err := r.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load batch: %w", err)
	}
	if batch == nil {
		return domain.ErrBatchNotFound
	}
	return domain.ErrInsufficientQuantity
}

func (r *BatchRepository) Release(ctx context.Context, id string, n int64) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}
	update := bson.M{"$inc": bson.M{"qty": n}, "$set": bson.M{"updatedAt": pkgmongo.Now()}}

	var result *mongo.UpdateResult
	err := r.observer.Do(ctx, "release", func() error {
		var err error
		result, err = r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to release batch quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}
