package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
)

const batchNumbersCollection = "batch_numbers"

type batchNumberDoc struct {
	ProductID   string    `bson:"productId"`
	UserID      string    `bson:"userId"`
	BatchNumber string    `bson:"batchNumber"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// BatchNumberRegistry claims batch numbers through a unique index on
// (productId, userId, batchNumber)
type BatchNumberRegistry struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

func NewBatchNumberRegistry(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *BatchNumberRegistry {
	return &BatchNumberRegistry{
		collection: db.Collection(batchNumbersCollection),
		observer:   pkgmongo.NewObserver(batchNumbersCollection, m, logger),
	}
}

// EnsureIndexes must run before Reserve is used; uniqueness depends on it
func (r *BatchNumberRegistry) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "productId", Value: 1},
			{Key: "userId", Value: 1},
			{Key: "batchNumber", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("uniq_product_user_batch_number"),
	})
	return err
}

func (r *BatchNumberRegistry) Reserve(ctx context.Context, productID, userID, candidate string) (bool, error) {
	doc := batchNumberDoc{ProductID: productID, UserID: userID, BatchNumber: candidate, CreatedAt: pkgmongo.Now()}
	taken := false
	err := r.observer.Do(ctx, "reserve", func() error {
		_, err := r.collection.InsertOne(ctx, doc)
		if pkgmongo.IsDuplicateKey(err) {
			taken = true
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return !taken, nil
}
