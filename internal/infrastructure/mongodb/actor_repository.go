package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
)

const actorsCollection = "actors"

type ActorRepository struct {
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

func NewActorRepository(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *ActorRepository {
	return &ActorRepository{
		collection: db.Collection(actorsCollection),
		observer:   pkgmongo.NewObserver(actorsCollection, m, logger),
	}
}

func (r *ActorRepository) FindByID(ctx context.Context, id string) (*domain.Actor, error) {
	var actor domain.Actor
	err := r.observer.Do(ctx, "find", func() error {
		return r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&actor)
	})
	if pkgmongo.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &actor, nil
}

// Save upserts an actor
func (r *ActorRepository) Save(ctx context.Context, actor *domain.Actor) error {
	return r.observer.Do(ctx, "save", func() error {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": actor.ID}, actor, replaceUpsert())
		return err
	})
}
