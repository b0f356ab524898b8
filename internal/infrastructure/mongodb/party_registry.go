package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	pkgmongo "github.com/pharmatrace/trace-engine/pkg/mongodb"
)

// Party is a trading partner document in the suppliers or logistics_providers collection
type Party struct {
	ID            string `bson:"_id"`
	Name          string `bson:"name"`
	CompanyPrefix string `bson:"companyPrefix"`
	GLN           string `bson:"gln,omitempty"`
	Country       string `bson:"country,omitempty"`
}

// PartyRegistry resolves company prefixes within one kind of trading partner
type PartyRegistry struct {
	name       string
	partyType  domain.PartyType
	collection *mongo.Collection
	observer   *pkgmongo.Observer
}

func NewSupplierRegistry(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *PartyRegistry {
	return newPartyRegistry(db, "suppliers", domain.PartyTypeSupplier, m, logger)
}

func NewLogisticsProviderRegistry(db *mongo.Database, m *metrics.Metrics, logger *logging.Logger) *PartyRegistry {
	return newPartyRegistry(db, "logistics_providers", domain.PartyTypeLogisticsProvider, m, logger)
}

func newPartyRegistry(db *mongo.Database, collection string, t domain.PartyType, m *metrics.Metrics, logger *logging.Logger) *PartyRegistry {
	return &PartyRegistry{
		name:       collection,
		partyType:  t,
		collection: db.Collection(collection),
		observer:   pkgmongo.NewObserver(collection, m, logger),
	}
}

func (r *PartyRegistry) Name() string { return r.name }

func (r *PartyRegistry) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "companyPrefix", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	return err
}

func (r *PartyRegistry) FindByPrefix(ctx context.Context, prefix string) (*domain.CompanyInfo, error) {
	var party Party
	err := r.observer.Do(ctx, "find_by_prefix", func() error {
		return r.collection.FindOne(ctx, bson.M{"companyPrefix": prefix}).Decode(&party)
	})
	if pkgmongo.IsNoDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &domain.CompanyInfo{
		Prefix:   party.CompanyPrefix,
		EntityID: party.ID,
		Name:     party.Name,
		Type:     r.partyType,
		GLN:      party.GLN,
		Country:  party.Country,
	}, nil
}

// Save upserts a party document
func (r *PartyRegistry) Save(ctx context.Context, party *Party) error {
	return r.observer.Do(ctx, "save", func() error {
		_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": party.ID}, party, replaceUpsert())
		return err
	})
}

func replaceUpsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}
