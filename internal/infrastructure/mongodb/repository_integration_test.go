package mongodb

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
	"github.com/pharmatrace/trace-engine/pkg/kafka"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	outboxMongo "github.com/pharmatrace/trace-engine/pkg/outbox/mongodb"
	pkgtesting "github.com/pharmatrace/trace-engine/pkg/testing"
)

type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx     context.Context
	db      *mongo.Database
	factory *cloudevents.EventFactory
	outbox  *outboxMongo.OutboxRepository
}

func TestRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	_, s.db = pkgtesting.SetupMongoDB(s.T())
	s.ctx = context.Background()
	s.factory = cloudevents.NewEventFactory(cloudevents.SourceTraceEngine)
	s.outbox = outboxMongo.NewOutboxRepository(s.db)
	s.Require().NoError(s.outbox.EnsureIndexes(s.ctx))
}

func (s *RepositoryIntegrationSuite) TearDownTest() {
	names, err := s.db.ListCollectionNames(s.ctx, bson.M{})
	s.Require().NoError(err)
	for _, name := range names {
		_, _ = s.db.Collection(name).DeleteMany(s.ctx, bson.M{})
	}
}

func (s *RepositoryIntegrationSuite) newBatch(id string, qty int64) *BatchRepository {
	repo := NewBatchRepository(s.db, nil, logging.NewNop())
	s.Require().NoError(repo.Create(s.ctx, domain.NewBatch(id, "P-1", "LOT-"+id, qty)))
	return repo
}

func (s *RepositoryIntegrationSuite) TestBatch_TryReserveIsAtomic() {
	repo := s.newBatch("B-1", 100)

	var wg sync.WaitGroup
	var won, short atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := repo.TryReserve(s.ctx, "B-1", 3); err {
			case nil:
				won.Add(1)
			case domain.ErrInsufficientQuantity:
				short.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int64(33), won.Load())
	s.Equal(int64(17), short.Load())

	batch, err := repo.FindByID(s.ctx, "B-1")
	s.Require().NoError(err)
	s.Equal(int64(1), batch.Qty)
}

func (s *RepositoryIntegrationSuite) TestBatch_Errors() {
	repo := s.newBatch("B-2", 10)

	s.ErrorIs(repo.TryReserve(s.ctx, "B-2", 11), domain.ErrInsufficientQuantity)
	s.ErrorIs(repo.TryReserve(s.ctx, "missing", 1), domain.ErrBatchNotFound)
	s.ErrorIs(repo.Release(s.ctx, "missing", 1), domain.ErrBatchNotFound)
	s.ErrorIs(repo.TryReserve(s.ctx, "B-2", 0), domain.ErrInvalidQuantity)

	missing, err := repo.FindByID(s.ctx, "missing")
	s.NoError(err)
	s.Nil(missing)
}

func (s *RepositoryIntegrationSuite) TestBatch_ShipmentAndRelease() {
	repo := s.newBatch("B-3", 200)

	s.Require().NoError(repo.TryReserveForShipment(s.ctx, "B-3", 50))
	s.Require().NoError(repo.Release(s.ctx, "B-3", 50))

	batch, err := repo.FindByID(s.ctx, "B-3")
	s.Require().NoError(err)
	s.Equal(int64(200), batch.Qty)
	s.Equal(int64(50), batch.SentQty)
}

func (s *RepositoryIntegrationSuite) TestStatus_LatestMatchesAnyKey() {
	repo := NewStatusRepository(s.db, s.factory, nil, logging.NewNop())
	s.Require().NoError(repo.EnsureIndexes(s.ctx))

	first, err := domain.NewStatusRecord(domain.StatusKey{BatchID: "B-1"}, domain.StatusActive, "", "user-1", "", "", "")
	s.Require().NoError(err)
	s.Require().NoError(repo.Append(s.ctx, first))
	s.Empty(first.GetDomainEvents())

	time.Sleep(5 * time.Millisecond)
	second, err := domain.NewStatusRecord(domain.StatusKey{SGTIN: "S-1"}, domain.StatusRecalled, "", "user-1", "", "", "")
	s.Require().NoError(err)
	s.Require().NoError(repo.Append(s.ctx, second))

	latest, err := repo.FindLatest(s.ctx, domain.StatusKey{BatchID: "B-1", SGTIN: "S-1"})
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)

	none, err := repo.FindLatest(s.ctx, domain.StatusKey{ProductID: "nothing"})
	s.NoError(err)
	s.Nil(none)

	history, err := repo.FindHistory(s.ctx, domain.StatusKey{BatchID: "B-1", SGTIN: "S-1"}, 10)
	s.Require().NoError(err)
	s.Len(history, 2)

	rows, err := s.outbox.FindByAggregateID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(kafka.Topics.LifecycleEvents, rows[0].Topic)
	s.Equal(cloudevents.StatusChanged, rows[0].EventType)
}

func (s *RepositoryIntegrationSuite) TestDestruction_SaveWritesOutbox() {
	repo := NewDestructionRepository(s.db, s.factory, nil, logging.NewNop())
	batch := domain.NewBatch("B-4", "P-1", "LOT-4", 500)

	req, err := domain.NewDestructionRequest(batch, 150, domain.DestructionReasonRecalled, domain.DestructionMethodIncineration, "user-1", 0)
	s.Require().NoError(err)
	s.Require().NoError(repo.Save(s.ctx, req))
	s.Require().NoError(req.Approve("manager-1"))
	s.Require().NoError(repo.Update(s.ctx, req, domain.DestructionPendingApproval))

	got, err := repo.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(domain.DestructionApproved, got.Status)
	s.Equal("manager-1", got.ApprovedBy)

	pending, err := repo.FindByStatus(s.ctx, domain.DestructionApproved, 10)
	s.Require().NoError(err)
	s.Len(pending, 1)

	rows, err := s.outbox.FindByAggregateID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.ElementsMatch([]string{cloudevents.DestructionInitiated, cloudevents.DestructionApproved},
		[]string{rows[0].EventType, rows[1].EventType})
}

func (s *RepositoryIntegrationSuite) TestDestruction_ClaimAndConditionalUpdate() {
	repo := NewDestructionRepository(s.db, s.factory, nil, logging.NewNop())
	batch := domain.NewBatch("B-6", "P-1", "LOT-6", 100)

	req, err := domain.NewDestructionRequest(batch, 40, domain.DestructionReasonExpired, "", "user-1", 0)
	s.Require().NoError(err)
	s.Require().NoError(repo.Save(s.ctx, req))
	s.Error(repo.Save(s.ctx, req), "save only inserts")

	claimed, err := repo.Claim(s.ctx, req.ID, domain.DestructionApproved, time.Minute)
	s.Require().NoError(err)
	s.Require().NotNil(claimed.ClaimedUntil)

	_, err = repo.Claim(s.ctx, req.ID, domain.DestructionApproved, time.Minute)
	s.ErrorIs(err, domain.ErrInvalidState, "a live claim blocks a second caller")
	_, err = repo.Claim(s.ctx, "missing", domain.DestructionApproved, time.Minute)
	s.ErrorIs(err, domain.ErrDestructionNotFound)

	s.Require().NoError(claimed.Complete("user-1", domain.DestructionEvidence{CertificateNumber: "CERT-1"}))
	s.Require().NoError(repo.Update(s.ctx, claimed, domain.DestructionApproved))

	got, err := repo.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(domain.DestructionCompleted, got.Status)
	s.Nil(got.ClaimedUntil)

	// a writer holding the old APPROVED copy loses
	stale := *req
	s.Require().NoError(stale.Complete("user-2", domain.DestructionEvidence{}))
	s.ErrorIs(repo.Update(s.ctx, &stale, domain.DestructionApproved), domain.ErrInvalidState)

	_, err = repo.Claim(s.ctx, req.ID, domain.DestructionApproved, time.Minute)
	s.ErrorIs(err, domain.ErrInvalidState)
}

func (s *RepositoryIntegrationSuite) TestDestruction_ExpiredClaimCanBeRetaken() {
	repo := NewDestructionRepository(s.db, s.factory, nil, logging.NewNop())
	batch := domain.NewBatch("B-7", "P-1", "LOT-7", 100)

	req, err := domain.NewDestructionRequest(batch, 10, domain.DestructionReasonDamaged, "", "user-1", 0)
	s.Require().NoError(err)
	s.Require().NoError(repo.Save(s.ctx, req))

	_, err = repo.Claim(s.ctx, req.ID, domain.DestructionApproved, -time.Second)
	s.Require().NoError(err)
	_, err = repo.Claim(s.ctx, req.ID, domain.DestructionApproved, time.Minute)
	s.Require().NoError(err, "an expired claim is free")

	s.Require().NoError(repo.Unclaim(s.ctx, req.ID))
	_, err = repo.Claim(s.ctx, req.ID, domain.DestructionApproved, time.Minute)
	s.NoError(err)
}

func (s *RepositoryIntegrationSuite) TestReturns_ConcurrentClaimHasOneWinner() {
	repo := NewReturnRepository(s.db, s.factory, nil, logging.NewNop())
	batch := domain.NewBatch("B-8", "P-1", "LOT-8", 100)

	rec, err := domain.NewReturnReceipt(batch, 5, domain.QualityDamaged, "", "user-1", "")
	s.Require().NoError(err)
	s.Require().NoError(repo.Save(s.ctx, rec))

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Claim(s.ctx, rec.ID, domain.ReturnPending, time.Minute); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), won.Load())

	s.Require().NoError(rec.Process("qa-1", domain.ReturnProcessed, ""))
	s.Require().NoError(repo.Update(s.ctx, rec, domain.ReturnPending))
	s.ErrorIs(repo.Update(s.ctx, rec, domain.ReturnPending), domain.ErrInvalidState)

	got, err := repo.FindByID(s.ctx, rec.ID)
	s.Require().NoError(err)
	s.Equal(domain.ReturnProcessed, got.Status)
	s.True(got.StockApplied)
}

func (s *RepositoryIntegrationSuite) TestReturns_FindPending() {
	repo := NewReturnRepository(s.db, s.factory, nil, logging.NewNop())
	batch := domain.NewBatch("B-5", "P-1", "LOT-5", 100)

	pending, err := domain.NewReturnReceipt(batch, 5, domain.QualityDamaged, "", "user-1", "")
	s.Require().NoError(err)
	processed, err := domain.NewReturnReceipt(batch, 5, domain.QualityAcceptable, "", "user-1", "")
	s.Require().NoError(err)
	s.Require().NoError(repo.Save(s.ctx, pending))
	s.Require().NoError(repo.Save(s.ctx, processed))

	list, err := repo.FindPending(s.ctx, domain.ReturnReceiving, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(pending.ID, list[0].ID)

	byBatch, err := repo.FindByBatchID(s.ctx, "B-5")
	s.Require().NoError(err)
	s.Len(byBatch, 2)
}

func (s *RepositoryIntegrationSuite) TestPartyRegistry_FindByPrefix() {
	suppliers := NewSupplierRegistry(s.db, nil, logging.NewNop())
	s.Require().NoError(suppliers.EnsureIndexes(s.ctx))
	s.Require().NoError(suppliers.Save(s.ctx, &Party{ID: "sup-1", Name: "Acme Pharma", CompanyPrefix: "0614141", GLN: "0614141000012"}))

	info, err := suppliers.FindByPrefix(s.ctx, "0614141")
	s.Require().NoError(err)
	s.Equal("sup-1", info.EntityID)
	s.Equal(domain.PartyTypeSupplier, info.Type)

	logistics := NewLogisticsProviderRegistry(s.db, nil, logging.NewNop())
	none, err := logistics.FindByPrefix(s.ctx, "0614141")
	s.NoError(err)
	s.Nil(none)
	s.Equal("logistics_providers", logistics.Name())
}

func (s *RepositoryIntegrationSuite) TestBatchNumberRegistry_Reserve() {
	registry := NewBatchNumberRegistry(s.db, nil, logging.NewNop())
	s.Require().NoError(registry.EnsureIndexes(s.ctx))

	ok, err := registry.Reserve(s.ctx, "P-1", "user-1", "LOT-20260101-ABC123")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = registry.Reserve(s.ctx, "P-1", "user-1", "LOT-20260101-ABC123")
	s.Require().NoError(err)
	s.False(ok)

	ok, err = registry.Reserve(s.ctx, "P-2", "user-1", "LOT-20260101-ABC123")
	s.Require().NoError(err)
	s.True(ok, "uniqueness is scoped to the product and user")
}

func (s *RepositoryIntegrationSuite) TestEventStore_Append() {
	store := NewEventStore(s.db, s.factory, nil, logging.NewNop())
	s.Require().NoError(store.EnsureIndexes(s.ctx))

	event := &domain.TraceEvent{
		ID:        "evt-1",
		Type:      domain.EventTypeAggregation,
		EventTime: time.Now().UTC(),
		ParentID:  "urn:epc:id:sscc:0614141.1234567890",
		ChildEPCs: []string{"urn:epc:id:sgtin:0614141.812345.1"},
		Action:    domain.ActionAdd,
		BizStep:   domain.BizStepPacking,
	}
	id, err := store.Append(s.ctx, event)
	s.Require().NoError(err)
	s.Equal("evt-1", id)

	found, err := store.FindByIdentifier(s.ctx, "urn:epc:id:sgtin:0614141.812345.1", 10)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(event.ParentID, found[0].ParentID)

	rows, err := s.outbox.FindByAggregateID(s.ctx, "evt-1")
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(kafka.Topics.EPCISEvents, rows[0].Topic)
	s.Equal(cloudevents.EPCISAggregationRecorded, rows[0].EventType)

	_, err = store.Append(s.ctx, event)
	s.Error(err, "event ids are unique")
}
