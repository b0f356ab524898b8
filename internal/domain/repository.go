package domain

import (
	"context"
	"time"
)

// BatchRepository reads batches and moves their stock. Every quantity change
// is a single conditional update; callers never read-check-then-write.
type BatchRepository interface {
	FindByID(ctx context.Context, id string) (*Batch, error)
	// TryReserve removes n units if qty >= n. Returns ErrInsufficientQuantity
	// when the stock does not cover n and ErrBatchNotFound when the batch is absent.
	TryReserve(ctx context.Context, id string, n int64) error
	// TryReserveForShipment is TryReserve that also adds n to sentQty.
	TryReserveForShipment(ctx context.Context, id string, n int64) error
	// Release adds n units back to qty.
	Release(ctx context.Context, id string, n int64) error
}

// ActorRepository resolves the users and organizations acting on the engine
type ActorRepository interface {
	FindByID(ctx context.Context, id string) (*Actor, error)
}

// PartyRegistry resolves a GS1 company prefix within one kind of trading partner
type PartyRegistry interface {
	Name() string
	FindByPrefix(ctx context.Context, prefix string) (*CompanyInfo, error)
}

// EventStore appends immutable traceability events
type EventStore interface {
	Append(ctx context.Context, event *TraceEvent) (string, error)
}

// StatusRepository keeps the append-only status history
type StatusRepository interface {
	Append(ctx context.Context, record *StatusRecord) error
	// FindLatest returns the newest record matching any non-empty key field, or nil.
	FindLatest(ctx context.Context, key StatusKey) (*StatusRecord, error)
	FindHistory(ctx context.Context, key StatusKey, limit int) ([]*StatusRecord, error)
}

// DestructionRepository persists destruction requests. Save inserts a new
// request; every later transition goes through Update, which only applies
// while the stored status still equals from.
type DestructionRepository interface {
	Save(ctx context.Context, req *DestructionRequest) error
	// Update replaces a stored request whose status is from and clears its
	// claim. Returns ErrInvalidState when the status moved on.
	Update(ctx context.Context, req *DestructionRequest, from DestructionStatus) error
	// Claim leases a request in status from for ttl. Returns ErrInvalidState
	// when the status differs or another claim is live, and
	// ErrDestructionNotFound when the request is absent.
	Claim(ctx context.Context, id string, from DestructionStatus, ttl time.Duration) (*DestructionRequest, error)
	Unclaim(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*DestructionRequest, error)
	FindByBatchID(ctx context.Context, batchID string) ([]*DestructionRequest, error)
	FindByStatus(ctx context.Context, status DestructionStatus, limit int) ([]*DestructionRequest, error)
}

// ReturnRepository persists return records with the same insert, claim and
// conditional update contract as DestructionRepository.
type ReturnRepository interface {
	Save(ctx context.Context, rec *ReturnRecord) error
	Update(ctx context.Context, rec *ReturnRecord, from ReturnStatus) error
	// Claim returns ErrReturnNotFound when the record is absent.
	Claim(ctx context.Context, id string, from ReturnStatus, ttl time.Duration) (*ReturnRecord, error)
	Unclaim(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*ReturnRecord, error)
	FindByBatchID(ctx context.Context, batchID string) ([]*ReturnRecord, error)
	FindPending(ctx context.Context, direction ReturnDirection, limit int) ([]*ReturnRecord, error)
}

// BatchNumberRegistry claims batch numbers. Reserve returns false when the
// candidate is already taken for the (product, user) pair.
type BatchNumberRegistry interface {
	Reserve(ctx context.Context, productID, userID, candidate string) (bool, error)
}

// PrefixCache caches company prefix lookups. A nil info with found=true is a
// cached negative result.
type PrefixCache interface {
	Get(ctx context.Context, prefix string) (info *CompanyInfo, found bool, err error)
	Set(ctx context.Context, prefix string, info *CompanyInfo, ttl time.Duration) error
	Delete(ctx context.Context, prefix string) error
}
