package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProductStatus is the regulatory status of a product, batch or serialized unit
type ProductStatus string

const (
	StatusActive      ProductStatus = "ACTIVE"
	StatusSample      ProductStatus = "SAMPLE"
	StatusDispensing  ProductStatus = "DISPENSING"
	StatusDispensed   ProductStatus = "DISPENSED"
	StatusRecalled    ProductStatus = "RECALLED"
	StatusQuarantined ProductStatus = "QUARANTINED"
	StatusExpired     ProductStatus = "EXPIRED"
	StatusDestroyed   ProductStatus = "DESTROYED"
	StatusStolen      ProductStatus = "STOLEN"
	StatusLost        ProductStatus = "LOST"
	StatusWithdrawn   ProductStatus = "WITHDRAWN"
)

// IsValid checks if the status is one of the known values
func (s ProductStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusSample, StatusDispensing, StatusDispensed, StatusRecalled,
		StatusQuarantined, StatusExpired, StatusDestroyed, StatusStolen, StatusLost,
		StatusWithdrawn:
		return true
	default:
		return false
	}
}

// IsMissing is true for statuses that report the goods out of custody
func (s ProductStatus) IsMissing() bool {
	return s == StatusStolen || s == StatusLost
}

// ParseProductStatus parses a status label case-insensitively
func ParseProductStatus(s string) (ProductStatus, error) {
	status := ProductStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// ValidateTransition rejects STOLEN/LOST -> ACTIVE/SAMPLE and DISPENSING -> ACTIVE.
func ValidateTransition(from, to ProductStatus) error {
	switch {
	case from.IsMissing() && (to == StatusActive || to == StatusSample):
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	case from == StatusDispensing && to == StatusActive:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	default:
		return nil
	}
}

// StatusKey identifies the subject of a status record. Any non-empty field
// participates in "most recent record" lookups, combined with OR.
type StatusKey struct {
	ProductID string `bson:"productId,omitempty" json:"productId,omitempty"`
	BatchID   string `bson:"batchId,omitempty" json:"batchId,omitempty"`
	SGTIN     string `bson:"sgtin,omitempty" json:"sgtin,omitempty"`
}

// IsEmpty reports whether no key field is set
func (k StatusKey) IsEmpty() bool {
	return k.ProductID == "" && k.BatchID == "" && k.SGTIN == ""
}

// StatusRecord is one append-only entry of a status history
type StatusRecord struct {
	ID             string        `bson:"_id" json:"id"`
	StatusKey      `bson:",inline"`
	Status         ProductStatus `bson:"status" json:"status"`
	PreviousStatus ProductStatus `bson:"previousStatus,omitempty" json:"previousStatus,omitempty"`
	ActorID        string        `bson:"actorId" json:"actorId"`
	Reason         string        `bson:"reason,omitempty" json:"reason,omitempty"`
	Notes          string        `bson:"notes,omitempty" json:"notes,omitempty"`
	Location       string        `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt      time.Time     `bson:"createdAt" json:"createdAt"`
	DomainEvents   []DomainEvent `bson:"-" json:"-"`
}

// NewStatusRecord creates a history entry. previous is empty when the key has no history.
func NewStatusRecord(key StatusKey, status, previous ProductStatus, actorID, reason, notes, location string) (*StatusRecord, error) {
	if key.IsEmpty() {
		return nil, ErrMissingStatusKey
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := time.Now().UTC()
	rec := &StatusRecord{
		ID:             uuid.NewString(),
		StatusKey:      key,
		Status:         status,
		PreviousStatus: previous,
		ActorID:        actorID,
		Reason:         reason,
		Notes:          notes,
		Location:       location,
		CreatedAt:      now,
	}
	rec.AddDomainEvent(&StatusChangedEvent{
		RecordID:       rec.ID,
		ProductID:      key.ProductID,
		BatchID:        key.BatchID,
		SGTIN:          key.SGTIN,
		Status:         string(status),
		PreviousStatus: string(previous),
		ActorID:        actorID,
		ChangedAt:      now,
	})
	return rec, nil
}

func (r *StatusRecord) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

func (r *StatusRecord) ClearDomainEvents() {
	r.DomainEvents = nil
}

func (r *StatusRecord) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
