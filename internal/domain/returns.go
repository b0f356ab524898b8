package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReturnStatus is the state of a return record
type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "PENDING"
	ReturnProcessed ReturnStatus = "PROCESSED"
	ReturnRejected  ReturnStatus = "REJECTED"
)

func (s ReturnStatus) IsValid() bool {
	switch s {
	case ReturnPending, ReturnProcessed, ReturnRejected:
		return true
	default:
		return false
	}
}

// IsDecision reports whether s may be used to settle a pending return
func (s ReturnStatus) IsDecision() bool {
	return s == ReturnProcessed || s == ReturnRejected
}

// ReturnDirection tells receipts and shipments apart
type ReturnDirection string

const (
	ReturnReceiving ReturnDirection = "RETURN_RECEIVING"
	ReturnShipping  ReturnDirection = "RETURN_SHIPPING"
)

// ReturnReason classifies why goods came back
type ReturnReason string

const (
	ReturnReasonDefective      ReturnReason = "DEFECTIVE"
	ReturnReasonExpired        ReturnReason = "EXPIRED"
	ReturnReasonCustomerReturn ReturnReason = "CUSTOMER_RETURN"
	ReturnReasonRecall         ReturnReason = "RECALL"
	ReturnReasonOverstock      ReturnReason = "OVERSTOCK"
	ReturnReasonWrongItem      ReturnReason = "WRONG_ITEM"
)

func (r ReturnReason) IsValid() bool {
	switch r {
	case ReturnReasonDefective, ReturnReasonExpired, ReturnReasonCustomerReturn,
		ReturnReasonRecall, ReturnReasonOverstock, ReturnReasonWrongItem:
		return true
	default:
		return false
	}
}

// QualityCheck is the inspection result of returned goods
type QualityCheck string

const (
	QualityAcceptable QualityCheck = "ACCEPTABLE"
	QualityDamaged    QualityCheck = "DAMAGED"
	QualityExpired    QualityCheck = "EXPIRED"
	QualitySuspect    QualityCheck = "SUSPECT"
)

func (q QualityCheck) IsValid() bool {
	switch q {
	case QualityAcceptable, QualityDamaged, QualityExpired, QualitySuspect:
		return true
	default:
		return false
	}
}

// ReturnReason derives the return reason from the inspection result
func (q QualityCheck) ReturnReason() ReturnReason {
	switch q {
	case QualityDamaged:
		return ReturnReasonDefective
	case QualityExpired:
		return ReturnReasonExpired
	default:
		return ReturnReasonCustomerReturn
	}
}

// ReturnRecord is the aggregate root of both return workflows:
// PENDING -> PROCESSED or PENDING -> REJECTED. StockApplied is set while a
// receipt's quantity is counted in the batch. ClaimedUntil marks a
// settlement in flight.
type ReturnRecord struct {
	ID            string          `bson:"_id" json:"id"`
	Direction     ReturnDirection `bson:"direction" json:"direction"`
	BatchID       string          `bson:"batchId" json:"batchId"`
	ProductID     string          `bson:"productId,omitempty" json:"productId,omitempty"`
	Quantity      int64           `bson:"quantity" json:"quantity"`
	Status        ReturnStatus    `bson:"status" json:"status"`
	Reason        ReturnReason    `bson:"reason" json:"reason"`
	QualityCheck  QualityCheck    `bson:"qualityCheck,omitempty" json:"qualityCheck,omitempty"`
	FromActorID   string          `bson:"fromActorId,omitempty" json:"fromActorId,omitempty"`
	ToActorID     string          `bson:"toActorId,omitempty" json:"toActorId,omitempty"`
	CreatedBy     string          `bson:"createdBy" json:"createdBy"`
	ProcessedBy   string          `bson:"processedBy,omitempty" json:"processedBy,omitempty"`
	ProcessedAt   *time.Time      `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	DecisionNotes string          `bson:"decisionNotes,omitempty" json:"decisionNotes,omitempty"`
	Notes         string          `bson:"notes,omitempty" json:"notes,omitempty"`
	StockApplied  bool            `bson:"stockApplied" json:"stockApplied"`
	ClaimedUntil  *time.Time      `bson:"claimedUntil,omitempty" json:"-"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updatedAt" json:"updatedAt"`
	DomainEvents  []DomainEvent   `bson:"-" json:"-"`
}

// NewReturnReceipt records goods coming back into a batch. Acceptable goods are
// processed on arrival; everything else waits for a decision.
func NewReturnReceipt(batch *Batch, quantity int64, qc QualityCheck, fromActorID, createdBy, notes string) (*ReturnRecord, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !qc.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQualityCheck, qc)
	}

	rec := newReturnRecord(ReturnReceiving, batch, quantity, qc.ReturnReason(), createdBy, notes)
	rec.QualityCheck = qc
	rec.FromActorID = fromActorID
	if qc == QualityAcceptable {
		rec.Status = ReturnProcessed
		rec.ProcessedBy = createdBy
		rec.ProcessedAt = &rec.CreatedAt
		rec.StockApplied = true
	}
	rec.addCreatedEvent()
	return rec, nil
}

// NewReturnShipment records goods sent back from a batch. The caller reserves
// the quantity before persisting the record.
func NewReturnShipment(batch *Batch, quantity int64, reason ReturnReason, toActorID, createdBy, notes string) (*ReturnRecord, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if reason == "" {
		reason = ReturnReasonCustomerReturn
	}
	if !reason.IsValid() {
		return nil, fmt.Errorf("invalid return reason %q", reason)
	}
	if !batch.CanCover(quantity) {
		return nil, ErrInsufficientQuantity
	}

	rec := newReturnRecord(ReturnShipping, batch, quantity, reason, createdBy, notes)
	rec.ToActorID = toActorID
	rec.addCreatedEvent()
	return rec, nil
}

func newReturnRecord(dir ReturnDirection, batch *Batch, quantity int64, reason ReturnReason, createdBy, notes string) *ReturnRecord {
	now := time.Now().UTC()
	return &ReturnRecord{
		ID:        uuid.NewString(),
		Direction: dir,
		BatchID:   batch.ID,
		ProductID: batch.ProductID,
		Quantity:  quantity,
		Status:    ReturnPending,
		Reason:    reason,
		CreatedBy: createdBy,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *ReturnRecord) addCreatedEvent() {
	r.AddDomainEvent(&ReturnCreatedEvent{
		ReturnID:  r.ID,
		Direction: string(r.Direction),
		BatchID:   r.BatchID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		Reason:    string(r.Reason),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	})
}

// SettlementDelta is the batch quantity change that settling with decision
// implies. Only receipts move stock: processing adds the quantity unless it is
// already counted, rejecting removes it only if it was counted. A pending
// receipt was never counted, so rejecting it leaves the batch alone.
func (r *ReturnRecord) SettlementDelta(decision ReturnStatus) int64 {
	if r.Direction != ReturnReceiving {
		return 0
	}
	switch {
	case decision == ReturnProcessed && !r.StockApplied:
		return r.Quantity
	case decision == ReturnRejected && r.StockApplied:
		return -r.Quantity
	default:
		return 0
	}
}

// CanProcess validates the decision and the current state
func (r *ReturnRecord) CanProcess(decision ReturnStatus) error {
	if !decision.IsDecision() {
		return fmt.Errorf("%w: %q", ErrInvalidReturnDecision, decision)
	}
	if r.Status != ReturnPending {
		return fmt.Errorf("%w: cannot process return in %s", ErrInvalidState, r.Status)
	}
	return nil
}

// Process settles a pending return
func (r *ReturnRecord) Process(actorID string, decision ReturnStatus, notes string) error {
	if err := r.CanProcess(decision); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.Status = decision
	r.ProcessedBy = actorID
	r.ProcessedAt = &now
	r.DecisionNotes = notes
	r.UpdatedAt = now
	if r.Direction == ReturnReceiving {
		r.StockApplied = decision == ReturnProcessed
	}

	r.AddDomainEvent(&ReturnProcessedEvent{
		ReturnID:    r.ID,
		Direction:   string(r.Direction),
		BatchID:     r.BatchID,
		Quantity:    r.Quantity,
		Decision:    string(decision),
		ProcessedBy: actorID,
		ProcessedAt: now,
	})
	return nil
}

func (r *ReturnRecord) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

func (r *ReturnRecord) ClearDomainEvents() {
	r.DomainEvents = nil
}

func (r *ReturnRecord) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}
