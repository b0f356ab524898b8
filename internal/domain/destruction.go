package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultApprovalThreshold is the quantity from which destruction needs a second approver
const DefaultApprovalThreshold int64 = 100

// DestructionStatus is the state of a destruction request
type DestructionStatus string

const (
	DestructionPendingApproval DestructionStatus = "PENDING_APPROVAL"
	DestructionApproved        DestructionStatus = "APPROVED"
	DestructionRejected        DestructionStatus = "REJECTED"
	DestructionCompleted       DestructionStatus = "COMPLETED"
)

func (s DestructionStatus) IsValid() bool {
	switch s {
	case DestructionPendingApproval, DestructionApproved, DestructionRejected, DestructionCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible
func (s DestructionStatus) IsTerminal() bool {
	return s == DestructionRejected || s == DestructionCompleted
}

// DestructionReason explains why stock is destroyed
type DestructionReason string

const (
	DestructionReasonExpired        DestructionReason = "EXPIRED"
	DestructionReasonDamaged        DestructionReason = "DAMAGED"
	DestructionReasonRecalled       DestructionReason = "RECALLED"
	DestructionReasonContaminated   DestructionReason = "CONTAMINATED"
	DestructionReasonQualityFailure DestructionReason = "QUALITY_FAILURE"
	DestructionReasonRegulatory     DestructionReason = "REGULATORY"
	DestructionReasonOther          DestructionReason = "OTHER"
)

func (r DestructionReason) IsValid() bool {
	switch r {
	case DestructionReasonExpired, DestructionReasonDamaged, DestructionReasonRecalled,
		DestructionReasonContaminated, DestructionReasonQualityFailure,
		DestructionReasonRegulatory, DestructionReasonOther:
		return true
	default:
		return false
	}
}

// DestructionMethod is how the goods are disposed of
type DestructionMethod string

const (
	DestructionMethodIncineration         DestructionMethod = "INCINERATION"
	DestructionMethodChemical             DestructionMethod = "CHEMICAL"
	DestructionMethodLandfill             DestructionMethod = "LANDFILL"
	DestructionMethodReturnToManufacturer DestructionMethod = "RETURN_TO_MANUFACTURER"
	DestructionMethodOther                DestructionMethod = "OTHER"
)

func (m DestructionMethod) IsValid() bool {
	switch m {
	case DestructionMethodIncineration, DestructionMethodChemical, DestructionMethodLandfill,
		DestructionMethodReturnToManufacturer, DestructionMethodOther:
		return true
	default:
		return false
	}
}

// DestructionEvidence is recorded when stock is physically destroyed
type DestructionEvidence struct {
	WitnessName       string   `bson:"witnessName,omitempty" json:"witnessName,omitempty"`
	WitnessTitle      string   `bson:"witnessTitle,omitempty" json:"witnessTitle,omitempty"`
	CertificateNumber string   `bson:"certificateNumber,omitempty" json:"certificateNumber,omitempty"`
	EvidenceRefs      []string `bson:"evidenceRefs,omitempty" json:"evidenceRefs,omitempty"`
}

// DestructionRequest is the aggregate root of the destruction workflow:
// PENDING_APPROVAL -> APPROVED -> COMPLETED, or PENDING_APPROVAL -> REJECTED.
// ClaimedUntil is set while a completion is in flight.
type DestructionRequest struct {
	ID              string               `bson:"_id" json:"id"`
	BatchID         string               `bson:"batchId" json:"batchId"`
	ProductID       string               `bson:"productId,omitempty" json:"productId,omitempty"`
	Quantity        int64                `bson:"quantity" json:"quantity"`
	Reason          DestructionReason    `bson:"reason" json:"reason"`
	Method          DestructionMethod    `bson:"method,omitempty" json:"method,omitempty"`
	Location        string               `bson:"location,omitempty" json:"location,omitempty"`
	Notes           string               `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          DestructionStatus    `bson:"status" json:"status"`
	RequestedBy     string               `bson:"requestedBy" json:"requestedBy"`
	ApprovedBy      string               `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time           `bson:"approvedAt,omitempty" json:"approvedAt,omitempty"`
	RejectedBy      string               `bson:"rejectedBy,omitempty" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time           `bson:"rejectedAt,omitempty" json:"rejectedAt,omitempty"`
	RejectionReason string               `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	CompletedBy     string               `bson:"completedBy,omitempty" json:"completedBy,omitempty"`
	CompletedAt     *time.Time           `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Evidence        *DestructionEvidence `bson:"evidence,omitempty" json:"evidence,omitempty"`
	ClaimedUntil    *time.Time           `bson:"claimedUntil,omitempty" json:"-"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
	DomainEvents    []DomainEvent        `bson:"-" json:"-"`
}

// NewDestructionRequest opens a destruction request. Quantities at or above
// threshold wait for approval; smaller ones are approved by the requester.
// Batch stock is not touched until Complete.
func NewDestructionRequest(batch *Batch, quantity int64, reason DestructionReason, method DestructionMethod, requestedBy string, threshold int64) (*DestructionRequest, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !reason.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDestructionReason, reason)
	}
	if method != "" && !method.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDestructionMethod, method)
	}
	if !batch.CanCover(quantity) {
		return nil, ErrInsufficientQuantity
	}
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}

	now := time.Now().UTC()
	req := &DestructionRequest{
		ID:          uuid.NewString(),
		BatchID:     batch.ID,
		ProductID:   batch.ProductID,
		Quantity:    quantity,
		Reason:      reason,
		Method:      method,
		Status:      DestructionPendingApproval,
		RequestedBy: requestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if quantity < threshold {
		req.Status = DestructionApproved
		req.ApprovedBy = requestedBy
		req.ApprovedAt = &now
	}

	req.AddDomainEvent(&DestructionInitiatedEvent{
		RequestID:   req.ID,
		BatchID:     req.BatchID,
		Quantity:    quantity,
		Reason:      string(reason),
		Status:      string(req.Status),
		RequestedBy: requestedBy,
		InitiatedAt: now,
	})
	return req, nil
}

func (d *DestructionRequest) requireStatus(want DestructionStatus, operation string) error {
	if d.Status != want {
		return fmt.Errorf("%w: cannot %s destruction request in %s", ErrInvalidState, operation, d.Status)
	}
	return nil
}

// Approve moves a pending request to APPROVED
func (d *DestructionRequest) Approve(actorID string) error {
	if err := d.requireStatus(DestructionPendingApproval, "approve"); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = DestructionApproved
	d.ApprovedBy = actorID
	d.ApprovedAt = &now
	d.UpdatedAt = now

	d.AddDomainEvent(&DestructionApprovedEvent{
		RequestID:  d.ID,
		BatchID:    d.BatchID,
		ApprovedBy: actorID,
		ApprovedAt: now,
	})
	return nil
}

// Reject closes a pending request without any stock effect
func (d *DestructionRequest) Reject(actorID, reason string) error {
	if err := d.requireStatus(DestructionPendingApproval, "reject"); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = DestructionRejected
	d.RejectedBy = actorID
	d.RejectedAt = &now
	d.RejectionReason = reason
	d.UpdatedAt = now

	d.AddDomainEvent(&DestructionRejectedEvent{
		RequestID:  d.ID,
		BatchID:    d.BatchID,
		RejectedBy: actorID,
		Reason:     reason,
		RejectedAt: now,
	})
	return nil
}

// CanComplete returns ErrInvalidState unless the request is APPROVED
func (d *DestructionRequest) CanComplete() error {
	return d.requireStatus(DestructionApproved, "complete")
}

// Complete records the physical destruction. The caller has already removed
// Quantity from the batch.
func (d *DestructionRequest) Complete(actorID string, evidence DestructionEvidence) error {
	if err := d.CanComplete(); err != nil {
		return err
	}
	now := time.Now().UTC()
	d.Status = DestructionCompleted
	d.CompletedBy = actorID
	d.CompletedAt = &now
	d.Evidence = &evidence
	d.UpdatedAt = now

	d.AddDomainEvent(&DestructionCompletedEvent{
		RequestID:         d.ID,
		BatchID:           d.BatchID,
		Quantity:          d.Quantity,
		CompletedBy:       actorID,
		CertificateNumber: evidence.CertificateNumber,
		CompletedAt:       now,
	})
	return nil
}

func (d *DestructionRequest) AddDomainEvent(event DomainEvent) {
	d.DomainEvents = append(d.DomainEvents, event)
}

func (d *DestructionRequest) ClearDomainEvents() {
	d.DomainEvents = nil
}

func (d *DestructionRequest) GetDomainEvents() []DomainEvent {
	return d.DomainEvents
}
