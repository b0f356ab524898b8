package application

import (
	"time"

	"github.com/pharmatrace/trace-engine/internal/domain"
)

// GenerateBatchNumberCommand requests a fresh batch number for a product
type GenerateBatchNumberCommand struct {
	Prefix    string `json:"prefix" validate:"required,max=20,batch_prefix"`
	ProductID string `json:"productId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
}

// StatusCommand appends a status record. At least one of ProductID, BatchID
// and SGTIN must be set.
type StatusCommand struct {
	ProductID string               `json:"productId,omitempty" validate:"required_without_all=BatchID SGTIN"`
	BatchID   string               `json:"batchId,omitempty"`
	SGTIN     string               `json:"sgtin,omitempty"`
	Status    domain.ProductStatus `json:"status" validate:"required"`
	Reason    string               `json:"reason,omitempty" validate:"max=500"`
	Notes     string               `json:"notes,omitempty" validate:"max=2000"`
	Location  string               `json:"location,omitempty"`
}

func (c StatusCommand) key() domain.StatusKey {
	return domain.StatusKey{ProductID: c.ProductID, BatchID: c.BatchID, SGTIN: c.SGTIN}
}

// InitiateDestructionCommand opens a destruction request against a batch
type InitiateDestructionCommand struct {
	BatchID  string                   `json:"batchId" validate:"required"`
	Quantity int64                    `json:"quantity" validate:"gt=0"`
	Reason   domain.DestructionReason `json:"reason" validate:"required"`
	Method   domain.DestructionMethod `json:"method,omitempty"`
	Location string                   `json:"location,omitempty"`
	Notes    string                   `json:"notes,omitempty" validate:"max=2000"`
}

// CompleteDestructionCommand carries the evidence of a physical destruction
type CompleteDestructionCommand struct {
	WitnessName       string   `json:"witnessName,omitempty"`
	WitnessTitle      string   `json:"witnessTitle,omitempty"`
	CertificateNumber string   `json:"certificateNumber,omitempty"`
	EvidenceRefs      []string `json:"evidenceRefs,omitempty"`
	// ReadPoint is the GLN or SGLN recorded on the destroying event
	ReadPoint string `json:"readPoint,omitempty"`
}

// CreateReturnReceiptCommand records goods coming back into a batch
type CreateReturnReceiptCommand struct {
	BatchID      string              `json:"batchId" validate:"required"`
	Quantity     int64               `json:"quantity" validate:"gt=0"`
	QualityCheck domain.QualityCheck `json:"qualityCheck" validate:"required"`
	FromActorID  string              `json:"fromActorId,omitempty"`
	Notes        string              `json:"notes,omitempty" validate:"max=2000"`
}

// CreateReturnShipmentCommand records goods sent back out of a batch
type CreateReturnShipmentCommand struct {
	BatchID   string              `json:"batchId" validate:"required"`
	Quantity  int64               `json:"quantity" validate:"gt=0"`
	ToActorID string              `json:"toActorId,omitempty"`
	Reason    domain.ReturnReason `json:"reason,omitempty"`
	Notes     string              `json:"notes,omitempty" validate:"max=2000"`
}

// EventOptions is the business context shared by aggregation and object events
type EventOptions struct {
	// EventTime defaults to the recording time
	EventTime time.Time
	// Action overrides the business step's conventional action
	Action          domain.Action
	BizStep         domain.BizStep
	Disposition     domain.Disposition
	ReadPoint       string
	BizLocation     string
	BizTransactions []domain.BizTransaction
	Destinations    []domain.Destination
	Attribution     domain.Attribution
}
