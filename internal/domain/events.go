package domain

import "time"

// DomainEvent is the interface for all lifecycle domain events
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// StatusChangedEvent is published when a status record is appended
type StatusChangedEvent struct {
	RecordID       string    `json:"recordId"`
	ProductID      string    `json:"productId,omitempty"`
	BatchID        string    `json:"batchId,omitempty"`
	SGTIN          string    `json:"sgtin,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	ActorID        string    `json:"actorId"`
	ChangedAt      time.Time `json:"changedAt"`
}

func (e *StatusChangedEvent) EventType() string     { return "pharma.status.changed" }
func (e *StatusChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// DestructionInitiatedEvent is published when a destruction request is opened
type DestructionInitiatedEvent struct {
	RequestID   string    `json:"requestId"`
	BatchID     string    `json:"batchId"`
	Quantity    int64     `json:"quantity"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	RequestedBy string    `json:"requestedBy"`
	InitiatedAt time.Time `json:"initiatedAt"`
}

func (e *DestructionInitiatedEvent) EventType() string     { return "pharma.destruction.initiated" }
func (e *DestructionInitiatedEvent) OccurredAt() time.Time { return e.InitiatedAt }

// DestructionApprovedEvent is published when a pending request is approved
type DestructionApprovedEvent struct {
	RequestID  string    `json:"requestId"`
	BatchID    string    `json:"batchId"`
	ApprovedBy string    `json:"approvedBy"`
	ApprovedAt time.Time `json:"approvedAt"`
}

func (e *DestructionApprovedEvent) EventType() string     { return "pharma.destruction.approved" }
func (e *DestructionApprovedEvent) OccurredAt() time.Time { return e.ApprovedAt }

// DestructionRejectedEvent is published when a pending request is rejected
type DestructionRejectedEvent struct {
	RequestID  string    `json:"requestId"`
	BatchID    string    `json:"batchId"`
	RejectedBy string    `json:"rejectedBy"`
	Reason     string    `json:"reason,omitempty"`
	RejectedAt time.Time `json:"rejectedAt"`
}

func (e *DestructionRejectedEvent) EventType() string     { return "pharma.destruction.rejected" }
func (e *DestructionRejectedEvent) OccurredAt() time.Time { return e.RejectedAt }

// DestructionCompletedEvent is published once stock has been destroyed
type DestructionCompletedEvent struct {
	RequestID         string    `json:"requestId"`
	BatchID           string    `json:"batchId"`
	Quantity          int64     `json:"quantity"`
	CompletedBy       string    `json:"completedBy"`
	CertificateNumber string    `json:"certificateNumber,omitempty"`
	CompletedAt       time.Time `json:"completedAt"`
}

func (e *DestructionCompletedEvent) EventType() string     { return "pharma.destruction.completed" }
func (e *DestructionCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }

// ReturnCreatedEvent is published when a return receipt or shipment is recorded
type ReturnCreatedEvent struct {
	ReturnID  string    `json:"returnId"`
	Direction string    `json:"direction"`
	BatchID   string    `json:"batchId"`
	Quantity  int64     `json:"quantity"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *ReturnCreatedEvent) EventType() string     { return "pharma.return.created" }
func (e *ReturnCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// ReturnProcessedEvent is published when a pending return is settled
type ReturnProcessedEvent struct {
	ReturnID    string    `json:"returnId"`
	Direction   string    `json:"direction"`
	BatchID     string    `json:"batchId"`
	Quantity    int64     `json:"quantity"`
	Decision    string    `json:"decision"`
	ProcessedBy string    `json:"processedBy"`
	ProcessedAt time.Time `json:"processedAt"`
}

func (e *ReturnProcessedEvent) EventType() string     { return "pharma.return.processed" }
func (e *ReturnProcessedEvent) OccurredAt() time.Time { return e.ProcessedAt }
