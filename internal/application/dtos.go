package application

import (
	"time"

	"github.com/pharmatrace/trace-engine/internal/domain"
)

// StatusRecordDTO is a status history entry in responses
type StatusRecordDTO struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"productId,omitempty"`
	BatchID        string    `json:"batchId,omitempty"`
	SGTIN          string    `json:"sgtin,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	ActorID        string    `json:"actorId"`
	Reason         string    `json:"reason,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Location       string    `json:"location,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// DestructionDTO is a destruction request in responses
type DestructionDTO struct {
	ID                string     `json:"id"`
	BatchID           string     `json:"batchId"`
	ProductID         string     `json:"productId,omitempty"`
	Quantity          int64      `json:"quantity"`
	Reason            string     `json:"reason"`
	Method            string     `json:"method,omitempty"`
	Status            string     `json:"status"`
	RequestedBy       string     `json:"requestedBy"`
	ApprovedBy        string     `json:"approvedBy,omitempty"`
	ApprovedAt        *time.Time `json:"approvedAt,omitempty"`
	RejectedBy        string     `json:"rejectedBy,omitempty"`
	RejectionReason   string     `json:"rejectionReason,omitempty"`
	CompletedBy       string     `json:"completedBy,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CertificateNumber string     `json:"certificateNumber,omitempty"`
	// TraceEventID is the destroying event recorded on completion
	TraceEventID string    `json:"traceEventId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReturnDTO is a return record in responses
type ReturnDTO struct {
	ID           string     `json:"id"`
	Direction    string     `json:"direction"`
	BatchID      string     `json:"batchId"`
	Quantity     int64      `json:"quantity"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason"`
	QualityCheck string     `json:"qualityCheck,omitempty"`
	FromActorID  string     `json:"fromActorId,omitempty"`
	ToActorID    string     `json:"toActorId,omitempty"`
	CreatedBy    string     `json:"createdBy"`
	ProcessedBy  string     `json:"processedBy,omitempty"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func ToStatusRecordDTO(r *domain.StatusRecord) *StatusRecordDTO {
	return &StatusRecordDTO{
		ID:             r.ID,
		ProductID:      r.ProductID,
		BatchID:        r.BatchID,
		SGTIN:          r.SGTIN,
		Status:         string(r.Status),
		PreviousStatus: string(r.PreviousStatus),
		ActorID:        r.ActorID,
		Reason:         r.Reason,
		Notes:          r.Notes,
		Location:       r.Location,
		CreatedAt:      r.CreatedAt,
	}
}

func ToDestructionDTO(d *domain.DestructionRequest) *DestructionDTO {
	dto := &DestructionDTO{
		ID:              d.ID,
		BatchID:         d.BatchID,
		ProductID:       d.ProductID,
		Quantity:        d.Quantity,
		Reason:          string(d.Reason),
		Method:          string(d.Method),
		Status:          string(d.Status),
		RequestedBy:     d.RequestedBy,
		ApprovedBy:      d.ApprovedBy,
		ApprovedAt:      d.ApprovedAt,
		RejectedBy:      d.RejectedBy,
		RejectionReason: d.RejectionReason,
		CompletedBy:     d.CompletedBy,
		CompletedAt:     d.CompletedAt,
		CreatedAt:       d.CreatedAt,
	}
	if d.Evidence != nil {
		dto.CertificateNumber = d.Evidence.CertificateNumber
	}
	return dto
}

func ToReturnDTO(r *domain.ReturnRecord) *ReturnDTO {
	return &ReturnDTO{
		ID:           r.ID,
		Direction:    string(r.Direction),
		BatchID:      r.BatchID,
		Quantity:     r.Quantity,
		Status:       string(r.Status),
		Reason:       string(r.Reason),
		QualityCheck: string(r.QualityCheck),
		FromActorID:  r.FromActorID,
		ToActorID:    r.ToActorID,
		CreatedBy:    r.CreatedBy,
		ProcessedBy:  r.ProcessedBy,
		ProcessedAt:  r.ProcessedAt,
		CreatedAt:    r.CreatedAt,
	}
}
