package application

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmatrace/trace-engine/internal/domain"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/tracing"
)

// workflowClaimTTL bounds how long a crashed completion or settlement blocks
// the record before another caller may claim it
const workflowClaimTTL = time.Minute

// DestructionService runs the destruction approval workflow
type DestructionService struct {
	requests  domain.DestructionRepository
	batches   domain.BatchRepository
	recorder  Recorder
	threshold int64
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NewDestructionService creates the service. A threshold <= 0 uses
// domain.DefaultApprovalThreshold; recorder may be nil.
func NewDestructionService(requests domain.DestructionRepository, batches domain.BatchRepository, recorder Recorder, threshold int64, logger *logging.Logger, m *metrics.Metrics) *DestructionService {
	if threshold <= 0 {
		threshold = domain.DefaultApprovalThreshold
	}
	return &DestructionService{
		requests:  requests,
		batches:   batches,
		recorder:  recorder,
		threshold: threshold,
		logger:    logger.WithComponent("destruction-service"),
		metrics:   m,
	}
}

// Initiate opens a destruction request. Batch stock is only checked here.
func (s *DestructionService) Initiate(ctx context.Context, actorID string, cmd InitiateDestructionCommand) (*DestructionDTO, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}

	batch, err := s.findBatch(ctx, cmd.BatchID)
	if err != nil {
		return nil, err
	}

	req, err := domain.NewDestructionRequest(batch, cmd.Quantity, cmd.Reason, cmd.Method, actorID, s.threshold)
	if errors.Is(err, domain.ErrInsufficientQuantity) {
		return nil, apperrors.ErrInsufficientQuantity(batch.ID, cmd.Quantity, batch.Qty).Wrap(err)
	}
	if err != nil {
		return nil, MapDomainError(err)
	}
	req.Location = cmd.Location
	req.Notes = cmd.Notes

	if err := s.requests.Save(ctx, req); err != nil {
		return nil, storageErr("save destruction request", err)
	}

	s.metrics.RecordTransition("destruction", string(req.Status))
	s.logger.Audit(ctx, "destruction.initiated", "destruction", req.ID, actorID, map[string]any{
		"batchId":  req.BatchID,
		"quantity": req.Quantity,
		"reason":   req.Reason,
		"status":   req.Status,
	})
	return ToDestructionDTO(req), nil
}

// Approve moves a PENDING_APPROVAL request to APPROVED
func (s *DestructionService) Approve(ctx context.Context, actorID, id string) (*DestructionDTO, error) {
	return s.transition(ctx, actorID, id, "destruction.approved", func(req *domain.DestructionRequest) error {
		return req.Approve(actorID)
	})
}

// Reject closes a PENDING_APPROVAL request. Stock is untouched.
func (s *DestructionService) Reject(ctx context.Context, actorID, id, reason string) (*DestructionDTO, error) {
	return s.transition(ctx, actorID, id, "destruction.rejected", func(req *domain.DestructionRequest) error {
		return req.Reject(actorID, reason)
	})
}

func (s *DestructionService) transition(ctx context.Context, actorID, id, action string, apply func(*domain.DestructionRequest) error) (*DestructionDTO, error) {
	req, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	from := req.Status
	if err := apply(req); err != nil {
		return nil, apperrors.ErrInvalidState("destruction request", string(from), action).Wrap(err)
	}
	if err := s.requests.Update(ctx, req, from); err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			return nil, s.conflictErr(ctx, id, action, err)
		}
		return nil, storageErr("update destruction request", err)
	}

	s.metrics.RecordTransition("destruction", string(req.Status))
	s.logger.Audit(ctx, action, "destruction", req.ID, actorID, map[string]any{
		"batchId": req.BatchID,
		"from":    from,
		"to":      req.Status,
	})
	return ToDestructionDTO(req), nil
}

// Complete claims an APPROVED request, reserves its quantity from the batch
// and marks it COMPLETED. Only one caller can hold the claim, and the final
// write still requires APPROVED; if that write fails the units are released.
func (s *DestructionService) Complete(ctx context.Context, actorID, id string, cmd CompleteDestructionCommand) (dto *DestructionDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "application", "DestructionService.Complete",
		attribute.String("destruction.id", id))
	defer func() { tracing.EndSpan(span, err) }()

	req, err := s.requests.Claim(ctx, id, domain.DestructionApproved, workflowClaimTTL)
	if err != nil {
		return nil, s.claimErr(ctx, id, "complete", err)
	}

	if err := s.batches.TryReserve(ctx, req.BatchID, req.Quantity); err != nil {
		s.unclaim(ctx, req.ID)
		return nil, s.reserveErr(ctx, req.BatchID, req.Quantity, err)
	}

	evidence := domain.DestructionEvidence{
		WitnessName:       cmd.WitnessName,
		WitnessTitle:      cmd.WitnessTitle,
		CertificateNumber: cmd.CertificateNumber,
		EvidenceRefs:      cmd.EvidenceRefs,
	}
	if err := req.Complete(actorID, evidence); err != nil {
		s.compensate(ctx, req)
		s.unclaim(ctx, req.ID)
		return nil, MapDomainError(err)
	}
	if err := s.requests.Update(ctx, req, domain.DestructionApproved); err != nil {
		s.compensate(ctx, req)
		if errors.Is(err, domain.ErrInvalidState) {
			return nil, s.conflictErr(ctx, id, "complete", err)
		}
		s.unclaim(ctx, req.ID)
		return nil, storageErr("update destruction request", err)
	}

	s.metrics.RecordTransition("destruction", string(req.Status))
	s.metrics.RecordQuantityMoved("destruction", -req.Quantity)
	s.logger.QuantityMovement(ctx, req.BatchID, -req.Quantity, "destruction", req.ID)
	s.logger.Audit(ctx, "destruction.completed", "destruction", req.ID, actorID, map[string]any{
		"batchId":           req.BatchID,
		"quantity":          req.Quantity,
		"certificateNumber": cmd.CertificateNumber,
	})

	dto = ToDestructionDTO(req)
	dto.TraceEventID = s.recordDestroyingEvent(ctx, actorID, req, cmd.ReadPoint)
	return dto, nil
}

// recordDestroyingEvent is best effort: the destruction is already committed
func (s *DestructionService) recordDestroyingEvent(ctx context.Context, actorID string, req *domain.DestructionRequest, readPoint string) string {
	if s.recorder == nil {
		return ""
	}
	eventID, err := s.recorder.CreateObjectEvent(ctx, []string{req.BatchID}, EventOptions{
		BizStep:     domain.BizStepDestroying,
		Disposition: domain.DispositionDestroyed,
		Action:      domain.ActionDelete,
		ReadPoint:   readPoint,
		Attribution: domain.Attribution{UserID: actorID, SourceType: "destruction", SourceID: req.ID},
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to record destroying event", "requestId", req.ID, "batchId", req.BatchID)
		return ""
	}
	return eventID
}

func (s *DestructionService) compensate(ctx context.Context, req *domain.DestructionRequest) {
	if err := s.batches.Release(ctx, req.BatchID, req.Quantity); err != nil {
		s.logger.WithError(err).Error("Failed to release reserved destruction quantity",
			"requestId", req.ID,
			"batchId", req.BatchID,
			"quantity", req.Quantity,
		)
	}
}

// unclaim is best effort: an abandoned claim expires after workflowClaimTTL
func (s *DestructionService) unclaim(ctx context.Context, id string) {
	if err := s.requests.Unclaim(ctx, id); err != nil {
		s.logger.WithError(err).Warn("Failed to release destruction claim", "requestId", id)
	}
}

func (s *DestructionService) claimErr(ctx context.Context, id, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrDestructionNotFound):
		return apperrors.ErrNotFoundWithID("destruction request", id).Wrap(err)
	case errors.Is(err, domain.ErrInvalidState):
		return s.conflictErr(ctx, id, op, err)
	default:
		return storageErr("claim destruction request", err)
	}
}

// conflictErr reports the status that made op lose, re-read from the store
func (s *DestructionService) conflictErr(ctx context.Context, id, op string, err error) error {
	current := "unknown"
	if req, ferr := s.requests.FindByID(ctx, id); ferr == nil && req != nil {
		current = string(req.Status)
		if claimLive(req.ClaimedUntil) {
			current += " (in progress)"
		}
	}
	return apperrors.ErrInvalidState("destruction request", current, op).Wrap(err)
}

func claimLive(until *time.Time) bool {
	return until != nil && until.After(time.Now())
}

func (s *DestructionService) reserveErr(ctx context.Context, batchID string, n int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientQuantity):
		var available int64
		if b, ferr := s.batches.FindByID(ctx, batchID); ferr == nil && b != nil {
			available = b.Qty
		}
		return apperrors.ErrInsufficientQuantity(batchID, n, available).Wrap(err)
	case errors.Is(err, domain.ErrBatchNotFound):
		return apperrors.ErrNotFoundWithID("batch", batchID).Wrap(err)
	default:
		return storageErr("reserve batch quantity", err)
	}
}

func (s *DestructionService) findBatch(ctx context.Context, id string) (*domain.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find batch", err)
	}
	if batch == nil {
		return nil, apperrors.ErrNotFoundWithID("batch", id).Wrap(domain.ErrBatchNotFound)
	}
	return batch, nil
}

func (s *DestructionService) findRequest(ctx context.Context, id string) (*domain.DestructionRequest, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find destruction request", err)
	}
	if req == nil {
		return nil, apperrors.ErrNotFoundWithID("destruction request", id).Wrap(domain.ErrDestructionNotFound)
	}
	return req, nil
}

// Get returns a destruction request by id
func (s *DestructionService) Get(ctx context.Context, id string) (*DestructionDTO, error) {
	req, err := s.findRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToDestructionDTO(req), nil
}

// ListPending returns requests waiting for approval
func (s *DestructionService) ListPending(ctx context.Context, limit int) ([]*DestructionDTO, error) {
	reqs, err := s.requests.FindByStatus(ctx, domain.DestructionPendingApproval, limit)
	if err != nil {
		return nil, storageErr("find pending destruction requests", err)
	}
	out := make([]*DestructionDTO, len(reqs))
	for i, r := range reqs {
		out[i] = ToDestructionDTO(r)
	}
	return out, nil
}
