package application

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmatrace/trace-engine/internal/domain"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/tracing"
)

// ReturnsService runs the return receipt and return shipment workflows
type ReturnsService struct {
	returns domain.ReturnRepository
	batches domain.BatchRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
}

func NewReturnsService(returns domain.ReturnRepository, batches domain.BatchRepository, logger *logging.Logger, m *metrics.Metrics) *ReturnsService {
	return &ReturnsService{
		returns: returns,
		batches: batches,
		logger:  logger.WithComponent("returns-service"),
		metrics: m,
	}
}

// CreateReturnReceipt records returned goods. ACCEPTABLE goods go back into
// stock immediately; anything else waits for ProcessReturn.
func (s *ReturnsService) CreateReturnReceipt(ctx context.Context, actorID string, cmd CreateReturnReceiptCommand) (*ReturnDTO, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	batch, err := s.findBatch(ctx, cmd.BatchID)
	if err != nil {
		return nil, err
	}

	rec, err := domain.NewReturnReceipt(batch, cmd.Quantity, cmd.QualityCheck, cmd.FromActorID, actorID, cmd.Notes)
	if err != nil {
		return nil, MapDomainError(err)
	}

	if rec.Status == domain.ReturnProcessed {
		if err := s.batches.Release(ctx, rec.BatchID, rec.Quantity); err != nil {
			return nil, s.batchErr(ctx, rec.BatchID, rec.Quantity, err)
		}
		if err := s.returns.Save(ctx, rec); err != nil {
			s.undo(ctx, rec, -rec.Quantity)
			return nil, storageErr("save return record", err)
		}
		s.moved(ctx, rec, rec.Quantity, "return_receipt")
	} else if err := s.returns.Save(ctx, rec); err != nil {
		return nil, storageErr("save return record", err)
	}

	s.metrics.RecordTransition("return_receiving", string(rec.Status))
	s.logger.Audit(ctx, "return.received", "return", rec.ID, actorID, map[string]any{
		"batchId":      rec.BatchID,
		"quantity":     rec.Quantity,
		"qualityCheck": rec.QualityCheck,
		"status":       rec.Status,
	})
	return ToReturnDTO(rec), nil
}

// CreateReturnShipment atomically moves quantity from qty to sentQty and
// records a PENDING shipment
func (s *ReturnsService) CreateReturnShipment(ctx context.Context, actorID string, cmd CreateReturnShipmentCommand) (dto *ReturnDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "application", "ReturnsService.CreateReturnShipment",
		attribute.String("batch.id", cmd.BatchID), attribute.Int64("quantity", cmd.Quantity))
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	batch, err := s.findBatch(ctx, cmd.BatchID)
	if err != nil {
		return nil, err
	}

	rec, err := domain.NewReturnShipment(batch, cmd.Quantity, cmd.Reason, cmd.ToActorID, actorID, cmd.Notes)
	if errors.Is(err, domain.ErrInsufficientQuantity) {
		return nil, apperrors.ErrInsufficientQuantity(batch.ID, cmd.Quantity, batch.Qty).Wrap(err)
	}
	if err != nil {
		return nil, MapDomainError(err)
	}

	if err := s.batches.TryReserveForShipment(ctx, rec.BatchID, rec.Quantity); err != nil {
		return nil, s.batchErr(ctx, rec.BatchID, rec.Quantity, err)
	}
	if err := s.returns.Save(ctx, rec); err != nil {
		s.logger.WithError(err).Error("Return shipment not saved after reservation; quantity stays in sentQty",
			"batchId", rec.BatchID, "quantity", rec.Quantity, "returnId", rec.ID)
		return nil, storageErr("save return record", err)
	}
	s.moved(ctx, rec, -rec.Quantity, "return_shipment")

	s.metrics.RecordTransition("return_shipping", string(rec.Status))
	s.logger.Audit(ctx, "return.shipped", "return", rec.ID, actorID, map[string]any{
		"batchId":   rec.BatchID,
		"quantity":  rec.Quantity,
		"toActorId": rec.ToActorID,
	})
	return ToReturnDTO(rec), nil
}

// ProcessReturn settles a PENDING return with PROCESSED or REJECTED. The
// record is claimed first, so only one settlement moves stock. Receipts:
// PROCESSED adds the quantity unless it is already counted, REJECTED removes
// it only if it was counted. Shipments are never compensated, see DESIGN.md.
func (s *ReturnsService) ProcessReturn(ctx context.Context, actorID, id string, decision domain.ReturnStatus, notes string) (*ReturnDTO, error) {
	if !decision.IsDecision() {
		return nil, MapDomainError(fmt.Errorf("%w: %q", domain.ErrInvalidReturnDecision, decision))
	}

	rec, err := s.returns.Claim(ctx, id, domain.ReturnPending, workflowClaimTTL)
	if err != nil {
		return nil, s.claimErr(ctx, id, err)
	}

	delta := rec.SettlementDelta(decision)
	if err := s.apply(ctx, rec.BatchID, delta); err != nil {
		s.unclaim(ctx, rec.ID)
		return nil, s.batchErr(ctx, rec.BatchID, abs(delta), err)
	}

	if err := rec.Process(actorID, decision, notes); err != nil {
		s.undo(ctx, rec, -delta)
		s.unclaim(ctx, rec.ID)
		return nil, MapDomainError(err)
	}
	if err := s.returns.Update(ctx, rec, domain.ReturnPending); err != nil {
		s.undo(ctx, rec, -delta)
		if errors.Is(err, domain.ErrInvalidState) {
			return nil, s.conflictErr(ctx, id, err)
		}
		s.unclaim(ctx, rec.ID)
		return nil, storageErr("update return record", err)
	}

	if delta != 0 {
		s.moved(ctx, rec, delta, "return_settlement")
	}
	if rec.Direction == domain.ReturnShipping && decision == domain.ReturnRejected {
		s.logger.Warn("Rejected return shipment leaves its quantity in sentQty",
			"returnId", rec.ID,
			"batchId", rec.BatchID,
			"quantity", rec.Quantity,
		)
	}

	s.metrics.RecordTransition(stateMachine(rec.Direction), string(rec.Status))
	s.logger.Audit(ctx, "return.processed", "return", rec.ID, actorID, map[string]any{
		"batchId":   rec.BatchID,
		"direction": rec.Direction,
		"decision":  decision,
		"delta":     delta,
	})
	return ToReturnDTO(rec), nil
}

// apply moves delta units; negative deltas go through the conditional reserve
func (s *ReturnsService) apply(ctx context.Context, batchID string, delta int64) error {
	switch {
	case delta > 0:
		return s.batches.Release(ctx, batchID, delta)
	case delta < 0:
		return s.batches.TryReserve(ctx, batchID, -delta)
	default:
		return nil
	}
}

// undo reverts an applied delta after a later step failed
func (s *ReturnsService) undo(ctx context.Context, rec *domain.ReturnRecord, delta int64) {
	if err := s.apply(ctx, rec.BatchID, delta); err != nil {
		s.logger.WithError(err).Error("Failed to revert return quantity change",
			"returnId", rec.ID,
			"batchId", rec.BatchID,
			"delta", delta,
		)
	}
}

// unclaim is best effort: an abandoned claim expires after workflowClaimTTL
func (s *ReturnsService) unclaim(ctx context.Context, id string) {
	if err := s.returns.Unclaim(ctx, id); err != nil {
		s.logger.WithError(err).Warn("Failed to release return claim", "returnId", id)
	}
}

func (s *ReturnsService) claimErr(ctx context.Context, id string, err error) error {
	switch {
	case errors.Is(err, domain.ErrReturnNotFound):
		return apperrors.ErrNotFoundWithID("return record", id).Wrap(err)
	case errors.Is(err, domain.ErrInvalidState):
		return s.conflictErr(ctx, id, err)
	default:
		return storageErr("claim return record", err)
	}
}

func (s *ReturnsService) conflictErr(ctx context.Context, id string, err error) error {
	current := "unknown"
	if rec, ferr := s.returns.FindByID(ctx, id); ferr == nil && rec != nil {
		current = string(rec.Status)
		if claimLive(rec.ClaimedUntil) {
			current += " (in progress)"
		}
	}
	return apperrors.ErrInvalidState("return record", current, "process").Wrap(err)
}

func (s *ReturnsService) moved(ctx context.Context, rec *domain.ReturnRecord, delta int64, cause string) {
	s.metrics.RecordQuantityMoved(cause, delta)
	s.logger.QuantityMovement(ctx, rec.BatchID, delta, cause, rec.ID)
}

func (s *ReturnsService) batchErr(ctx context.Context, batchID string, n int64, err error) error {
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
		return storageErr("update batch quantity", err)
	}
}

func (s *ReturnsService) findBatch(ctx context.Context, id string) (*domain.Batch, error) {
	batch, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find batch", err)
	}
	if batch == nil {
		return nil, apperrors.ErrNotFoundWithID("batch", id).Wrap(domain.ErrBatchNotFound)
	}
	return batch, nil
}

// Get returns one return record
func (s *ReturnsService) Get(ctx context.Context, id string) (*ReturnDTO, error) {
	rec, err := s.returns.FindByID(ctx, id)
	if err != nil {
		return nil, storageErr("find return record", err)
	}
	if rec == nil {
		return nil, apperrors.ErrNotFoundWithID("return record", id).Wrap(domain.ErrReturnNotFound)
	}
	return ToReturnDTO(rec), nil
}

// ListPending returns pending returns of one direction, oldest first
func (s *ReturnsService) ListPending(ctx context.Context, direction domain.ReturnDirection, limit int) ([]*ReturnDTO, error) {
	recs, err := s.returns.FindPending(ctx, direction, limit)
	if err != nil {
		return nil, storageErr("find pending returns", err)
	}
	out := make([]*ReturnDTO, len(recs))
	for i, r := range recs {
		out[i] = ToReturnDTO(r)
	}
	return out, nil
}

func stateMachine(d domain.ReturnDirection) string {
	if d == domain.ReturnShipping {
		return "return_shipping"
	}
	return "return_receiving"
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
