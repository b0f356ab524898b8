package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmatrace/trace-engine/internal/domain"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/tracing"
)

// DefaultHistoryLimit caps History results
const DefaultHistoryLimit = 100

// StatusService maintains the append-only product status history
type StatusService struct {
	records domain.StatusRepository
	actors  domain.ActorRepository
	logger  *logging.Logger
	metrics *metrics.Metrics
}

func NewStatusService(records domain.StatusRepository, actors domain.ActorRepository, logger *logging.Logger, m *metrics.Metrics) *StatusService {
	return &StatusService{
		records: records,
		actors:  actors,
		logger:  logger.WithComponent("status-service"),
		metrics: m,
	}
}

// ValidateTransition returns INVALID_TRANSITION for forbidden status changes
func (s *StatusService) ValidateTransition(from, to domain.ProductStatus) error {
	if err := domain.ValidateTransition(from, to); err != nil {
		return apperrors.ErrInvalidTransition(string(from), string(to)).Wrap(err)
	}
	return nil
}

// Create appends a status record without transition checks. The previous
// status is the newest record matching any of the supplied keys.
func (s *StatusService) Create(ctx context.Context, actorID string, cmd StatusCommand) (*StatusRecordDTO, error) {
	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	latest, err := s.records.FindLatest(ctx, cmd.key())
	if err != nil {
		return nil, storageErr("find latest status", err)
	}
	return s.append(ctx, actorID, cmd, latest)
}

// UpdateStatus is Create guarded by ValidateTransition against the current
// status. STOLEN and LOST reports only check that the actor exists, not that
// the actor holds the goods.
func (s *StatusService) UpdateStatus(ctx context.Context, actorID string, cmd StatusCommand) (dto *StatusRecordDTO, err error) {
	ctx, span := tracing.StartSpan(ctx, "application", "StatusService.UpdateStatus",
		attribute.String("status.to", string(cmd.Status)))
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateCommand(cmd); err != nil {
		return nil, err
	}
	if !cmd.Status.IsValid() {
		return nil, MapDomainError(fmt.Errorf("%w: %q", domain.ErrInvalidStatus, cmd.Status))
	}
	if err := s.requireActor(ctx, actorID); err != nil {
		return nil, err
	}

	current, err := s.records.FindLatest(ctx, cmd.key())
	if err != nil {
		return nil, storageErr("find latest status", err)
	}
	if current != nil {
		if err := s.ValidateTransition(current.Status, cmd.Status); err != nil {
			return nil, err
		}
	}
	return s.append(ctx, actorID, cmd, current)
}

func (s *StatusService) append(ctx context.Context, actorID string, cmd StatusCommand, previous *domain.StatusRecord) (*StatusRecordDTO, error) {
	var prev domain.ProductStatus
	if previous != nil {
		prev = previous.Status
	}

	rec, err := domain.NewStatusRecord(cmd.key(), cmd.Status, prev, actorID, cmd.Reason, cmd.Notes, cmd.Location)
	if err != nil {
		return nil, MapDomainError(err)
	}
	if err := s.records.Append(ctx, rec); err != nil {
		s.logger.WithError(err).Error("Failed to append status record", "status", cmd.Status)
		return nil, storageErr("append status record", err)
	}

	s.metrics.RecordTransition("status", string(rec.Status))
	s.logger.Audit(ctx, "status.changed", "status", rec.ID, actorID, map[string]any{
		"productId":      rec.ProductID,
		"batchId":        rec.BatchID,
		"sgtin":          rec.SGTIN,
		"status":         rec.Status,
		"previousStatus": rec.PreviousStatus,
	})
	return ToStatusRecordDTO(rec), nil
}

// requireActor returns NOT_FOUND when the actor does not exist
func (s *StatusService) requireActor(ctx context.Context, actorID string) error {
	actor, err := s.actors.FindByID(ctx, actorID)
	if err != nil {
		return storageErr("find actor", err)
	}
	if actor == nil {
		return apperrors.ErrNotFoundWithID("actor", actorID).Wrap(domain.ErrActorNotFound)
	}
	return nil
}

// History returns the records of key, newest first
func (s *StatusService) History(ctx context.Context, key domain.StatusKey, limit int) ([]*StatusRecordDTO, error) {
	if key.IsEmpty() {
		return nil, MapDomainError(domain.ErrMissingStatusKey)
	}
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	records, err := s.records.FindHistory(ctx, key, limit)
	if err != nil {
		return nil, storageErr("find status history", err)
	}
	out := make([]*StatusRecordDTO, len(records))
	for i, rec := range records {
		out[i] = ToStatusRecordDTO(rec)
	}
	return out, nil
}

// BulkResult is the outcome of one item of a bulk update
type BulkResult struct {
	Index  int
	Record *StatusRecordDTO
	Err    error
}

// BulkStatusResult holds one BulkResult per input command, in input order
type BulkStatusResult struct {
	Results []BulkResult
}

// Succeeded returns the records written
func (r BulkStatusResult) Succeeded() []*StatusRecordDTO {
	var out []*StatusRecordDTO
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res.Record)
		}
	}
	return out
}

// Failed returns the failing items
func (r BulkStatusResult) Failed() []BulkResult {
	var out []BulkResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

func (r BulkStatusResult) AllSucceeded() bool { return len(r.Failed()) == 0 }

// AllFailed is false for an empty batch
func (r BulkStatusResult) AllFailed() bool {
	return len(r.Results) > 0 && len(r.Succeeded()) == 0
}

// BulkUpdateStatus applies UpdateStatus to each command in order. A failing
// item is logged and does not stop the rest.
func (s *StatusService) BulkUpdateStatus(ctx context.Context, actorID string, cmds []StatusCommand) BulkStatusResult {
	result := BulkStatusResult{Results: make([]BulkResult, len(cmds))}
	for i, cmd := range cmds {
		dto, err := s.UpdateStatus(ctx, actorID, cmd)
		result.Results[i] = BulkResult{Index: i, Record: dto, Err: err}
		s.metrics.RecordBulkItem(err == nil)
		if err != nil {
			s.logger.WithError(err).Warn("Bulk status item failed",
				"index", i,
				"code", apperrors.CodeOf(err),
				"status", cmd.Status,
			)
		}
	}
	return result
}
