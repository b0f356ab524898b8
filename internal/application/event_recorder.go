package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmatrace/trace-engine/internal/domain"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/tracing"
)

// Recorder is the event-recording surface the lifecycle services depend on
type Recorder interface {
	CreateObjectEvent(ctx context.Context, epcList []string, opts EventOptions) (string, error)
}

// EventRecorder builds immutable EPCIS events and appends them to the event store
type EventRecorder struct {
	store   domain.EventStore
	logger  *logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEventRecorder(store domain.EventStore, logger *logging.Logger, m *metrics.Metrics) *EventRecorder {
	return &EventRecorder{
		store:   store,
		logger:  logger.WithComponent("event-recorder"),
		metrics: m,
		now:     time.Now,
	}
}

// CreateAggregationEvent records parentID containing childIDs in order
func (r *EventRecorder) CreateAggregationEvent(ctx context.Context, parentID string, childIDs []string, opts EventOptions) (string, error) {
	if strings.TrimSpace(parentID) == "" {
		return "", MapDomainError(domain.ErrMissingParent)
	}
	if len(childIDs) == 0 {
		return "", MapDomainError(domain.ErrEmptyChildList)
	}

	event, err := r.build(domain.EventTypeAggregation, opts)
	if err != nil {
		return "", err
	}
	event.ParentID = parentID
	event.ChildEPCs = append([]string(nil), childIDs...)
	return r.append(ctx, event)
}

// CreateObjectEvent records an event over a flat EPC list
func (r *EventRecorder) CreateObjectEvent(ctx context.Context, epcList []string, opts EventOptions) (string, error) {
	if len(epcList) == 0 {
		return "", MapDomainError(domain.ErrEmptyEPCList)
	}

	event, err := r.build(domain.EventTypeObject, opts)
	if err != nil {
		return "", err
	}
	event.EPCList = append([]string(nil), epcList...)
	return r.append(ctx, event)
}

func (r *EventRecorder) build(eventType domain.TraceEventType, opts EventOptions) (*domain.TraceEvent, error) {
	if opts.BizStep != "" && !opts.BizStep.IsValid() {
		return nil, MapDomainError(fmt.Errorf("%w: %q", domain.ErrInvalidBizStep, opts.BizStep))
	}
	if opts.Disposition != "" && !opts.Disposition.IsValid() {
		return nil, MapDomainError(fmt.Errorf("%w: %q", domain.ErrInvalidDisposition, opts.Disposition))
	}

	action := opts.Action
	if action == "" {
		action = opts.BizStep.DefaultAction()
	}
	if !action.IsValid() {
		return nil, MapDomainError(fmt.Errorf("%w: %q", domain.ErrInvalidAction, action))
	}

	now := r.now().UTC()
	eventTime := opts.EventTime
	if eventTime.IsZero() {
		eventTime = now
	}

	return &domain.TraceEvent{
		ID:              uuid.NewString(),
		Type:            eventType,
		EventTime:       eventTime.UTC(),
		Action:          action,
		BizStep:         opts.BizStep,
		Disposition:     opts.Disposition,
		ReadPoint:       opts.ReadPoint,
		BizLocation:     opts.BizLocation,
		BizTransactions: append([]domain.BizTransaction(nil), opts.BizTransactions...),
		Destinations:    append([]domain.Destination(nil), opts.Destinations...),
		Attribution:     opts.Attribution,
		RecordedAt:      now,
	}, nil
}

func (r *EventRecorder) append(ctx context.Context, event *domain.TraceEvent) (id string, err error) {
	ctx, span := tracing.StartSpan(ctx, "application", "EventRecorder.append",
		attribute.String("epcis.event_type", string(event.Type)),
		attribute.String("epcis.biz_step", string(event.BizStep)),
		attribute.Int("epcis.epc_count", len(event.Identifiers())),
	)
	defer func() { tracing.EndSpan(span, err) }()

	id, err = r.store.Append(ctx, event)
	r.metrics.RecordTraceEvent(string(event.Type), string(event.BizStep), err == nil)
	if err != nil {
		r.logger.WithError(err).Error("Failed to append trace event", "eventId", event.ID, "type", event.Type)
		return "", apperrors.ErrStorage("append trace event", err)
	}

	r.logger.Event(ctx, event.CloudEventType(), map[string]any{
		"eventId":  id,
		"bizStep":  event.BizStep,
		"action":   event.Action,
		"epcCount": len(event.Identifiers()),
	})
	return id, nil
}
