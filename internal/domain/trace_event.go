package domain

import (
	"fmt"
	"strings"
	"time"
)

// TraceEventType is the EPCIS event class
type TraceEventType string

const (
	EventTypeAggregation TraceEventType = "AggregationEvent"
	EventTypeObject      TraceEventType = "ObjectEvent"
)

// Action is the EPCIS action of a traceability event
type Action string

const (
	ActionAdd     Action = "ADD"
	ActionObserve Action = "OBSERVE"
	ActionDelete  Action = "DELETE"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionAdd, ActionObserve, ActionDelete:
		return true
	default:
		return false
	}
}

// BizStep is a CBV business step, stored as its short name
type BizStep string

const (
	BizStepCommissioning BizStep = "commissioning"
	BizStepPacking       BizStep = "packing"
	BizStepUnpacking     BizStep = "unpacking"
	BizStepShipping      BizStep = "shipping"
	BizStepReceiving     BizStep = "receiving"
	BizStepDispensing    BizStep = "dispensing"
	BizStepDestroying    BizStep = "destroying"
	BizStepDecommission  BizStep = "decommissioning"
	BizStepInspecting    BizStep = "inspecting"
	BizStepReturning     BizStep = "returning"
	BizStepStoring       BizStep = "storing"
)

const (
	bizStepURNPrefix     = "urn:epcglobal:cbv:bizstep:"
	dispositionURNPrefix = "urn:epcglobal:cbv:disp:"
)

func (b BizStep) IsValid() bool {
	switch b {
	case BizStepCommissioning, BizStepPacking, BizStepUnpacking, BizStepShipping,
		BizStepReceiving, BizStepDispensing, BizStepDestroying, BizStepDecommission,
		BizStepInspecting, BizStepReturning, BizStepStoring:
		return true
	default:
		return false
	}
}

// URN returns the CBV vocabulary URN
func (b BizStep) URN() string { return bizStepURNPrefix + string(b) }

// DefaultAction is the conventional action for the step. Callers may override it.
func (b BizStep) DefaultAction() Action {
	switch b {
	case BizStepPacking, BizStepCommissioning:
		return ActionAdd
	case BizStepDestroying, BizStepDecommission, BizStepUnpacking:
		return ActionDelete
	default:
		return ActionObserve
	}
}

// ParseBizStep accepts either the short name or the full CBV URN
func ParseBizStep(s string) (BizStep, error) {
	b := BizStep(strings.TrimPrefix(strings.TrimSpace(s), bizStepURNPrefix))
	if !b.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidBizStep, s)
	}
	return b, nil
}

// Disposition is a CBV disposition, stored as its short name
type Disposition string

const (
	DispositionActive        Disposition = "active"
	DispositionInProgress    Disposition = "in_progress"
	DispositionInTransit     Disposition = "in_transit"
	DispositionSellable      Disposition = "sellable_accessible"
	DispositionDispensed     Disposition = "dispensed"
	DispositionDestroyed     Disposition = "destroyed"
	DispositionExpired       Disposition = "expired"
	DispositionRecalled      Disposition = "recalled"
	DispositionReturned      Disposition = "returned"
	DispositionStolen        Disposition = "stolen"
	DispositionNonSellable   Disposition = "non_sellable_other"
	DispositionContainerOpen Disposition = "container_open"
)

func (d Disposition) IsValid() bool {
	switch d {
	case DispositionActive, DispositionInProgress, DispositionInTransit, DispositionSellable,
		DispositionDispensed, DispositionDestroyed, DispositionExpired, DispositionRecalled,
		DispositionReturned, DispositionStolen, DispositionNonSellable, DispositionContainerOpen:
		return true
	default:
		return false
	}
}

func (d Disposition) URN() string { return dispositionURNPrefix + string(d) }

// ParseDisposition accepts either the short name or the full CBV URN
func ParseDisposition(s string) (Disposition, error) {
	d := Disposition(strings.TrimPrefix(strings.TrimSpace(s), dispositionURNPrefix))
	if !d.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDisposition, s)
	}
	return d, nil
}

// BizTransaction references a business document such as a PO or despatch advice
type BizTransaction struct {
	Type string `bson:"type" json:"type"`
	ID   string `bson:"id" json:"id"`
}

// Destination is an EPCIS destination entry
type Destination struct {
	Type string `bson:"type" json:"type"`
	ID   string `bson:"id" json:"id"`
}

// Attribution records who emitted the event and from where
type Attribution struct {
	UserID         string `bson:"userId,omitempty" json:"userId,omitempty"`
	OrganizationID string `bson:"organizationId,omitempty" json:"organizationId,omitempty"`
	GLN            string `bson:"gln,omitempty" json:"gln,omitempty"`
	SourceType     string `bson:"sourceType,omitempty" json:"sourceType,omitempty"`
	SourceID       string `bson:"sourceId,omitempty" json:"sourceId,omitempty"`
}

// TraceEvent is an immutable EPCIS event. It is written once and never updated.
type TraceEvent struct {
	ID              string           `bson:"_id" json:"id"`
	Type            TraceEventType   `bson:"type" json:"type"`
	EventTime       time.Time        `bson:"eventTime" json:"eventTime"`
	ParentID        string           `bson:"parentId,omitempty" json:"parentId,omitempty"`
	ChildEPCs       []string         `bson:"childEpcs,omitempty" json:"childEpcs,omitempty"`
	EPCList         []string         `bson:"epcList,omitempty" json:"epcList,omitempty"`
	Action          Action           `bson:"action" json:"action"`
	BizStep         BizStep          `bson:"bizStep" json:"bizStep"`
	Disposition     Disposition      `bson:"disposition,omitempty" json:"disposition,omitempty"`
	ReadPoint       string           `bson:"readPoint,omitempty" json:"readPoint,omitempty"`
	BizLocation     string           `bson:"bizLocation,omitempty" json:"bizLocation,omitempty"`
	BizTransactions []BizTransaction `bson:"bizTransactions,omitempty" json:"bizTransactions,omitempty"`
	Destinations    []Destination    `bson:"destinations,omitempty" json:"destinations,omitempty"`
	Attribution     Attribution      `bson:"attribution" json:"attribution"`
	RecordedAt      time.Time        `bson:"recordedAt" json:"recordedAt"`
}

// Identifiers returns every EPC the event references, parent first
func (e *TraceEvent) Identifiers() []string {
	ids := make([]string, 0, 1+len(e.ChildEPCs)+len(e.EPCList))
	if e.ParentID != "" {
		ids = append(ids, e.ParentID)
	}
	ids = append(ids, e.ChildEPCs...)
	return append(ids, e.EPCList...)
}

// CloudEventType maps the event to its published type string
func (e *TraceEvent) CloudEventType() string {
	if e.Type == EventTypeAggregation {
		return "pharma.epcis.aggregation.recorded"
	}
	return "pharma.epcis.object.recorded"
}
