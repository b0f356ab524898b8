package cloudevents

import "time"

// Event types emitted by the traceability engine
const (
	EPCISAggregationRecorded = "pharma.epcis.aggregation.recorded"
	EPCISObjectRecorded      = "pharma.epcis.object.recorded"

	StatusChanged = "pharma.status.changed"

	DestructionInitiated = "pharma.destruction.initiated"
	DestructionApproved  = "pharma.destruction.approved"
	DestructionRejected  = "pharma.destruction.rejected"
	DestructionCompleted = "pharma.destruction.completed"

	ReturnCreated   = "pharma.return.created"
	ReturnProcessed = "pharma.return.processed"
)

// Source of every event produced by this process
const SourceTraceEngine = "/pharma/trace-engine"

// Extension attribute names
const (
	ExtCorrelationID = "pharmacorrelationid"
	ExtActorID       = "pharmaactorid"
	ExtGLN           = "pharmagln"
)

// CloudEvent is a CloudEvents v1.0 envelope
type CloudEvent struct {
	SpecVersion     string    `json:"specversion"`
	Type            string    `json:"type"`
	Source          string    `json:"source"`
	Subject         string    `json:"subject,omitempty"`
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	DataContentType string    `json:"datacontenttype"`
	Data            any       `json:"data"`

	CorrelationID string `json:"pharmacorrelationid,omitempty"`
	ActorID       string `json:"pharmaactorid,omitempty"`
	GLN           string `json:"pharmagln,omitempty"`
}

// Extensions returns the set extension attributes keyed by their CloudEvents name
func (e *CloudEvent) Extensions() map[string]string {
	ext := make(map[string]string, 3)
	if e.CorrelationID != "" {
		ext[ExtCorrelationID] = e.CorrelationID
	}
	if e.ActorID != "" {
		ext[ExtActorID] = e.ActorID
	}
	if e.GLN != "" {
		ext[ExtGLN] = e.GLN
	}
	return ext
}
