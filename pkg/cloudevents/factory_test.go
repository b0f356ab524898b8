package cloudevents

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrace/trace-engine/pkg/logging"
)

type batchDestroyed struct{ BatchID string }

func (batchDestroyed) EventType() string { return DestructionCompleted }

func TestEventFactory_CreateEvent(t *testing.T) {
	ctx := logging.ContextWithCorrelationID(context.Background(), "corr-1")
	ctx = logging.ContextWithActorID(ctx, "actor-7")

	f := NewEventFactory(SourceTraceEngine)
	ce := f.CreateEvent(ctx, StatusChanged, "status/B-1", map[string]string{"status": "RECALLED"})

	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.Equal(t, SourceTraceEngine, ce.Source)
	assert.Equal(t, "status/B-1", ce.Subject)
	assert.Equal(t, "application/json", ce.DataContentType)
	_, err := uuid.Parse(ce.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		ExtCorrelationID: "corr-1",
		ExtActorID:       "actor-7",
	}, ce.Extensions())
}

func TestEventFactory_FromEvent(t *testing.T) {
	f := NewEventFactory(SourceTraceEngine)
	ce := f.FromEvent(context.Background(), "destruction/D-1", batchDestroyed{BatchID: "B-1"})

	assert.Equal(t, DestructionCompleted, ce.Type)
	assert.Equal(t, batchDestroyed{BatchID: "B-1"}, ce.Data)
	assert.Empty(t, ce.Extensions())
}
