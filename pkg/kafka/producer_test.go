package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrace/trace-engine/pkg/cloudevents"
	"github.com/pharmatrace/trace-engine/pkg/logging"
)

type recordingWriter struct {
	topic    string
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer() (*Producer, map[string]*recordingWriter) {
	writers := map[string]*recordingWriter{}
	p := NewProducer(DefaultConfig())
	p.newWriter = func(topic string) MessageWriter {
		w := &recordingWriter{topic: topic}
		writers[topic] = w
		return w
	}
	return p, writers
}

func headers(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestProducer_PublishEvent(t *testing.T) {
	p, writers := newTestProducer()

	ctx := context.WithValue(context.Background(), logging.CorrelationIDKey, "corr-1")
	event := cloudevents.NewEventFactory(cloudevents.SourceTraceEngine).
		CreateEvent(ctx, cloudevents.EPCISAggregationRecorded, "urn:epc:id:sscc:0614141.1123456789", map[string]int{"children": 2})

	require.NoError(t, p.PublishEvent(context.Background(), Topics.EPCISEvents, event))

	w := writers[Topics.EPCISEvents]
	require.NotNil(t, w)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "urn:epc:id:sscc:0614141.1123456789", string(msg.Key))

	h := headers(msg)
	assert.Equal(t, "1.0", h["ce-specversion"])
	assert.Equal(t, cloudevents.EPCISAggregationRecorded, h["ce-type"])
	assert.Equal(t, cloudevents.SourceTraceEngine, h["ce-source"])
	assert.Equal(t, event.ID, h["ce-id"])
	assert.Equal(t, "corr-1", h["ce-"+cloudevents.ExtCorrelationID])
	assert.NotContains(t, h, "ce-"+cloudevents.ExtGLN)

	var decoded cloudevents.CloudEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
}

func TestProducer_ReusesWriterPerTopic(t *testing.T) {
	p, writers := newTestProducer()
	factory := cloudevents.NewEventFactory(cloudevents.SourceTraceEngine)

	for i := 0; i < 3; i++ {
		ce := factory.CreateEvent(context.Background(), cloudevents.StatusChanged, "product/P-1", nil)
		require.NoError(t, p.PublishEvent(context.Background(), Topics.LifecycleEvents, ce))
	}
	assert.Len(t, writers, 1)
	assert.Len(t, writers[Topics.LifecycleEvents].messages, 3)

	require.NoError(t, p.Close())
	assert.True(t, writers[Topics.LifecycleEvents].closed)
}

func TestProducer_WriteError(t *testing.T) {
	p, _ := newTestProducer()
	p.newWriter = func(topic string) MessageWriter {
		return &recordingWriter{topic: topic, err: errors.New("leader not available")}
	}
	ce := cloudevents.NewEventFactory(cloudevents.SourceTraceEngine).
		CreateEvent(context.Background(), cloudevents.ReturnCreated, "return/R-1", nil)

	err := p.PublishEvent(context.Background(), Topics.LifecycleEvents, ce)
	require.Error(t, err)
	assert.Contains(t, err.Error(), Topics.LifecycleEvents)
}

func TestInstrumentedProducer_NilBreakerAndMetrics(t *testing.T) {
	p, writers := newTestProducer()
	ip := NewInstrumentedProducer(p, nil, nil, logging.NewNop())

	ce := cloudevents.NewEventFactory(cloudevents.SourceTraceEngine).
		CreateEvent(context.Background(), cloudevents.DestructionApproved, "destruction/D-1", nil)
	require.NoError(t, ip.PublishEvent(context.Background(), Topics.LifecycleEvents, ce))
	assert.Len(t, writers[Topics.LifecycleEvents].messages, 1)
}
