package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. All Record methods are
// safe on a nil receiver so components can run without metrics.
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	KafkaEventsPublished *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	StoreOperations        *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	OutboxPending        prometheus.Gauge
	OutboxPublished      *prometheus.CounterVec
	OutboxRetries        *prometheus.CounterVec
	OutboxPublishLatency prometheus.Observer

	IdentifiersGenerated *prometheus.CounterVec
	TraceEventsRecorded  *prometheus.CounterVec
	LifecycleTransitions *prometheus.CounterVec
	QuantityMoved        *prometheus.CounterVec
	PrefixCacheLookups   *prometheus.CounterVec
	BulkItems            *prometheus.CounterVec

	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "pharma",
	}
}

// New creates and registers all collectors on a private registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}, labels)
		registry.MustRegister(c)
		return c
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        name,
			Help:        help,
			Buckets:     buckets,
			ConstLabels: constLabels,
		}, labels)
		registry.MustRegister(h)
		return h
	}
	fast := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

	m := &Metrics{serviceName: config.ServiceName, registry: registry}

	m.HTTPRequestsTotal = counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status")
	m.HTTPRequestDuration = histogram("http_request_duration_seconds", "HTTP request duration in seconds", fast, "method", "path")

	m.KafkaEventsPublished = counter("kafka_events_published_total", "Kafka events published", "topic", "event_type", "status")
	m.KafkaPublishDuration = histogram("kafka_publish_duration_seconds", "Kafka publish duration in seconds", fast, "topic")

	m.StoreOperations = counter("store_operations_total", "Persistence operations", "store", "collection", "operation", "status")
	m.StoreOperationDuration = histogram("store_operation_duration_seconds", "Persistence operation duration in seconds", fast, "store", "collection", "operation")

	m.OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "outbox_pending_events",
		Help:        "Outbox rows seen undelivered on the last poll",
		ConstLabels: constLabels,
	})
	registry.MustRegister(m.OutboxPending)
	m.OutboxPublished = counter("outbox_published_total", "Outbox delivery attempts", "event_type", "status")
	m.OutboxRetries = counter("outbox_retries_total", "Outbox rows scheduled for retry", "event_type")
	m.OutboxPublishLatency = histogram("outbox_publish_duration_seconds", "Outbox delivery duration in seconds", fast).WithLabelValues()

	m.IdentifiersGenerated = counter("identifiers_generated_total", "GS1 identifiers and batch numbers generated", "kind", "status")
	m.TraceEventsRecorded = counter("trace_events_recorded_total", "EPCIS events appended", "event_type", "biz_step", "status")
	m.LifecycleTransitions = counter("lifecycle_transitions_total", "Lifecycle state machine transitions", "workflow", "to_state")
	m.QuantityMoved = counter("batch_quantity_moved_total", "Units moved in or out of batches", "cause", "direction")
	m.PrefixCacheLookups = counter("prefix_cache_lookups_total", "Company prefix directory lookups", "result")
	m.BulkItems = counter("bulk_status_items_total", "Items processed by bulk status updates", "status")

	m.CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   ns,
		Name:        "circuit_breaker_state",
		Help:        "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		ConstLabels: constLabels,
	}, []string{"name"})
	registry.MustRegister(m.CircuitBreakerState)
	m.CircuitBreakerTrips = counter("circuit_breaker_trips_total", "Circuit breaker trips to open", "name")

	return m
}

// Handler returns the /metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.KafkaEventsPublished.WithLabelValues(topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *Metrics) RecordStoreOperation(store, collection, operation string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreOperations.WithLabelValues(store, collection, operation, statusLabel(success)).Inc()
	m.StoreOperationDuration.WithLabelValues(store, collection, operation).Observe(duration.Seconds())
}

func (m *Metrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.OutboxPending.Set(float64(n))
}

func (m *Metrics) RecordOutboxPublish(eventType string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.OutboxPublished.WithLabelValues(eventType, statusLabel(success)).Inc()
	m.OutboxPublishLatency.Observe(duration.Seconds())
}

func (m *Metrics) RecordOutboxRetry(eventType string) {
	if m == nil {
		return
	}
	m.OutboxRetries.WithLabelValues(eventType).Inc()
}

// RecordIdentifierGenerated counts GLN, SGTIN, SSCC and batch number generation
func (m *Metrics) RecordIdentifierGenerated(kind string, success bool) {
	if m == nil {
		return
	}
	m.IdentifiersGenerated.WithLabelValues(kind, statusLabel(success)).Inc()
}

func (m *Metrics) RecordTraceEvent(eventType, bizStep string, success bool) {
	if m == nil {
		return
	}
	m.TraceEventsRecorded.WithLabelValues(eventType, bizStep, statusLabel(success)).Inc()
}

func (m *Metrics) RecordTransition(workflow, toState string) {
	if m == nil {
		return
	}
	m.LifecycleTransitions.WithLabelValues(workflow, toState).Inc()
}

// RecordQuantityMoved counts units leaving (delta < 0) or entering a batch
func (m *Metrics) RecordQuantityMoved(cause string, delta int64) {
	if m == nil || delta == 0 {
		return
	}
	direction := "in"
	if delta < 0 {
		direction = "out"
		delta = -delta
	}
	m.QuantityMoved.WithLabelValues(cause, direction).Add(float64(delta))
}

// RecordPrefixLookup counts directory lookups by result: hit, negative_hit, miss, error
func (m *Metrics) RecordPrefixLookup(result string) {
	if m == nil {
		return
	}
	m.PrefixCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBulkItem(success bool) {
	if m == nil {
		return
	}
	m.BulkItems.WithLabelValues(statusLabel(success)).Inc()
}

func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(name).Inc()
}
