package kafka

import "time"

// Config holds Kafka producer configuration
type Config struct {
	Brokers  []string
	ClientID string

	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:      []string{"localhost:9092"},
		ClientID:     "trace-engine",
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1,
		WriteTimeout: 10 * time.Second,
	}
}

// Topics contains the engine's Kafka topic names
var Topics = struct {
	// EPCISEvents carries recorded aggregation and object events
	EPCISEvents string
	// LifecycleEvents carries status, destruction and return transitions
	LifecycleEvents string
}{
	EPCISEvents:     "pharma.epcis.events",
	LifecycleEvents: "pharma.lifecycle.events",
}
