package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/kafka"
	"github.com/pharmatrace/trace-engine/pkg/mongodb"
)

// Batch store backends
const (
	BatchStoreMongo    = "mongodb"
	BatchStorePostgres = "postgres"
)

// Config holds application configuration. Values come from the environment
// and may be overridden by the YAML file named in CONFIG_FILE.
type Config struct {
	ServerAddr  string `yaml:"serverAddr" validate:"required"`
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"logLevel" validate:"oneof=debug info warn error"`

	MongoURI      string `yaml:"mongoUri" validate:"required"`
	MongoDatabase string `yaml:"mongoDatabase" validate:"required"`

	KafkaBrokers []string `yaml:"kafkaBrokers" validate:"required,min=1,dive,required"`

	// RedisURL selects the shared prefix cache. Empty keeps it in process.
	RedisURL            string        `yaml:"redisUrl" validate:"omitempty,url"`
	PrefixCacheTTL      time.Duration `yaml:"prefixCacheTtl" validate:"gt=0"`
	PrefixCacheCapacity int           `yaml:"prefixCacheCapacity" validate:"gt=0"`

	BatchStore  string `yaml:"batchStore" validate:"oneof=mongodb postgres"`
	PostgresDSN string `yaml:"postgresDsn" validate:"required_if=BatchStore postgres"`

	DestructionApprovalThreshold int64 `yaml:"destructionApprovalThreshold" validate:"gt=0"`

	OTLPEndpoint   string `yaml:"otlpEndpoint"`
	TracingEnabled bool   `yaml:"tracingEnabled"`

	OutboxPollInterval time.Duration `yaml:"outboxPollInterval" validate:"gt=0"`
	OutboxBatchSize    int           `yaml:"outboxBatchSize" validate:"gt=0"`
}

// Load reads the environment, applies the optional YAML overlay and validates
func Load() (*Config, error) {
	cfg := fromEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() *Config {
	return &Config{
		ServerAddr:                   getEnv("SERVER_ADDR", ":8080"),
		Environment:                  getEnv("ENVIRONMENT", "development"),
		LogLevel:                     strings.ToLower(getEnv("LOG_LEVEL", "info")),
		MongoURI:                     getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:                getEnv("MONGODB_DATABASE", "pharma_trace"),
		KafkaBrokers:                 splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		RedisURL:                     getEnv("REDIS_URL", ""),
		PrefixCacheTTL:               getDuration("PREFIX_CACHE_TTL", time.Hour),
		PrefixCacheCapacity:          getInt("PREFIX_CACHE_CAPACITY", 10000),
		BatchStore:                   getEnv("BATCH_STORE", BatchStoreMongo),
		PostgresDSN:                  getEnv("POSTGRES_DSN", ""),
		DestructionApprovalThreshold: int64(getInt("DESTRUCTION_APPROVAL_THRESHOLD", int(domain.DefaultApprovalThreshold))),
		OTLPEndpoint:                 getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled:               getEnv("TRACING_ENABLED", "false") == "true",
		OutboxPollInterval:           getDuration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:              getInt("OUTBOX_BATCH_SIZE", 100),
	}
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config YAML: %w", err)
	}
	return nil
}

// Validate checks the struct tags
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) Mongo() *mongodb.Config {
	mc := mongodb.DefaultConfig()
	mc.URI = c.MongoURI
	mc.Database = c.MongoDatabase
	return mc
}

func (c *Config) Kafka() *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.KafkaBrokers
	return kc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
