package application

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pharmatrace/trace-engine/internal/domain"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
	"github.com/pharmatrace/trace-engine/pkg/tracing"
)

const (
	// BatchNumberMaxAttempts bounds the search for a free batch number
	BatchNumberMaxAttempts = 100

	batchSuffixLength   = 6
	batchSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// BatchNumberService generates batch numbers of the form PREFIX-YYYYMMDD-XXXXXX,
// unique per (product, user) through the persistent registry
type BatchNumberService struct {
	registry    domain.BatchNumberRegistry
	logger      *logging.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	maxAttempts int

	randMu sync.Mutex
	intN   func(n int) int
}

// BatchNumberOption customizes a BatchNumberService
type BatchNumberOption func(*BatchNumberService)

// WithClock replaces the wall clock used for the date segment
func WithClock(now func() time.Time) BatchNumberOption {
	return func(s *BatchNumberService) { s.now = now }
}

// WithRand replaces the random source of the suffix
func WithRand(r *rand.Rand) BatchNumberOption {
	return func(s *BatchNumberService) { s.intN = r.IntN }
}

// WithMaxAttempts overrides BatchNumberMaxAttempts
func WithMaxAttempts(n int) BatchNumberOption {
	return func(s *BatchNumberService) { s.maxAttempts = n }
}

func NewBatchNumberService(registry domain.BatchNumberRegistry, logger *logging.Logger, m *metrics.Metrics, opts ...BatchNumberOption) *BatchNumberService {
	s := &BatchNumberService{
		registry:    registry,
		logger:      logger.WithComponent("batch-number"),
		metrics:     m,
		now:         time.Now,
		maxAttempts: BatchNumberMaxAttempts,
		intN:        rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate reserves and returns a new batch number
func (s *BatchNumberService) Generate(ctx context.Context, cmd GenerateBatchNumberCommand) (number string, err error) {
	ctx, span := tracing.StartSpan(ctx, "application", "BatchNumberService.Generate",
		attribute.String("product.id", cmd.ProductID))
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateCommand(cmd); err != nil {
		return "", err
	}

	stem := strings.ToUpper(cmd.Prefix) + "-" + s.now().UTC().Format("20060102") + "-"
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate := stem + s.suffix()

		ok, err := s.registry.Reserve(ctx, cmd.ProductID, cmd.UserID, candidate)
		if err != nil {
			s.metrics.RecordIdentifierGenerated("batch_number", false)
			return "", storageErr("reserve batch number", err)
		}
		if ok {
			s.metrics.RecordIdentifierGenerated("batch_number", true)
			s.logger.Debug("Batch number reserved", "batchNumber", candidate, "productId", cmd.ProductID, "attempts", attempt)
			return candidate, nil
		}
	}

	s.metrics.RecordIdentifierGenerated("batch_number", false)
	s.logger.Warn("Batch number space exhausted", "prefix", cmd.Prefix, "productId", cmd.ProductID, "attempts", s.maxAttempts)
	return "", apperrors.ErrExhaustedRetries("generate batch number", s.maxAttempts)
}

func (s *BatchNumberService) suffix() string {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	var b [batchSuffixLength]byte
	for i := range b {
		b[i] = batchSuffixAlphabet[s.intN(len(batchSuffixAlphabet))]
	}
	return string(b[:])
}
