package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pharmatrace/trace-engine/pkg/logging"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
)

// Now returns the current time in UTC truncated to BSON date precision
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func SortDescending(field string) bson.D {
	return bson.D{{Key: field, Value: -1}}
}

// IsDuplicateKey reports a unique index violation
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// IsNoDocuments reports an empty FindOne result
func IsNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// Observer records store metrics and debug query logs for one collection
type Observer struct {
	collection string
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewObserver creates an observer. Both m and logger may be nil.
func NewObserver(collection string, m *metrics.Metrics, logger *logging.Logger) *Observer {
	return &Observer{collection: collection, metrics: m, logger: logger}
}

// Do runs fn and records its outcome. Missing documents count as success.
func (o *Observer) Do(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	failed := err != nil && !IsNoDocuments(err)
	o.metrics.RecordStoreOperation("mongodb", o.collection, operation, !failed, duration)
	if o.logger != nil {
		var logged error
		if failed {
			logged = err
		}
		o.logger.DatabaseQuery(ctx, o.collection, operation, duration, logged)
	}
	return err
}
