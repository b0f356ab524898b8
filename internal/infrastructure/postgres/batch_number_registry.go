package postgres

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pharmatrace/trace-engine/pkg/metrics"
)

const (
	insertBatchNumberSQL = `INSERT INTO batch_numbers (product_id, user_id, batch_number) VALUES ($1, $2, $3)`

	uniqueViolation = pq.ErrorCode("23505")
)

// BatchNumberRegistry claims batch numbers through the batch_numbers primary key
type BatchNumberRegistry struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

func NewBatchNumberRegistry(db *sqlx.DB, m *metrics.Metrics) *BatchNumberRegistry {
	return &BatchNumberRegistry{db: db, metrics: m}
}

func (r *BatchNumberRegistry) Reserve(ctx context.Context, productID, userID, candidate string) (bool, error) {
	taken := false
	err := observe(r.metrics, "batch_numbers", "reserve", func() error {
		_, err := r.db.ExecContext(ctx, insertBatchNumberSQL, productID, userID, candidate)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			taken = true
			return nil
		}
		return err
	})
	if err != nil {
		return false, err
	}
	return !taken, nil
}
