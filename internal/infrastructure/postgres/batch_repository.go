package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pharmatrace/trace-engine/internal/domain"
	"github.com/pharmatrace/trace-engine/pkg/metrics"
)

const (
	selectBatchSQL = `SELECT id, product_id, batch_number, gtin, qty, sent_qty, expires_at, created_at, updated_at
FROM batches WHERE id = $1`
	reserveSQL         = `UPDATE batches SET qty = qty - $2, updated_at = now() WHERE id = $1 AND qty >= $2`
	reserveShipmentSQL = `UPDATE batches SET qty = qty - $2, sent_qty = sent_qty + $2, updated_at = now() WHERE id = $1 AND qty >= $2`
	releaseSQL         = `UPDATE batches SET qty = qty + $2, updated_at = now() WHERE id = $1`
	batchExistsSQL     = `SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)`
	insertBatchSQL     = `INSERT INTO batches (id, product_id, batch_number, gtin, qty, sent_qty, created_at, updated_at)
VALUES (:id, :product_id, :batch_number, :gtin, :qty, :sent_qty, :created_at, :updated_at)`
)

type batchRow struct {
	ID          string         `db:"id"`
	ProductID   string         `db:"product_id"`
	BatchNumber string         `db:"batch_number"`
	GTIN        sql.NullString `db:"gtin"`
	Qty         int64          `db:"qty"`
	SentQty     int64          `db:"sent_qty"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r batchRow) toDomain() *domain.Batch {
	return &domain.Batch{
		ID:          r.ID,
		ProductID:   r.ProductID,
		BatchNumber: r.BatchNumber,
		GTIN:        r.GTIN.String,
		Qty:         r.Qty,
		SentQty:     r.SentQty,
		ExpiresAt:   r.ExpiresAt.Time,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// BatchRepository stores batches in PostgreSQL. Reservations are single
// conditional UPDATEs checked through RowsAffected.
type BatchRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

func NewBatchRepository(db *sqlx.DB, m *metrics.Metrics) *BatchRepository {
	return &BatchRepository{db: db, metrics: m}
}

func (r *BatchRepository) Create(ctx context.Context, b *domain.Batch) error {
	return observe(r.metrics, "batches", "insert", func() error {
		_, err := r.db.NamedExecContext(ctx, insertBatchSQL, b)
		return err
	})
}

func (r *BatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	var row batchRow
	err := observe(r.metrics, "batches", "find", func() error {
		err := r.db.GetContext(ctx, &row, selectBatchSQL, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find batch: %w", err)
	}
	if row.ID == "" {
		return nil, nil
	}
	return row.toDomain(), nil
}

func (r *BatchRepository) TryReserve(ctx context.Context, id string, n int64) error {
	return r.reserve(ctx, reserveSQL, id, n)
}

func (r *BatchRepository) TryReserveForShipment(ctx context.Context, id string, n int64) error {
	return r.reserve(ctx, reserveShipmentSQL, id, n)
}

func (r *BatchRepository) reserve(ctx context.Context, query, id string, n int64) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}
	affected, err := r.exec(ctx, "reserve", query, id, n)
	if err != nil {
		return fmt.Errorf("failed to reserve batch quantity: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, batchExistsSQL, id); err != nil {
		return fmt.Errorf("failed to check batch: %w", err)
	}
	if !exists {
		return domain.ErrBatchNotFound
	}
	return domain.ErrInsufficientQuantity
}

func (r *BatchRepository) Release(ctx context.Context, id string, n int64) error {
	if n <= 0 {
		return domain.ErrInvalidQuantity
	}
	affected, err := r.exec(ctx, "release", releaseSQL, id, n)
	if err != nil {
		return fmt.Errorf("failed to release batch quantity: %w", err)
	}
	if affected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (r *BatchRepository) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	var affected int64
	err := observe(r.metrics, "batches", op, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
