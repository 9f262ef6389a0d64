package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pawstails-storefront/internal/domain/receipt"
)

const (
	insertReceiptSQL = `INSERT INTO receipts
		(id, user_id, created_at, address, payment_method, lines, subtotal, tax, total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listReceiptsSQL = `SELECT id, user_id, created_at, address, payment_method, lines, subtotal, tax, total
		FROM receipts WHERE user_id = $1 ORDER BY created_at DESC`
)

var _ receipt.Repository = (*ReceiptRepository)(nil)

// ReceiptRepository implements receipt.Repository backed by PostgreSQL.
type ReceiptRepository struct {
	pool *pgxpool.Pool
}

// NewReceiptRepository returns a ReceiptRepository that uses the given pool.
func NewReceiptRepository(pool *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{pool: pool}
}

// Save persists a receipt. Lines are serialized to JSON for the JSONB column.
func (r *ReceiptRepository) Save(ctx context.Context, rec *receipt.Receipt) error {
	linesJSON, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("marshaling receipt lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, insertReceiptSQL,
		rec.ID, rec.UserID, rec.CreatedAt, rec.Address, rec.PaymentMethod,
		linesJSON, rec.Subtotal, rec.Tax, rec.Total,
	)
	if err != nil {
		return fmt.Errorf("creating receipt %q: %w", rec.ID, err)
	}
	return nil
}

// List returns the receipts of userID, newest first.
func (r *ReceiptRepository) List(ctx context.Context, userID int64) ([]receipt.Receipt, error) {
	rows, err := r.pool.Query(ctx, listReceiptsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return pgx.CollectRows(rows, scanReceipt)
}

func scanReceipt(row pgx.CollectableRow) (receipt.Receipt, error) {
	var (
		rec       receipt.Receipt
		linesJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CreatedAt, &rec.Address, &rec.PaymentMethod,
		&linesJSON, &rec.Subtotal, &rec.Tax, &rec.Total,
	)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(linesJSON, &rec.Lines); err != nil {
		return rec, fmt.Errorf("unmarshaling receipt lines: %w", err)
	}
	return rec, nil
}
