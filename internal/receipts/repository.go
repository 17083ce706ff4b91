package receipts

import (
	"context"
	"database/sql"
	"errors"
)

// Repository writes receipts to postgres. Inserts only; prior entries are
// never updated or reordered.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a receipt repository.
func NewRepository(db *sql.DB) *Repository {
	if db == nil {
		return nil
	}
	return &Repository{db: db}
}

// Append writes one receipt.
func (r *Repository) Append(ctx context.Context, receipt Receipt) error {
	if r == nil || r.db == nil {
		return errors.New("receipts repo: nil db")
	}
	if receipt.OrderID == "" || receipt.SettledAt.IsZero() {
		return ErrInvalidReceipt
	}
	if receipt.ReceiptID == "" {
		receipt.ReceiptID = NewID()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO receipts (
	receipt_id, order_id, amount, currency, liters, customer_ref, settled_at, remaining_after
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		receipt.ReceiptID, receipt.OrderID, receipt.Amount, receipt.Currency,
		receipt.Liters, receipt.CustomerRef, receipt.SettledAt, receipt.RemainingAfter)
	return err
}

// List returns all receipts in insertion order.
func (r *Repository) List(ctx context.Context) ([]Receipt, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("receipts repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT receipt_id, order_id, amount, currency, liters, customer_ref, settled_at, remaining_after
FROM receipts
ORDER BY settled_at ASC, receipt_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Receipt
	for rows.Next() {
		var receipt Receipt
		if err := rows.Scan(
			&receipt.ReceiptID, &receipt.OrderID, &receipt.Amount, &receipt.Currency,
			&receipt.Liters, &receipt.CustomerRef, &receipt.SettledAt, &receipt.RemainingAfter,
		); err != nil {
			return nil, err
		}
		list = append(list, receipt)
	}
	return list, rows.Err()
}

// GetByOrderID fetches the receipt for a settled order.
func (r *Repository) GetByOrderID(ctx context.Context, orderID string) (Receipt, error) {
	if r == nil || r.db == nil {
		return Receipt{}, errors.New("receipts repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT receipt_id, order_id, amount, currency, liters, customer_ref, settled_at, remaining_after
FROM receipts
WHERE order_id = $1`, orderID)
	var receipt Receipt
	err := row.Scan(
		&receipt.ReceiptID, &receipt.OrderID, &receipt.Amount, &receipt.Currency,
		&receipt.Liters, &receipt.CustomerRef, &receipt.SettledAt, &receipt.RemainingAfter,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}
