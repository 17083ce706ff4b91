package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	orders "watervend/internal/orders/domain"
)

// OrderRepository persists purchase orders.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository constructs a repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a pending order.
func (r *OrderRepository) Create(ctx context.Context, order *orders.Order) error {
	if r == nil || r.db == nil {
		return errors.New("orders repo: nil db")
	}
	if order == nil {
		return orders.ErrInvalidOrder
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (
	order_id, requested_liters, amount, currency, customer_ref,
	reservation_id, session_token, state, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		order.OrderID, order.RequestedLiters, order.Amount, order.Currency, order.CustomerRef,
		order.ReservationID, order.SessionToken, order.State, order.CreatedAt)
	return err
}

// Get fetches an order by id.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("orders repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT order_id, requested_liters, amount, currency, customer_ref,
	reservation_id, session_token, state, created_at, resolved_at
FROM orders
WHERE order_id = $1`, orderID)
	return scanOrder(row)
}

// AttachSession stores the provider session token on a pending order.
func (r *OrderRepository) AttachSession(ctx context.Context, orderID, sessionToken string) error {
	if r == nil || r.db == nil {
		return errors.New("orders repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE orders SET session_token = $2
WHERE order_id = $1 AND state = $3`, orderID, sessionToken, orders.StatePending)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return orders.ErrNotFound
	}
	return nil
}

// MarkResolved performs the pending-to-terminal compare-and-set. It returns
// true only for the caller that wins the transition; every later caller gets
// false so the ledger is mutated exactly once per order.
func (r *OrderRepository) MarkResolved(ctx context.Context, orderID, state string, resolvedAt time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("orders repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE orders SET state = $2, resolved_at = $3
WHERE order_id = $1 AND state = $4`, orderID, state, resolvedAt, orders.StatePending)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListStalePending returns pending orders created before the cutoff, oldest
// first, for the reconciliation worker.
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*orders.Order, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("orders repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT order_id, requested_liters, amount, currency, customer_ref,
	reservation_id, session_token, state, created_at, resolved_at
FROM orders
WHERE state = $1 AND created_at < $2
ORDER BY created_at ASC
LIMIT $3`, orders.StatePending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*orders.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, order)
	}
	return list, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*orders.Order, error) {
	var order orders.Order
	var resolvedAt sql.NullTime
	err := row.Scan(
		&order.OrderID, &order.RequestedLiters, &order.Amount, &order.Currency, &order.CustomerRef,
		&order.ReservationID, &order.SessionToken, &order.State, &order.CreatedAt, &resolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		order.ResolvedAt = resolvedAt.Time
	}
	return &order, nil
}
