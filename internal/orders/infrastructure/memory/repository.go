package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	orders "watervend/internal/orders/domain"
)

// OrderRepository is an in-memory repository for tests.
type OrderRepository struct {
	mu   sync.Mutex
	data map[string]*orders.Order
}

// NewOrderRepository constructs a repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{data: make(map[string]*orders.Order)}
}

// Create inserts a pending order.
func (r *OrderRepository) Create(ctx context.Context, order *orders.Order) error {
	_ = ctx
	if order == nil || order.OrderID == "" {
		return orders.ErrInvalidOrder
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *order
	r.data[order.OrderID] = &copy
	return nil
}

// Get fetches an order by id.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.data[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	copy := *order
	return &copy, nil
}

// AttachSession stores the provider session token.
func (r *OrderRepository) AttachSession(ctx context.Context, orderID, sessionToken string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.data[orderID]
	if !ok || order.State != orders.StatePending {
		return orders.ErrNotFound
	}
	order.SessionToken = sessionToken
	return nil
}

// MarkResolved performs the pending-to-terminal compare-and-set.
func (r *OrderRepository) MarkResolved(ctx context.Context, orderID, state string, resolvedAt time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.data[orderID]
	if !ok {
		return false, orders.ErrNotFound
	}
	if order.State != orders.StatePending {
		return false, nil
	}
	order.State = state
	order.ResolvedAt = resolvedAt
	return true, nil
}

// ListStalePending returns pending orders created before the cutoff.
func (r *OrderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*orders.Order, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []*orders.Order
	for _, order := range r.data {
		if order.State == orders.StatePending && order.CreatedAt.Before(before) {
			copy := *order
			list = append(list, &copy)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}
