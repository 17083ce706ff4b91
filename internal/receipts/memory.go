package receipts

import (
	"context"
	"sync"
)

// MemoryLog is an in-memory receipt log for tests.
type MemoryLog struct {
	mu   sync.Mutex
	list []Receipt
}

// NewMemoryLog constructs an in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append writes one receipt.
func (m *MemoryLog) Append(ctx context.Context, receipt Receipt) error {
	_ = ctx
	if receipt.OrderID == "" || receipt.SettledAt.IsZero() {
		return ErrInvalidReceipt
	}
	if receipt.ReceiptID == "" {
		receipt.ReceiptID = NewID()
	}
	m.mu.Lock()
	m.list = append(m.list, receipt)
	m.mu.Unlock()
	return nil
}

// List returns all receipts in insertion order.
func (m *MemoryLog) List(ctx context.Context) ([]Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Receipt(nil), m.list...), nil
}

// GetByOrderID fetches the receipt for a settled order.
func (m *MemoryLog) GetByOrderID(ctx context.Context, orderID string) (Receipt, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, receipt := range m.list {
		if receipt.OrderID == orderID {
			return receipt, nil
		}
	}
	return Receipt{}, ErrNotFound
}
