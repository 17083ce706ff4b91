package receipts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Receipt is the durable record of one settled order. Written once at
// settlement, never mutated or deleted.
type Receipt struct {
	ReceiptID      string    `json:"receipt_id"`
	OrderID        string    `json:"order_id"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Liters         float64   `json:"liters"`
	CustomerRef    string    `json:"customer_ref"`
	SettledAt      time.Time `json:"settled_at"`
	RemainingAfter float64   `json:"remaining_after"`
}

// ErrNotFound is returned when a receipt is not found.
var ErrNotFound = errors.New("receipts: not found")

// ErrInvalidReceipt is returned when required fields are missing.
var ErrInvalidReceipt = errors.New("receipts: invalid receipt")

// Log is the append-only receipt history.
type Log interface {
	Append(ctx context.Context, receipt Receipt) error
	List(ctx context.Context) ([]Receipt, error)
	GetByOrderID(ctx context.Context, orderID string) (Receipt, error)
}

// NewID generates a receipt id.
func NewID() string {
	return "rcpt_" + uuid.NewString()
}
