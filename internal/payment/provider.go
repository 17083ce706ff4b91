package payment

import (
	"context"
	"errors"
)

const (
	// StatusPaid means the provider confirmed the payment.
	StatusPaid = "PAID"
	// StatusActive means the session is still open and may yet be paid.
	StatusActive = "ACTIVE"
	// StatusExpired means the session lapsed without payment.
	StatusExpired = "EXPIRED"
	// StatusTerminated means the provider declined or cancelled the payment.
	StatusTerminated = "TERMINATED"
)

var (
	// ErrProviderUnavailable is returned when the provider cannot be reached
	// or answers with a server error.
	ErrProviderUnavailable = errors.New("payment: provider unavailable")
	// ErrRetryable signals an ambiguous confirmation that must be retried
	// rather than treated as a failure.
	ErrRetryable = errors.New("payment: retry later")
)

// SessionRequest asks the provider to open a payment session for an order.
type SessionRequest struct {
	OrderID     string
	Amount      float64
	Currency    string
	CustomerRef string
	ReturnURL   string
}

// OrderStatus is the provider's authoritative view of an order.
type OrderStatus struct {
	OrderID     string
	Status      string
	Amount      float64
	Currency    string
	CustomerRef string
}

// Provider is the external payment gateway.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (string, error)
	FetchStatus(ctx context.Context, orderID string) (OrderStatus, error)
}
