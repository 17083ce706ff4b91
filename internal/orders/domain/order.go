package orders

import "time"

const (
	StatePending = "pending"
	StateSettled = "settled"
	StateFailed  = "failed"
	StateExpired = "expired"
)

// Order is one purchase attempt against the tank. An order is created
// Pending with a reservation already taken, transitions exactly once to a
// terminal state and is immutable afterwards.
type Order struct {
	OrderID         string
	RequestedLiters float64
	Amount          float64
	Currency        string
	CustomerRef     string
	ReservationID   string
	SessionToken    string
	State           string
	CreatedAt       time.Time
	ResolvedAt      time.Time
}

// Terminal reports whether the order has reached a final state.
func (o *Order) Terminal() bool {
	return o != nil && o.State != StatePending
}
