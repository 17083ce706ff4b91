package application

import "time"

// OrderSettled is published after a payment is confirmed and the water hold
// is consumed.
type OrderSettled struct {
	OrderID        string    `json:"order_id"`
	Liters         float64   `json:"liters"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	CustomerRef    string    `json:"customer_ref"`
	RemainingAfter float64   `json:"remaining_after"`
	SettledAt      time.Time `json:"settled_at"`
}

// OrderFailed is published after an order fails or expires and its hold is
// returned to the tank.
type OrderFailed struct {
	OrderID    string    `json:"order_id"`
	Liters     float64   `json:"liters"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
}
