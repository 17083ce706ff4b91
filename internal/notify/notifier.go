package notify

import "context"

// Message represents a dispensing notification payload.
type Message struct {
	OrderID        string            `json:"order_id"`
	State          string            `json:"state"`
	Liters         float64           `json:"liters"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	CustomerRef    string            `json:"customer_ref"`
	RemainingAfter float64           `json:"remaining_after"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
