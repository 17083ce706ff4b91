package notify

import (
	"context"
	"log"

	"watervend/internal/eventing"
	ordersapp "watervend/internal/orders/application"
	orders "watervend/internal/orders/domain"
)

// Bind subscribes the notifier to order lifecycle events on the bus.
// Delivery failures are logged, never propagated back to the publisher.
func Bind(bus eventing.EventBus, notifier Notifier, logger *log.Logger) {
	if bus == nil || notifier == nil {
		return
	}
	if logger == nil {
		logger = log.Default()
	}

	bus.Subscribe(eventing.EventTypeOf[ordersapp.OrderSettled](), func(ctx context.Context, event any) error {
		settled, ok := event.(ordersapp.OrderSettled)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		err := notifier.Notify(ctx, Message{
			OrderID:        settled.OrderID,
			State:          orders.StateSettled,
			Liters:         settled.Liters,
			Amount:         settled.Amount,
			Currency:       settled.Currency,
			CustomerRef:    settled.CustomerRef,
			RemainingAfter: settled.RemainingAfter,
		})
		if err != nil {
			logger.Printf("notify: settled order %s: %v", settled.OrderID, err)
		}
		return nil
	})

	bus.Subscribe(eventing.EventTypeOf[ordersapp.OrderFailed](), func(ctx context.Context, event any) error {
		failed, ok := event.(ordersapp.OrderFailed)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		err := notifier.Notify(ctx, Message{
			OrderID: failed.OrderID,
			State:   failed.State,
			Liters:  failed.Liters,
		})
		if err != nil {
			logger.Printf("notify: failed order %s: %v", failed.OrderID, err)
		}
		return nil
	})
}
