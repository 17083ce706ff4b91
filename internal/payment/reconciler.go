package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"watervend/internal/observability/metrics"
	ordersapp "watervend/internal/orders/application"
	orders "watervend/internal/orders/domain"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// Reconciler drives order transitions from provider responses. Session
// creation happens after the reservation is taken; confirmation happens
// after the provider round-trip returns. Neither holds any tank lock while
// suspended on the network.
type Reconciler struct {
	orders   *ordersapp.Service
	provider Provider
	baseURL  string
	cfg      Config
	clock    Clock
	logger   *log.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(orderService *ordersapp.Service, provider Provider, publicBaseURL string, cfg Config, clock Clock, logger *log.Logger) (*Reconciler, error) {
	if orderService == nil {
		return nil, errors.New("payment: nil order service")
	}
	if provider == nil {
		return nil, errors.New("payment: nil provider")
	}
	if clock == nil {
		return nil, errors.New("payment: nil clock")
	}
	return &Reconciler{
		orders:   orderService,
		provider: provider,
		baseURL:  publicBaseURL,
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
	}, nil
}

// StartSession opens a provider session for a pending order and stores the
// session token. On provider failure the order stays pending with its hold;
// the expiry worker releases it if no retry ever lands.
func (r *Reconciler) StartSession(ctx context.Context, order *orders.Order) (string, error) {
	if order == nil || order.Terminal() {
		return "", orders.ErrNotFound
	}

	start := time.Now()
	token, err := r.provider.CreateSession(ctx, SessionRequest{
		OrderID:     order.OrderID,
		Amount:      order.Amount,
		Currency:    order.Currency,
		CustomerRef: order.CustomerRef,
		ReturnURL:   r.returnURL(order),
	})
	metrics.ObserveProviderCall("create_session", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if err := r.orders.AttachSession(ctx, order.OrderID, token); err != nil && r.logger != nil {
		r.logger.Printf("payment: attach session for %s: %v", order.OrderID, err)
	}
	return token, nil
}

// Confirm queries the provider for the authoritative status of an order and
// applies the result. It is safe to call from the return-URL callback, the
// provider webhook and the status poller at the same time: the order-state
// compare-and-set makes duplicate deliveries no-ops.
//
// Ambiguous answers (session still open, provider unreachable) return
// ErrRetryable and leave the order pending, until the order has been pending
// longer than the configured timeout, at which point it is forced to Expired
// and its water released.
func (r *Reconciler) Confirm(ctx context.Context, orderID string) (*orders.Order, error) {
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return order, nil
	}

	start := time.Now()
	status, err := r.provider.FetchStatus(ctx, orderID)
	metrics.ObserveProviderCall("fetch_status", err, time.Since(start))
	if err != nil {
		if r.expired(order) {
			return r.resolve(ctx, orderID, ordersapp.OutcomeExpired)
		}
		return order, fmt.Errorf("%w: %v", ErrRetryable, err)
	}

	switch status.Status {
	case StatusPaid:
		return r.resolve(ctx, orderID, ordersapp.OutcomeSettled)
	case StatusTerminated:
		return r.resolve(ctx, orderID, ordersapp.OutcomeFailed)
	case StatusExpired:
		return r.resolve(ctx, orderID, ordersapp.OutcomeExpired)
	default:
		if r.expired(order) {
			return r.resolve(ctx, orderID, ordersapp.OutcomeExpired)
		}
		return order, ErrRetryable
	}
}

func (r *Reconciler) resolve(ctx context.Context, orderID string, outcome ordersapp.Outcome) (*orders.Order, error) {
	order, err := r.orders.Resolve(ctx, orderID, outcome)
	if errors.Is(err, orders.ErrAlreadyResolved) {
		// Duplicate delivery; the first caller already mutated the ledger.
		return order, nil
	}
	return order, err
}

func (r *Reconciler) expired(order *orders.Order) bool {
	return r.clock.Now().Sub(order.CreatedAt) > r.cfg.PendingTimeout
}

func (r *Reconciler) returnURL(order *orders.Order) string {
	if r.baseURL == "" {
		return ""
	}
	query := url.Values{}
	query.Set("order_id", order.OrderID)
	query.Set("liters", fmt.Sprintf("%g", order.RequestedLiters))
	return r.baseURL + "/payment-success?" + query.Encode()
}
