package application

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"watervend/internal/eventing"
	"watervend/internal/observability/metrics"
	orders "watervend/internal/orders/domain"
	"watervend/internal/receipts"
	tank "watervend/internal/tank/domain"
)

// Repository persists orders. MarkResolved is the pending-to-terminal
// compare-and-set; only one caller per order gets applied=true.
type Repository interface {
	Create(ctx context.Context, order *orders.Order) error
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	AttachSession(ctx context.Context, orderID, sessionToken string) error
	MarkResolved(ctx context.Context, orderID, state string, resolvedAt time.Time) (bool, error)
	ListStalePending(ctx context.Context, before time.Time, limit int) ([]*orders.Order, error)
}

// TankLedger is the slice of the tank service the order lifecycle needs.
type TankLedger interface {
	Reserve(ctx context.Context, liters float64) (tank.Reservation, error)
	Settle(ctx context.Context, handleID string) (tank.Snapshot, error)
	Release(ctx context.Context, handleID string) (tank.Snapshot, error)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// Outcome is the final payment result applied to a pending order.
type Outcome string

const (
	OutcomeSettled Outcome = orders.StateSettled
	OutcomeFailed  Outcome = orders.StateFailed
	OutcomeExpired Outcome = orders.StateExpired
)

// CreateRequest carries a validated purchase request.
type CreateRequest struct {
	Liters      float64
	Amount      float64
	CustomerRef string
}

// Service owns the order lifecycle: reserve-then-create, exactly-once
// resolution, receipt append on settlement.
type Service struct {
	repo       Repository
	ledger     TankLedger
	receiptLog receipts.Log
	bus        eventing.EventBus
	clock      Clock
	currency   string
	logger     *log.Logger
}

// NewService constructs an order service.
func NewService(repo Repository, ledger TankLedger, receiptLog receipts.Log, bus eventing.EventBus, clock Clock, currency string, logger *log.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("orders: nil repo")
	}
	if ledger == nil {
		return nil, errors.New("orders: nil ledger")
	}
	if receiptLog == nil {
		return nil, errors.New("orders: nil receipt log")
	}
	if clock == nil {
		return nil, errors.New("orders: nil clock")
	}
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		repo:       repo,
		ledger:     ledger,
		receiptLog: receiptLog,
		bus:        bus,
		clock:      clock,
		currency:   currency,
		logger:     logger,
	}, nil
}

// Create reserves liters and records a pending order bound to the hold.
// The reservation happens first; if the order row cannot be written the
// hold is released immediately so no water is stranded.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*orders.Order, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	handle, err := s.ledger.Reserve(ctx, req.Liters)
	if err != nil {
		return nil, err
	}

	order := &orders.Order{
		OrderID:         "order_" + uuid.NewString(),
		RequestedLiters: req.Liters,
		Amount:          req.Amount,
		Currency:        s.currency,
		CustomerRef:     req.CustomerRef,
		ReservationID:   handle.ID,
		State:           orders.StatePending,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if _, releaseErr := s.ledger.Release(ctx, handle.ID); releaseErr != nil && s.logger != nil {
			s.logger.Printf("orders: release after failed create: %v", releaseErr)
		}
		return nil, err
	}
	metrics.IncOrderCreated()
	return order, nil
}

// AttachSession stores the provider session token on a pending order.
func (s *Service) AttachSession(ctx context.Context, orderID, sessionToken string) error {
	return s.repo.AttachSession(ctx, orderID, sessionToken)
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	if orderID == "" {
		return nil, orders.ErrNotFound
	}
	return s.repo.Get(ctx, orderID)
}

// ListStalePending returns pending orders older than the cutoff.
func (s *Service) ListStalePending(ctx context.Context, before time.Time, limit int) ([]*orders.Order, error) {
	return s.repo.ListStalePending(ctx, before, limit)
}

// Resolve applies the final payment outcome. The order-state compare-and-set
// decides the winner: only the first caller mutates the ledger, appends the
// receipt and publishes the event. Every later caller gets the terminal
// order together with ErrAlreadyResolved and causes no further mutation.
func (s *Service) Resolve(ctx context.Context, orderID string, outcome Outcome) (*orders.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Terminal() {
		return order, orders.ErrAlreadyResolved
	}

	state, err := stateForOutcome(outcome)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	applied, err := s.repo.MarkResolved(ctx, orderID, state, now)
	if err != nil {
		return nil, err
	}
	if !applied {
		resolved, getErr := s.repo.Get(ctx, orderID)
		if getErr != nil {
			return nil, getErr
		}
		return resolved, orders.ErrAlreadyResolved
	}

	order.State = state
	order.ResolvedAt = now

	if state == orders.StateSettled {
		s.settleLedger(ctx, order)
	} else {
		s.releaseLedger(ctx, order)
	}
	metrics.IncOrderResult(state)
	return order, nil
}

func (s *Service) settleLedger(ctx context.Context, order *orders.Order) {
	snap, err := s.ledger.Settle(ctx, order.ReservationID)
	if err != nil && s.logger != nil {
		// A reset may have invalidated the handle; the order is still settled.
		s.logger.Printf("orders: settle hold %s: %v", order.ReservationID, err)
	}

	receipt := receipts.Receipt{
		ReceiptID:      receipts.NewID(),
		OrderID:        order.OrderID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Liters:         order.RequestedLiters,
		CustomerRef:    order.CustomerRef,
		SettledAt:      order.ResolvedAt,
		RemainingAfter: snap.RemainingLiters,
	}
	if err := s.receiptLog.Append(ctx, receipt); err != nil {
		if s.logger != nil {
			s.logger.Printf("orders: append receipt for %s: %v", order.OrderID, err)
		}
	} else {
		metrics.IncReceiptAppended()
	}

	s.publish(ctx, OrderSettled{
		OrderID:        order.OrderID,
		Liters:         order.RequestedLiters,
		Amount:         order.Amount,
		Currency:       order.Currency,
		CustomerRef:    order.CustomerRef,
		RemainingAfter: snap.RemainingLiters,
		SettledAt:      order.ResolvedAt,
	})
}

func (s *Service) releaseLedger(ctx context.Context, order *orders.Order) {
	if _, err := s.ledger.Release(ctx, order.ReservationID); err != nil && s.logger != nil {
		s.logger.Printf("orders: release hold %s: %v", order.ReservationID, err)
	}
	s.publish(ctx, OrderFailed{
		OrderID:    order.OrderID,
		Liters:     order.RequestedLiters,
		State:      order.State,
		OccurredAt: order.ResolvedAt,
	})
}

func (s *Service) publish(ctx context.Context, event any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.Printf("orders: publish %s: %v", eventing.EventType(event), err)
	}
}

func validateCreate(req CreateRequest) error {
	if req.Liters <= 0 {
		return tank.ErrInvalidLiters
	}
	if req.Amount <= 0 || req.CustomerRef == "" {
		return orders.ErrInvalidOrder
	}
	return nil
}

func stateForOutcome(outcome Outcome) (string, error) {
	switch outcome {
	case OutcomeSettled, OutcomeFailed, OutcomeExpired:
		return string(outcome), nil
	default:
		return "", errors.New("orders: unknown outcome")
	}
}
