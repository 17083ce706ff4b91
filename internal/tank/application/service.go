package application

import (
	"context"
	"errors"
	"log"

	"watervend/internal/observability/metrics"
	tank "watervend/internal/tank/domain"
)

// StateStore persists tank snapshots across restarts.
type StateStore interface {
	Load(ctx context.Context) (tank.Snapshot, bool, error)
	Save(ctx context.Context, snap tank.Snapshot) error
}

// Service coordinates the in-memory ledger with the durable state row.
// The ledger is authoritative: every mutation happens under its mutex and
// the resulting snapshot is written through to the store.
type Service struct {
	ledger *tank.Ledger
	store  StateStore
	logger *log.Logger
}

// NewService constructs a tank service.
func NewService(ledger *tank.Ledger, store StateStore, logger *log.Logger) (*Service, error) {
	if ledger == nil {
		return nil, errors.New("tank: nil ledger")
	}
	if store == nil {
		return nil, errors.New("tank: nil store")
	}
	return &Service{ledger: ledger, store: store, logger: logger}, nil
}

// Bootstrap restores persisted state, or persists the defaults on first boot.
func (s *Service) Bootstrap(ctx context.Context) error {
	snap, found, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		return s.store.Save(ctx, s.ledger.Snapshot())
	}
	return s.ledger.Restore(snap)
}

// Snapshot returns the current state.
func (s *Service) Snapshot() tank.Snapshot {
	return s.ledger.Snapshot()
}

// Configure replaces capacity and quality.
func (s *Service) Configure(ctx context.Context, capacityLiters, qualityPpm float64) (tank.Snapshot, error) {
	snap, err := s.ledger.Configure(capacityLiters, qualityPpm)
	if err != nil {
		return snap, err
	}
	s.persist(ctx, snap)
	return snap, nil
}

// Update applies a partial settings change.
func (s *Service) Update(ctx context.Context, capacityLiters, qualityPpm, remainingLiters *float64) (tank.Snapshot, error) {
	snap, err := s.ledger.Update(capacityLiters, qualityPpm, remainingLiters)
	if err != nil {
		return snap, err
	}
	s.persist(ctx, snap)
	return snap, nil
}

// Reset restores the defaults.
func (s *Service) Reset(ctx context.Context) tank.Snapshot {
	snap := s.ledger.Reset()
	s.persist(ctx, snap)
	return snap
}

// CheckRequest records a prospective liters request without taking a hold.
func (s *Service) CheckRequest(liters float64) (float64, error) {
	if liters <= 0 {
		return 0, tank.ErrInvalidLiters
	}
	ok, remaining := s.ledger.Available(liters)
	if !ok {
		metrics.IncReservationRejected()
		return remaining, &tank.InsufficientError{Requested: liters, Available: remaining}
	}
	return remaining, nil
}

// Reserve takes a provisional hold and writes the snapshot through. A store
// failure rolls the hold back so the durable and in-memory views cannot
// drift across a restart with money in flight.
func (s *Service) Reserve(ctx context.Context, liters float64) (tank.Reservation, error) {
	handle, err := s.ledger.Reserve(liters)
	if err != nil {
		if tank.IsInsufficient(err) {
			metrics.IncReservationRejected()
		}
		return tank.Reservation{}, err
	}
	if err := s.store.Save(ctx, s.ledger.Snapshot()); err != nil {
		if _, releaseErr := s.ledger.Release(handle.ID); releaseErr != nil && s.logger != nil {
			s.logger.Printf("tank: rollback release failed: %v", releaseErr)
		}
		return tank.Reservation{}, err
	}
	return handle, nil
}

// Settle permanently consumes a held reservation.
func (s *Service) Settle(ctx context.Context, handleID string) (tank.Snapshot, error) {
	snap, err := s.ledger.Settle(handleID)
	if err != nil {
		return snap, err
	}
	s.persist(ctx, snap)
	return snap, nil
}

// Release returns a held reservation to the available supply.
func (s *Service) Release(ctx context.Context, handleID string) (tank.Snapshot, error) {
	snap, err := s.ledger.Release(handleID)
	if err != nil {
		return snap, err
	}
	s.persist(ctx, snap)
	return snap, nil
}

func (s *Service) persist(ctx context.Context, snap tank.Snapshot) {
	if err := s.store.Save(ctx, snap); err != nil && s.logger != nil {
		s.logger.Printf("tank: persist snapshot failed: %v", err)
	}
}
