package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	orders "watervend/internal/orders/domain"
)

// Worker sweeps stale pending orders and re-confirms them against the
// provider. A client that never returns from the checkout page cannot keep
// water held forever: once an order outlives the pending timeout, Confirm
// forces it to Expired and releases the hold.
type Worker struct {
	reconciler *Reconciler
}

// NewWorker constructs a worker around a reconciler.
func NewWorker(reconciler *Reconciler) (*Worker, error) {
	if reconciler == nil {
		return nil, errors.New("payment: nil reconciler")
	}
	return &Worker{reconciler: reconciler}, nil
}

// Run blocks until the context is cancelled, sweeping once per poll interval.
func (w *Worker) Run(ctx context.Context) {
	cfg := w.reconciler.cfg
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass over stale pending orders.
func (w *Worker) Sweep(ctx context.Context) {
	r := w.reconciler
	cutoff := r.clock.Now().Add(-r.cfg.PollInterval)
	stale, err := r.orders.ListStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		if r.logger != nil {
			r.logger.Printf("payment: list stale pending: %v", err)
		}
		return
	}
	if len(stale) == 0 {
		return
	}

	jobs := make(chan *orders.Order, len(stale))
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for order := range jobs {
				if _, err := r.Confirm(ctx, order.OrderID); err != nil && !errors.Is(err, ErrRetryable) {
					if r.logger != nil {
						r.logger.Printf("payment: sweep confirm %s: %v", order.OrderID, err)
					}
				}
			}
		}()
	}
	for _, order := range stale {
		jobs <- order
	}
	close(jobs)
	wg.Wait()
}
