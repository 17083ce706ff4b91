package tank

import (
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultCapacityLiters is the factory tank capacity.
	DefaultCapacityLiters = 500
	// DefaultQualityPpm is the factory TDS reading.
	DefaultQualityPpm = 150
)

// Snapshot is a read-only copy of the tank state.
type Snapshot struct {
	CapacityLiters  float64 `json:"tank_capacity"`
	QualityPpm      float64 `json:"tds"`
	RemainingLiters float64 `json:"remaining"`
	HeldLiters      float64 `json:"held"`
	Version         int64   `json:"-"`
}

// Reservation is a provisional hold on the tank, pending settlement or release.
type Reservation struct {
	ID     string
	Liters float64
}

// Ledger tracks how much water is available, held and consumed for one tank.
// All mutations run under a single mutex; Reserve's check-and-decrement is
// one critical section so concurrent callers can never both pass the check
// against the same remaining value.
type Ledger struct {
	mu        sync.Mutex
	capacity  float64
	quality   float64
	remaining float64
	holds     map[string]float64
	version   int64
}

// NewLedger constructs a ledger with the factory defaults.
func NewLedger() *Ledger {
	return &Ledger{
		capacity:  DefaultCapacityLiters,
		quality:   DefaultQualityPpm,
		remaining: DefaultCapacityLiters,
		holds:     make(map[string]float64),
	}
}

// Restore seeds the ledger from a persisted snapshot. Outstanding holds are
// not restored: orders pending at crash time are expired by the reconciler,
// whose releases on unknown handles are no-ops.
func (l *Ledger) Restore(snap Snapshot) error {
	if snap.CapacityLiters <= 0 {
		return ErrInvalidConfig
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capacity = snap.CapacityLiters
	l.quality = snap.QualityPpm
	l.remaining = snap.RemainingLiters
	if l.remaining < 0 {
		l.remaining = 0
	}
	if l.remaining > l.capacity {
		l.remaining = l.capacity
	}
	l.holds = make(map[string]float64)
	l.version = snap.Version
	return nil
}

// Configure replaces capacity and quality. If the new capacity is smaller
// than remaining plus outstanding holds, remaining is clamped down to
// capacity minus held; it is never raised.
func (l *Ledger) Configure(capacityLiters, qualityPpm float64) (Snapshot, error) {
	if capacityLiters <= 0 {
		return Snapshot{}, ErrInvalidConfig
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capacity = capacityLiters
	l.quality = qualityPpm
	if held := l.heldLocked(); l.remaining+held > l.capacity {
		l.remaining = l.capacity - held
	}
	if l.remaining < 0 {
		l.remaining = 0
	}
	l.version++
	return l.snapshotLocked(), nil
}

// Update applies a partial settings change. Nil fields are left untouched.
// Shrinking capacity below remaining+held clamps remaining down, never up.
func (l *Ledger) Update(capacityLiters, qualityPpm, remainingLiters *float64) (Snapshot, error) {
	if capacityLiters == nil && qualityPpm == nil && remainingLiters == nil {
		return Snapshot{}, ErrInvalidConfig
	}
	if capacityLiters != nil && *capacityLiters <= 0 {
		return Snapshot{}, ErrInvalidConfig
	}
	if remainingLiters != nil && *remainingLiters < 0 {
		return Snapshot{}, ErrInvalidConfig
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if capacityLiters != nil {
		l.capacity = *capacityLiters
	}
	if qualityPpm != nil {
		l.quality = *qualityPpm
	}
	if remainingLiters != nil {
		l.remaining = *remainingLiters
	}
	held := l.heldLocked()
	if l.remaining+held > l.capacity {
		l.remaining = l.capacity - held
	}
	if l.remaining < 0 {
		l.remaining = 0
	}
	l.version++
	return l.snapshotLocked(), nil
}

// Reserve moves liters from remaining to held and returns a handle.
func (l *Ledger) Reserve(liters float64) (Reservation, error) {
	if liters <= 0 {
		return Reservation{}, ErrInvalidLiters
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if liters > l.remaining {
		return Reservation{}, &InsufficientError{Requested: liters, Available: l.remaining}
	}
	handle := Reservation{ID: uuid.NewString(), Liters: liters}
	l.remaining -= liters
	l.holds[handle.ID] = liters
	l.version++
	return handle, nil
}

// Settle consumes a held reservation permanently. Unknown or already
// consumed handles fail with ErrUnknownReservation and change nothing.
func (l *Ledger) Settle(handleID string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.holds[handleID]; !ok {
		return l.snapshotLocked(), ErrUnknownReservation
	}
	delete(l.holds, handleID)
	l.version++
	return l.snapshotLocked(), nil
}

// Release returns a held reservation to the available supply. Idempotent
// under the same rule as Settle.
func (l *Ledger) Release(handleID string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	liters, ok := l.holds[handleID]
	if !ok {
		return l.snapshotLocked(), ErrUnknownReservation
	}
	delete(l.holds, handleID)
	l.remaining += liters
	if l.remaining > l.capacity {
		l.remaining = l.capacity
	}
	l.version++
	return l.snapshotLocked(), nil
}

// Reset restores the factory defaults and invalidates all outstanding holds.
func (l *Ledger) Reset() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capacity = DefaultCapacityLiters
	l.quality = DefaultQualityPpm
	l.remaining = DefaultCapacityLiters
	l.holds = make(map[string]float64)
	l.version++
	return l.snapshotLocked()
}

// Snapshot returns a read-only copy of the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Available reports whether liters could currently be reserved.
func (l *Ledger) Available(liters float64) (bool, float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return liters > 0 && liters <= l.remaining, l.remaining
}

func (l *Ledger) heldLocked() float64 {
	var held float64
	for _, liters := range l.holds {
		held += liters
	}
	return held
}

func (l *Ledger) snapshotLocked() Snapshot {
	return Snapshot{
		CapacityLiters:  l.capacity,
		QualityPpm:      l.quality,
		RemainingLiters: l.remaining,
		HeldLiters:      l.heldLocked(),
		Version:         l.version,
	}
}
