package tank

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when capacity is not positive.
	ErrInvalidConfig = errors.New("tank: invalid config")
	// ErrInvalidLiters is returned when a non-positive liters amount is requested.
	ErrInvalidLiters = errors.New("tank: liters must be positive")
	// ErrUnknownReservation is returned when a handle is unknown or already consumed.
	ErrUnknownReservation = errors.New("tank: unknown reservation")
)

// InsufficientError is returned when a reservation exceeds the remaining water.
// Available carries the remaining liters at the time of the check so the
// caller can retry with an adjusted quantity.
type InsufficientError struct {
	Requested float64
	Available float64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("tank: insufficient water: requested %.2fL, only %.2fL available", e.Requested, e.Available)
}

// IsInsufficient reports whether err is an InsufficientError.
func IsInsufficient(err error) bool {
	var target *InsufficientError
	return errors.As(err, &target)
}
