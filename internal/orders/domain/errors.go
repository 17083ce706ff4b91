package orders

import "errors"

var (
	// ErrNotFound is returned when an order id is unknown.
	ErrNotFound = errors.New("orders: not found")
	// ErrAlreadyResolved is returned when resolving an order that already
	// reached a terminal state. It is benign: the caller gets the existing
	// terminal order and no ledger mutation happens.
	ErrAlreadyResolved = errors.New("orders: already resolved")
	// ErrInvalidOrder is returned when required fields are missing or out of range.
	ErrInvalidOrder = errors.New("orders: invalid order")
)
