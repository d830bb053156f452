package domain

import "errors"

var (
	// ErrDataIntegrity marks impossible, out-of-order or insufficient history.
	ErrDataIntegrity = errors.New("data integrity error")
	// ErrInsufficientData marks a training split too small for the model.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidTransition marks an illegal order status change.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrNotFound marks an unknown order id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRule marks a reorder rule rejected at registration.
	ErrInvalidRule = errors.New("invalid reorder rule")
	// ErrInvalidInput marks a malformed request value.
	ErrInvalidInput = errors.New("invalid input")
)
