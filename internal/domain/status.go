package domain

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of a ledger order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderShipped   OrderStatus = "shipped"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:  {OrderApproved, OrderCancelled},
	OrderApproved: {OrderShipped, OrderCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Active reports whether the order is still open (not shipped or cancelled).
func (s OrderStatus) Active() bool {
	return s == OrderPending || s == OrderApproved
}

// ParseOrderStatus returns the status for a given label (case-insensitive).
func ParseOrderStatus(label string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(label)))
	switch status {
	case OrderPending, OrderApproved, OrderShipped, OrderCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, label)
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to OrderStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
