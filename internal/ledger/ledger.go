// Package ledger records purchase orders and moves them through their
// status lifecycle. Orders are never deleted.
package ledger

import (
	"context"

	"github.com/andresuchdata/autoreorder/internal/domain"
)

// Store is an append-only order ledger. Record and Transition are each a
// single critical section per store so concurrent cycles cannot assign the
// same id or lose a status change.
type Store interface {
	Record(ctx context.Context, draft domain.OrderDraft) (domain.Order, error)
	Transition(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error)
	Get(ctx context.Context, id int64) (domain.Order, error)
	List(ctx context.Context, filter Filter) ([]domain.Order, error)
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	MaterialID string
	Status     domain.OrderStatus
	ActiveOnly bool
}

// Match reports whether o passes the filter.
func (f Filter) Match(o domain.Order) bool {
	if f.MaterialID != "" && o.MaterialID != f.MaterialID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.ActiveOnly && !o.Status.Active() {
		return false
	}
	return true
}

// RecordAll records drafts in order and stops at the first failure, returning
// the orders recorded so far.
func RecordAll(ctx context.Context, s Store, drafts []domain.OrderDraft) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(drafts))
	for _, d := range drafts {
		o, err := s.Record(ctx, d)
		if err != nil {
			return orders, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}
