package service

import (
	"context"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/ledger"
	"github.com/rs/zerolog/log"
)

type OrderService struct {
	store ledger.Store
}

func NewOrderService(store ledger.Store) *OrderService {
	return &OrderService{store: store}
}

// OrderQuery carries the raw list filters from a caller.
type OrderQuery struct {
	MaterialID string
	Status     string
	ActiveOnly bool
}

func (s *OrderService) List(ctx context.Context, q OrderQuery) ([]domain.Order, error) {
	filter := ledger.Filter{MaterialID: q.MaterialID, ActiveOnly: q.ActiveOnly}
	if q.Status != "" {
		status, err := domain.ParseOrderStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = status
	}
	return s.store.List(ctx, filter)
}

func (s *OrderService) Get(ctx context.Context, id int64) (domain.Order, error) {
	return s.store.Get(ctx, id)
}

// Transition moves an order to the named status.
func (s *OrderService) Transition(ctx context.Context, id int64, label string) (domain.Order, error) {
	status, err := domain.ParseOrderStatus(label)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.store.Transition(ctx, id, status)
	if err != nil {
		return domain.Order{}, err
	}

	log.Info().Int64("order_id", id).Str("status", string(order.Status)).Msg("order transitioned")
	return order, nil
}
