package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/rs/zerolog/log"
)

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	orders []domain.Order
	index  map[int64]int
	now    func() time.Time
}

// NewMemoryStore creates an empty ledger. A nil clock uses time.Now.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{index: make(map[int64]int), now: clock}
}

// Record assigns id = max(existing) + 1 and appends a pending order.
func (s *MemoryStore) Record(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID int64
	for _, o := range s.orders {
		if o.ID > maxID {
			maxID = o.ID
		}
	}

	now := s.now().UTC()
	order := domain.Order{
		ID:               maxID + 1,
		MaterialID:       draft.MaterialID,
		Quantity:         draft.Quantity,
		Status:           domain.OrderPending,
		Vendor:           draft.Vendor,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpectedDelivery: draft.ExpectedDelivery,
	}
	s.index[order.ID] = len(s.orders)
	s.orders = append(s.orders, order)

	log.Debug().Int64("order_id", order.ID).Str("material_id", order.MaterialID).Msg("order recorded")
	return order, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err := domain.ValidateTransition(s.orders[i].Status, status); err != nil {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, err)
	}

	s.orders[i].Status = status
	s.orders[i].UpdatedAt = s.now().UTC()

	log.Debug().Int64("order_id", id).Str("status", string(status)).Msg("order transitioned")
	return s.orders[i], nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	return s.orders[i], nil
}

// List returns matching orders by ascending id.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}
