package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/ledger"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type orderRepository struct {
	db *DB
}

// NewOrderRepository returns a Postgres-backed order ledger.
func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

var _ ledger.Store = (*orderRepository)(nil)

const orderColumns = `id, material_id, quantity, status, vendor, created_at, updated_at, expected_delivery`

// Record takes a table lock so id = max + 1 cannot race across processes.
func (r *orderRepository) Record(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	var order domain.Order
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `LOCK TABLE orders IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("failed to lock orders: %w", err)
		}

		var maxID int64
		if err := tx.GetContext(ctx, &maxID, `SELECT COALESCE(MAX(id), 0) FROM orders`); err != nil {
			return fmt.Errorf("failed to read max order id: %w", err)
		}

		now := time.Now().UTC()
		order = domain.Order{
			ID:               maxID + 1,
			MaterialID:       draft.MaterialID,
			Quantity:         draft.Quantity,
			Status:           domain.OrderPending,
			Vendor:           draft.Vendor,
			CreatedAt:        now,
			UpdatedAt:        now,
			ExpectedDelivery: draft.ExpectedDelivery,
		}

		query := `
			INSERT INTO orders (` + orderColumns + `)
			VALUES (:id, :material_id, :quantity, :status, :vendor, :created_at, :updated_at, :expected_delivery)
		`
		if _, err := tx.NamedExecContext(ctx, query, order); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	log.Debug().Int64("order_id", order.ID).Str("material_id", order.MaterialID).Msg("order recorded")
	return order, nil
}

func (r *orderRepository) Transition(ctx context.Context, id int64, status domain.OrderStatus) (domain.Order, error) {
	var order domain.Order
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &order, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to load order %d: %w", id, err)
		}
		if err := domain.ValidateTransition(order.Status, status); err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}

		order.Status = status
		order.UpdatedAt = time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
			order.Status, order.UpdatedAt, id,
		); err != nil {
			return fmt.Errorf("failed to update order %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
		}
		return domain.Order{}, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter ledger.Filter) ([]domain.Order, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter.MaterialID != "" {
		args = append(args, filter.MaterialID)
		clauses = append(clauses, fmt.Sprintf("material_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ActiveOnly {
		args = append(args, domain.OrderPending, domain.OrderApproved)
		clauses = append(clauses, fmt.Sprintf("status IN ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"

	orders := []domain.Order{}
	if err := sqlx.SelectContext(ctx, r.db, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
