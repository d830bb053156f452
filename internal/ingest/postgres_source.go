package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/shopspring/decimal"
)

// PostgresSource reads movements from the inventory_movements table.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Load reads movements for the given materials (all when empty) and returns
// one snapshot per material. The identity hashes every loaded row, so any
// insert or correction produces a new identity.
func (s *PostgresSource) Load(ctx context.Context, materials ...string) ([]Snapshot, error) {
	query := `
		SELECT material_id, posting_date, quantity_delta, monetary_amount,
		       movement_type, vendor, reported_stock
		FROM inventory_movements
	`
	var args []interface{}
	if len(materials) > 0 {
		query += ` WHERE material_id = ANY($1)`
		args = append(args, materials)
	}
	query += ` ORDER BY material_id, posting_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	hash := sha256.New()
	var records []domain.TransactionRecord
	for rows.Next() {
		var (
			rec      domain.TransactionRecord
			amount   sql.NullString
			movement sql.NullString
			vendor   sql.NullString
			stock    sql.NullFloat64
		)
		if err := rows.Scan(&rec.MaterialID, &rec.PostingDate, &rec.QuantityDelta, &amount, &movement, &vendor, &stock); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("%w: movement amount %q", ErrMalformed, amount.String)
			}
			rec.MonetaryAmount = d
		}
		rec.MovementType = movement.String
		rec.Vendor = vendor.String
		if stock.Valid {
			v := stock.Float64
			rec.ReportedStock = &v
		}
		rec.PostingDate = rec.PostingDate.UTC()

		fmt.Fprintf(hash, "%s|%s|%g|%s|%v\n", rec.MaterialID, rec.PostingDate.Format(time.RFC3339Nano),
			rec.QuantityDelta, rec.MonetaryAmount.String(), stock.Float64)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movements: %w", err)
	}

	identity := "pg:" + hex.EncodeToString(hash.Sum(nil))
	return Split("postgres:inventory_movements", identity, records), nil
}
