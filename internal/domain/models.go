package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is a single inventory movement for a material.
type TransactionRecord struct {
	MaterialID     string          `json:"material_id" db:"material_id"`
	PostingDate    time.Time       `json:"posting_date" db:"posting_date"`
	QuantityDelta  float64         `json:"quantity_delta" db:"quantity_delta"` // signed: receipts positive, consumption negative
	MonetaryAmount decimal.Decimal `json:"monetary_amount" db:"monetary_amount"`
	MovementType   string          `json:"movement_type" db:"movement_type"`
	Vendor         string          `json:"vendor" db:"vendor"`
	// ReportedStock is the stock level the source system reported right after
	// this posting. Nil when the source does not carry one.
	ReportedStock *float64 `json:"reported_stock,omitempty" db:"reported_stock"`
}

// PeriodAggregate is one biweekly bucket of the regularized series.
type PeriodAggregate struct {
	PeriodStart  time.Time       `json:"period_start"`
	NetQuantity  float64         `json:"net_quantity"`
	Receipts     float64         `json:"receipts"`
	ClosingStock float64         `json:"closing_stock"`
	Spend        decimal.Decimal `json:"spend"`
	RollingMean  float64         `json:"rolling_mean"`
	RollingStd   float64         `json:"rolling_std"`
	PctChange    float64         `json:"pct_change"`
	Lags         []float64       `json:"lags"` // Lags[0] is lag_1
	Observed     bool            `json:"observed"`
}

// PeriodEnd returns the exclusive end of the bucket.
func (p PeriodAggregate) PeriodEnd(width time.Duration) time.Time {
	return p.PeriodStart.Add(width)
}

// ReorderRule holds the replenishment thresholds for one material.
type ReorderRule struct {
	MaterialID    string  `json:"material_id" mapstructure:"material_id" binding:"required"`
	MinStock      float64 `json:"min_stock" mapstructure:"min_stock"`
	ReorderPoint  float64 `json:"reorder_point" mapstructure:"reorder_point"`
	OrderQuantity float64 `json:"order_quantity" mapstructure:"order_quantity"`
	Vendor        string  `json:"vendor" mapstructure:"vendor"`
	LeadTimeDays  int     `json:"lead_time_days" mapstructure:"lead_time_days"`
}

// OrderDraft is a fully computed purchase action that has not been given an
// identity yet.
type OrderDraft struct {
	MaterialID       string    `json:"material_id"`
	Quantity         float64   `json:"quantity"`
	Vendor           string    `json:"vendor"`
	ExpectedDelivery time.Time `json:"expected_delivery"`
}

// Order is a ledger entry. It is never deleted.
type Order struct {
	ID               int64       `json:"id" db:"id"`
	MaterialID       string      `json:"material_id" db:"material_id"`
	Quantity         float64     `json:"quantity" db:"quantity"`
	Status           OrderStatus `json:"status" db:"status"`
	Vendor           string      `json:"vendor" db:"vendor"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
	ExpectedDelivery time.Time   `json:"expected_delivery" db:"expected_delivery"`
}

// AlertState is the persisted last emitted alert for a channel.
type AlertState struct {
	Channel                string    `json:"channel"`
	AlertFingerprint       string    `json:"alert_fingerprint"`
	TriggerPeriodEnd       time.Time `json:"trigger_period_end"`
	SourceSnapshotIdentity string    `json:"source_snapshot_identity"`
	LastCheckedAt          time.Time `json:"last_checked_at"`
}

// Active reports whether the state represents an alert that has been emitted
// and not cleared.
func (s *AlertState) Active() bool {
	return s != nil && s.AlertFingerprint != ""
}

// InventorySummary is the per-material overview served to dashboards.
type InventorySummary struct {
	MaterialID       string      `json:"material_id"`
	CurrentStock     float64     `json:"current_stock"`
	StockChange      float64     `json:"stock_change"`
	ForecastAccuracy float64     `json:"forecast_accuracy"`
	NextForecast     float64     `json:"next_forecast"`
	ActiveOrders     int         `json:"active_orders"`
	Alert            *AlertState `json:"alert,omitempty"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
