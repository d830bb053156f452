package service

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autoreorder/internal/alert"
	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/ledger"
	"github.com/andresuchdata/autoreorder/internal/series"
)

type InventoryService struct {
	cycles       *CycleService
	orders       ledger.Store
	alerts       *alert.Tracker
	alertChannel string
}

func NewInventoryService(cycles *CycleService, orders ledger.Store, alerts *alert.Tracker, alertChannel string) *InventoryService {
	return &InventoryService{cycles: cycles, orders: orders, alerts: alerts, alertChannel: alertChannel}
}

// Summary combines the latest cycle with ledger and alert state.
func (s *InventoryService) Summary(ctx context.Context, materialID string) (domain.InventorySummary, error) {
	res, ok := s.cycles.Latest(materialID)
	if !ok {
		return domain.InventorySummary{}, fmt.Errorf("%w: no cycle for material %s", domain.ErrNotFound, materialID)
	}

	summary := domain.InventorySummary{
		MaterialID:       materialID,
		CurrentStock:     res.CurrentStock,
		ForecastAccuracy: res.Forecast.Accuracy,
		NextForecast:     res.Forecast.Next(),
		UpdatedAt:        res.CompletedAt,
	}
	if n := len(res.Periods); n >= 2 {
		summary.StockChange = series.PctChange(res.Periods[n-2].ClosingStock, res.Periods[n-1].ClosingStock) * 100
	}

	active, err := s.orders.List(ctx, ledger.Filter{MaterialID: materialID, ActiveOnly: true})
	if err != nil {
		return domain.InventorySummary{}, fmt.Errorf("list active orders: %w", err)
	}
	summary.ActiveOrders = len(active)

	if s.alerts != nil {
		state, err := s.AlertState(ctx, materialID)
		if err != nil {
			return domain.InventorySummary{}, err
		}
		if state.Active() {
			summary.Alert = state
		}
	}
	return summary, nil
}

// Periods returns the aggregated series from the latest cycle.
func (s *InventoryService) Periods(materialID string) ([]domain.PeriodAggregate, error) {
	res, ok := s.cycles.Latest(materialID)
	if !ok {
		return nil, fmt.Errorf("%w: no cycle for material %s", domain.ErrNotFound, materialID)
	}
	return res.Periods, nil
}

// AlertState reads the persisted alert for a material's channel. A channel
// that never alerted returns nil.
func (s *InventoryService) AlertState(ctx context.Context, materialID string) (*domain.AlertState, error) {
	state, err := s.alerts.State(ctx, alert.Channel(s.alertChannel, materialID))
	if err != nil {
		return nil, fmt.Errorf("load alert state: %w", err)
	}
	return state, nil
}
