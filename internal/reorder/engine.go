// Package reorder turns stock levels and demand forecasts into purchase
// order drafts.
package reorder

import (
	"math"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
)

// BufferFactor is the fixed safety margin applied to forecast demand when
// sizing an order.
const BufferFactor = 1.1

// Decide evaluates every rule in order against the current stock and the
// next-period demand forecast. Rules sharing a material id collapse to the
// last one, kept at the first one's position. It performs no I/O and reads no
// clock; now is only used to stamp expected delivery.
func Decide(now time.Time, stock, forecast float64, rules []domain.ReorderRule) []domain.OrderDraft {
	var drafts []domain.OrderDraft
	for _, rule := range uniqueRules(rules) {
		if !Triggered(stock, rule) {
			continue
		}
		drafts = append(drafts, domain.OrderDraft{
			MaterialID:       rule.MaterialID,
			Quantity:         OrderQuantity(forecast, rule),
			Vendor:           rule.Vendor,
			ExpectedDelivery: now.AddDate(0, 0, rule.LeadTimeDays),
		})
	}
	return drafts
}

// uniqueRules applies last-write-wins per material id, in first-seen order.
func uniqueRules(rules []domain.ReorderRule) []domain.ReorderRule {
	pos := make(map[string]int, len(rules))
	out := make([]domain.ReorderRule, 0, len(rules))
	for _, r := range rules {
		if i, ok := pos[r.MaterialID]; ok {
			out[i] = r
			continue
		}
		pos[r.MaterialID] = len(out)
		out = append(out, r)
	}
	return out
}

// Triggered reports whether stock has reached the rule's reorder point. A
// reorder point of 0 only fires for negative (backordered) stock.
func Triggered(stock float64, rule domain.ReorderRule) bool {
	if rule.ReorderPoint == 0 {
		return stock < 0
	}
	return stock <= rule.ReorderPoint
}

// OrderQuantity is the larger of the rule's order quantity and the buffered
// forecast, rounded up.
func OrderQuantity(forecast float64, rule domain.ReorderRule) float64 {
	buffered := 0.0
	if forecast > 0 && !math.IsInf(forecast, 0) {
		// Round away float noise so 40 × 1.1 sizes to 44, not 45.
		buffered = math.Ceil(math.Round(forecast*BufferFactor*1e6) / 1e6)
	}
	return math.Max(rule.OrderQuantity, buffered)
}

// Demand converts a forecast net quantity into positive consumption units.
// A net inflow means no demand.
func Demand(forecastNet float64) float64 {
	if forecastNet >= 0 || math.IsNaN(forecastNet) {
		return 0
	}
	return -forecastNet
}

// Shortage is how far required consumption exceeds available stock, both in
// positive units. Negative available stock counts as nothing on hand.
func Shortage(required, available float64) float64 {
	required = math.Max(0, required)
	available = math.Max(0, available)
	return math.Max(0, required-available)
}
