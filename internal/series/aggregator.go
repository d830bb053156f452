// Package series turns irregular inventory movements into a regular biweekly
// series with the engineered features used by the demand model.
package series

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// BucketWidth is the fixed aggregation window.
	BucketWidth = 14 * 24 * time.Hour
	// RollingWindow is the trailing window for rolling_mean / rolling_std.
	RollingWindow = 2
	// DefaultLagDepth is the number of lag features produced per period.
	DefaultLagDepth = 3
	// MinPeriods is the shortest series the aggregator will return.
	MinPeriods = 2

	defaultTolerance = 1e-6
)

// Options controls aggregation.
type Options struct {
	LagDepth int
	// OpeningStock is the stock level before the first record. When nil it is
	// inferred from the first day that carries a reported stock, or 0.
	OpeningStock *float64
	// Tolerance is the absolute difference allowed between the running balance
	// and a reported stock before the input is rejected.
	Tolerance float64
}

func (o Options) withDefaults() Options {
	if o.LagDepth <= 0 {
		o.LagDepth = DefaultLagDepth
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultTolerance
	}
	return o
}

// dayTotals collects all postings that share one calendar day.
type dayTotals struct {
	day      time.Time
	net      float64
	receipts float64
	spend    decimal.Decimal
	reported []float64
}

// Aggregate sorts records by posting date, checks the running balance against
// reported stock levels and buckets the movements into a 14-day grid anchored
// at the first observed day. Every bucket between the first and last
// observation is returned; buckets without movements carry the previous
// closing stock and a zero net quantity.
func Aggregate(records []domain.TransactionRecord, opts Options) ([]domain.PeriodAggregate, error) {
	opts = opts.withDefaults()
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no transactions to aggregate", domain.ErrDataIntegrity)
	}

	days, err := groupByDay(records)
	if err != nil {
		return nil, err
	}

	balances, err := runningBalances(days, opts)
	if err != nil {
		return nil, err
	}

	anchor := days[0].day
	last := int(days[len(days)-1].day.Sub(anchor) / BucketWidth)
	if last+1 < MinPeriods {
		return nil, fmt.Errorf("%w: %d period(s) of history, need at least %d",
			domain.ErrDataIntegrity, last+1, MinPeriods)
	}

	periods := make([]domain.PeriodAggregate, last+1)
	for i := range periods {
		periods[i].PeriodStart = anchor.Add(time.Duration(i) * BucketWidth)
		periods[i].Spend = decimal.Zero
	}

	for i, d := range days {
		idx := int(d.day.Sub(anchor) / BucketWidth)
		p := &periods[idx]
		p.NetQuantity += d.net
		p.Receipts += d.receipts
		p.Spend = p.Spend.Add(d.spend)
		p.ClosingStock = balances[i]
		p.Observed = true
	}

	carried := balances[0] - days[0].net
	for i := range periods {
		if !periods[i].Observed {
			periods[i].ClosingStock = carried
		}
		carried = periods[i].ClosingStock
	}

	applyFeatures(periods, opts.LagDepth)
	return periods, nil
}

func groupByDay(records []domain.TransactionRecord) ([]dayTotals, error) {
	sorted := make([]domain.TransactionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PostingDate.Before(sorted[j].PostingDate)
	})

	var days []dayTotals
	for _, r := range sorted {
		if r.PostingDate.IsZero() {
			return nil, fmt.Errorf("%w: material %s has a record without posting date",
				domain.ErrDataIntegrity, r.MaterialID)
		}
		if math.IsNaN(r.QuantityDelta) || math.IsInf(r.QuantityDelta, 0) {
			return nil, fmt.Errorf("%w: non-finite quantity on %s",
				domain.ErrDataIntegrity, r.PostingDate.Format("2006-01-02"))
		}

		day := truncateDay(r.PostingDate)
		if len(days) == 0 || !days[len(days)-1].day.Equal(day) {
			days = append(days, dayTotals{day: day, spend: decimal.Zero})
		}
		d := &days[len(days)-1]
		d.net += r.QuantityDelta
		if r.QuantityDelta > 0 {
			d.receipts += r.QuantityDelta
		}
		d.spend = d.spend.Add(r.MonetaryAmount)
		if r.ReportedStock != nil {
			d.reported = append(d.reported, *r.ReportedStock)
		}
	}
	return days, nil
}

// runningBalances returns the end-of-day stock for every day. A day whose
// reported stock levels do not include the running balance is rejected: the
// intra-day order of postings is unknown, so any one of the day's reports may
// be the closing one.
func runningBalances(days []dayTotals, opts Options) ([]float64, error) {
	opening := 0.0
	switch {
	case opts.OpeningStock != nil:
		opening = *opts.OpeningStock
	default:
		cum := 0.0
		for _, d := range days {
			cum += d.net
			if len(d.reported) > 0 {
				opening = d.reported[len(d.reported)-1] - cum
				break
			}
		}
	}

	balances := make([]float64, len(days))
	running := opening
	for i, d := range days {
		running += d.net
		if len(d.reported) > 0 {
			if _, ok := matchReported(running, d.reported, opts.Tolerance); !ok {
				return nil, fmt.Errorf("%w: running stock %.4f on %s does not match reported %v",
					domain.ErrDataIntegrity, running, d.day.Format("2006-01-02"), d.reported)
			}
		}
		balances[i] = running
	}
	return balances, nil
}

func matchReported(balance float64, reported []float64, tolerance float64) (float64, bool) {
	for _, r := range reported {
		if math.Abs(r-balance) <= tolerance {
			return r, true
		}
	}
	return 0, false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
