package series

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func stock(v float64) *float64 { return &v }

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sampleRecords() []domain.TransactionRecord {
	// Deliberately out of order.
	return []domain.TransactionRecord{
		{MaterialID: "M1", PostingDate: day(2024, 1, 20), QuantityDelta: -30, ReportedStock: stock(60), MonetaryAmount: decimal.NewFromInt(-300)},
		{MaterialID: "M1", PostingDate: day(2024, 1, 1), QuantityDelta: 100, ReportedStock: stock(100), MonetaryAmount: decimal.NewFromInt(1000)},
		{MaterialID: "M1", PostingDate: day(2024, 2, 20), QuantityDelta: -20, ReportedStock: stock(40)},
		{MaterialID: "M1", PostingDate: day(2024, 1, 5), QuantityDelta: -10, ReportedStock: stock(90), MonetaryAmount: decimal.NewFromInt(-100)},
	}
}

func TestAggregate(t *testing.T) {
	periods, err := Aggregate(sampleRecords(), Options{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	if len(periods) != 4 {
		t.Fatalf("expected 4 periods, got %d", len(periods))
	}

	anchor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range periods {
		want := anchor.Add(time.Duration(i) * BucketWidth)
		if !p.PeriodStart.Equal(want) {
			t.Errorf("period %d start = %v, want %v", i, p.PeriodStart, want)
		}
	}

	tests := []struct {
		name  string
		got   func(p domain.PeriodAggregate) float64
		wants []float64
	}{
		{"net_quantity", func(p domain.PeriodAggregate) float64 { return p.NetQuantity }, []float64{90, -30, 0, -20}},
		{"closing_stock", func(p domain.PeriodAggregate) float64 { return p.ClosingStock }, []float64{90, 60, 60, 40}},
		{"rolling_mean", func(p domain.PeriodAggregate) float64 { return p.RollingMean }, []float64{90, 30, -15, -10}},
		{"rolling_std", func(p domain.PeriodAggregate) float64 { return p.RollingStd }, []float64{0, 120 / math.Sqrt2, 30 / math.Sqrt2, 20 / math.Sqrt2}},
		{"pct_change", func(p domain.PeriodAggregate) float64 { return p.PctChange }, []float64{-120.0 / 90, -120.0 / 90, -1, 0}},
		{"lag_1", func(p domain.PeriodAggregate) float64 { return p.Lags[0] }, []float64{90, 90, -30, 0}},
		{"lag_2", func(p domain.PeriodAggregate) float64 { return p.Lags[1] }, []float64{90, 90, 90, -30}},
		{"lag_3", func(p domain.PeriodAggregate) float64 { return p.Lags[2] }, []float64{90, 90, 90, 90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, want := range tt.wants {
				if got := tt.got(periods[i]); !almostEqual(got, want) {
					t.Errorf("period %d: got %v, want %v", i, got, want)
				}
			}
		})
	}

	if periods[2].Observed {
		t.Errorf("expected period 2 to be a carried (unobserved) bucket")
	}
	if !periods[0].Spend.Equal(decimal.NewFromInt(900)) {
		t.Errorf("period 0 spend = %s, want 900", periods[0].Spend)
	}
	if periods[0].Receipts != 100 {
		t.Errorf("period 0 receipts = %v, want 100", periods[0].Receipts)
	}
}

func TestAggregate_StrictlyIncreasingPeriods(t *testing.T) {
	var records []domain.TransactionRecord
	base := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 40; i >= 0; i-- {
		records = append(records, domain.TransactionRecord{
			MaterialID:    "M2",
			PostingDate:   base.AddDate(0, 0, i*5),
			QuantityDelta: float64(i%7) - 3,
		})
	}

	periods, err := Aggregate(records, Options{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	for i := 1; i < len(periods); i++ {
		if !periods[i].PeriodStart.After(periods[i-1].PeriodStart) {
			t.Fatalf("period %d start %v not after %v", i, periods[i].PeriodStart, periods[i-1].PeriodStart)
		}
	}
	for i, p := range periods {
		if math.IsNaN(p.PctChange) || math.IsInf(p.PctChange, 0) {
			t.Fatalf("period %d has non-finite pct_change %v", i, p.PctChange)
		}
	}
}

func TestAggregate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		records []domain.TransactionRecord
	}{
		{"empty input", nil},
		{
			"single period",
			[]domain.TransactionRecord{
				{MaterialID: "M", PostingDate: day(2024, 1, 1), QuantityDelta: 5},
				{MaterialID: "M", PostingDate: day(2024, 1, 10), QuantityDelta: -2},
			},
		},
		{
			"reported stock mismatch",
			[]domain.TransactionRecord{
				{MaterialID: "M", PostingDate: day(2024, 1, 1), QuantityDelta: 50, ReportedStock: stock(50)},
				{MaterialID: "M", PostingDate: day(2024, 1, 20), QuantityDelta: -10, ReportedStock: stock(45)},
			},
		},
		{
			"missing posting date",
			[]domain.TransactionRecord{
				{MaterialID: "M", QuantityDelta: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.records, Options{})
			if !errors.Is(err, domain.ErrDataIntegrity) {
				t.Fatalf("expected ErrDataIntegrity, got %v", err)
			}
		})
	}
}

func TestAggregate_SameDayReportsIgnoreInsertionOrder(t *testing.T) {
	a := domain.TransactionRecord{MaterialID: "M", PostingDate: day(2024, 1, 1), QuantityDelta: 10, ReportedStock: stock(10)}
	b := domain.TransactionRecord{MaterialID: "M", PostingDate: day(2024, 1, 1), QuantityDelta: -4, ReportedStock: stock(6)}
	c := domain.TransactionRecord{MaterialID: "M", PostingDate: day(2024, 1, 16), QuantityDelta: -1, ReportedStock: stock(5)}

	first, err := Aggregate([]domain.TransactionRecord{a, b, c}, Options{OpeningStock: stock(0)})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	second, err := Aggregate([]domain.TransactionRecord{c, b, a}, Options{OpeningStock: stock(0)})
	if err != nil {
		t.Fatalf("Aggregate() reversed error = %v", err)
	}
	for i := range first {
		if first[i].ClosingStock != second[i].ClosingStock || first[i].NetQuantity != second[i].NetQuantity {
			t.Fatalf("period %d differs by insertion order: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].ClosingStock != 6 {
		t.Errorf("closing stock = %v, want 6", first[0].ClosingStock)
	}
}

func TestAggregate_MixedTimeZones(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	records := []domain.TransactionRecord{
		{MaterialID: "M1", PostingDate: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), QuantityDelta: 100},
		// Jan 28 20:00 UTC.
		{MaterialID: "M1", PostingDate: time.Date(2024, 1, 29, 5, 0, 0, 0, tokyo), QuantityDelta: -10},
		{MaterialID: "M1", PostingDate: time.Date(2024, 1, 28, 22, 0, 0, 0, time.UTC), QuantityDelta: -5},
	}

	periods, err := Aggregate(records, Options{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(periods) != 2 {
		t.Fatalf("periods = %d, want 2", len(periods))
	}
	if periods[1].NetQuantity != -15 || periods[1].ClosingStock != 85 {
		t.Errorf("period 1 = net %v closing %v, want -15 and 85", periods[1].NetQuantity, periods[1].ClosingStock)
	}
}

func TestPctChange(t *testing.T) {
	tests := []struct {
		prev, cur, want float64
	}{
		{0, 10, 0},
		{10, 15, 0.5},
		{-10, 0, -1},
		{4, 4, 0},
	}
	for _, tt := range tests {
		if got := PctChange(tt.prev, tt.cur); !almostEqual(got, tt.want) {
			t.Errorf("PctChange(%v, %v) = %v, want %v", tt.prev, tt.cur, got, tt.want)
		}
	}
}

func TestExtend(t *testing.T) {
	periods, err := Aggregate(sampleRecords(), Options{})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	next := Extend(periods, domain.PeriodAggregate{NetQuantity: -10}, DefaultLagDepth)
	if !almostEqual(next.RollingMean, -15) {
		t.Errorf("rolling mean = %v, want -15", next.RollingMean)
	}
	if !almostEqual(next.PctChange, -0.5) {
		t.Errorf("pct change = %v, want -0.5", next.PctChange)
	}
	wantLags := []float64{-20, 0, -30}
	for k, want := range wantLags {
		if next.Lags[k] != want {
			t.Errorf("lag_%d = %v, want %v", k+1, next.Lags[k], want)
		}
	}
}
