package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/autoreorder/internal/alert"
	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/forecast"
	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/andresuchdata/autoreorder/internal/ledger"
	"github.com/andresuchdata/autoreorder/internal/notify"
	"github.com/andresuchdata/autoreorder/internal/reorder"
	"github.com/andresuchdata/autoreorder/internal/series"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// constModel predicts the same net quantity for every row.
type constModel float64

func (c constModel) Name() string                     { return "const" }
func (c constModel) Fit([][]float64, []float64) error { return nil }
func (c constModel) Predict(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}

type fixture struct {
	orch   *Orchestrator
	ledger *ledger.MemoryStore
	alerts *alert.Tracker
	sent   *notify.Recorder
	runs   *MemoryRepository
}

func newFixture(t *testing.T, net float64) *fixture {
	t.Helper()
	rules := reorder.NewRuleSet()
	if err := rules.Register(domain.ReorderRule{
		MaterialID: "M-1", ReorderPoint: 50, OrderQuantity: 30, Vendor: "ACME", LeadTimeDays: 7,
	}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		ledger: ledger.NewMemoryStore(func() time.Time { return now }),
		alerts: alert.NewTracker(alert.NewFileStore(filepath.Join(t.TempDir(), "alert_state.json")), func() time.Time { return now }),
		sent:   &notify.Recorder{},
		runs:   NewMemoryRepository(0),
	}
	cfg := DefaultConfig()
	cfg.UnitLabel = "kg"
	f.orch = NewOrchestrator(cfg, Deps{
		Forecaster: forecast.NewForecaster(forecast.Config{NewModel: func() forecast.Model { return constModel(net) }}),
		Rules:      rules,
		Ledger:     f.ledger,
		Alerts:     f.alerts,
		Notifier:   f.sent,
		Runs:       f.runs,
		Clock:      func() time.Time { return now },
	})
	return f
}

// snapshot receives 100 units, then consumes 10 per bucket for six buckets,
// closing at 40.
func snapshot(material, identity string) ingest.Snapshot {
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	stock := 100.0
	records := []domain.TransactionRecord{{MaterialID: material, PostingDate: start, QuantityDelta: 100, ReportedStock: &stock}}
	for i := 1; i <= 6; i++ {
		records = append(records, domain.TransactionRecord{
			MaterialID:    material,
			PostingDate:   start.Add(time.Duration(i) * series.BucketWidth),
			QuantityDelta: -10,
		})
	}
	return ingest.Snapshot{Source: "test.csv", Identity: identity, MaterialID: material, Records: records}
}

func TestRunCycle_OrderAndShortageAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)

	res, err := f.orch.RunCycle(ctx, snapshot("M-1", "snap-1"))
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}

	if res.CurrentStock != 40 || res.Demand != 60 {
		t.Errorf("stock/demand = %v/%v, want 40/60", res.CurrentStock, res.Demand)
	}
	if len(res.Orders) != 1 {
		t.Fatalf("orders = %+v, want one", res.Orders)
	}
	order := res.Orders[0]
	if order.ID != 1 || order.Quantity != 66 || order.Status != domain.OrderPending || order.Vendor != "ACME" {
		t.Errorf("order = %+v", order)
	}
	if want := now.AddDate(0, 0, 7); !order.ExpectedDelivery.Equal(want) {
		t.Errorf("ExpectedDelivery = %v, want %v", order.ExpectedDelivery, want)
	}
	if res.Shortage != 20 || res.Fingerprint != "shortage:20.0kg" || res.AlertDecision != "emit" {
		t.Errorf("shortage = %v %q %s", res.Shortage, res.Fingerprint, res.AlertDecision)
	}

	msgs := f.sent.Messages()
	if len(msgs) != 2 || msgs[0].Kind != notify.KindOrder || msgs[1].Kind != notify.KindShortage {
		t.Fatalf("messages = %+v", msgs)
	}

	runs, _ := f.runs.RecentRuns(ctx, 1)
	if len(runs) != 1 || runs[0].Status != StatusCompleted || runs[0].Orders != 1 || runs[0].Periods != 7 {
		t.Errorf("run = %+v", runs)
	}
}

func TestRunCycle_RepeatedRunIsQuiet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)

	if _, err := f.orch.RunCycle(ctx, snapshot("M-1", "snap-1")); err != nil {
		t.Fatal(err)
	}
	res, err := f.orch.RunCycle(ctx, snapshot("M-1", "snap-1"))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Orders) != 0 || len(res.Withheld) != 1 {
		t.Errorf("orders = %d, withheld = %d; want 0, 1", len(res.Orders), len(res.Withheld))
	}
	if res.AlertDecision != "suppressed" {
		t.Errorf("alert = %s, want suppressed", res.AlertDecision)
	}
	if got := len(f.sent.Messages()); got != 2 {
		t.Errorf("sent %d messages, want 2 from the first run only", got)
	}

	res, err = f.orch.RunCycle(ctx, snapshot("M-1", "snap-2"))
	if err != nil {
		t.Fatal(err)
	}
	if res.AlertDecision != "emit" {
		t.Errorf("alert on new snapshot = %s, want emit", res.AlertDecision)
	}
}

func TestRunCycle_NoShortageClearsAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)
	if _, err := f.orch.RunCycle(ctx, snapshot("M-1", "snap-1")); err != nil {
		t.Fatal(err)
	}

	calm := newFixture(t, -5)
	calm.orch.deps.Alerts = f.alerts
	calm.orch.deps.Ledger = f.ledger

	res, err := calm.orch.RunCycle(ctx, snapshot("M-1", "snap-1"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Shortage != 0 || res.Fingerprint != "" {
		t.Errorf("shortage = %v %q, want none", res.Shortage, res.Fingerprint)
	}
	st, _ := f.alerts.State(ctx, alert.Channel("shortage", "M-1"))
	if st.Active() {
		t.Errorf("alert still active: %+v", st)
	}
}

func TestRunCycle_FailureLeavesStoresUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)

	snap := snapshot("M-1", "snap-1")
	snap.Records = snap.Records[:1]

	if _, err := f.orch.RunCycle(ctx, snap); err == nil {
		t.Fatal("expected aggregation failure")
	}

	orders, _ := f.ledger.List(ctx, ledger.Filter{})
	if len(orders) != 0 {
		t.Errorf("ledger has %d orders after failure", len(orders))
	}
	if st, _ := f.alerts.State(ctx, alert.Channel("shortage", "M-1")); st != nil {
		t.Errorf("alert state written after failure: %+v", st)
	}
	runs, _ := f.runs.RecentRuns(ctx, 1)
	if len(runs) != 1 || runs[0].Status != StatusFailed || runs[0].ErrorMessage == nil {
		t.Errorf("run = %+v", runs)
	}
}

func TestRunAll_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)

	bad := snapshot("M-2", "snap-1")
	bad.Records = bad.Records[:1]

	report, err := f.orch.RunAll(ctx, []ingest.Snapshot{snapshot("M-1", "snap-1"), bad})
	if err == nil {
		t.Fatal("expected joined error for M-2")
	}
	if len(report.Results) != 1 || report.Results[0].MaterialID != "M-1" {
		t.Errorf("results = %+v", report.Results)
	}
	if _, ok := report.Failures["M-2"]; !ok || len(report.Failures) != 1 {
		t.Errorf("failures = %+v", report.Failures)
	}
}

func TestRunAll_ConcurrentMaterialsGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		f.orch.deps.Rules.Register(domain.ReorderRule{MaterialID: m, ReorderPoint: 50, OrderQuantity: 1})
	}

	var snaps []ingest.Snapshot
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		snaps = append(snaps, snapshot(m, "snap-1"))
	}
	report, err := f.orch.RunAll(ctx, snaps)
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[int64]bool)
	for _, r := range report.Results {
		for _, o := range r.Orders {
			if seen[o.ID] {
				t.Fatalf("duplicate order id %d", o.ID)
			}
			seen[o.ID] = true
		}
	}
	if len(seen) != 5 {
		t.Errorf("recorded %d orders, want 5", len(seen))
	}
}

func TestRunCycle_OverlappingCyclesRecordOneOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, -60)

	const cycles = 8
	results := make(chan CycleResult, cycles)
	errs := make(chan error, cycles)
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.orch.RunCycle(ctx, snapshot("M-1", fmt.Sprintf("snap-%d", i)))
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("RunCycle() error = %v", err)
	}
	recorded, withheld := 0, 0
	for res := range results {
		recorded += len(res.Orders)
		withheld += len(res.Withheld)
	}
	if recorded != 1 || withheld != cycles-1 {
		t.Errorf("recorded = %d, withheld = %d; want 1, %d", recorded, withheld, cycles-1)
	}

	open, err := f.ledger.List(ctx, ledger.Filter{MaterialID: "M-1", ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Errorf("open orders = %d, want 1", len(open))
	}
}
