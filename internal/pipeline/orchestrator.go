// Package pipeline runs the forecast-to-decision cycle for each material:
// aggregation, training, decisioning, then persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/autoreorder/internal/alert"
	"github.com/andresuchdata/autoreorder/internal/cache"
	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/andresuchdata/autoreorder/internal/forecast"
	"github.com/andresuchdata/autoreorder/internal/ingest"
	"github.com/andresuchdata/autoreorder/internal/ledger"
	"github.com/andresuchdata/autoreorder/internal/notify"
	"github.com/andresuchdata/autoreorder/internal/reorder"
	"github.com/andresuchdata/autoreorder/internal/series"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Deps are the collaborators a cycle reads from and writes to.
type Deps struct {
	Forecaster *forecast.Forecaster
	Rules      *reorder.RuleSet
	Ledger     ledger.Store
	Alerts     *alert.Tracker
	Notifier   notify.Notifier
	Cache      cache.ForecastCache
	Runs       RunRepository
	Clock      func() time.Time
}

// Orchestrator coordinates cycles over snapshots.
type Orchestrator struct {
	cfg   Config
	deps  Deps
	locks materialLocks
}

// materialLocks hands out one mutex per material id.
type materialLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *materialLocks) lock(materialID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[materialID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[materialID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// NewOrchestrator fills optional collaborators with in-process defaults.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 1
	}
	if cfg.LagDepth <= 0 {
		cfg.LagDepth = series.DefaultLagDepth
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.UnitDivisor <= 0 {
		cfg.UnitDivisor = 1
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopForecastCache()
	}
	if deps.Runs == nil {
		deps.Runs = NewMemoryRepository(0)
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// RunCycle processes one material snapshot. Nothing is written to the ledger
// or alert state until every decision has been computed.
func (o *Orchestrator) RunCycle(ctx context.Context, snap ingest.Snapshot) (CycleResult, error) {
	now := o.deps.Clock().UTC()
	run := &CycleRun{
		ID:         uuid.New(),
		MaterialID: snap.MaterialID,
		Source:     snap.Source,
		Status:     StatusRunning,
		StartedAt:  now,
	}
	o.track(ctx, run, o.deps.Runs.CreateRun)

	logger := log.With().Str("run_id", run.ID.String()).Str("material_id", snap.MaterialID).Logger()

	result, err := o.cycle(ctx, now, snap, run)
	completed := o.deps.Clock().UTC()
	run.CompletedAt = &completed
	if err != nil {
		msg := err.Error()
		run.Status = StatusFailed
		run.ErrorMessage = &msg
		o.track(ctx, run, o.deps.Runs.UpdateRun)
		logger.Error().Err(err).Msg("cycle failed")
		return CycleResult{}, fmt.Errorf("material %s: %w", snap.MaterialID, err)
	}

	run.Status = StatusCompleted
	o.track(ctx, run, o.deps.Runs.UpdateRun)

	result.RunID = run.ID
	result.CompletedAt = completed
	logger.Info().
		Int("periods", len(result.Periods)).
		Float64("accuracy", result.Forecast.Accuracy).
		Float64("demand", result.Demand).
		Int("orders", len(result.Orders)).
		Str("alert", result.AlertDecision).
		Msg("cycle completed")
	return result, nil
}

func (o *Orchestrator) cycle(ctx context.Context, now time.Time, snap ingest.Snapshot, run *CycleRun) (CycleResult, error) {
	// 1. Aggregate
	periods, err := series.Aggregate(snap.Records, series.Options{LagDepth: o.cfg.LagDepth})
	if err != nil {
		return CycleResult{}, fmt.Errorf("aggregate: %w", err)
	}
	run.Periods = len(periods)

	// 2. Train and project
	fc, err := o.forecast(ctx, snap, periods)
	if err != nil {
		return CycleResult{}, fmt.Errorf("forecast: %w", err)
	}
	accuracy := fc.Accuracy
	run.Accuracy = &accuracy

	// 3. Decide
	last := periods[len(periods)-1]
	stock := last.ClosingStock
	demand := reorder.Demand(fc.Next())
	drafts := reorder.Decide(now, stock, demand, o.deps.Rules.ForMaterial(snap.MaterialID))

	shortage := reorder.Shortage(demand, stock)
	channel := alert.Channel(o.cfg.AlertChannel, snap.MaterialID)
	var fingerprint string
	if shortage > 0 {
		fingerprint = alert.Fingerprint(shortage, o.cfg.UnitDivisor, o.cfg.UnitLabel)
	}

	// 4. Persist
	orders, withheld, err := o.placeOrders(ctx, snap.MaterialID, drafts)
	run.Orders = len(orders)
	if err != nil {
		return CycleResult{}, err
	}
	for _, order := range orders {
		o.notify(ctx, orderMessage(channel, order))
	}

	decision := alert.Suppressed
	if fingerprint != "" {
		decision, err = o.deps.Alerts.Evaluate(ctx, channel, alert.Candidate{
			Fingerprint:      fingerprint,
			SourceIdentity:   snap.Identity,
			TriggerPeriodEnd: last.PeriodEnd(series.BucketWidth),
		})
		if err != nil {
			return CycleResult{}, fmt.Errorf("evaluate alert: %w", err)
		}
		if decision == alert.Emit {
			o.notify(ctx, shortageMessage(channel, snap.MaterialID, fingerprint, stock, demand))
		}
	} else if err := o.deps.Alerts.Clear(ctx, channel, snap.Identity); err != nil {
		return CycleResult{}, fmt.Errorf("clear alert: %w", err)
	}

	return CycleResult{
		MaterialID:     snap.MaterialID,
		Source:         snap.Source,
		SourceIdentity: snap.Identity,
		Periods:        periods,
		CurrentStock:   stock,
		Forecast:       fc,
		Demand:         demand,
		Orders:         orders,
		Withheld:       withheld,
		Shortage:       shortage,
		Fingerprint:    fingerprint,
		AlertDecision:  decision.String(),
	}, nil
}

// placeOrders records drafts unless the material already has an open order.
// The open-order check and the writes hold the material's lock, so
// overlapping cycles for one material cannot both record.
func (o *Orchestrator) placeOrders(ctx context.Context, materialID string, drafts []domain.OrderDraft) ([]domain.Order, []domain.OrderDraft, error) {
	if len(drafts) == 0 {
		return nil, nil, nil
	}
	unlock := o.locks.lock(materialID)
	defer unlock()

	if !o.cfg.AllowStacking {
		open, err := o.deps.Ledger.List(ctx, ledger.Filter{MaterialID: materialID, ActiveOnly: true})
		if err != nil {
			return nil, nil, fmt.Errorf("check open orders: %w", err)
		}
		if len(open) > 0 {
			return nil, drafts, nil
		}
	}

	orders, err := ledger.RecordAll(ctx, o.deps.Ledger, drafts)
	if err != nil {
		return orders, nil, fmt.Errorf("record orders: %w", err)
	}
	return orders, nil, nil
}

// forecast reuses a cached result for an unchanged snapshot and model setup.
// Cache failures only cost a retrain.
func (o *Orchestrator) forecast(ctx context.Context, snap ingest.Snapshot, periods []domain.PeriodAggregate) (forecast.Forecast, error) {
	key := cache.ForecastKey{
		MaterialID:     snap.MaterialID,
		SourceIdentity: snap.Identity,
		Model:          o.cfg.ModelName,
		Horizon:        o.cfg.Horizon,
		LagDepth:       o.cfg.LagDepth,
		TrainRatio:     o.cfg.TrainRatio,
		TreeDepth:      o.cfg.TreeDepth,
		TreeMinLeaf:    o.cfg.TreeMinLeaf,
	}

	if snap.Identity != "" {
		cached, ok, err := o.deps.Cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("material_id", snap.MaterialID).Msg("forecast cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	fc, err := o.deps.Forecaster.TrainAndForecast(periods, o.cfg.Horizon)
	if err != nil {
		return forecast.Forecast{}, err
	}

	if snap.Identity != "" {
		if err := o.deps.Cache.Set(ctx, key, fc); err != nil {
			log.Warn().Err(err).Str("material_id", snap.MaterialID).Msg("forecast cache write failed")
		}
	}
	return fc, nil
}

// RunAll runs one cycle per snapshot on a bounded worker pool. A failing
// material does not stop the others; its error is reported in the result.
func (o *Orchestrator) RunAll(ctx context.Context, snaps []ingest.Snapshot) (Report, error) {
	results := make([]*CycleResult, len(snaps))
	errs := make([]error, len(snaps))

	var g errgroup.Group
	g.SetLimit(o.cfg.WorkerCount)
	for i, snap := range snaps {
		i, snap := i, snap
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			res, err := o.RunCycle(ctx, snap)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	report := Report{}
	for i, res := range results {
		if res != nil {
			report.Results = append(report.Results, *res)
			continue
		}
		if report.Failures == nil {
			report.Failures = make(map[string]string)
		}
		report.Failures[snaps[i].MaterialID] = errs[i].Error()
	}
	return report, errors.Join(errs...)
}

// AlertChannel is the base channel cycles scope per material.
func (o *Orchestrator) AlertChannel() string {
	return o.cfg.AlertChannel
}

// RecentRuns exposes cycle tracking to the service layer.
func (o *Orchestrator) RecentRuns(ctx context.Context, limit int) ([]CycleRun, error) {
	return o.deps.Runs.RecentRuns(ctx, limit)
}

func (o *Orchestrator) track(ctx context.Context, run *CycleRun, fn func(context.Context, *CycleRun) error) {
	if err := fn(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID.String()).Msg("cycle run tracking failed")
	}
}

func (o *Orchestrator) notify(ctx context.Context, msg notify.Message) {
	if err := o.deps.Notifier.Notify(ctx, msg); err != nil {
		log.Warn().Err(err).Str("kind", string(msg.Kind)).Str("material_id", msg.MaterialID).Msg("notification failed")
	}
}

func orderMessage(channel string, order domain.Order) notify.Message {
	return notify.Message{
		Kind:       notify.KindOrder,
		Channel:    channel,
		MaterialID: order.MaterialID,
		Subject:    fmt.Sprintf("Reorder placed for %s", order.MaterialID),
		Body: fmt.Sprintf("Order #%d: %.0f units of %s from %s, expected %s",
			order.ID, order.Quantity, order.MaterialID, vendorOrDefault(order.Vendor),
			order.ExpectedDelivery.Format(time.DateOnly)),
	}
}

func shortageMessage(channel, materialID, fingerprint string, stock, demand float64) notify.Message {
	return notify.Message{
		Kind:        notify.KindShortage,
		Channel:     channel,
		MaterialID:  materialID,
		Fingerprint: fingerprint,
		Subject:     fmt.Sprintf("Projected shortage for %s", materialID),
		Body: fmt.Sprintf("Next period demand %.1f exceeds available stock %.1f (%s)",
			demand, stock, fingerprint),
	}
}

func vendorOrDefault(v string) string {
	if v == "" {
		return "default vendor"
	}
	return v
}
