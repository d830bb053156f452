// Package app wires configuration into the pipeline and its services. The
// HTTP servers and the CLI share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/andresuchdata/autoreorder/internal/alert"
	"github.com/andresuchdata/autoreorder/internal/api"
	"github.com/andresuchdata/autoreorder/internal/cache"
	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/internal/forecast"
	"github.com/andresuchdata/autoreorder/internal/ledger"
	"github.com/andresuchdata/autoreorder/internal/notify"
	"github.com/andresuchdata/autoreorder/internal/pipeline"
	"github.com/andresuchdata/autoreorder/internal/reorder"
	"github.com/andresuchdata/autoreorder/internal/repository/postgres"
	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/andresuchdata/autoreorder/internal/storage"
	"github.com/rs/zerolog/log"
)

// Options adjusts wiring for one process.
type Options struct {
	// DryRun keeps orders, alert state and notifications in memory.
	DryRun bool
}

type App struct {
	Config       *config.Config
	Orchestrator *pipeline.Orchestrator
	Ledger       ledger.Store
	Alerts       *alert.Tracker
	Cache        cache.ForecastCache
	Rules        *reorder.RuleSet
	Storage      *storage.MinioClient
	SQL          *sql.DB
	// Outbox holds the notifications of a dry run.
	Outbox *notify.Recorder

	Cycles    *service.CycleService
	Orders    *service.OrderService
	RuleSvc   *service.RuleService
	Inventory *service.InventoryService

	closers []func() error
}

// New builds the application. On error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (a *App, err error) {
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	newModel, err := forecast.NewModelFactory(cfg.Forecast.Model, cfg.Forecast.TreeDepth, cfg.Forecast.TreeMinLeaf)
	if err != nil {
		return nil, err
	}
	forecaster := forecast.NewForecaster(forecast.Config{
		LagDepth:   cfg.Forecast.LagDepth,
		TrainRatio: cfg.Forecast.TrainRatio,
		NewModel:   newModel,
	})

	a.Rules = reorder.NewRuleSet()
	if err := loadRules(a.Rules, cfg.Reorder.RulesFile); err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Forecaster: forecaster,
		Rules:      a.Rules,
		Notifier:   notify.NewLogNotifier(),
	}

	if opts.DryRun {
		a.Ledger = ledger.NewMemoryStore(time.Now)
		a.Alerts = alert.NewTracker(alert.NewMemoryStore(), time.Now)
		a.Outbox = &notify.Recorder{}
		deps.Notifier = notify.Multi{notify.NewLogNotifier(), a.Outbox}
		a.Cache = cache.NewNoopForecastCache()
	} else {
		if err := a.openPersistence(ctx, &deps); err != nil {
			return nil, err
		}
	}
	deps.Ledger = a.Ledger
	deps.Alerts = a.Alerts
	deps.Cache = a.Cache

	if cfg.Storage.Enabled {
		a.Storage, err = storage.NewMinioClient(cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	pc := pipelineConfig(cfg)
	a.Orchestrator = pipeline.NewOrchestrator(pc, deps)

	var archiver service.Archiver
	if a.Storage != nil && !opts.DryRun {
		archiver = a.Storage
	}
	a.Cycles = service.NewCycleService(a.Orchestrator, archiver)
	a.Orders = service.NewOrderService(a.Ledger)
	a.RuleSvc = service.NewRuleService(a.Rules)
	a.Inventory = service.NewInventoryService(a.Cycles, a.Ledger, a.Alerts, pc.AlertChannel)
	return a, nil
}

func (a *App) openPersistence(ctx context.Context, deps *pipeline.Deps) error {
	cfg := a.Config

	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.Ledger = postgres.NewOrderRepository(db)

		a.SQL, err = postgres.OpenStdlib(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.SQL.Close)
		deps.Runs = pipeline.NewRepository(a.SQL)
	} else {
		log.Warn().Msg("database disabled, orders are kept in memory")
		a.Ledger = ledger.NewMemoryStore(time.Now)
	}

	store, closeStore, err := alert.OpenStore(cfg.Alert, cfg.Cache)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeStore)
	a.Alerts = alert.NewTracker(store, time.Now)

	forecastCache, err := cache.NewForecastCache(cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("forecast cache unavailable, continuing without it")
		forecastCache = cache.NewNoopForecastCache()
	}
	a.Cache = forecastCache
	return nil
}

// Services exposes the HTTP-facing services.
func (a *App) Services() *api.Services {
	return &api.Services{
		Cycles:    a.Cycles,
		Orders:    a.Orders,
		Rules:     a.RuleSvc,
		Inventory: a.Inventory,
	}
}

// Close releases connections in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func pipelineConfig(cfg *config.Config) pipeline.Config {
	pc := pipeline.DefaultConfig()
	if cfg.Forecast.Horizon > 0 {
		pc.Horizon = cfg.Forecast.Horizon
	}
	if cfg.Forecast.LagDepth > 0 {
		pc.LagDepth = cfg.Forecast.LagDepth
	}
	if cfg.Forecast.Model != "" {
		pc.ModelName = cfg.Forecast.Model
	}
	pc.TrainRatio = cfg.Forecast.TrainRatio
	pc.TreeDepth = cfg.Forecast.TreeDepth
	pc.TreeMinLeaf = cfg.Forecast.TreeMinLeaf
	if cfg.Pipeline.Workers > 0 {
		pc.WorkerCount = cfg.Pipeline.Workers
	}
	if cfg.Alert.Channel != "" {
		pc.AlertChannel = cfg.Alert.Channel
	}
	if cfg.Alert.UnitDivisor > 0 {
		pc.UnitDivisor = cfg.Alert.UnitDivisor
	}
	pc.UnitLabel = cfg.Alert.UnitLabel
	pc.AllowStacking = cfg.Reorder.AllowStacking
	return pc
}

// loadRules registers the rules file when present. A missing file leaves the
// set empty; rules can still be registered over the API.
func loadRules(rules *reorder.RuleSet, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("path", path).Msg("rules file not found, starting with no reorder rules")
		return nil
	}
	loaded, err := config.LoadRules(path)
	if err != nil {
		return err
	}
	if err := rules.Register(loaded...); err != nil {
		return fmt.Errorf("rules file %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("rules", rules.Len()).Msg("reorder rules loaded")
	return nil
}
