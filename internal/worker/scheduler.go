package worker

import (
	"context"
	"time"

	"pricing-service/config"
	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/service"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Forecasts for recently sold products are refreshed this far out.
const refreshHorizonDays = 14

// Reconciliation batch per sweep pass.
const reconcileBatchSize = 500

// Scheduler runs the periodic sweeps: expired surge reversion, forecast
// refresh for recently sold products, and forecast reconciliation. Each sweep
// takes a Redis lock so only one replica runs it per interval.
type Scheduler struct {
	store      *store.Store
	redis      *redisclient.Client
	surge      *service.SurgeManager
	forecaster *service.Forecaster
	cfg        config.PricingConfig
	logger     *zap.Logger

	// owner tags this replica's locks; only for logging.
	owner string
}

// NewScheduler creates a new background scheduler
func NewScheduler(
	store *store.Store,
	redis *redisclient.Client,
	surge *service.SurgeManager,
	forecaster *service.Forecaster,
	cfg config.PricingConfig,
) *Scheduler {
	return &Scheduler{
		store:      store,
		redis:      redis,
		surge:      surge,
		forecaster: forecaster,
		cfg:        cfg,
		logger:     util.NamedLogger("scheduler"),
		owner:      uuid.New().String()[:8],
	}
}

// Start runs the sweep loops until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.String("owner", s.owner),
		zap.Duration("surge_sweep_interval", s.cfg.SurgeSweepInterval),
		zap.Duration("forecast_sweep_interval", s.cfg.ForecastSweepInterval))

	go s.loop(ctx, "surge-sweep", s.cfg.SurgeSweepInterval, s.sweepSurges)
	go s.loop(ctx, "forecast-refresh", s.cfg.ForecastSweepInterval, s.refreshForecasts)
	go s.loop(ctx, "forecast-reconcile", s.cfg.ForecastSweepInterval, s.reconcileForecasts)
}

// loop runs fn every interval, skipping rounds another replica already holds
// the lock for.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep loop stopped", zap.String("sweep", name))
			return
		case <-ticker.C:
		}

		acquired, err := s.redis.AcquireLock(ctx, name, interval)
		if err != nil {
			s.logger.Error("failed to acquire sweep lock",
				zap.String("sweep", name), zap.Error(err))
			continue
		}
		if !acquired {
			continue
		}

		if err := fn(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweep failed", zap.String("sweep", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) sweepSurges(ctx context.Context) error {
	reverted, err := s.surge.SweepExpired(ctx)
	if reverted > 0 {
		s.logger.Info("expired surges reverted", zap.Int("count", reverted))
	}
	return err
}

// refreshForecasts regenerates short-horizon forecasts for every product
// with sales in the last day, so the demand signal stays current without
// refreshing the whole catalog.
func (s *Scheduler) refreshForecasts(ctx context.Context) error {
	ids, err := s.store.GetRecentlySoldProductIDs(ctx, time.Now().UTC().AddDate(0, 0, -1))
	if err != nil {
		return err
	}

	refreshed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.forecaster.Generate(ctx, id, refreshHorizonDays, models.AlgorithmAuto); err != nil {
			s.logger.Warn("forecast refresh failed",
				zap.Int64("product_id", id), zap.Error(err))
			continue
		}
		refreshed++
	}

	if refreshed > 0 {
		s.logger.Info("forecasts refreshed", zap.Int("count", refreshed))
	}
	return nil
}

func (s *Scheduler) reconcileForecasts(ctx context.Context) error {
	reconciled, err := s.forecaster.Reconcile(ctx, reconcileBatchSize)
	if reconciled > 0 {
		s.logger.Info("forecasts reconciled with actuals", zap.Int("count", reconciled))
	}
	return err
}
