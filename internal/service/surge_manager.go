package service

import (
	"context"
	"fmt"
	"time"

	"pricing-service/config"
	"pricing-service/internal/broker"
	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SurgeManager activates, expires and monitors temporary surge multipliers
// on top of base prices.
type SurgeManager struct {
	store        *store.Store
	redis        *redisclient.Client
	orchestrator *Orchestrator
	publisher    *broker.EventPublisher
	inventory    *InventoryClient
	cfg          config.PricingConfig
	logger       *zap.Logger
}

// NewSurgeManager creates a new surge pricing manager
func NewSurgeManager(
	store *store.Store,
	redis *redisclient.Client,
	orchestrator *Orchestrator,
	publisher *broker.EventPublisher,
	inventory *InventoryClient,
	cfg config.PricingConfig,
) *SurgeManager {
	return &SurgeManager{
		store:        store,
		redis:        redis,
		orchestrator: orchestrator,
		publisher:    publisher,
		inventory:    inventory,
		cfg:          cfg,
		logger:       util.NamedLogger("surge"),
	}
}

// ActivateSurgeRequest starts a surge window. Activating over an existing
// active surge replaces it.
type ActivateSurgeRequest struct {
	ProductID  int64         `json:"product_id"`
	EventType  string        `json:"event_type"`
	Multiplier float64       `json:"multiplier"`
	Duration   time.Duration `json:"-"`
}

// Activate creates the surge event and immediately applies the surged price.
// The base price is the rule-engine recommendation without any surge layer,
// so a replaced surge never compounds into the new one.
func (m *SurgeManager) Activate(ctx context.Context, req ActivateSurgeRequest) (*models.SurgePricingEvent, error) {
	ctx, span := util.StartSpan(ctx, "SurgeManager.Activate")
	defer span.End()

	switch req.EventType {
	case models.SurgeEventFlashSale, models.SurgeEventHoliday,
		models.SurgeEventStockLow, models.SurgeEventHighTraffic:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSurgeType, req.EventType)
	}
	if req.Multiplier < m.cfg.SurgeMultiplierMin || req.Multiplier > m.cfg.SurgeMultiplierMax {
		return nil, fmt.Errorf("%w: %.2f outside [%.1f, %.1f]",
			ErrInvalidMultiplier, req.Multiplier, m.cfg.SurgeMultiplierMin, m.cfg.SurgeMultiplierMax)
	}
	if req.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidDuration)
	}

	base, err := m.orchestrator.recommendBase(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := &models.SurgePricingEvent{
		ProductID:  req.ProductID,
		EventType:  req.EventType,
		Multiplier: req.Multiplier,
		BasePrice:  base.RecommendedPrice,
		StartsAt:   now,
		EndsAt:     now.Add(req.Duration),
		IsActive:   true,
	}
	if err := m.store.CreateSurgeEvent(ctx, event); err != nil {
		return nil, err
	}

	_, err = m.orchestrator.ApplyPriceChange(ctx, ApplyPriceChangeRequest{
		ProductID: req.ProductID,
		NewPrice:  surgePrice(base.RecommendedPrice, req.Multiplier, base.Bounds),
		Reason:    models.ChangeReasonSurge,
		Notes:     fmt.Sprintf("surge %s x%.2f", req.EventType, req.Multiplier),
	})
	if err != nil {
		return nil, fmt.Errorf("surge created but price apply failed: %w", err)
	}

	util.SurgeActivationsTotal.WithLabelValues(req.EventType).Inc()
	m.logger.Info("surge activated",
		zap.Int64("surge_id", event.ID),
		zap.Int64("product_id", req.ProductID),
		zap.String("event_type", req.EventType),
		zap.Float64("multiplier", req.Multiplier),
		zap.Time("ends_at", event.EndsAt))

	pub := &models.SurgeActivatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSurgeActivated,
			Timestamp: now,
		},
		SurgeID:    event.ID,
		ProductID:  event.ProductID,
		SurgeType:  event.EventType,
		Multiplier: event.Multiplier,
		EndsAt:     event.EndsAt,
	}
	if err := m.publisher.PublishSurgeActivated(ctx, pub); err != nil {
		m.logger.Error("failed to publish SurgeActivated event", zap.Error(err))
	}
	return event, nil
}

// SurgeStatus reports whether a product is currently surging.
type SurgeStatus struct {
	Active bool                      `json:"active"`
	Event  *models.SurgePricingEvent `json:"event,omitempty"`
}

// Status returns the product's surge state. A surge past its window is
// reverted on read rather than waiting for the sweep.
func (m *SurgeManager) Status(ctx context.Context, productID int64) (*SurgeStatus, error) {
	if _, err := m.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	event, err := m.store.GetActiveSurgeEvent(ctx, productID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return &SurgeStatus{Active: false}, nil
	}
	if !time.Now().UTC().Before(event.EndsAt) {
		if err := m.expire(ctx, event); err != nil {
			m.logger.Warn("lazy surge expiry failed",
				zap.Int64("surge_id", event.ID), zap.Error(err))
		}
		return &SurgeStatus{Active: false}, nil
	}
	return &SurgeStatus{Active: true, Event: event}, nil
}

// Deactivate manually ends an active surge and reverts to the rule price.
func (m *SurgeManager) Deactivate(ctx context.Context, productID int64) error {
	ctx, span := util.StartSpan(ctx, "SurgeManager.Deactivate")
	defer span.End()

	event, err := m.store.GetActiveSurgeEvent(ctx, productID)
	if err != nil {
		return err
	}
	if event == nil {
		return store.ErrSurgeNotFound
	}
	return m.expire(ctx, event)
}

// expire reverts the price to the current base recommendation, then
// deactivates the event. The revert runs first: if it loses the per-product
// lock the event stays active and the next sweep retries it.
func (m *SurgeManager) expire(ctx context.Context, event *models.SurgePricingEvent) error {
	base, err := m.orchestrator.recommendBase(ctx, event.ProductID)
	if err != nil {
		return fmt.Errorf("surge %d revert price unavailable: %w", event.ID, err)
	}
	_, err = m.orchestrator.ApplyPriceChange(ctx, ApplyPriceChangeRequest{
		ProductID: event.ProductID,
		NewPrice:  base.RecommendedPrice,
		Reason:    models.ChangeReasonManual,
		Notes:     "surge expired",
	})
	if err != nil {
		return fmt.Errorf("surge %d revert failed: %w", event.ID, err)
	}

	if err := m.store.DeactivateSurgeEvent(ctx, event.ID); err != nil {
		return fmt.Errorf("surge %d reverted but still flagged active: %w", event.ID, err)
	}

	util.SurgeExpiredTotal.Inc()
	m.logger.Info("surge ended",
		zap.Int64("surge_id", event.ID),
		zap.Int64("product_id", event.ProductID),
		zap.Float64("reverted_price", base.RecommendedPrice))

	pub := &models.SurgeExpiredEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeSurgeExpired,
			Timestamp: time.Now(),
		},
		SurgeID:       event.ID,
		ProductID:     event.ProductID,
		RevertedPrice: base.RecommendedPrice,
	}
	if err := m.publisher.PublishSurgeExpired(ctx, pub); err != nil {
		m.logger.Error("failed to publish SurgeExpired event", zap.Error(err))
	}
	return nil
}

// SweepExpired reverts every surge whose window has passed. Returns how many
// were reverted.
func (m *SurgeManager) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "SurgeManager.SweepExpired")
	defer span.End()

	expired, err := m.store.GetExpiredSurgeEvents(ctx, time.Now().UTC(), 100)
	if err != nil {
		return 0, err
	}

	reverted := 0
	for i := range expired {
		if ctx.Err() != nil {
			return reverted, ctx.Err()
		}
		if err := m.expire(ctx, &expired[i]); err != nil {
			m.logger.Error("failed to revert expired surge",
				zap.Int64("surge_id", expired[i].ID), zap.Error(err))
			continue
		}
		reverted++
	}
	return reverted, nil
}

// SurgeProposal is a detected condition that justifies a surge.
type SurgeProposal struct {
	ProductID  int64   `json:"product_id"`
	EventType  string  `json:"event_type"`
	Multiplier float64 `json:"multiplier"`
	Detail     string  `json:"detail"`
}

// CheckConditions inspects inventory and traffic for surge-worthy conditions.
// It only proposes; activation stays an explicit call.
func (m *SurgeManager) CheckConditions(ctx context.Context, productID int64) ([]SurgeProposal, error) {
	ctx, span := util.StartSpan(ctx, "SurgeManager.CheckConditions")
	defer span.End()

	if _, err := m.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	var proposals []SurgeProposal

	inv, err := m.inventory.GetInventory(ctx, productID)
	if err != nil {
		m.logger.Warn("inventory unavailable for surge check",
			zap.Int64("product_id", productID), zap.Error(err))
	} else if inv.ReorderPoint > 0 &&
		float64(inv.Available) < m.cfg.SurgeStockFraction*float64(inv.ReorderPoint) {
		proposals = append(proposals, SurgeProposal{
			ProductID:  productID,
			EventType:  models.SurgeEventStockLow,
			Multiplier: 1.25,
			Detail: fmt.Sprintf("available stock %d below %.0f%% of reorder point %d",
				inv.Available, m.cfg.SurgeStockFraction*100, inv.ReorderPoint),
		})
	}

	views, err := m.redis.GetViewCount(ctx, productID)
	if err != nil {
		m.logger.Warn("view counter unavailable for surge check",
			zap.Int64("product_id", productID), zap.Error(err))
		return proposals, nil
	}
	mean, stddev, err := m.store.GetViewStats(ctx, productID, time.Now().UTC().AddDate(0, 0, -7))
	if err != nil {
		return proposals, err
	}
	if stddev > 0 {
		z := (float64(views) - mean) / stddev
		if z > m.cfg.SurgeTrafficZScore {
			proposals = append(proposals, SurgeProposal{
				ProductID:  productID,
				EventType:  models.SurgeEventHighTraffic,
				Multiplier: 1.5,
				Detail: fmt.Sprintf("current hourly views %d are %.1f standard deviations above the weekly mean %.1f",
					views, z, mean),
			})
		}
	}

	return proposals, nil
}

// surgePrice is the applied surge price: the surge-free recommendation times the
// multiplier, clamped to the rule bounds and rounded to cents.
func surgePrice(base, multiplier float64, b Bounds) float64 {
	clamped, _ := b.Clamp(base * multiplier)
	return roundPrice(clamped)
}
