package service

import (
	"context"
	"errors"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

// SalesFeed materializes inbound events into demand data: sales rows for
// the forecaster, view counters for surge detection, experiment counters,
// and competitor price observations from the scraper pipeline. Processing is
// idempotent on event_id so consumer redelivery never double counts.
type SalesFeed struct {
	store       *store.Store
	redis       *redisclient.Client
	experiments *ExperimentRunner
	tracker     *CompetitorTracker
	logger      *zap.Logger
}

// NewSalesFeed creates a new sales feed processor
func NewSalesFeed(store *store.Store, redis *redisclient.Client, experiments *ExperimentRunner, tracker *CompetitorTracker) *SalesFeed {
	return &SalesFeed{
		store:       store,
		redis:       redis,
		experiments: experiments,
		tracker:     tracker,
		logger:      util.NamedLogger("salesfeed"),
	}
}

// alreadySeen checks and records the event id. A duplicate returns true and
// the event is dropped without error so the consumer commits it.
func (f *SalesFeed) alreadySeen(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	seen, err := f.store.IsEventProcessed(ctx, eventID)
	if err != nil || seen {
		return seen, err
	}
	return false, f.store.MarkEventProcessed(ctx, eventID, eventType)
}

// HandleProductViewed records the view row and bumps the hourly view counter.
func (f *SalesFeed) HandleProductViewed(ctx context.Context, event *models.ProductViewedEvent) error {
	seen, err := f.alreadySeen(ctx, event.EventID, event.EventType)
	if err != nil || seen {
		return err
	}

	if err := f.store.RecordSalesEvent(ctx, &models.SalesEvent{
		ProductID:  event.ProductID,
		EventType:  models.SalesEventView,
		Quantity:   1,
		SessionID:  event.SessionID,
		OccurredAt: occurredAt(event.Timestamp),
	}); err != nil {
		return err
	}

	if _, err := f.redis.RecordView(ctx, event.ProductID); err != nil {
		// The durable row is already written; the counter only feeds surge
		// detection.
		f.logger.Warn("failed to bump view counter",
			zap.Int64("product_id", event.ProductID), zap.Error(err))
	}

	util.SalesEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// HandleProductPurchased records the purchase row used as forecaster input.
func (f *SalesFeed) HandleProductPurchased(ctx context.Context, event *models.ProductPurchasedEvent) error {
	seen, err := f.alreadySeen(ctx, event.EventID, event.EventType)
	if err != nil || seen {
		return err
	}

	quantity := event.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	if err := f.store.RecordSalesEvent(ctx, &models.SalesEvent{
		ProductID:  event.ProductID,
		EventType:  models.SalesEventPurchase,
		Quantity:   quantity,
		UnitPrice:  event.UnitPrice,
		SessionID:  event.SessionID,
		OccurredAt: occurredAt(event.Timestamp),
	}); err != nil {
		return err
	}

	util.SalesEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// HandleExperimentImpression counts an exposure for the session's arm.
func (f *SalesFeed) HandleExperimentImpression(ctx context.Context, event *models.ExperimentImpressionEvent) error {
	seen, err := f.alreadySeen(ctx, event.EventID, event.EventType)
	if err != nil || seen {
		return err
	}
	if err := f.experiments.RecordImpression(ctx, event.ExperimentID, event.SessionID); err != nil {
		return err
	}
	util.SalesEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// HandleExperimentConversion counts a purchase for the session's arm.
func (f *SalesFeed) HandleExperimentConversion(ctx context.Context, event *models.ExperimentConversionEvent) error {
	seen, err := f.alreadySeen(ctx, event.EventID, event.EventType)
	if err != nil || seen {
		return err
	}
	if err := f.experiments.RecordConversion(ctx, event.ExperimentID, event.SessionID, event.Revenue); err != nil {
		return err
	}
	util.SalesEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// HandleCompetitorPrice stores one scraped competitor observation. Malformed
// observations are logged and dropped so one bad scrape can't wedge the
// partition.
func (f *SalesFeed) HandleCompetitorPrice(ctx context.Context, event *models.CompetitorPriceEvent) error {
	seen, err := f.alreadySeen(ctx, event.EventID, event.EventType)
	if err != nil || seen {
		return err
	}

	cp := &models.CompetitorPrice{
		ProductID:      event.ProductID,
		CompetitorName: event.CompetitorName,
		Price:          event.Price,
		InStock:        event.InStock,
		QualityScore:   event.QualityScore,
		ScrapedAt:      event.ScrapedAt,
	}
	if err := f.tracker.Record(ctx, cp); err != nil {
		if errors.Is(err, ErrInvalidPrice) {
			f.logger.Warn("dropping malformed competitor observation",
				zap.Int64("product_id", event.ProductID),
				zap.String("competitor", event.CompetitorName),
				zap.Float64("price", event.Price))
			return nil
		}
		return err
	}

	util.SalesEventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

func occurredAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
