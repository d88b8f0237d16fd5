package worker

import (
	"context"
	"log"

	"pricing-service/internal/broker"
	"pricing-service/internal/service"
)

// SalesFeedWorker consumes the storefront sales feed and materializes it
// through the sales feed service.
type SalesFeedWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	feed         *service.SalesFeed
}

// NewSalesFeedWorker creates a new sales feed worker
func NewSalesFeedWorker(consumer *broker.Consumer, feed *service.SalesFeed) *SalesFeedWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnProductViewed(feed.HandleProductViewed)
	eventHandler.OnProductPurchased(feed.HandleProductPurchased)
	eventHandler.OnExperimentImpression(feed.HandleExperimentImpression)
	eventHandler.OnExperimentConversion(feed.HandleExperimentConversion)
	eventHandler.OnCompetitorPrice(feed.HandleCompetitorPrice)

	return &SalesFeedWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		feed:         feed,
	}
}

// Start starts the worker
func (w *SalesFeedWorker) Start(ctx context.Context) error {
	log.Println("Starting sales feed worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SalesFeedWorker) Stop() error {
	log.Println("Stopping sales feed worker...")
	return w.consumer.Close()
}
