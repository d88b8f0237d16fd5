package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pricing-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing pricing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPriceChanged publishes a PriceChanged event
func (ep *EventPublisher) PublishPriceChanged(ctx context.Context, event *models.PriceChangedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSurgeActivated publishes a SurgeActivated event
func (ep *EventPublisher) PublishSurgeActivated(ctx context.Context, event *models.SurgeActivatedEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishSurgeExpired publishes a SurgeExpired event
func (ep *EventPublisher) PublishSurgeExpired(ctx context.Context, event *models.SurgeExpiredEvent) error {
	key := fmt.Sprintf("product-%d", event.ProductID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming sales feed events
type EventHandler struct {
	onProductViewed        func(context.Context, *models.ProductViewedEvent) error
	onProductPurchased     func(context.Context, *models.ProductPurchasedEvent) error
	onExperimentImpression func(context.Context, *models.ExperimentImpressionEvent) error
	onExperimentConversion func(context.Context, *models.ExperimentConversionEvent) error
	onCompetitorPrice      func(context.Context, *models.CompetitorPriceEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnProductViewed registers a handler for ProductViewed events
func (eh *EventHandler) OnProductViewed(handler func(context.Context, *models.ProductViewedEvent) error) {
	eh.onProductViewed = handler
}

// OnProductPurchased registers a handler for ProductPurchased events
func (eh *EventHandler) OnProductPurchased(handler func(context.Context, *models.ProductPurchasedEvent) error) {
	eh.onProductPurchased = handler
}

// OnExperimentImpression registers a handler for ExperimentImpression events
func (eh *EventHandler) OnExperimentImpression(handler func(context.Context, *models.ExperimentImpressionEvent) error) {
	eh.onExperimentImpression = handler
}

// OnExperimentConversion registers a handler for ExperimentConversion events
func (eh *EventHandler) OnExperimentConversion(handler func(context.Context, *models.ExperimentConversionEvent) error) {
	eh.onExperimentConversion = handler
}

// OnCompetitorPrice registers a handler for CompetitorPrice events
func (eh *EventHandler) OnCompetitorPrice(handler func(context.Context, *models.CompetitorPriceEvent) error) {
	eh.onCompetitorPrice = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeProductViewed:
		if eh.onProductViewed != nil {
			var event models.ProductViewedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductViewed event: %w", err)
			}
			return eh.onProductViewed(ctx, &event)
		}

	case models.EventTypeProductPurchased:
		if eh.onProductPurchased != nil {
			var event models.ProductPurchasedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ProductPurchased event: %w", err)
			}
			return eh.onProductPurchased(ctx, &event)
		}

	case models.EventTypeExperimentImpression:
		if eh.onExperimentImpression != nil {
			var event models.ExperimentImpressionEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ExperimentImpression event: %w", err)
			}
			return eh.onExperimentImpression(ctx, &event)
		}

	case models.EventTypeExperimentConversion:
		if eh.onExperimentConversion != nil {
			var event models.ExperimentConversionEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ExperimentConversion event: %w", err)
			}
			return eh.onExperimentConversion(ctx, &event)
		}

	case models.EventTypeCompetitorPrice:
		if eh.onCompetitorPrice != nil {
			var event models.CompetitorPriceEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CompetitorPrice event: %w", err)
			}
			return eh.onCompetitorPrice(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
