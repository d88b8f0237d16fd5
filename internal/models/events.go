package models

import "time"

// Event types on the wire
const (
	EventTypeProductViewed        = "PRODUCT_VIEWED"
	EventTypeProductPurchased     = "PRODUCT_PURCHASED"
	EventTypeExperimentImpression = "EXPERIMENT_IMPRESSION"
	EventTypeExperimentConversion = "EXPERIMENT_CONVERSION"
	EventTypeCompetitorPrice      = "COMPETITOR_PRICE_OBSERVED"
	EventTypePriceChanged         = "PRICE_CHANGED"
	EventTypeSurgeActivated       = "SURGE_ACTIVATED"
	EventTypeSurgeExpired         = "SURGE_EXPIRED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductViewedEvent is emitted by the storefront on every product page view.
type ProductViewedEvent struct {
	BaseEvent
	ProductID int64  `json:"product_id"`
	SessionID string `json:"session_id"`
}

// ProductPurchasedEvent is emitted by the order service on checkout.
type ProductPurchasedEvent struct {
	BaseEvent
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	SessionID string  `json:"session_id"`
}

// ExperimentImpressionEvent is emitted when a bucketed price was shown.
type ExperimentImpressionEvent struct {
	BaseEvent
	ExperimentID int64  `json:"experiment_id"`
	ProductID    int64  `json:"product_id"`
	SessionID    string `json:"session_id"`
}

// ExperimentConversionEvent is emitted when a bucketed session purchased.
type ExperimentConversionEvent struct {
	BaseEvent
	ExperimentID int64   `json:"experiment_id"`
	ProductID    int64   `json:"product_id"`
	SessionID    string  `json:"session_id"`
	Revenue      float64 `json:"revenue"`
}

// CompetitorPriceEvent is emitted by the scraper pipeline per observation.
type CompetitorPriceEvent struct {
	BaseEvent
	ProductID      int64     `json:"product_id"`
	CompetitorName string    `json:"competitor_name"`
	Price          float64   `json:"price"`
	InStock        bool      `json:"in_stock"`
	QualityScore   float64   `json:"quality_score"`
	ScrapedAt      time.Time `json:"scraped_at"`
}

// PriceChangedEvent is published after every committed price mutation.
type PriceChangedEvent struct {
	BaseEvent
	ProductID int64   `json:"product_id"`
	OldPrice  float64 `json:"old_price"`
	NewPrice  float64 `json:"new_price"`
	Reason    string  `json:"reason"`
	HistoryID int64   `json:"history_id"`
}

// SurgeActivatedEvent is published when a surge event goes live.
type SurgeActivatedEvent struct {
	BaseEvent
	SurgeID    int64     `json:"surge_id"`
	ProductID  int64     `json:"product_id"`
	SurgeType  string    `json:"surge_type"`
	Multiplier float64   `json:"multiplier"`
	EndsAt     time.Time `json:"ends_at"`
}

// SurgeExpiredEvent is published when the sweep reverts an expired surge.
type SurgeExpiredEvent struct {
	BaseEvent
	SurgeID       int64   `json:"surge_id"`
	ProductID     int64   `json:"product_id"`
	RevertedPrice float64 `json:"reverted_price"`
}
