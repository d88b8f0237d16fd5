package models

import (
	"database/sql"
	"time"
)

// Product represents a catalog product. The catalog service owns this table;
// the pricing engine reads it and writes current_price (and version) only.
type Product struct {
	ID           int64     `db:"id" json:"id"`
	SKU          string    `db:"sku" json:"sku"`
	Name         string    `db:"name" json:"name"`
	CategoryID   int64     `db:"category_id" json:"category_id"`
	CurrentPrice float64   `db:"current_price" json:"current_price"`
	Cost         float64   `db:"cost" json:"cost"`
	Version      int64     `db:"version" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Inventory represents product stock, owned by the inventory service.
type Inventory struct {
	ProductID    int64     `db:"product_id" json:"product_id"`
	Available    int       `db:"available" json:"available"`
	Reserved     int       `db:"reserved" json:"reserved"`
	ReorderPoint int       `db:"reorder_point" json:"reorder_point"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Rule scopes
const (
	RuleScopeProduct  = "product"
	RuleScopeCategory = "category"
	RuleScopeGlobal   = "global"
)

// Rule types
const (
	RuleTypeDemandBased     = "demand_based"
	RuleTypeCompetitorBased = "competitor_based"
	RuleTypeTimeBased       = "time_based"
	RuleTypeInventoryBased  = "inventory_based"
)

// Adjustment kinds carried by a rule
const (
	AdjustmentPercentage   = "percentage"
	AdjustmentFixed        = "fixed"
	AdjustmentTargetMargin = "target_margin"
)

// PriceRule constrains and/or adjusts prices for its scope.
// Priority is a total order: lower number evaluates first; ties break on the
// most recently created rule.
type PriceRule struct {
	ID               int64           `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Scope            string          `db:"scope" json:"scope"`
	ProductID        sql.NullInt64   `db:"product_id" json:"product_id,omitempty"`
	CategoryID       sql.NullInt64   `db:"category_id" json:"category_id,omitempty"`
	RuleType         string          `db:"rule_type" json:"rule_type"`
	MinPrice         sql.NullFloat64 `db:"min_price" json:"min_price,omitempty"`
	MaxPrice         sql.NullFloat64 `db:"max_price" json:"max_price,omitempty"`
	TargetMargin     sql.NullFloat64 `db:"target_margin" json:"target_margin,omitempty"`
	AdjustmentKind   sql.NullString  `db:"adjustment_kind" json:"adjustment_kind,omitempty"`
	AdjustmentValue  sql.NullFloat64 `db:"adjustment_value" json:"adjustment_value,omitempty"`
	TargetPercentile sql.NullFloat64 `db:"target_percentile" json:"target_percentile,omitempty"`
	Priority         int             `db:"priority" json:"priority"`
	IsActive         bool            `db:"is_active" json:"is_active"`
	StartsAt         sql.NullTime    `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt           sql.NullTime    `db:"ends_at" json:"ends_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Price change reasons
const (
	ChangeReasonManual     = "manual"
	ChangeReasonRuleBased  = "rule_based"
	ChangeReasonDemand     = "demand"
	ChangeReasonCompetitor = "competitor"
	ChangeReasonSurge      = "surge"
)

// PriceHistory is the append-only audit row for a price change.
// Immutable once written; exactly one row per successful apply.
type PriceHistory struct {
	ID        int64          `db:"id" json:"id"`
	ProductID int64          `db:"product_id" json:"product_id"`
	OldPrice  float64        `db:"old_price" json:"old_price"`
	NewPrice  float64        `db:"new_price" json:"new_price"`
	Reason    string         `db:"reason" json:"reason"`
	RuleID    sql.NullInt64  `db:"rule_id" json:"rule_id,omitempty"`
	UserID    sql.NullInt64  `db:"user_id" json:"user_id,omitempty"`
	Notes     sql.NullString `db:"notes" json:"notes,omitempty"`
	ChangedAt time.Time      `db:"changed_at" json:"changed_at"`
}

// CompetitorPrice is one scraped third-party observation.
type CompetitorPrice struct {
	ID             int64     `db:"id" json:"id"`
	ProductID      int64     `db:"product_id" json:"product_id"`
	CompetitorName string    `db:"competitor_name" json:"competitor_name"`
	Price          float64   `db:"price" json:"price"`
	InStock        bool      `db:"in_stock" json:"in_stock"`
	QualityScore   float64   `db:"quality_score" json:"quality_score"`
	ScrapedAt      time.Time `db:"scraped_at" json:"scraped_at"`
}

// Forecast algorithms
const (
	AlgorithmAuto                 = "auto"
	AlgorithmMovingAverage        = "moving_average"
	AlgorithmExponentialSmoothing = "exponential_smoothing"
	AlgorithmTrendSeasonal        = "trend_seasonal"
	AlgorithmCategoryBaseline     = "category_baseline"
)

// DemandForecast holds one predicted day of demand for a product.
// Regenerating a forecast overwrites the same (product_id, forecast_date) row.
type DemandForecast struct {
	ID              int64           `db:"id" json:"id"`
	ProductID       int64           `db:"product_id" json:"product_id"`
	ForecastDate    time.Time       `db:"forecast_date" json:"forecast_date"`
	PredictedDemand float64         `db:"predicted_demand" json:"predicted_demand"`
	Confidence      float64         `db:"confidence" json:"confidence"`
	ActualDemand    sql.NullFloat64 `db:"actual_demand" json:"actual_demand,omitempty"`
	Algorithm       string          `db:"algorithm" json:"algorithm"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// Experiment statuses
const (
	ExperimentStatusDraft     = "draft"
	ExperimentStatusRunning   = "running"
	ExperimentStatusCompleted = "completed"
	ExperimentStatusCancelled = "cancelled"
)

// Experiment arms
const (
	ArmControl = "control"
	ArmVariant = "variant"
)

// PriceExperiment is an A/B price test. At most one running experiment per
// product; arm counters are incremented by the sales-feed worker.
type PriceExperiment struct {
	ID                 int64        `db:"id" json:"id"`
	ProductID          int64        `db:"product_id" json:"product_id"`
	Name               string       `db:"name" json:"name"`
	ControlPrice       float64      `db:"control_price" json:"control_price"`
	VariantPrice       float64      `db:"variant_price" json:"variant_price"`
	Status             string       `db:"status" json:"status"`
	ControlImpressions int64        `db:"control_impressions" json:"control_impressions"`
	ControlConversions int64        `db:"control_conversions" json:"control_conversions"`
	ControlRevenue     float64      `db:"control_revenue" json:"control_revenue"`
	VariantImpressions int64        `db:"variant_impressions" json:"variant_impressions"`
	VariantConversions int64        `db:"variant_conversions" json:"variant_conversions"`
	VariantRevenue     float64      `db:"variant_revenue" json:"variant_revenue"`
	StartedAt          sql.NullTime `db:"started_at" json:"started_at,omitempty"`
	CompletedAt        sql.NullTime `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
}

// Surge event types
const (
	SurgeEventFlashSale   = "flash_sale"
	SurgeEventHoliday     = "holiday"
	SurgeEventStockLow    = "stock_low"
	SurgeEventHighTraffic = "high_traffic"
)

// SurgePricingEvent is a time-boxed multiplier override. At most one active
// event per product; activating a new one deactivates the prior.
type SurgePricingEvent struct {
	ID            int64        `db:"id" json:"id"`
	ProductID     int64        `db:"product_id" json:"product_id"`
	EventType     string       `db:"event_type" json:"event_type"`
	Multiplier    float64      `db:"multiplier" json:"multiplier"`
	BasePrice     float64      `db:"base_price" json:"base_price"`
	StartsAt      time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time    `db:"ends_at" json:"ends_at"`
	IsActive      bool         `db:"is_active" json:"is_active"`
	DeactivatedAt sql.NullTime `db:"deactivated_at" json:"deactivated_at,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// Sales feed event types (materialized rows)
const (
	SalesEventView     = "view"
	SalesEventPurchase = "purchase"
)

// SalesEvent is one materialized row from the storefront sales/event feed.
type SalesEvent struct {
	ID         int64     `db:"id" json:"id"`
	ProductID  int64     `db:"product_id" json:"product_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	Quantity   int       `db:"quantity" json:"quantity"`
	UnitPrice  float64   `db:"unit_price" json:"unit_price"`
	SessionID  string    `db:"session_id" json:"session_id"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}

// DailyDemand is an aggregated purchase count for one day, the forecaster's
// input series.
type DailyDemand struct {
	Day      time.Time `db:"day"`
	Quantity float64   `db:"quantity"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
