package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PriceChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_changes_total",
		Help: "Total number of applied price changes",
	}, []string{"reason"})

	PriceChangeConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_change_conflicts_total",
		Help: "Total number of price changes rejected by the per-product lock",
	})

	PriceClampsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_clamps_total",
		Help: "Total number of requested prices clamped to rule bounds",
	})

	RecommendationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_recommendations_total",
		Help: "Total number of optimal price computations",
	})

	RecommendationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "price_recommendation_latency_seconds",
		Help:    "Latency of optimal price computations",
		Buckets: prometheus.DefBuckets,
	})

	RulesSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_rules_skipped_total",
		Help: "Total number of rules skipped during evaluation",
	}, []string{"reason"})

	ForecastsGeneratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "demand_forecasts_generated_total",
		Help: "Total number of forecast rows generated",
	}, []string{"algorithm"})

	ForecastLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "demand_forecast_latency_seconds",
		Help:    "Latency of forecast generation per product",
		Buckets: prometheus.DefBuckets,
	})

	SurgeActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "surge_activations_total",
		Help: "Total number of surge pricing activations",
	}, []string{"event_type"})

	SurgeExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "surge_expired_total",
		Help: "Total number of surge events reverted by the expiry sweep",
	})

	ExperimentsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_experiments_started_total",
		Help: "Total number of price experiments started",
	})

	ExperimentsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_experiments_completed_total",
		Help: "Total number of completed price experiments",
	}, []string{"outcome"})

	BulkOptimizeProductsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulk_optimize_products_total",
		Help: "Products touched by bulk optimization",
	}, []string{"outcome"})

	SalesEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_events_consumed_total",
		Help: "Sales feed events consumed by the worker",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
