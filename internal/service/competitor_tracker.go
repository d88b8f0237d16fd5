package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pricing-service/config"
	"pricing-service/internal/models"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// CompetitorTracker stores scraped competitor observations and scores our
// price's market position against them.
type CompetitorTracker struct {
	store  *store.Store
	cfg    config.PricingConfig
	logger *zap.Logger
}

// NewCompetitorTracker creates a new competitor tracker
func NewCompetitorTracker(store *store.Store, cfg config.PricingConfig) *CompetitorTracker {
	return &CompetitorTracker{
		store:  store,
		cfg:    cfg,
		logger: util.NamedLogger("competitor_tracker"),
	}
}

// Record stores one scraped observation.
func (t *CompetitorTracker) Record(ctx context.Context, cp *models.CompetitorPrice) error {
	if cp.Price <= 0 {
		return ErrInvalidPrice
	}
	if cp.ScrapedAt.IsZero() {
		cp.ScrapedAt = time.Now().UTC()
	}
	if cp.QualityScore < 0 {
		cp.QualityScore = 0
	}
	if cp.QualityScore > 1 {
		cp.QualityScore = 1
	}
	return t.store.RecordCompetitorPrice(ctx, cp)
}

// ListFilter mirrors the API query parameters.
type ListFilter struct {
	InStockOnly     bool
	HighQualityOnly bool
	Hours           int
}

// List retrieves observations for a product.
func (t *CompetitorTracker) List(ctx context.Context, productID int64, f ListFilter) ([]models.CompetitorPrice, error) {
	filter := store.CompetitorFilter{
		InStockOnly:     f.InStockOnly,
		HighQualityOnly: f.HighQualityOnly,
		QualityMin:      t.cfg.CompetitorQualityMin,
	}
	if f.Hours > 0 {
		filter.Since = time.Now().UTC().Add(-time.Duration(f.Hours) * time.Hour)
	}
	return t.store.GetCompetitorPrices(ctx, productID, filter)
}

// Position is the competitive standing of our price among recent, in-stock,
// high-quality competitor observations.
type Position struct {
	Percentile   float64 `json:"percentile"`
	SampleSize   int     `json:"sample_size"`
	LowestPrice  float64 `json:"lowest_price"`
	HighestPrice float64 `json:"highest_price"`
	MedianPrice  float64 `json:"median_price"`
}

// Position computes the percentile rank of ownPrice among qualifying
// observations: 0 = cheapest on the market, 100 = most expensive. Returns nil
// when no qualifying observations exist — stale or missing competitor data is
// no signal, not an error.
func (t *CompetitorTracker) Position(ctx context.Context, productID int64, ownPrice float64) (*Position, error) {
	ctx, span := util.StartSpan(ctx, "CompetitorTracker.Position")
	defer span.End()

	prices, err := t.qualifyingPrices(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, nil
	}

	median, err := stats.Median(prices)
	if err != nil {
		return nil, fmt.Errorf("failed to compute median: %w", err)
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	return &Position{
		Percentile:   PercentileRank(sorted, ownPrice),
		SampleSize:   len(sorted),
		LowestPrice:  sorted[0],
		HighestPrice: sorted[len(sorted)-1],
		MedianPrice:  median,
	}, nil
}

// PriceAtPercentile returns the competitor price at the target percentile
// (0-100), used by competitor_based rules to bias toward a market position.
// Returns 0, false when no qualifying observations exist.
func (t *CompetitorTracker) PriceAtPercentile(ctx context.Context, productID int64, percentile float64) (float64, bool, error) {
	prices, err := t.qualifyingPrices(ctx, productID)
	if err != nil {
		return 0, false, err
	}
	if len(prices) == 0 {
		return 0, false, nil
	}
	if percentile <= 0 {
		percentile = 1
	}
	if percentile > 100 {
		percentile = 100
	}

	target, err := stats.Percentile(prices, percentile)
	if err != nil {
		return 0, false, fmt.Errorf("failed to compute percentile: %w", err)
	}
	return roundPrice(target), true, nil
}

func (t *CompetitorTracker) qualifyingPrices(ctx context.Context, productID int64) ([]float64, error) {
	rows, err := t.store.GetCompetitorPrices(ctx, productID, store.CompetitorFilter{
		InStockOnly:     true,
		HighQualityOnly: true,
		QualityMin:      t.cfg.CompetitorQualityMin,
		Since:           time.Now().UTC().Add(-t.cfg.CompetitorFreshness),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load competitor prices: %w", err)
	}

	prices := make([]float64, 0, len(rows))
	for _, row := range rows {
		prices = append(prices, row.Price)
	}
	return prices, nil
}

// PercentileRank returns the percentage of sorted prices strictly below own,
// counting ties as half. With [95, 98, 101, 105] and own 100 the rank is 50.
func PercentileRank(sorted []float64, own float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	below, equal := 0, 0
	for _, p := range sorted {
		switch {
		case p < own:
			below++
		case p == own:
			equal++
		}
	}
	return 100 * (float64(below) + float64(equal)/2) / float64(len(sorted))
}
