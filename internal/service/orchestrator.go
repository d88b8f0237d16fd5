package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"pricing-service/config"
	"pricing-service/internal/broker"
	"pricing-service/internal/models"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// Hot recommendations are cached briefly; any apply invalidates.
const recommendCacheTTL = 30 * time.Second

// Demand signal influence: the nudge moves the candidate at most this fraction.
const maxDemandNudge = 0.10

// Competitor pull: how far the candidate moves toward the target percentile
// price when a competitor_based rule is active.
const competitorPullWeight = 0.5

// Orchestrator composes the rule engine, forecaster, competitor tracker and
// surge state into price recommendations and transactional price mutations.
type Orchestrator struct {
	store      *store.Store
	redis      *redisclient.Client
	publisher  *broker.EventPublisher
	ruleEngine *RuleEngine
	forecaster *Forecaster
	tracker    *CompetitorTracker
	cfg        config.PricingConfig
	logger     *zap.Logger
}

// NewOrchestrator creates a new pricing orchestrator
func NewOrchestrator(
	store *store.Store,
	redis *redisclient.Client,
	publisher *broker.EventPublisher,
	ruleEngine *RuleEngine,
	forecaster *Forecaster,
	tracker *CompetitorTracker,
	cfg config.PricingConfig,
) *Orchestrator {
	return &Orchestrator{
		store:      store,
		redis:      redis,
		publisher:  publisher,
		ruleEngine: ruleEngine,
		forecaster: forecaster,
		tracker:    tracker,
		cfg:        cfg,
		logger:     util.NamedLogger("orchestrator"),
	}
}

// Recommendation is the optimal-price computation result.
type Recommendation struct {
	ProductID        int64    `json:"product_id"`
	CurrentPrice     float64  `json:"current_price"`
	RecommendedPrice float64  `json:"recommended_price"`
	Rationale        []string `json:"rationale"`
	Bounds           Bounds   `json:"bounds"`
	AppliedRuleIDs   []int64  `json:"applied_rule_ids,omitempty"`
	SurgeActive      bool     `json:"surge_active"`
	LowConfidence    bool     `json:"low_confidence,omitempty"`
}

// CalculateOptimalPrice composes the rule candidate with the demand and
// competitor signals, then layers any active surge multiplier on top. Missing
// signals are omitted from the computation, never errors.
func (o *Orchestrator) CalculateOptimalPrice(ctx context.Context, productID int64) (*Recommendation, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.CalculateOptimalPrice")
	defer span.End()

	util.RecommendationsTotal.Inc()
	start := time.Now()
	defer func() {
		util.RecommendationLatency.Observe(time.Since(start).Seconds())
	}()

	var cached Recommendation
	if hit, err := o.redis.GetCachedRecommendation(ctx, productID, &cached); err == nil && hit {
		return &cached, nil
	}

	rec, err := o.recommendBase(ctx, productID)
	if err != nil {
		return nil, err
	}

	// Surge multiplier applies on top of the base recommendation; expiry is
	// lazy, so an event past ends_at is ignored here.
	surge, err := o.store.GetActiveSurgeEvent(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to check surge state: %w", err)
	}
	if surge != nil && time.Now().UTC().Before(surge.EndsAt) {
		surged := rec.RecommendedPrice * surge.Multiplier
		surged, _ = rec.Bounds.Clamp(surged)
		rec.RecommendedPrice = roundPrice(surged)
		rec.SurgeActive = true
		rec.Rationale = append(rec.Rationale,
			fmt.Sprintf("surge %s active: multiplier %.2f applied", surge.EventType, surge.Multiplier))
	}

	if err := o.redis.CacheRecommendation(ctx, productID, rec, recommendCacheTTL); err != nil {
		o.logger.Warn("failed to cache recommendation",
			zap.Int64("product_id", productID), zap.Error(err))
	}
	return rec, nil
}

// GetProduct returns one product by id.
func (o *Orchestrator) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	return o.store.GetProductByID(ctx, productID)
}

// recommendBase is the recommendation without the surge layer; the surge
// manager prices events off this base.
func (o *Orchestrator) recommendBase(ctx context.Context, productID int64) (*Recommendation, error) {
	product, err := o.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	eval, err := o.ruleEngine.Evaluate(ctx, product)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{
		ProductID:      product.ID,
		CurrentPrice:   product.CurrentPrice,
		Bounds:         eval.Bounds,
		AppliedRuleIDs: eval.AppliedRuleIDs,
	}
	price := eval.CandidatePrice

	if len(eval.AppliedRuleIDs) == 0 {
		rec.Rationale = append(rec.Rationale, "no matching rules; starting from current price")
	} else {
		rec.Rationale = append(rec.Rationale,
			fmt.Sprintf("rule candidate %.2f from %d rule(s)", price, len(eval.AppliedRuleIDs)))
	}

	// Demand nudge: forecasted demand above baseline biases up, below biases
	// down, at most ±10% and always inside the bounds.
	if ratio, ok, err := o.forecaster.DemandSignal(ctx, productID); err != nil {
		o.logger.Warn("demand signal unavailable",
			zap.Int64("product_id", productID), zap.Error(err))
	} else if ok {
		nudge := demandNudge(ratio)
		if nudge != 0 {
			price *= 1 + nudge
			rec.Rationale = append(rec.Rationale,
				fmt.Sprintf("demand signal %+.0f%% vs baseline: nudged %+.1f%%", ratio*100, nudge*100))
		}
	} else {
		rec.LowConfidence = true
		rec.Rationale = append(rec.Rationale, "no demand signal available")
	}

	// Competitor pull: only when an active competitor_based rule names a
	// target percentile and fresh qualifying observations exist.
	if eval.TargetPercentile != nil {
		target, ok, err := o.tracker.PriceAtPercentile(ctx, productID, *eval.TargetPercentile)
		if err != nil {
			o.logger.Warn("competitor signal unavailable",
				zap.Int64("product_id", productID), zap.Error(err))
		} else if ok {
			price = price + competitorPullWeight*(target-price)
			rec.Rationale = append(rec.Rationale,
				fmt.Sprintf("pulled toward %.0fth percentile competitor price %.2f", *eval.TargetPercentile, target))
		} else {
			rec.Rationale = append(rec.Rationale, "competitor data missing or stale; signal omitted")
		}
	}

	clamped, moved := rec.Bounds.Clamp(price)
	if moved {
		rec.Rationale = append(rec.Rationale,
			fmt.Sprintf("clamped %.2f into rule bounds", price))
	}
	rec.RecommendedPrice = roundPrice(clamped)
	return rec, nil
}

// ApplyPriceChangeRequest carries one price mutation. ActingUserID zero means
// the system itself made the change.
type ApplyPriceChangeRequest struct {
	ProductID    int64
	NewPrice     float64
	Reason       string
	RuleID       int64
	ActingUserID int64
	Notes        string
}

// PriceChangeResult reports what was committed.
type PriceChangeResult struct {
	Product        *models.Product      `json:"product"`
	History        *models.PriceHistory `json:"history"`
	Clamped        bool                 `json:"clamped"`
	RequestedPrice float64              `json:"requested_price"`
}

// ApplyPriceChange writes the new price and its audit row in one transaction,
// serialized per product. A request outside the active rule bounds is clamped,
// with the original requested value noted on the history row.
func (o *Orchestrator) ApplyPriceChange(ctx context.Context, req ApplyPriceChangeRequest) (*PriceChangeResult, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.ApplyPriceChange")
	defer span.End()

	if req.NewPrice <= 0 {
		return nil, fmt.Errorf("%w: %.2f", ErrInvalidPrice, req.NewPrice)
	}
	if req.Reason == "" {
		req.Reason = models.ChangeReasonManual
	}
	switch req.Reason {
	case models.ChangeReasonManual, models.ChangeReasonRuleBased, models.ChangeReasonDemand,
		models.ChangeReasonCompetitor, models.ChangeReasonSurge:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, req.Reason)
	}

	product, err := o.store.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	eval, err := o.ruleEngine.Evaluate(ctx, product)
	if err != nil {
		return nil, err
	}

	requested := roundPrice(req.NewPrice)
	final, clamped := eval.Bounds.Clamp(requested)
	final = roundPrice(final)

	notes := req.Notes
	if clamped {
		util.PriceClampsTotal.Inc()
		clampNote := fmt.Sprintf("requested %.2f clamped to rule bounds", requested)
		if notes != "" {
			notes += "; " + clampNote
		} else {
			notes = clampNote
		}
	}

	h := &models.PriceHistory{
		ProductID: req.ProductID,
		NewPrice:  final,
		Reason:    req.Reason,
	}
	if req.RuleID > 0 {
		h.RuleID = sql.NullInt64{Int64: req.RuleID, Valid: true}
	}
	if req.ActingUserID > 0 {
		h.UserID = sql.NullInt64{Int64: req.ActingUserID, Valid: true}
	}
	if notes != "" {
		h.Notes = sql.NullString{String: notes, Valid: true}
	}

	updated, err := o.store.ApplyPriceChangeTx(ctx, h)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			util.PriceChangeConflictsTotal.Inc()
		}
		return nil, err
	}

	util.PriceChangesTotal.WithLabelValues(req.Reason).Inc()
	o.logger.Info("price change applied",
		zap.Int64("product_id", req.ProductID),
		zap.Float64("old_price", h.OldPrice),
		zap.Float64("new_price", final),
		zap.String("reason", req.Reason))

	if err := o.redis.InvalidateRecommendation(ctx, req.ProductID); err != nil {
		o.logger.Warn("failed to invalidate recommendation cache",
			zap.Int64("product_id", req.ProductID), zap.Error(err))
	}

	event := &models.PriceChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypePriceChanged,
			Timestamp: time.Now(),
		},
		ProductID: req.ProductID,
		OldPrice:  h.OldPrice,
		NewPrice:  final,
		Reason:    req.Reason,
		HistoryID: h.ID,
	}
	if err := o.publisher.PublishPriceChanged(ctx, event); err != nil {
		o.logger.Error("failed to publish PriceChanged event", zap.Error(err))
	}

	return &PriceChangeResult{
		Product:        updated,
		History:        h,
		Clamped:        clamped,
		RequestedPrice: requested,
	}, nil
}

// ProposedChange is one row in a bulk-optimization report.
type ProposedChange struct {
	ProductID        int64   `json:"product_id"`
	CurrentPrice     float64 `json:"current_price"`
	RecommendedPrice float64 `json:"recommended_price"`
	Applied          bool    `json:"applied"`
	Error            string  `json:"error,omitempty"`
}

// BulkOptimizeResult summarizes one bulk pass. Cancelled counts products the
// batch never reached.
type BulkOptimizeResult struct {
	DryRun    bool             `json:"dry_run"`
	Total     int              `json:"total"`
	Applied   int              `json:"applied"`
	Unchanged int              `json:"unchanged"`
	Failed    int              `json:"failed"`
	Cancelled int              `json:"cancelled"`
	Changes   []ProposedChange `json:"changes"`
}

// BulkOptimizePrices computes the optimal price for every matching product,
// applying each with reason rule_based unless dryRun. The per-product lock is
// held only inside each individual apply, and the loop stops at cancellation
// reporting partial counts.
func (o *Orchestrator) BulkOptimizePrices(ctx context.Context, categoryID int64, dryRun bool) (*BulkOptimizeResult, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.BulkOptimizePrices")
	defer span.End()

	var products []models.Product
	var err error
	if categoryID > 0 {
		products, err = o.store.GetProductsByCategory(ctx, categoryID)
	} else {
		products, err = o.store.GetProducts(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	result := &BulkOptimizeResult{DryRun: dryRun, Total: len(products)}

	for i, product := range products {
		if ctx.Err() != nil {
			result.Cancelled = len(products) - i
			break
		}

		rec, err := o.CalculateOptimalPrice(ctx, product.ID)
		if err != nil {
			result.Failed++
			util.BulkOptimizeProductsTotal.WithLabelValues("failed").Inc()
			result.Changes = append(result.Changes, ProposedChange{
				ProductID:    product.ID,
				CurrentPrice: product.CurrentPrice,
				Error:        err.Error(),
			})
			continue
		}

		change := ProposedChange{
			ProductID:        product.ID,
			CurrentPrice:     product.CurrentPrice,
			RecommendedPrice: rec.RecommendedPrice,
		}

		if rec.RecommendedPrice == roundPrice(product.CurrentPrice) {
			result.Unchanged++
			util.BulkOptimizeProductsTotal.WithLabelValues("unchanged").Inc()
			result.Changes = append(result.Changes, change)
			continue
		}

		if !dryRun {
			_, err := o.ApplyPriceChange(ctx, ApplyPriceChangeRequest{
				ProductID: product.ID,
				NewPrice:  rec.RecommendedPrice,
				Reason:    models.ChangeReasonRuleBased,
				Notes:     "bulk optimization",
			})
			if err != nil {
				result.Failed++
				util.BulkOptimizeProductsTotal.WithLabelValues("failed").Inc()
				change.Error = err.Error()
				result.Changes = append(result.Changes, change)
				continue
			}
			change.Applied = true
		}

		result.Applied++
		util.BulkOptimizeProductsTotal.WithLabelValues("applied").Inc()
		result.Changes = append(result.Changes, change)
	}

	return result, nil
}

// HistoryStats summarizes a product's price movement over a window.
type HistoryStats struct {
	Changes         int64   `json:"changes"`
	AvgMagnitude    float64 `json:"avg_magnitude"`
	AvgMagnitudePct float64 `json:"avg_magnitude_pct"`
	VolatilityScore float64 `json:"volatility_score"`
}

// HistoryReport is the paginated history response with stats.
type HistoryReport struct {
	ProductID int64                 `json:"product_id"`
	Rows      []models.PriceHistory `json:"rows"`
	Total     int64                 `json:"total"`
	Stats     HistoryStats          `json:"stats"`
}

// GetHistory returns paginated history rows plus movement stats.
func (o *Orchestrator) GetHistory(ctx context.Context, productID int64, days int, reason string, limit, offset int) (*HistoryReport, error) {
	if _, err := o.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if days <= 0 {
		days = 30
	}

	rows, err := o.store.GetPriceHistory(ctx, productID, days, reason, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := o.store.CountPriceHistory(ctx, productID, days, reason)
	if err != nil {
		return nil, err
	}

	// Stats come from the full window, not just the returned page.
	all, err := o.store.GetPriceHistory(ctx, productID, days, reason, int(total), 0)
	if err != nil {
		return nil, err
	}

	return &HistoryReport{
		ProductID: productID,
		Rows:      rows,
		Total:     total,
		Stats:     computeHistoryStats(all, days),
	}, nil
}

// AnalyticsReport aggregates pricing activity across products.
type AnalyticsReport struct {
	WindowDays        int              `json:"window_days"`
	TotalChanges      int64            `json:"total_changes"`
	ProductsChanged   int              `json:"products_changed"`
	AvgMagnitude      float64          `json:"avg_magnitude"`
	AvgMagnitudePct   float64          `json:"avg_magnitude_pct"`
	AvgVolatility     float64          `json:"avg_volatility"`
	ChangesByReason   map[string]int64 `json:"changes_by_reason"`
	ExperimentsTotal  int64            `json:"experiments_completed"`
	ExperimentWinners int64            `json:"experiment_winners"`
	ExperimentWinRate float64          `json:"experiment_win_rate"`
}

// GetPricingAnalytics aggregates history and experiment outcomes over the
// window.
func (o *Orchestrator) GetPricingAnalytics(ctx context.Context, days int) (*AnalyticsReport, error) {
	ctx, span := util.StartSpan(ctx, "Orchestrator.GetPricingAnalytics")
	defer span.End()

	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := o.store.GetPriceChangesSince(ctx, since)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{
		WindowDays:      days,
		TotalChanges:    int64(len(rows)),
		ChangesByReason: make(map[string]int64),
	}

	byProduct := make(map[int64][]models.PriceHistory)
	var magnitudes, magnitudePcts []float64
	for _, row := range rows {
		byProduct[row.ProductID] = append(byProduct[row.ProductID], row)
		report.ChangesByReason[row.Reason]++
		magnitudes = append(magnitudes, math.Abs(row.NewPrice-row.OldPrice))
		if row.OldPrice > 0 {
			magnitudePcts = append(magnitudePcts, math.Abs(row.NewPrice-row.OldPrice)/row.OldPrice*100)
		}
	}
	report.ProductsChanged = len(byProduct)

	if len(magnitudes) > 0 {
		if m, err := stats.Mean(magnitudes); err == nil {
			report.AvgMagnitude = roundPrice(m)
		}
		if m, err := stats.Mean(magnitudePcts); err == nil {
			report.AvgMagnitudePct = roundPrice(m)
		}
	}

	var volatilities []float64
	for _, productRows := range byProduct {
		s := computeHistoryStats(productRows, days)
		volatilities = append(volatilities, s.VolatilityScore)
	}
	if len(volatilities) > 0 {
		if m, err := stats.Mean(volatilities); err == nil {
			report.AvgVolatility = roundPrice(m)
		}
	}

	completed, winners, err := o.store.CountCompletedExperiments(ctx,
		sql.NullTime{Time: since, Valid: true})
	if err != nil {
		return nil, err
	}
	report.ExperimentsTotal = completed
	report.ExperimentWinners = winners
	if completed > 0 {
		report.ExperimentWinRate = roundPrice(float64(winners) / float64(completed) * 100)
	}

	return report, nil
}

// computeHistoryStats derives movement stats and the volatility score.
// Volatility = change frequency (changes per day) × mean |Δ%|, so more
// frequent movers of the same magnitude always score strictly higher.
func computeHistoryStats(rows []models.PriceHistory, days int) HistoryStats {
	s := HistoryStats{Changes: int64(len(rows))}
	if len(rows) == 0 || days <= 0 {
		return s
	}

	var magnitudes, pcts []float64
	for _, row := range rows {
		magnitudes = append(magnitudes, math.Abs(row.NewPrice-row.OldPrice))
		if row.OldPrice > 0 {
			pcts = append(pcts, math.Abs(row.NewPrice-row.OldPrice)/row.OldPrice*100)
		}
	}

	if m, err := stats.Mean(magnitudes); err == nil {
		s.AvgMagnitude = roundPrice(m)
	}
	if m, err := stats.Mean(pcts); err == nil {
		s.AvgMagnitudePct = roundPrice(m)
		frequency := float64(len(rows)) / float64(days)
		s.VolatilityScore = roundPrice(frequency * m)
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// demandNudge converts a demand-vs-baseline ratio into a price adjustment
// fraction. The ratio saturates at ±50%, mapping linearly onto ±maxDemandNudge.
func demandNudge(ratio float64) float64 {
	return clamp(ratio, -0.5, 0.5) * (maxDemandNudge / 0.5)
}
