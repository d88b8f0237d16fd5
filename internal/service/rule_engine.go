package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"go.uber.org/zap"
)

// RuleEngine resolves the active price rules for a product into a constrained
// candidate price.
type RuleEngine struct {
	store  *store.Store
	logger *zap.Logger
}

// NewRuleEngine creates a new rule engine
func NewRuleEngine(store *store.Store) *RuleEngine {
	return &RuleEngine{
		store:  store,
		logger: util.NamedLogger("rule_engine"),
	}
}

// Evaluation is the outcome of folding the matching rules over a product.
type Evaluation struct {
	CandidatePrice float64  `json:"candidate_price"`
	Bounds         Bounds   `json:"bounds"`
	AppliedRuleIDs []int64  `json:"applied_rule_ids"`
	Warnings       []string `json:"warnings,omitempty"`

	// Set when an active competitor_based rule requests a market position;
	// the orchestrator resolves it against the competitor tracker.
	TargetPercentile *float64 `json:"target_percentile,omitempty"`
	CompetitorRuleID int64    `json:"-"`
}

// Evaluate loads the rules matching the product and folds them.
func (e *RuleEngine) Evaluate(ctx context.Context, product *models.Product) (*Evaluation, error) {
	ctx, span := util.StartSpan(ctx, "RuleEngine.Evaluate")
	defer span.End()

	rules, err := e.store.GetMatchingRules(ctx, product.ID, product.CategoryID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load matching rules: %w", err)
	}

	eval := EvaluateRules(product, rules, time.Now().UTC())
	for _, w := range eval.Warnings {
		e.logger.Warn("rule evaluation warning",
			zap.Int64("product_id", product.ID),
			zap.String("warning", w))
	}
	return eval, nil
}

// EvaluateRules folds rules over a product, pure and deterministic.
//
// Rules are evaluated in priority order (ascending, most recently created first
// on ties). Each rule may narrow the bounds by intersection and may propose an
// adjustment; the final candidate is the last proposal clamped to the final
// intersected bounds. Disjoint lower-priority bounds are discarded with a
// warning, never an error. Malformed rules are skipped.
func EvaluateRules(product *models.Product, rules []models.PriceRule, now time.Time) *Evaluation {
	sorted := make([]models.PriceRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	eval := &Evaluation{CandidatePrice: product.CurrentPrice}
	var proposal *float64

	for i := range sorted {
		rule := &sorted[i]

		if !ruleWindowContains(rule, now) || !rule.IsActive {
			continue
		}
		if reason, ok := validateRule(rule); !ok {
			util.RulesSkippedTotal.WithLabelValues("malformed").Inc()
			eval.Warnings = append(eval.Warnings,
				fmt.Sprintf("rule %d skipped: %s", rule.ID, reason))
			continue
		}

		applied := false

		if rule.MinPrice.Valid || rule.MaxPrice.Valid {
			if intersect(&eval.Bounds, rule) {
				applied = true
			} else {
				util.RulesSkippedTotal.WithLabelValues("disjoint_bounds").Inc()
				eval.Warnings = append(eval.Warnings,
					fmt.Sprintf("rule %d bounds disjoint with higher-priority bounds, discarded", rule.ID))
			}
		}

		if p, ok := proposeAdjustment(product, rule); ok {
			proposal = &p
			applied = true
		}

		if rule.RuleType == models.RuleTypeCompetitorBased && rule.TargetPercentile.Valid {
			pct := rule.TargetPercentile.Float64
			eval.TargetPercentile = &pct
			eval.CompetitorRuleID = rule.ID
			applied = true
		}

		if applied {
			eval.AppliedRuleIDs = append(eval.AppliedRuleIDs, rule.ID)
		}
	}

	if proposal != nil {
		eval.CandidatePrice = *proposal
	}
	eval.CandidatePrice, _ = eval.Bounds.Clamp(eval.CandidatePrice)
	eval.CandidatePrice = roundPrice(eval.CandidatePrice)
	return eval
}

func ruleWindowContains(rule *models.PriceRule, now time.Time) bool {
	if rule.StartsAt.Valid && now.Before(rule.StartsAt.Time) {
		return false
	}
	if rule.EndsAt.Valid && now.After(rule.EndsAt.Time) {
		return false
	}
	return true
}

func validateRule(rule *models.PriceRule) (string, bool) {
	if rule.MinPrice.Valid && rule.MaxPrice.Valid && rule.MinPrice.Float64 > rule.MaxPrice.Float64 {
		return "min_price greater than max_price", false
	}
	if rule.MinPrice.Valid && rule.MinPrice.Float64 < 0 {
		return "negative min_price", false
	}
	if rule.TargetMargin.Valid && (rule.TargetMargin.Float64 < 0 || rule.TargetMargin.Float64 >= 1) {
		return "target_margin outside [0, 1)", false
	}
	if rule.AdjustmentKind.Valid && rule.AdjustmentKind.String == models.AdjustmentTargetMargin &&
		rule.AdjustmentValue.Valid && (rule.AdjustmentValue.Float64 < 0 || rule.AdjustmentValue.Float64 >= 1) {
		return "target_margin adjustment outside [0, 1)", false
	}
	if rule.Priority < 1 || rule.Priority > 100 {
		return "priority outside 1-100", false
	}
	return "", true
}

// intersect narrows the accumulated bounds with the rule's bounds. Returns
// false when the ranges are disjoint, leaving the accumulated bounds (which
// came from higher-priority rules) untouched.
func intersect(b *Bounds, rule *models.PriceRule) bool {
	min, max := b.Min, b.Max

	if rule.MinPrice.Valid && (min == nil || rule.MinPrice.Float64 > *min) {
		min = floatPtr(rule.MinPrice.Float64)
	}
	if rule.MaxPrice.Valid && (max == nil || rule.MaxPrice.Float64 < *max) {
		max = floatPtr(rule.MaxPrice.Float64)
	}

	if min != nil && max != nil && *min > *max {
		return false
	}

	b.Min, b.Max = min, max
	return true
}

// proposeAdjustment converts the rule's adjustment into a concrete price.
func proposeAdjustment(product *models.Product, rule *models.PriceRule) (float64, bool) {
	if rule.TargetMargin.Valid {
		// Back-solve the price that yields the desired (price-cost)/price.
		return product.Cost / (1 - rule.TargetMargin.Float64), true
	}

	if !rule.AdjustmentKind.Valid || !rule.AdjustmentValue.Valid {
		return 0, false
	}

	switch rule.AdjustmentKind.String {
	case models.AdjustmentPercentage:
		return product.CurrentPrice * (1 + rule.AdjustmentValue.Float64/100), true
	case models.AdjustmentFixed:
		return product.CurrentPrice + rule.AdjustmentValue.Float64, true
	case models.AdjustmentTargetMargin:
		return product.Cost / (1 - rule.AdjustmentValue.Float64), true
	default:
		return 0, false
	}
}
