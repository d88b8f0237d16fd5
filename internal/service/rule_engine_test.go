package service

import (
	"database/sql"
	"testing"
	"time"

	"pricing-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marginRule(id int64, priority int, margin float64) models.PriceRule {
	return models.PriceRule{
		ID:           id,
		Name:         "margin",
		Scope:        models.RuleScopeProduct,
		RuleType:     models.RuleTypeDemandBased,
		TargetMargin: sql.NullFloat64{Float64: margin, Valid: true},
		Priority:     priority,
		IsActive:     true,
	}
}

func boundsRule(id int64, priority int, min, max float64) models.PriceRule {
	return models.PriceRule{
		ID:       id,
		Name:     "bounds",
		Scope:    models.RuleScopeProduct,
		RuleType: models.RuleTypeTimeBased,
		MinPrice: sql.NullFloat64{Float64: min, Valid: true},
		MaxPrice: sql.NullFloat64{Float64: max, Valid: true},
		Priority: priority,
		IsActive: true,
	}
}

func TestEvaluateRulesNoMatches(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}

	eval := EvaluateRules(product, nil, time.Now())

	assert.Equal(t, 100.0, eval.CandidatePrice)
	assert.Nil(t, eval.Bounds.Min)
	assert.Nil(t, eval.Bounds.Max)
	assert.Empty(t, eval.AppliedRuleIDs)
}

func TestEvaluateRulesTargetMargin(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}
	rules := []models.PriceRule{marginRule(1, 1, 0.30)}

	eval := EvaluateRules(product, rules, time.Now())

	// 60 / (1 - 0.30) = 85.714... rounded to cents
	assert.Equal(t, 85.71, eval.CandidatePrice)
	assert.Equal(t, []int64{1}, eval.AppliedRuleIDs)
}

func TestEvaluateRulesBoundsIntersection(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}
	rules := []models.PriceRule{
		boundsRule(1, 1, 80, 120),
		boundsRule(2, 5, 90, 150),
	}

	eval := EvaluateRules(product, rules, time.Now())

	require.NotNil(t, eval.Bounds.Min)
	require.NotNil(t, eval.Bounds.Max)
	assert.Equal(t, 90.0, *eval.Bounds.Min)
	assert.Equal(t, 120.0, *eval.Bounds.Max)
	assert.ElementsMatch(t, []int64{1, 2}, eval.AppliedRuleIDs)
}

func TestEvaluateRulesDisjointBoundsDiscarded(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 90, Cost: 60}
	rules := []models.PriceRule{
		boundsRule(1, 1, 80, 100),
		boundsRule(2, 5, 110, 130),
	}

	eval := EvaluateRules(product, rules, time.Now())

	// The higher-priority bounds survive; the disjoint rule is discarded
	// with a warning, not an error.
	require.NotNil(t, eval.Bounds.Min)
	require.NotNil(t, eval.Bounds.Max)
	assert.Equal(t, 80.0, *eval.Bounds.Min)
	assert.Equal(t, 100.0, *eval.Bounds.Max)
	assert.Equal(t, []int64{1}, eval.AppliedRuleIDs)
	assert.Len(t, eval.Warnings, 1)
	assert.Contains(t, eval.Warnings[0], "disjoint")
}

func TestEvaluateRulesMalformedSkipped(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}
	rules := []models.PriceRule{
		boundsRule(1, 1, 150, 80), // min > max
	}

	eval := EvaluateRules(product, rules, time.Now())

	assert.Equal(t, 100.0, eval.CandidatePrice)
	assert.Nil(t, eval.Bounds.Min)
	assert.Empty(t, eval.AppliedRuleIDs)
	assert.Len(t, eval.Warnings, 1)
	assert.Contains(t, eval.Warnings[0], "skipped")
}

func TestEvaluateRulesInactiveAndExpiredIgnored(t *testing.T) {
	now := time.Now()
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}

	inactive := marginRule(1, 1, 0.30)
	inactive.IsActive = false

	expired := marginRule(2, 2, 0.40)
	expired.EndsAt = sql.NullTime{Time: now.Add(-time.Hour), Valid: true}

	eval := EvaluateRules(product, []models.PriceRule{inactive, expired}, now)

	assert.Equal(t, 100.0, eval.CandidatePrice)
	assert.Empty(t, eval.AppliedRuleIDs)
}

func TestEvaluateRulesCandidateClampedToBounds(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}
	rules := []models.PriceRule{
		boundsRule(1, 1, 90, 120),
		marginRule(2, 5, 0.30), // proposes 85.71, below the floor
	}

	eval := EvaluateRules(product, rules, time.Now())

	assert.Equal(t, 90.0, eval.CandidatePrice)
}

func TestEvaluateRulesTieBreakMostRecentWins(t *testing.T) {
	now := time.Now()
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}

	older := boundsRule(1, 3, 80, 100)
	older.CreatedAt = now.Add(-48 * time.Hour)

	newer := boundsRule(2, 3, 110, 130)
	newer.CreatedAt = now.Add(-time.Hour)

	eval := EvaluateRules(product, []models.PriceRule{older, newer}, now)

	// Same priority: the most recently created rule's bounds take
	// precedence, the older disjoint bounds are discarded.
	require.NotNil(t, eval.Bounds.Min)
	assert.Equal(t, 110.0, *eval.Bounds.Min)
	assert.Equal(t, 130.0, *eval.Bounds.Max)
	assert.Equal(t, []int64{2}, eval.AppliedRuleIDs)
}

func TestEvaluateRulesPercentageAndFixedAdjustments(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 200, Cost: 120}

	pct := models.PriceRule{
		ID: 1, Name: "pct", Scope: models.RuleScopeGlobal,
		RuleType:        models.RuleTypeTimeBased,
		AdjustmentKind:  sql.NullString{String: models.AdjustmentPercentage, Valid: true},
		AdjustmentValue: sql.NullFloat64{Float64: -10, Valid: true},
		Priority:        1, IsActive: true,
	}
	eval := EvaluateRules(product, []models.PriceRule{pct}, time.Now())
	assert.Equal(t, 180.0, eval.CandidatePrice)

	fixed := pct
	fixed.AdjustmentKind = sql.NullString{String: models.AdjustmentFixed, Valid: true}
	fixed.AdjustmentValue = sql.NullFloat64{Float64: 15, Valid: true}
	eval = EvaluateRules(product, []models.PriceRule{fixed}, time.Now())
	assert.Equal(t, 215.0, eval.CandidatePrice)
}

func TestEvaluateRulesTargetPercentileExposed(t *testing.T) {
	product := &models.Product{ID: 1, CurrentPrice: 100, Cost: 60}
	rule := models.PriceRule{
		ID: 7, Name: "match market", Scope: models.RuleScopeProduct,
		RuleType:         models.RuleTypeCompetitorBased,
		TargetPercentile: sql.NullFloat64{Float64: 25, Valid: true},
		Priority:         1, IsActive: true,
	}

	eval := EvaluateRules(product, []models.PriceRule{rule}, time.Now())

	require.NotNil(t, eval.TargetPercentile)
	assert.Equal(t, 25.0, *eval.TargetPercentile)
	assert.Equal(t, int64(7), eval.CompetitorRuleID)
}

func TestAdmitRuleRejectsBadRules(t *testing.T) {
	cases := []struct {
		name string
		rule models.PriceRule
	}{
		{"missing name", models.PriceRule{Scope: models.RuleScopeGlobal, RuleType: models.RuleTypeTimeBased, Priority: 1}},
		{"unknown scope", models.PriceRule{Name: "x", Scope: "planet", RuleType: models.RuleTypeTimeBased, Priority: 1}},
		{"product scope without product_id", models.PriceRule{Name: "x", Scope: models.RuleScopeProduct, RuleType: models.RuleTypeTimeBased, Priority: 1}},
		{"unknown rule type", models.PriceRule{Name: "x", Scope: models.RuleScopeGlobal, RuleType: "astrology", Priority: 1}},
		{"priority out of range", models.PriceRule{Name: "x", Scope: models.RuleScopeGlobal, RuleType: models.RuleTypeTimeBased, Priority: 101}},
		{"min above max", func() models.PriceRule {
			r := boundsRule(0, 1, 120, 80)
			r.Scope = models.RuleScopeGlobal
			return r
		}()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := admitRule(&tc.rule)
			assert.ErrorIs(t, err, ErrInvalidRule)
		})
	}
}
