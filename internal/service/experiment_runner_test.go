package service

import (
	"testing"

	"pricing-service/config"
	"pricing-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignArmSticky(t *testing.T) {
	arm := AssignArm("session-abc", 42)
	for i := 0; i < 100; i++ {
		assert.Equal(t, arm, AssignArm("session-abc", 42))
	}
}

func TestAssignArmVariesAcrossSessionsAndExperiments(t *testing.T) {
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[AssignArm(string(rune('a'+i%26))+string(rune('0'+i/26)), 7)]++
	}
	// Roughly balanced split between arms.
	assert.Greater(t, counts[models.ArmControl], 300)
	assert.Greater(t, counts[models.ArmVariant], 300)

	// Same session, different experiment can land elsewhere; at minimum the
	// assignment is a pure function of both inputs.
	same := AssignArm("session-abc", 1)
	assert.Equal(t, same, AssignArm("session-abc", 1))
}

func TestTwoProportionZTestSignificant(t *testing.T) {
	// Control 5/50 vs variant 14/50: a real lift.
	z, p := TwoProportionZTest(5, 50, 14, 50)

	assert.Greater(t, z, 2.0)
	assert.Less(t, p, 0.05)
}

func TestTwoProportionZTestDegenerate(t *testing.T) {
	_, p := TwoProportionZTest(0, 0, 5, 50)
	assert.Equal(t, 1.0, p)

	// Identical arms: no effect.
	z, p := TwoProportionZTest(10, 100, 10, 100)
	assert.Equal(t, 0.0, z)
	assert.InDelta(t, 1.0, p, 1e-9)

	// All conversions everywhere: zero pooled variance.
	_, p = TwoProportionZTest(50, 50, 50, 50)
	assert.Equal(t, 1.0, p)
}

func testRunner(minSamples int64) *ExperimentRunner {
	return &ExperimentRunner{
		cfg: config.PricingConfig{
			ExperimentMinSamples: minSamples,
			ExperimentAlpha:      0.05,
		},
	}
}

func TestEvaluateDeclaresVariantWinner(t *testing.T) {
	r := testRunner(50)
	exp := &models.PriceExperiment{
		ID: 1, ProductID: 9,
		ControlPrice: 100, VariantPrice: 90,
		Status:             models.ExperimentStatusRunning,
		ControlImpressions: 50, ControlConversions: 5,
		VariantImpressions: 50, VariantConversions: 14,
	}

	res := r.evaluate(exp)

	require.True(t, res.Significant)
	assert.Equal(t, models.ArmVariant, res.Winner)
	assert.Less(t, res.PValue, 0.05)
	assert.InDelta(t, 0.10, res.Control.ConversionRate, 1e-9)
	assert.InDelta(t, 0.28, res.Variant.ConversionRate, 1e-9)
}

func TestEvaluateInconclusiveBelowMinSamples(t *testing.T) {
	r := testRunner(100)
	exp := &models.PriceExperiment{
		ID: 1, ProductID: 9,
		ControlPrice: 100, VariantPrice: 90,
		ControlImpressions: 50, ControlConversions: 5,
		VariantImpressions: 50, VariantConversions: 14,
	}

	res := r.evaluate(exp)

	// The lift is real but the sample gate is not met.
	assert.False(t, res.Significant)
	assert.Empty(t, res.Winner)
	assert.Contains(t, res.Verdict, "inconclusive")
}

func TestEvaluateInconclusiveWithoutLift(t *testing.T) {
	r := testRunner(50)
	exp := &models.PriceExperiment{
		ID: 1, ProductID: 9,
		ControlPrice: 100, VariantPrice: 90,
		ControlImpressions: 200, ControlConversions: 20,
		VariantImpressions: 200, VariantConversions: 22,
	}

	res := r.evaluate(exp)

	assert.False(t, res.Significant)
	assert.Empty(t, res.Winner)
}

func TestEvaluateControlCanWin(t *testing.T) {
	r := testRunner(50)
	exp := &models.PriceExperiment{
		ID: 1, ProductID: 9,
		ControlPrice: 100, VariantPrice: 120,
		ControlImpressions: 200, ControlConversions: 60,
		VariantImpressions: 200, VariantConversions: 20,
	}

	res := r.evaluate(exp)

	require.True(t, res.Significant)
	assert.Equal(t, models.ArmControl, res.Winner)

	// A control win still carries a price to apply: the control price may
	// differ from whatever the product drifted to during the run.
	price, ok := res.WinningPrice()
	require.True(t, ok)
	assert.Equal(t, 100.0, price)
}

func TestWinningPriceSelectsArm(t *testing.T) {
	r := testRunner(50)

	variantWin := r.evaluate(&models.PriceExperiment{
		ID: 1, ProductID: 9,
		ControlPrice: 100, VariantPrice: 90,
		ControlImpressions: 200, ControlConversions: 20,
		VariantImpressions: 200, VariantConversions: 60,
	})
	price, ok := variantWin.WinningPrice()
	require.True(t, ok)
	assert.Equal(t, 90.0, price)

	inconclusive := r.evaluate(&models.PriceExperiment{
		ID: 1, ProductID: 9,
		ControlPrice: 100, VariantPrice: 90,
		ControlImpressions: 10, ControlConversions: 1,
		VariantImpressions: 10, VariantConversions: 2,
	})
	_, ok = inconclusive.WinningPrice()
	assert.False(t, ok)
}

func TestNewRunningExperimentSetsStartTime(t *testing.T) {
	exp := newRunningExperiment(StartExperimentRequest{
		ProductID:    9,
		Name:         "spring repricing",
		ControlPrice: 100.005,
		VariantPrice: 89.999,
	})

	assert.Equal(t, models.ExperimentStatusRunning, exp.Status)
	require.True(t, exp.StartedAt.Valid)
	assert.False(t, exp.StartedAt.Time.IsZero())
	assert.Equal(t, 100.01, exp.ControlPrice)
	assert.Equal(t, 90.0, exp.VariantPrice)
}
