package service

import (
	"testing"

	"pricing-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBoundsClamp(t *testing.T) {
	b := Bounds{Min: floatPtr(90), Max: floatPtr(120)}

	v, moved := b.Clamp(100)
	assert.Equal(t, 100.0, v)
	assert.False(t, moved)

	v, moved = b.Clamp(80)
	assert.Equal(t, 90.0, v)
	assert.True(t, moved)

	v, moved = b.Clamp(150)
	assert.Equal(t, 120.0, v)
	assert.True(t, moved)

	// One-sided and unconstrained bounds.
	open := Bounds{}
	v, moved = open.Clamp(1e9)
	assert.Equal(t, 1e9, v)
	assert.False(t, moved)

	floor := Bounds{Min: floatPtr(10)}
	v, _ = floor.Clamp(5)
	assert.Equal(t, 10.0, v)

	assert.True(t, b.Contains(100))
	assert.False(t, b.Contains(80))
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 85.71, roundPrice(60/(1-0.30)))
	assert.Equal(t, 100.0, roundPrice(100))
	assert.Equal(t, 0.1, roundPrice(0.1))
	assert.Equal(t, 2.68, roundPrice(2.675000001))
}

func historyRows(count int, oldPrice, newPrice float64) []models.PriceHistory {
	rows := make([]models.PriceHistory, count)
	for i := range rows {
		rows[i] = models.PriceHistory{OldPrice: oldPrice, NewPrice: newPrice}
	}
	return rows
}

func TestVolatilityMonotonicInChangeFrequency(t *testing.T) {
	// Identical magnitudes; one product changed twice as often.
	calm := computeHistoryStats(historyRows(5, 100, 110), 30)
	busy := computeHistoryStats(historyRows(10, 100, 110), 30)

	assert.Greater(t, busy.VolatilityScore, calm.VolatilityScore)
	assert.Equal(t, calm.AvgMagnitudePct, busy.AvgMagnitudePct)
}

func TestHistoryStatsMagnitudes(t *testing.T) {
	rows := []models.PriceHistory{
		{OldPrice: 100, NewPrice: 110},
		{OldPrice: 110, NewPrice: 99},
	}
	s := computeHistoryStats(rows, 30)

	assert.Equal(t, int64(2), s.Changes)
	assert.Equal(t, 10.5, s.AvgMagnitude)
	assert.Equal(t, 10.0, s.AvgMagnitudePct)
}

func TestHistoryStatsEmpty(t *testing.T) {
	s := computeHistoryStats(nil, 30)
	assert.Equal(t, int64(0), s.Changes)
	assert.Equal(t, 0.0, s.VolatilityScore)
}

func TestClampHelper(t *testing.T) {
	assert.Equal(t, 0.5, clamp(0.9, -0.5, 0.5))
	assert.Equal(t, -0.5, clamp(-3, -0.5, 0.5))
	assert.Equal(t, 0.2, clamp(0.2, -0.5, 0.5))
}

func TestDemandNudgeDirectionAndCap(t *testing.T) {
	assert.Equal(t, 0.0, demandNudge(0))
	assert.InDelta(t, 0.05, demandNudge(0.25), 1e-12)
	assert.InDelta(t, -0.05, demandNudge(-0.25), 1e-12)
	assert.InDelta(t, 0.10, demandNudge(0.5), 1e-12)
	assert.InDelta(t, 0.10, demandNudge(2.0), 1e-12)
	assert.InDelta(t, -0.10, demandNudge(-3.0), 1e-12)
}
