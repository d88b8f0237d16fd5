package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentileRank(t *testing.T) {
	prices := []float64{95, 98, 101, 105}

	// Two competitors below, two above: squarely mid-market.
	assert.Equal(t, 50.0, PercentileRank(prices, 100))

	assert.Equal(t, 0.0, PercentileRank(prices, 90))
	assert.Equal(t, 100.0, PercentileRank(prices, 110))
}

func TestPercentileRankCountsTiesAsHalf(t *testing.T) {
	prices := []float64{90, 100, 100, 110}

	// One below, two equal (counted half each), one above.
	assert.Equal(t, 50.0, PercentileRank(prices, 100))
}

func TestPercentileRankEmpty(t *testing.T) {
	assert.Equal(t, 0.0, PercentileRank(nil, 100))
}
