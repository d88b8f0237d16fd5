package service

import (
	"math"
	"testing"
	"time"

	"pricing-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weeklySeries builds days of demand with a strong weekly cycle: weekends
// sell triple.
func weeklySeries(days int) []float64 {
	series := make([]float64, days)
	for i := range series {
		series[i] = 10
		if i%7 == 5 || i%7 == 6 {
			series[i] = 30
		}
	}
	return series
}

func TestSelectAlgorithm(t *testing.T) {
	assert.Equal(t, models.AlgorithmCategoryBaseline, SelectAlgorithm(nil))
	assert.Equal(t, models.AlgorithmMovingAverage, SelectAlgorithm(make([]float64, 5)))

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 8
	}
	assert.Equal(t, models.AlgorithmExponentialSmoothing, SelectAlgorithm(flat))

	// Long history with weekly seasonality upgrades to trend_seasonal.
	assert.Equal(t, models.AlgorithmTrendSeasonal, SelectAlgorithm(weeklySeries(70)))

	// Long history without seasonality stays on smoothing.
	long := make([]float64, 70)
	for i := range long {
		long[i] = float64(i % 3)
	}
	assert.Equal(t, models.AlgorithmExponentialSmoothing, SelectAlgorithm(long))
}

func TestAutocorrelationWeeklyPattern(t *testing.T) {
	ac := Autocorrelation(weeklySeries(70), 7)
	assert.Greater(t, ac, 0.85)

	flat := make([]float64, 30)
	assert.Equal(t, 0.0, Autocorrelation(flat, 7))

	assert.Equal(t, 0.0, Autocorrelation([]float64{1, 2}, 7))
}

func TestMovingAverage(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	// Trailing 7-day window: mean of 4..10.
	assert.Equal(t, 7.0, MovingAverage(series, 7))

	// Window longer than the series uses everything.
	assert.Equal(t, 2.0, MovingAverage([]float64{1, 2, 3}, 7))

	assert.Equal(t, 0.0, MovingAverage(nil, 7))
}

func TestExponentialSmooth(t *testing.T) {
	constant := []float64{5, 5, 5, 5, 5}
	assert.Equal(t, 5.0, ExponentialSmooth(constant, 0.3))

	// The level moves toward recent values but stays between the extremes.
	level := ExponentialSmooth([]float64{0, 0, 0, 10, 10, 10}, 0.3)
	assert.Greater(t, level, 0.0)
	assert.Less(t, level, 10.0)
}

func TestLinearFitPerfectLine(t *testing.T) {
	series := make([]float64, 10)
	for i := range series {
		series[i] = 3 + 2*float64(i)
	}
	slope, intercept := linearFit(series)
	assert.InDelta(t, 2, slope, 1e-9)
	assert.InDelta(t, 3, intercept, 1e-9)
}

func TestTrendSeasonalPredictorTracksCycle(t *testing.T) {
	series := weeklySeries(70)
	predict := trendSeasonalPredictor(series)

	// Day 70 in the series continues the cycle at weekday index 0 (a slow
	// day); the next weekend day is offset 6 (index 75, weekday 5).
	slow := predict(1)
	busy := predict(6)
	assert.Greater(t, busy, slow)
	assert.InDelta(t, 10, slow, 2)
	assert.InDelta(t, 30, busy, 2)
}

func TestConfidenceMonotonicity(t *testing.T) {
	// Further out means less confident.
	near := Confidence(models.AlgorithmExponentialSmoothing, 30, 1)
	far := Confidence(models.AlgorithmExponentialSmoothing, 30, 30)
	assert.Greater(t, near, far)

	// More history means more confident.
	short := Confidence(models.AlgorithmExponentialSmoothing, 14, 1)
	long := Confidence(models.AlgorithmExponentialSmoothing, 56, 1)
	assert.Greater(t, long, short)

	for _, c := range []float64{near, far, short, long} {
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}

	// The fallback baseline carries the lowest base confidence.
	baseline := Confidence(models.AlgorithmCategoryBaseline, 0, 1)
	assert.Less(t, baseline, Confidence(models.AlgorithmMovingAverage, 0, 1))
}

func TestFillDailySeriesZeroFillsGaps(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	daily := []models.DailyDemand{
		{Day: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), Quantity: 4},
		{Day: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC), Quantity: 2},
	}

	series := FillDailySeries(daily, today)

	// Mar 5 through Mar 9: 4, 0, 0, 2, 0.
	require.Len(t, series, 5)
	assert.Equal(t, []float64{4, 0, 0, 2, 0}, series)

	assert.Nil(t, FillDailySeries(nil, today))
}

func TestMovingAverageMatchesMeanOfWindow(t *testing.T) {
	series := weeklySeries(28)
	got := MovingAverage(series, 7)

	var sum float64
	for _, v := range series[21:] {
		sum += v
	}
	assert.InDelta(t, sum/7, got, 1e-9)
	assert.False(t, math.IsNaN(got))
}
