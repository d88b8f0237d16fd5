package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"pricing-service/config"
	"pricing-service/internal/models"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// Exponential smoothing level weight.
const smoothingAlpha = 0.3

// Weekly seasonality gate for auto selection: lag-7 autocorrelation above this
// picks trend_seasonal when enough history exists.
const seasonalityThreshold = 0.3

// History requirements for auto algorithm selection.
const (
	trendSeasonalMinDays = 56
	smoothingMinDays     = 14
)

// How far back the daily demand series reaches.
const historyWindowDays = 120

// Forecaster produces per-day demand predictions from the materialized sales
// feed.
type Forecaster struct {
	store  *store.Store
	cfg    config.PricingConfig
	logger *zap.Logger
}

// NewForecaster creates a new demand forecaster
func NewForecaster(store *store.Store, cfg config.PricingConfig) *Forecaster {
	return &Forecaster{
		store:  store,
		cfg:    cfg,
		logger: util.NamedLogger("forecaster"),
	}
}

// ForecastResult is a generated horizon plus quality metadata.
type ForecastResult struct {
	Forecasts     []models.DemandForecast `json:"forecasts"`
	Algorithm     string                  `json:"algorithm"`
	HistoryDays   int                     `json:"history_days"`
	LowConfidence bool                    `json:"low_confidence"`
}

// Generate computes and persists one forecast row per future day. Regenerating
// overwrites same-day rows. Insufficient history degrades the algorithm and
// flags the result low_confidence; it is never an error.
func (f *Forecaster) Generate(ctx context.Context, productID int64, horizonDays int, algorithm string) (*ForecastResult, error) {
	ctx, span := util.StartSpan(ctx, "Forecaster.Generate")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ForecastLatency.Observe(time.Since(start).Seconds())
	}()

	if horizonDays < 1 || horizonDays > f.cfg.ForecastMaxHorizonDays {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizonDays)
	}
	switch algorithm {
	case models.AlgorithmAuto, models.AlgorithmMovingAverage,
		models.AlgorithmExponentialSmoothing, models.AlgorithmTrendSeasonal:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAlgorithm, algorithm)
	}

	product, err := f.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -historyWindowDays)
	daily, err := f.store.GetDailyDemand(ctx, productID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load demand history: %w", err)
	}

	series := FillDailySeries(daily, today)

	chosen := algorithm
	if chosen == models.AlgorithmAuto {
		chosen = SelectAlgorithm(series)
	} else if !hasEnoughHistory(chosen, len(series)) {
		// An explicitly requested algorithm the history cannot support
		// degrades the same way auto would.
		chosen = SelectAlgorithm(series)
	}

	var predict func(day int) float64
	switch chosen {
	case models.AlgorithmTrendSeasonal:
		predict = trendSeasonalPredictor(series)
	case models.AlgorithmExponentialSmoothing:
		predict = flatPredictor(ExponentialSmooth(series, smoothingAlpha))
	case models.AlgorithmMovingAverage:
		predict = flatPredictor(MovingAverage(series, 7))
	case models.AlgorithmCategoryBaseline:
		baseline, err := f.store.GetCategoryDailyAverage(ctx, product.CategoryID,
			today.AddDate(0, 0, -f.cfg.ForecastAccuracyDays))
		if err != nil {
			return nil, fmt.Errorf("failed to load category baseline: %w", err)
		}
		predict = flatPredictor(baseline)
	}

	result := &ForecastResult{
		Algorithm:     chosen,
		HistoryDays:   len(series),
		LowConfidence: chosen == models.AlgorithmCategoryBaseline,
	}

	for day := 1; day <= horizonDays; day++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row := models.DemandForecast{
			ProductID:       productID,
			ForecastDate:    today.AddDate(0, 0, day),
			PredictedDemand: math.Max(0, roundPrice(predict(day))),
			Confidence:      Confidence(chosen, len(series), day),
			Algorithm:       chosen,
		}
		if err := f.store.UpsertForecast(ctx, &row); err != nil {
			return result, fmt.Errorf("failed to upsert forecast: %w", err)
		}
		result.Forecasts = append(result.Forecasts, row)
	}

	util.ForecastsGeneratedTotal.WithLabelValues(chosen).Add(float64(horizonDays))
	f.logger.Info("forecast generated",
		zap.Int64("product_id", productID),
		zap.String("algorithm", chosen),
		zap.Int("horizon_days", horizonDays),
		zap.Int("history_days", len(series)))

	return result, nil
}

// GetForecasts returns previously generated rows for the horizon, generating
// them when absent or stale.
func (f *Forecaster) GetForecasts(ctx context.Context, productID int64, horizonDays int) (*ForecastResult, error) {
	if horizonDays < 1 || horizonDays > f.cfg.ForecastMaxHorizonDays {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizonDays)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	rows, err := f.store.GetForecasts(ctx, productID, today.AddDate(0, 0, 1), horizonDays)
	if err != nil {
		return nil, err
	}
	if len(rows) >= horizonDays {
		result := &ForecastResult{Forecasts: rows, Algorithm: rows[0].Algorithm}
		result.LowConfidence = rows[0].Algorithm == models.AlgorithmCategoryBaseline
		return result, nil
	}

	return f.Generate(ctx, productID, horizonDays, models.AlgorithmAuto)
}

// DemandSignal compares the predicted demand over the next week with the
// trailing observed baseline. Returns the relative ratio (0 = flat, positive =
// demand rising) and false when either side lacks data.
func (f *Forecaster) DemandSignal(ctx context.Context, productID int64) (float64, bool, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	rows, err := f.store.GetForecasts(ctx, productID, today.AddDate(0, 0, 1), 7)
	if err != nil {
		return 0, false, err
	}
	if len(rows) == 0 {
		return 0, false, nil
	}

	predicted := make([]float64, 0, len(rows))
	for _, r := range rows {
		predicted = append(predicted, r.PredictedDemand)
	}
	forecastMean, err := stats.Mean(predicted)
	if err != nil {
		return 0, false, nil
	}

	daily, err := f.store.GetDailyDemand(ctx, productID,
		today.AddDate(0, 0, -f.cfg.ForecastAccuracyDays))
	if err != nil {
		return 0, false, err
	}
	series := FillDailySeries(daily, today)
	if len(series) == 0 {
		return 0, false, nil
	}
	baseline, err := stats.Mean(series)
	if err != nil || baseline <= 0 {
		return 0, false, nil
	}

	ratio := (forecastMean - baseline) / baseline
	return ratio, true, nil
}

// Reconcile fills actual_demand on past-dated forecast rows from the sales
// feed. Returns how many rows were reconciled; cancellation mid-batch reports
// the partial count.
func (f *Forecaster) Reconcile(ctx context.Context, limit int) (int, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	rows, err := f.store.GetUnreconciledForecasts(ctx, today, limit)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return reconciled, err
		}

		actual, err := f.store.GetDemandOnDay(ctx, row.ProductID, row.ForecastDate)
		if err != nil {
			f.logger.Error("failed to read demand for reconciliation",
				zap.Int64("forecast_id", row.ID), zap.Error(err))
			continue
		}
		if err := f.store.SetForecastActual(ctx, row.ID, actual); err != nil {
			f.logger.Error("failed to set forecast actual",
				zap.Int64("forecast_id", row.ID), zap.Error(err))
			continue
		}
		reconciled++
	}
	return reconciled, nil
}

// AccuracyBucket is the error summary for one algorithm.
type AccuracyBucket struct {
	Algorithm   string  `json:"algorithm"`
	SampleSize  int     `json:"sample_size"`
	MAPEPercent float64 `json:"mape_percent"`
}

// Accuracy reports mean absolute percentage error over the trailing window,
// bucketed by algorithm. Zero-actual days are excluded from MAPE.
func (f *Forecaster) Accuracy(ctx context.Context, productID int64) ([]AccuracyBucket, error) {
	since := time.Now().UTC().AddDate(0, 0, -f.cfg.ForecastAccuracyDays)
	rows, err := f.store.GetReconciledForecasts(ctx, productID, since)
	if err != nil {
		return nil, err
	}

	errsByAlgo := make(map[string][]float64)
	for _, row := range rows {
		if !row.ActualDemand.Valid || row.ActualDemand.Float64 == 0 {
			continue
		}
		ape := math.Abs(row.PredictedDemand-row.ActualDemand.Float64) / row.ActualDemand.Float64
		errsByAlgo[row.Algorithm] = append(errsByAlgo[row.Algorithm], ape*100)
	}

	buckets := make([]AccuracyBucket, 0, len(errsByAlgo))
	for algo, errs := range errsByAlgo {
		mape, err := stats.Mean(errs)
		if err != nil {
			continue
		}
		buckets = append(buckets, AccuracyBucket{
			Algorithm:   algo,
			SampleSize:  len(errs),
			MAPEPercent: roundPrice(mape),
		})
	}
	return buckets, nil
}

// FillDailySeries expands sparse per-day aggregates into a dense series from
// the first sale through yesterday, zero-filling quiet days.
func FillDailySeries(daily []models.DailyDemand, today time.Time) []float64 {
	if len(daily) == 0 {
		return nil
	}

	byDay := make(map[string]float64, len(daily))
	for _, d := range daily {
		byDay[d.Day.UTC().Format("2006-01-02")] = d.Quantity
	}

	var series []float64
	for day := daily[0].Day.UTC().Truncate(24 * time.Hour); day.Before(today); day = day.AddDate(0, 0, 1) {
		series = append(series, byDay[day.Format("2006-01-02")])
	}
	return series
}

// SelectAlgorithm picks the strongest algorithm the history supports.
func SelectAlgorithm(series []float64) string {
	switch {
	case len(series) >= trendSeasonalMinDays && Autocorrelation(series, 7) > seasonalityThreshold:
		return models.AlgorithmTrendSeasonal
	case len(series) >= smoothingMinDays:
		return models.AlgorithmExponentialSmoothing
	case len(series) > 0:
		return models.AlgorithmMovingAverage
	default:
		return models.AlgorithmCategoryBaseline
	}
}

func hasEnoughHistory(algorithm string, historyDays int) bool {
	switch algorithm {
	case models.AlgorithmTrendSeasonal:
		return historyDays >= trendSeasonalMinDays
	case models.AlgorithmExponentialSmoothing:
		return historyDays >= smoothingMinDays
	case models.AlgorithmMovingAverage:
		return historyDays > 0
	default:
		return true
	}
}

// Autocorrelation computes the sample autocorrelation of the series at the
// given lag. Flat series return 0.
func Autocorrelation(series []float64, lag int) float64 {
	n := len(series)
	if lag <= 0 || n <= lag {
		return 0
	}

	mean, err := stats.Mean(series)
	if err != nil {
		return 0
	}

	var num, den float64
	for i := 0; i < n; i++ {
		den += (series[i] - mean) * (series[i] - mean)
	}
	if den == 0 {
		return 0
	}
	for i := lag; i < n; i++ {
		num += (series[i] - mean) * (series[i-lag] - mean)
	}
	return num / den
}

// MovingAverage returns the mean of the trailing window (or the whole series
// when shorter).
func MovingAverage(series []float64, window int) float64 {
	if len(series) == 0 {
		return 0
	}
	if len(series) < window {
		window = len(series)
	}
	mean, err := stats.Mean(series[len(series)-window:])
	if err != nil {
		return 0
	}
	return mean
}

// ExponentialSmooth runs single exponential smoothing over the series and
// returns the final level.
func ExponentialSmooth(series []float64, alpha float64) float64 {
	if len(series) == 0 {
		return 0
	}
	level := series[0]
	for _, v := range series[1:] {
		level = alpha*v + (1-alpha)*level
	}
	return level
}

// trendSeasonalPredictor fits a linear trend plus an additive weekly index.
func trendSeasonalPredictor(series []float64) func(day int) float64 {
	n := len(series)
	slope, intercept := linearFit(series)

	// Mean residual per weekday position.
	var seasonal [7]float64
	var counts [7]int
	for i, v := range series {
		residual := v - (intercept + slope*float64(i))
		seasonal[i%7] += residual
		counts[i%7]++
	}
	for i := range seasonal {
		if counts[i] > 0 {
			seasonal[i] /= float64(counts[i])
		}
	}

	return func(day int) float64 {
		idx := n - 1 + day
		return intercept + slope*float64(idx) + seasonal[idx%7]
	}
}

func linearFit(series []float64) (slope, intercept float64) {
	n := float64(len(series))
	if n < 2 {
		if n == 1 {
			return 0, series[0]
		}
		return 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range series {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / den
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func flatPredictor(level float64) func(day int) float64 {
	return func(int) float64 { return level }
}

// Confidence scores a forecast day in [0, 1]: higher with more history, lower
// the further out the day is.
func Confidence(algorithm string, historyDays, dayOffset int) float64 {
	var base float64
	switch algorithm {
	case models.AlgorithmTrendSeasonal:
		base = 0.9
	case models.AlgorithmExponentialSmoothing:
		base = 0.8
	case models.AlgorithmMovingAverage:
		base = 0.7
	default:
		base = 0.3
	}

	historyFactor := 0.5 + 0.5*math.Min(1, float64(historyDays)/float64(trendSeasonalMinDays))
	horizonDecay := 1 / (1 + 0.02*float64(dayOffset-1))

	c := base * historyFactor * horizonDecay
	return math.Round(c*1000) / 1000
}
