package store

import (
	"context"
	"time"

	"pricing-service/internal/models"
)

// UpsertForecast writes one forecast row, overwriting the same-day row when the
// forecast is regenerated.
func (s *Store) UpsertForecast(ctx context.Context, f *models.DemandForecast) error {
	query := `
		INSERT INTO demand_forecasts (product_id, forecast_date, predicted_demand, confidence, algorithm)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, forecast_date) DO UPDATE SET
			predicted_demand = EXCLUDED.predicted_demand,
			confidence = EXCLUDED.confidence,
			algorithm = EXCLUDED.algorithm,
			actual_demand = NULL
		RETURNING id, created_at`

	return s.db.GetContext(ctx, f, query,
		f.ProductID, f.ForecastDate, f.PredictedDemand, f.Confidence, f.Algorithm)
}

// GetForecasts retrieves forecast rows for a product from a date onward.
func (s *Store) GetForecasts(ctx context.Context, productID int64, from time.Time, days int) ([]models.DemandForecast, error) {
	to := from.AddDate(0, 0, days)
	var rows []models.DemandForecast
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM demand_forecasts
		WHERE product_id = $1 AND forecast_date >= $2 AND forecast_date < $3
		ORDER BY forecast_date`, productID, from, to)
	return rows, err
}

// GetUnreconciledForecasts retrieves past-dated rows still missing actuals.
func (s *Store) GetUnreconciledForecasts(ctx context.Context, before time.Time, limit int) ([]models.DemandForecast, error) {
	var rows []models.DemandForecast
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM demand_forecasts
		WHERE forecast_date < $1 AND actual_demand IS NULL
		ORDER BY forecast_date
		LIMIT $2`, before, limit)
	return rows, err
}

// SetForecastActual fills in the observed demand for a past forecast row.
func (s *Store) SetForecastActual(ctx context.Context, forecastID int64, actual float64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE demand_forecasts SET actual_demand = $1 WHERE id = $2", actual, forecastID)
	return err
}

// GetReconciledForecasts retrieves rows with actuals in the trailing window,
// the accuracy report's input.
func (s *Store) GetReconciledForecasts(ctx context.Context, productID int64, since time.Time) ([]models.DemandForecast, error) {
	var rows []models.DemandForecast
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM demand_forecasts
		WHERE product_id = $1 AND forecast_date >= $2 AND actual_demand IS NOT NULL
		ORDER BY forecast_date`, productID, since)
	return rows, err
}
