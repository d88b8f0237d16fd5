package store

import (
	"context"
	"time"

	"pricing-service/internal/models"
)

// RecordSalesEvent materializes one event from the sales feed.
func (s *Store) RecordSalesEvent(ctx context.Context, e *models.SalesEvent) error {
	query := `
		INSERT INTO sales_events (product_id, event_type, quantity, unit_price, session_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &e.ID, query,
		e.ProductID, e.EventType, e.Quantity, e.UnitPrice, e.SessionID, e.OccurredAt)
}

// GetDailyDemand returns the per-day purchase quantities for a product over the
// trailing window, oldest first. Days with no sales are absent; the forecaster
// fills the gaps with zeros.
func (s *Store) GetDailyDemand(ctx context.Context, productID int64, since time.Time) ([]models.DailyDemand, error) {
	var rows []models.DailyDemand
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('day', occurred_at) AS day, SUM(quantity)::float8 AS quantity
		FROM sales_events
		WHERE product_id = $1 AND event_type = 'purchase' AND occurred_at >= $2
		GROUP BY 1
		ORDER BY 1`, productID, since)
	return rows, err
}

// GetDemandOnDay returns the total purchased quantity for a product on one day.
func (s *Store) GetDemandOnDay(ctx context.Context, productID int64, day time.Time) (float64, error) {
	start := day.Truncate(24 * time.Hour)
	end := start.AddDate(0, 0, 1)

	var qty float64
	err := s.db.GetContext(ctx, &qty, `
		SELECT COALESCE(SUM(quantity), 0)::float8
		FROM sales_events
		WHERE product_id = $1 AND event_type = 'purchase'
		  AND occurred_at >= $2 AND occurred_at < $3`, productID, start, end)
	return qty, err
}

// GetCategoryDailyAverage returns the average daily purchase quantity across a
// category's products over the window, the cold-start forecast fallback.
func (s *Store) GetCategoryDailyAverage(ctx context.Context, categoryID int64, since time.Time) (float64, error) {
	var avg float64
	err := s.db.GetContext(ctx, &avg, `
		SELECT COALESCE(AVG(daily.qty), 0)::float8
		FROM (
			SELECT date_trunc('day', e.occurred_at) AS day, SUM(e.quantity) AS qty
			FROM sales_events e
			JOIN products p ON p.id = e.product_id
			WHERE p.category_id = $1 AND e.event_type = 'purchase' AND e.occurred_at >= $2
			GROUP BY e.product_id, 1
		) daily`, categoryID, since)
	return avg, err
}

// GetViewStats returns the mean and population stddev of hourly view counts for
// a product over the window, the baseline for the high_traffic surge heuristic.
func (s *Store) GetViewStats(ctx context.Context, productID int64, since time.Time) (mean, stddev float64, err error) {
	row := struct {
		Mean   float64 `db:"mean"`
		Stddev float64 `db:"stddev"`
	}{}
	err = s.db.GetContext(ctx, &row, `
		SELECT COALESCE(AVG(hourly.cnt), 0)::float8 AS mean,
		       COALESCE(STDDEV_POP(hourly.cnt), 0)::float8 AS stddev
		FROM (
			SELECT date_trunc('hour', occurred_at) AS hour, COUNT(*) AS cnt
			FROM sales_events
			WHERE product_id = $1 AND event_type = 'view' AND occurred_at >= $2
			GROUP BY 1
		) hourly`, productID, since)
	return row.Mean, row.Stddev, err
}

// GetRecentlySoldProductIDs returns products with at least one purchase in the
// window, the forecast refresh sweep's worklist.
func (s *Store) GetRecentlySoldProductIDs(ctx context.Context, since time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT DISTINCT product_id FROM sales_events
		WHERE event_type = 'purchase' AND occurred_at >= $1
		ORDER BY product_id`, since)
	return ids, err
}
