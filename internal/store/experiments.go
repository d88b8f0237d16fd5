package store

import (
	"context"
	"database/sql"
	"fmt"

	"pricing-service/internal/models"
)

// CreateExperiment inserts a new experiment in running state. The partial
// unique index on (product_id) WHERE status = 'running' backs the
// one-running-experiment-per-product invariant at the database level; the
// service checks first to return a clean conflict.
func (s *Store) CreateExperiment(ctx context.Context, e *models.PriceExperiment) error {
	query := `
		INSERT INTO price_experiments (product_id, name, control_price, variant_price, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, e, query,
		e.ProductID, e.Name, e.ControlPrice, e.VariantPrice, e.Status, e.StartedAt)
}

// GetExperimentByID retrieves an experiment by ID.
func (s *Store) GetExperimentByID(ctx context.Context, id int64) (*models.PriceExperiment, error) {
	var e models.PriceExperiment
	err := s.db.GetContext(ctx, &e, "SELECT * FROM price_experiments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrExperimentNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetRunningExperiment retrieves the running experiment for a product, nil when
// there is none.
func (s *Store) GetRunningExperiment(ctx context.Context, productID int64) (*models.PriceExperiment, error) {
	var e models.PriceExperiment
	err := s.db.GetContext(ctx, &e,
		"SELECT * FROM price_experiments WHERE product_id = $1 AND status = 'running'", productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExperiments retrieves experiments, newest first. Empty status matches all.
func (s *Store) ListExperiments(ctx context.Context, productID int64, status string) ([]models.PriceExperiment, error) {
	query := "SELECT * FROM price_experiments WHERE 1=1"
	var args []interface{}

	if productID > 0 {
		args = append(args, productID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var rows []models.PriceExperiment
	err := s.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

// IncrementImpression bumps an arm's impression counter. Returns
// ErrExperimentNotFound when the experiment is missing or not running.
func (s *Store) IncrementImpression(ctx context.Context, experimentID int64, arm string) error {
	column := "control_impressions"
	if arm == models.ArmVariant {
		column = "variant_impressions"
	}
	query := fmt.Sprintf(
		"UPDATE price_experiments SET %s = %s + 1 WHERE id = $1 AND status = 'running'",
		column, column)
	res, err := s.db.ExecContext(ctx, query, experimentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d (not running)", ErrExperimentNotFound, experimentID)
	}
	return nil
}

// IncrementConversion bumps an arm's conversion counter and accumulates
// revenue. Returns ErrExperimentNotFound when the experiment is missing or
// not running.
func (s *Store) IncrementConversion(ctx context.Context, experimentID int64, arm string, revenue float64) error {
	convCol, revCol := "control_conversions", "control_revenue"
	if arm == models.ArmVariant {
		convCol, revCol = "variant_conversions", "variant_revenue"
	}
	query := fmt.Sprintf(
		"UPDATE price_experiments SET %s = %s + 1, %s = %s + $2 WHERE id = $1 AND status = 'running'",
		convCol, convCol, revCol, revCol)
	res, err := s.db.ExecContext(ctx, query, experimentID, revenue)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d (not running)", ErrExperimentNotFound, experimentID)
	}
	return nil
}

// FinishExperiment moves a running experiment to a terminal status. Returns
// ErrExperimentNotFound when the experiment is missing or already terminal.
func (s *Store) FinishExperiment(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE price_experiments SET status = $1, completed_at = NOW() WHERE id = $2 AND status = 'running'",
		status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d (not running)", ErrExperimentNotFound, id)
	}
	return nil
}

// CountCompletedExperiments returns completed experiments and how many of them
// produced a winner-applied price change in the window, for analytics. The
// note is prefix-matched: a clamped apply appends to it.
func (s *Store) CountCompletedExperiments(ctx context.Context, since sql.NullTime) (completed, withWinner int64, err error) {
	row := struct {
		Completed  int64 `db:"completed"`
		WithWinner int64 `db:"with_winner"`
	}{}
	err = s.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS completed,
		       COUNT(*) FILTER (
		           WHERE EXISTS (
		               SELECT 1 FROM price_history h
		               WHERE h.product_id = e.product_id
		                 AND h.notes LIKE 'experiment winner%'
		                 AND h.changed_at >= e.started_at
		           )
		       ) AS with_winner
		FROM price_experiments e
		WHERE e.status = 'completed'
		  AND ($1::timestamptz IS NULL OR e.completed_at >= $1)`, since)
	return row.Completed, row.WithWinner, err
}
