package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pricing-service/internal/models"
)

// CreateSurgeEvent deactivates any prior active event for the product and
// inserts the new one, in a single transaction. A new activation supersedes.
func (s *Store) CreateSurgeEvent(ctx context.Context, e *models.SurgePricingEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"UPDATE surge_pricing_events SET is_active = FALSE, deactivated_at = NOW() WHERE product_id = $1 AND is_active = TRUE",
		e.ProductID)
	if err != nil {
		return fmt.Errorf("failed to supersede active surge: %w", err)
	}

	query := `
		INSERT INTO surge_pricing_events (product_id, event_type, multiplier, base_price, starts_at, ends_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at`

	if err := tx.GetContext(ctx, e, query,
		e.ProductID, e.EventType, e.Multiplier, e.BasePrice, e.StartsAt, e.EndsAt); err != nil {
		return fmt.Errorf("failed to insert surge event: %w", err)
	}
	e.IsActive = true

	return tx.Commit()
}

// GetActiveSurgeEvent retrieves the active event for a product, nil when there
// is none. Expiry is lazy: callers must still compare ends_at against now.
func (s *Store) GetActiveSurgeEvent(ctx context.Context, productID int64) (*models.SurgePricingEvent, error) {
	var e models.SurgePricingEvent
	err := s.db.GetContext(ctx, &e,
		"SELECT * FROM surge_pricing_events WHERE product_id = $1 AND is_active = TRUE", productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeactivateSurgeEvent marks an event inactive. Returns ErrSurgeNotFound when
// no active event matches.
func (s *Store) DeactivateSurgeEvent(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE surge_pricing_events SET is_active = FALSE, deactivated_at = NOW() WHERE id = $1 AND is_active = TRUE", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrSurgeNotFound, id)
	}
	return nil
}

// GetExpiredSurgeEvents retrieves events still flagged active whose window has
// passed, the expiry sweep's worklist.
func (s *Store) GetExpiredSurgeEvents(ctx context.Context, now time.Time, limit int) ([]models.SurgePricingEvent, error) {
	var rows []models.SurgePricingEvent
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM surge_pricing_events
		WHERE is_active = TRUE AND ends_at < $1
		ORDER BY ends_at
		LIMIT $2`, now, limit)
	return rows, err
}
