package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pricing-service/internal/models"

	"github.com/lib/pq"
)

// pq error code for FOR UPDATE NOWAIT losing the race.
const pqLockNotAvailable = "55P03"

// ApplyPriceChangeTx atomically writes one history row and the new price.
//
// The product row is locked with FOR UPDATE NOWAIT so concurrent appliers for
// the same product never interleave: the loser gets ErrConflict and is
// expected to retry against the freshly committed price. History rows come out
// totally ordered by changed_at because only the lock holder can append.
func (s *Store) ApplyPriceChangeTx(ctx context.Context, h *models.PriceHistory) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var product models.Product
	err = tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE NOWAIT", h.ProductID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, h.ProductID)
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqLockNotAvailable {
			return nil, fmt.Errorf("%w: product %d", ErrConflict, h.ProductID)
		}
		return nil, fmt.Errorf("failed to lock product row: %w", err)
	}

	h.OldPrice = product.CurrentPrice
	h.ChangedAt = time.Now().UTC()

	query := `
		INSERT INTO price_history (product_id, old_price, new_price, reason, rule_id, user_id, notes, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	if err := tx.GetContext(ctx, &h.ID, query,
		h.ProductID, h.OldPrice, h.NewPrice, h.Reason, h.RuleID, h.UserID, h.Notes, h.ChangedAt); err != nil {
		return nil, fmt.Errorf("failed to insert price history: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE products SET current_price = $1, version = version + 1, updated_at = NOW() WHERE id = $2",
		h.NewPrice, h.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product price: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	product.CurrentPrice = h.NewPrice
	product.Version++
	return &product, nil
}

// GetPriceHistory retrieves history rows for a product, newest first.
// A zero reason matches all reasons; days limits the window, 0 means no limit.
func (s *Store) GetPriceHistory(ctx context.Context, productID int64, days int, reason string, limit, offset int) ([]models.PriceHistory, error) {
	query := "SELECT * FROM price_history WHERE product_id = $1"
	args := []interface{}{productID}

	if days > 0 {
		args = append(args, time.Now().UTC().AddDate(0, 0, -days))
		query += fmt.Sprintf(" AND changed_at >= $%d", len(args))
	}
	if reason != "" {
		args = append(args, reason)
		query += fmt.Sprintf(" AND reason = $%d", len(args))
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY changed_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []models.PriceHistory
	err := s.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

// CountPriceHistory returns the number of history rows matching the filters.
func (s *Store) CountPriceHistory(ctx context.Context, productID int64, days int, reason string) (int64, error) {
	query := "SELECT COUNT(*) FROM price_history WHERE product_id = $1"
	args := []interface{}{productID}

	if days > 0 {
		args = append(args, time.Now().UTC().AddDate(0, 0, -days))
		query += fmt.Sprintf(" AND changed_at >= $%d", len(args))
	}
	if reason != "" {
		args = append(args, reason)
		query += fmt.Sprintf(" AND reason = $%d", len(args))
	}

	var count int64
	err := s.db.GetContext(ctx, &count, query, args...)
	return count, err
}

// GetPriceChangesSince retrieves all history rows across products in a window,
// used by the analytics aggregation.
func (s *Store) GetPriceChangesSince(ctx context.Context, since time.Time) ([]models.PriceHistory, error) {
	var rows []models.PriceHistory
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM price_history WHERE changed_at >= $1 ORDER BY product_id, changed_at", since)
	return rows, err
}
