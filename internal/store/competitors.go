package store

import (
	"context"
	"fmt"
	"time"

	"pricing-service/internal/models"
)

// RecordCompetitorPrice inserts one scraped observation.
func (s *Store) RecordCompetitorPrice(ctx context.Context, cp *models.CompetitorPrice) error {
	query := `
		INSERT INTO competitor_prices (product_id, competitor_name, price, in_stock, quality_score, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return s.db.GetContext(ctx, &cp.ID, query,
		cp.ProductID, cp.CompetitorName, cp.Price, cp.InStock, cp.QualityScore, cp.ScrapedAt)
}

// CompetitorFilter narrows GetCompetitorPrices.
type CompetitorFilter struct {
	InStockOnly     bool
	HighQualityOnly bool
	QualityMin      float64
	Since           time.Time
}

// GetCompetitorPrices retrieves observations for a product, newest first.
func (s *Store) GetCompetitorPrices(ctx context.Context, productID int64, f CompetitorFilter) ([]models.CompetitorPrice, error) {
	query := "SELECT * FROM competitor_prices WHERE product_id = $1"
	args := []interface{}{productID}

	if !f.Since.IsZero() {
		args = append(args, f.Since)
		query += fmt.Sprintf(" AND scraped_at >= $%d", len(args))
	}
	if f.InStockOnly {
		query += " AND in_stock = TRUE"
	}
	if f.HighQualityOnly {
		args = append(args, f.QualityMin)
		query += fmt.Sprintf(" AND quality_score >= $%d", len(args))
	}

	query += " ORDER BY scraped_at DESC"

	var rows []models.CompetitorPrice
	err := s.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}
