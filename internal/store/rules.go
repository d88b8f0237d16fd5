package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pricing-service/internal/models"
)

// CreatePriceRule inserts a new rule.
func (s *Store) CreatePriceRule(ctx context.Context, rule *models.PriceRule) error {
	query := `
		INSERT INTO price_rules
			(name, scope, product_id, category_id, rule_type, min_price, max_price,
			 target_margin, adjustment_kind, adjustment_value, target_percentile,
			 priority, is_active, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, rule, query,
		rule.Name, rule.Scope, rule.ProductID, rule.CategoryID, rule.RuleType,
		rule.MinPrice, rule.MaxPrice, rule.TargetMargin, rule.AdjustmentKind,
		rule.AdjustmentValue, rule.TargetPercentile, rule.Priority, rule.IsActive,
		rule.StartsAt, rule.EndsAt)
}

// GetPriceRuleByID retrieves a rule by ID.
func (s *Store) GetPriceRuleByID(ctx context.Context, id int64) (*models.PriceRule, error) {
	var rule models.PriceRule
	err := s.db.GetContext(ctx, &rule, "SELECT * FROM price_rules WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdatePriceRule replaces the mutable fields of a rule.
func (s *Store) UpdatePriceRule(ctx context.Context, rule *models.PriceRule) error {
	query := `
		UPDATE price_rules SET
			name = $1, scope = $2, product_id = $3, category_id = $4, rule_type = $5,
			min_price = $6, max_price = $7, target_margin = $8, adjustment_kind = $9,
			adjustment_value = $10, target_percentile = $11, priority = $12,
			is_active = $13, starts_at = $14, ends_at = $15, updated_at = NOW()
		WHERE id = $16`

	res, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Scope, rule.ProductID, rule.CategoryID, rule.RuleType,
		rule.MinPrice, rule.MaxPrice, rule.TargetMargin, rule.AdjustmentKind,
		rule.AdjustmentValue, rule.TargetPercentile, rule.Priority, rule.IsActive,
		rule.StartsAt, rule.EndsAt, rule.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, rule.ID)
	}
	return nil
}

// DeletePriceRule removes a rule.
func (s *Store) DeletePriceRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM price_rules WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return nil
}

// RuleFilter narrows ListPriceRules. Zero values match everything.
type RuleFilter struct {
	ProductID  int64
	CategoryID int64
	RuleType   string
	ActiveOnly bool
}

// ListPriceRules retrieves rules matching the filter, priority order.
func (s *Store) ListPriceRules(ctx context.Context, f RuleFilter) ([]models.PriceRule, error) {
	query := "SELECT * FROM price_rules WHERE 1=1"
	var args []interface{}

	if f.ProductID > 0 {
		args = append(args, f.ProductID)
		query += fmt.Sprintf(" AND product_id = $%d", len(args))
	}
	if f.CategoryID > 0 {
		args = append(args, f.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if f.RuleType != "" {
		args = append(args, f.RuleType)
		query += fmt.Sprintf(" AND rule_type = $%d", len(args))
	}
	if f.ActiveOnly {
		query += " AND is_active = TRUE"
	}

	query += " ORDER BY priority ASC, created_at DESC"

	var rules []models.PriceRule
	err := s.db.SelectContext(ctx, &rules, query, args...)
	return rules, err
}

// GetMatchingRules retrieves the rules whose scope covers the product and whose
// activation window contains now. Scope matching lives in SQL; time-window and
// well-formedness checks are re-applied by the rule engine so in-memory
// evaluation stays the single source of truth.
func (s *Store) GetMatchingRules(ctx context.Context, productID, categoryID int64, now time.Time) ([]models.PriceRule, error) {
	query := `
		SELECT * FROM price_rules
		WHERE is_active = TRUE
		  AND (starts_at IS NULL OR starts_at <= $3)
		  AND (ends_at IS NULL OR ends_at >= $3)
		  AND (
			    (scope = 'product' AND product_id = $1)
			 OR (scope = 'category' AND category_id = $2)
			 OR scope = 'global'
		  )
		ORDER BY priority ASC, created_at DESC`

	var rules []models.PriceRule
	err := s.db.SelectContext(ctx, &rules, query, productID, categoryID, now)
	return rules, err
}
