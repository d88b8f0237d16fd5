package service

import (
	"context"
	"fmt"

	"pricing-service/internal/models"
	"pricing-service/internal/store"

	"go.uber.org/zap"
)

// Rule admission. Evaluation tolerates malformed rows by skipping them, but
// the write path rejects them outright so they never reach storage.

// CreateRule validates and stores a rule.
func (e *RuleEngine) CreateRule(ctx context.Context, rule *models.PriceRule) (*models.PriceRule, error) {
	if err := admitRule(rule); err != nil {
		return nil, err
	}
	if err := e.store.CreatePriceRule(ctx, rule); err != nil {
		return nil, err
	}
	e.logger.Info("price rule created",
		zap.Int64("rule_id", rule.ID),
		zap.String("scope", rule.Scope),
		zap.String("rule_type", rule.RuleType),
		zap.Int("priority", rule.Priority))
	return rule, nil
}

// UpdateRule validates and replaces a rule.
func (e *RuleEngine) UpdateRule(ctx context.Context, rule *models.PriceRule) (*models.PriceRule, error) {
	if err := admitRule(rule); err != nil {
		return nil, err
	}
	if err := e.store.UpdatePriceRule(ctx, rule); err != nil {
		return nil, err
	}
	e.logger.Info("price rule updated", zap.Int64("rule_id", rule.ID))
	return rule, nil
}

// DeleteRule removes a rule.
func (e *RuleEngine) DeleteRule(ctx context.Context, id int64) error {
	if err := e.store.DeletePriceRule(ctx, id); err != nil {
		return err
	}
	e.logger.Info("price rule deleted", zap.Int64("rule_id", id))
	return nil
}

// GetRule returns one rule by id.
func (e *RuleEngine) GetRule(ctx context.Context, id int64) (*models.PriceRule, error) {
	return e.store.GetPriceRuleByID(ctx, id)
}

// ListRules returns rules matching the filter.
func (e *RuleEngine) ListRules(ctx context.Context, f store.RuleFilter) ([]models.PriceRule, error) {
	return e.store.ListPriceRules(ctx, f)
}

func admitRule(rule *models.PriceRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}

	switch rule.Scope {
	case models.RuleScopeProduct:
		if !rule.ProductID.Valid {
			return fmt.Errorf("%w: product scope requires product_id", ErrInvalidRule)
		}
	case models.RuleScopeCategory:
		if !rule.CategoryID.Valid {
			return fmt.Errorf("%w: category scope requires category_id", ErrInvalidRule)
		}
	case models.RuleScopeGlobal:
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidRule, rule.Scope)
	}

	switch rule.RuleType {
	case models.RuleTypeDemandBased, models.RuleTypeCompetitorBased,
		models.RuleTypeTimeBased, models.RuleTypeInventoryBased:
	default:
		return fmt.Errorf("%w: unknown rule_type %q", ErrInvalidRule, rule.RuleType)
	}

	if rule.RuleType == models.RuleTypeCompetitorBased && rule.TargetPercentile.Valid {
		p := rule.TargetPercentile.Float64
		if p < 0 || p > 100 {
			return fmt.Errorf("%w: target_percentile outside [0, 100]", ErrInvalidRule)
		}
	}

	if rule.AdjustmentKind.Valid {
		switch rule.AdjustmentKind.String {
		case models.AdjustmentPercentage, models.AdjustmentFixed, models.AdjustmentTargetMargin:
			if !rule.AdjustmentValue.Valid {
				return fmt.Errorf("%w: adjustment_kind requires adjustment_value", ErrInvalidRule)
			}
		default:
			return fmt.Errorf("%w: unknown adjustment_kind %q", ErrInvalidRule, rule.AdjustmentKind.String)
		}
	}

	if rule.StartsAt.Valid && rule.EndsAt.Valid && rule.EndsAt.Time.Before(rule.StartsAt.Time) {
		return fmt.Errorf("%w: ends_at before starts_at", ErrInvalidRule)
	}

	if reason, ok := validateRule(rule); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidRule, reason)
	}
	return nil
}
