package api

import (
	"database/sql"
	"net/http"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/store"

	"github.com/gin-gonic/gin"
)

type ruleRequest struct {
	Name             string     `json:"name" binding:"required"`
	Scope            string     `json:"scope" binding:"required"`
	ProductID        *int64     `json:"product_id"`
	CategoryID       *int64     `json:"category_id"`
	RuleType         string     `json:"rule_type" binding:"required"`
	MinPrice         *float64   `json:"min_price"`
	MaxPrice         *float64   `json:"max_price"`
	TargetMargin     *float64   `json:"target_margin"`
	AdjustmentKind   *string    `json:"adjustment_kind"`
	AdjustmentValue  *float64   `json:"adjustment_value"`
	TargetPercentile *float64   `json:"target_percentile"`
	Priority         int        `json:"priority" binding:"required"`
	IsActive         *bool      `json:"is_active"`
	StartsAt         *time.Time `json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at"`
}

func (r *ruleRequest) toModel() *models.PriceRule {
	rule := &models.PriceRule{
		Name:     r.Name,
		Scope:    r.Scope,
		RuleType: r.RuleType,
		Priority: r.Priority,
		IsActive: true,
	}
	if r.IsActive != nil {
		rule.IsActive = *r.IsActive
	}
	if r.ProductID != nil {
		rule.ProductID = sql.NullInt64{Int64: *r.ProductID, Valid: true}
	}
	if r.CategoryID != nil {
		rule.CategoryID = sql.NullInt64{Int64: *r.CategoryID, Valid: true}
	}
	if r.MinPrice != nil {
		rule.MinPrice = sql.NullFloat64{Float64: *r.MinPrice, Valid: true}
	}
	if r.MaxPrice != nil {
		rule.MaxPrice = sql.NullFloat64{Float64: *r.MaxPrice, Valid: true}
	}
	if r.TargetMargin != nil {
		rule.TargetMargin = sql.NullFloat64{Float64: *r.TargetMargin, Valid: true}
	}
	if r.AdjustmentKind != nil {
		rule.AdjustmentKind = sql.NullString{String: *r.AdjustmentKind, Valid: true}
	}
	if r.AdjustmentValue != nil {
		rule.AdjustmentValue = sql.NullFloat64{Float64: *r.AdjustmentValue, Valid: true}
	}
	if r.TargetPercentile != nil {
		rule.TargetPercentile = sql.NullFloat64{Float64: *r.TargetPercentile, Valid: true}
	}
	if r.StartsAt != nil {
		rule.StartsAt = sql.NullTime{Time: *r.StartsAt, Valid: true}
	}
	if r.EndsAt != nil {
		rule.EndsAt = sql.NullTime{Time: *r.EndsAt, Valid: true}
	}
	return rule
}

// listRules handles GET /api/pricing/rules
func (h *Handler) listRules(c *gin.Context) {
	filter := store.RuleFilter{
		ProductID:  int64(queryInt(c, "product_id", 0)),
		CategoryID: int64(queryInt(c, "category_id", 0)),
		RuleType:   c.Query("rule_type"),
		ActiveOnly: queryBool(c, "active"),
	}

	rules, err := h.ruleEngine.ListRules(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"count": len(rules),
	})
}

// createRule handles POST /api/pricing/rules
func (h *Handler) createRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	rule, err := h.ruleEngine.CreateRule(c.Request.Context(), req.toModel())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

// updateRule handles PUT /api/pricing/rules/:id
func (h *Handler) updateRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	rule := req.toModel()
	rule.ID = id

	updated, err := h.ruleEngine.UpdateRule(c.Request.Context(), rule)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// deleteRule handles DELETE /api/pricing/rules/:id
func (h *Handler) deleteRule(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.ruleEngine.DeleteRule(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
