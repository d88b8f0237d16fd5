package api

import (
	"net/http"
	"strconv"

	"pricing-service/internal/service"

	"github.com/gin-gonic/gin"
)

// recommend handles GET /api/pricing/recommend/:productId
func (h *Handler) recommend(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	rec, err := h.orchestrator.CalculateOptimalPrice(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	// A bucketed session sees its experiment arm's price instead of the
	// recommendation.
	if sessionID := c.GetHeader("X-Session-ID"); sessionID != "" {
		price, arm, err := h.experiments.PriceForSession(c.Request.Context(), productID, sessionID)
		if err == nil && arm != "" {
			c.JSON(http.StatusOK, gin.H{
				"recommendation":   rec,
				"experiment_arm":   arm,
				"experiment_price": price,
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"recommendation": rec})
}

type applyRequest struct {
	ProductID int64   `json:"product_id" binding:"required"`
	NewPrice  float64 `json:"new_price" binding:"required"`
	Reason    string  `json:"reason"`
	RuleID    int64   `json:"rule_id"`
	Notes     string  `json:"notes"`
}

// applyPriceChange handles POST /api/pricing/apply
func (h *Handler) applyPriceChange(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var actingUserID int64
	if v := c.GetHeader("X-User-ID"); v != "" {
		actingUserID, _ = strconv.ParseInt(v, 10, 64)
	}

	result, err := h.orchestrator.ApplyPriceChange(c.Request.Context(), service.ApplyPriceChangeRequest{
		ProductID:    req.ProductID,
		NewPrice:     req.NewPrice,
		Reason:       req.Reason,
		RuleID:       req.RuleID,
		ActingUserID: actingUserID,
		Notes:        req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// getHistory handles GET /api/pricing/history/:productId
func (h *Handler) getHistory(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	report, err := h.orchestrator.GetHistory(c.Request.Context(), productID,
		queryInt(c, "days", 30),
		c.Query("reason"),
		queryInt(c, "limit", 50),
		queryInt(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// getCompetitors handles GET /api/pricing/competitors/:productId
func (h *Handler) getCompetitors(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	product, err := h.orchestrator.GetProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	rows, err := h.tracker.List(c.Request.Context(), productID, service.ListFilter{
		InStockOnly:     queryBool(c, "in_stock_only"),
		HighQualityOnly: queryBool(c, "high_quality_only"),
		Hours:           queryInt(c, "hours", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	position, err := h.tracker.Position(c.Request.Context(), productID, product.CurrentPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"competitors": rows,
		"position":    position,
	})
}

// getForecast handles GET /api/pricing/forecast/:productId
func (h *Handler) getForecast(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	result, err := h.forecaster.GetForecasts(c.Request.Context(), productID, queryInt(c, "days", 14))
	if err != nil {
		respondError(c, err)
		return
	}

	accuracy, err := h.forecaster.Accuracy(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"forecast": result,
		"accuracy": accuracy,
	})
}

// getAnalytics handles GET /api/pricing/analytics
func (h *Handler) getAnalytics(c *gin.Context) {
	report, err := h.orchestrator.GetPricingAnalytics(c.Request.Context(), queryInt(c, "days", 30))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type bulkOptimizeRequest struct {
	CategoryID int64 `json:"category_id"`
	DryRun     bool  `json:"dry_run"`
}

// bulkOptimize handles POST /api/pricing/bulk-optimize
func (h *Handler) bulkOptimize(c *gin.Context) {
	var req bulkOptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.orchestrator.BulkOptimizePrices(c.Request.Context(), req.CategoryID, req.DryRun)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
