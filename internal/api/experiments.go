package api

import (
	"net/http"

	"pricing-service/internal/service"

	"github.com/gin-gonic/gin"
)

// listExperiments handles GET /api/pricing/experiments
func (h *Handler) listExperiments(c *gin.Context) {
	experiments, err := h.experiments.List(c.Request.Context(),
		int64(queryInt(c, "product_id", 0)),
		c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"experiments": experiments,
		"count":       len(experiments),
	})
}

type startExperimentRequest struct {
	ProductID    int64   `json:"product_id" binding:"required"`
	Name         string  `json:"name" binding:"required"`
	ControlPrice float64 `json:"control_price"`
	VariantPrice float64 `json:"variant_price" binding:"required"`
}

// startExperiment handles POST /api/pricing/experiments
func (h *Handler) startExperiment(c *gin.Context) {
	var req startExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	exp, err := h.experiments.Start(c.Request.Context(), service.StartExperimentRequest{
		ProductID:    req.ProductID,
		Name:         req.Name,
		ControlPrice: req.ControlPrice,
		VariantPrice: req.VariantPrice,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exp)
}

// getExperimentResults handles GET /api/pricing/experiments/:id
func (h *Handler) getExperimentResults(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	results, err := h.experiments.Results(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// completeExperiment handles POST /api/pricing/experiments/:id/complete
func (h *Handler) completeExperiment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	results, err := h.experiments.Complete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// cancelExperiment handles DELETE /api/pricing/experiments/:id
func (h *Handler) cancelExperiment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	exp, err := h.experiments.Cancel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, exp)
}
