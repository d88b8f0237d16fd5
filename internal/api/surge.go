package api

import (
	"net/http"
	"time"

	"pricing-service/internal/service"

	"github.com/gin-gonic/gin"
)

type activateSurgeRequest struct {
	ProductID       int64   `json:"product_id" binding:"required"`
	EventType       string  `json:"event_type" binding:"required"`
	Multiplier      float64 `json:"multiplier" binding:"required"`
	DurationMinutes int     `json:"duration_minutes" binding:"required"`
}

// activateSurge handles POST /api/pricing/surge
func (h *Handler) activateSurge(c *gin.Context) {
	var req activateSurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	event, err := h.surge.Activate(c.Request.Context(), service.ActivateSurgeRequest{
		ProductID:  req.ProductID,
		EventType:  req.EventType,
		Multiplier: req.Multiplier,
		Duration:   time.Duration(req.DurationMinutes) * time.Minute,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// getSurgeStatus handles GET /api/pricing/surge/:productId
func (h *Handler) getSurgeStatus(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	status, err := h.surge.Status(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// deactivateSurge handles DELETE /api/pricing/surge/:productId
func (h *Handler) deactivateSurge(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	if err := h.surge.Deactivate(c.Request.Context(), productID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deactivated": productID})
}

// checkSurgeConditions handles GET /api/pricing/check-surge/:productId
func (h *Handler) checkSurgeConditions(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		return
	}

	proposals, err := h.surge.CheckConditions(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product_id": productID,
		"proposals":  proposals,
	})
}
