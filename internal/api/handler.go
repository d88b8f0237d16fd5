package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pricing-service/internal/service"
	"pricing-service/internal/store"
	"pricing-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orchestrator *service.Orchestrator
	ruleEngine   *service.RuleEngine
	forecaster   *service.Forecaster
	tracker      *service.CompetitorTracker
	surge        *service.SurgeManager
	experiments  *service.ExperimentRunner
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orchestrator *service.Orchestrator,
	ruleEngine *service.RuleEngine,
	forecaster *service.Forecaster,
	tracker *service.CompetitorTracker,
	surge *service.SurgeManager,
	experiments *service.ExperimentRunner,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		ruleEngine:   ruleEngine,
		forecaster:   forecaster,
		tracker:      tracker,
		surge:        surge,
		experiments:  experiments,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pricing := router.Group("/api/pricing")
	{
		pricing.GET("/recommend/:productId", h.recommend)
		pricing.POST("/apply", h.applyPriceChange)

		pricing.GET("/rules", h.listRules)
		pricing.POST("/rules", h.createRule)
		pricing.PUT("/rules/:id", h.updateRule)
		pricing.DELETE("/rules/:id", h.deleteRule)

		pricing.GET("/history/:productId", h.getHistory)
		pricing.GET("/competitors/:productId", h.getCompetitors)
		pricing.GET("/forecast/:productId", h.getForecast)

		pricing.GET("/experiments", h.listExperiments)
		pricing.POST("/experiments", h.startExperiment)
		pricing.GET("/experiments/:id", h.getExperimentResults)
		pricing.POST("/experiments/:id/complete", h.completeExperiment)
		pricing.DELETE("/experiments/:id", h.cancelExperiment)

		pricing.POST("/surge", h.activateSurge)
		pricing.GET("/surge/:productId", h.getSurgeStatus)
		pricing.DELETE("/surge/:productId", h.deactivateSurge)
		pricing.GET("/check-surge/:productId", h.checkSurgeConditions)

		pricing.GET("/analytics", h.getAnalytics)
		pricing.POST("/bulk-optimize", h.bulkOptimize)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// Stable error codes surfaced to API consumers.
const (
	codeInvalidRequest       = "INVALID_REQUEST"
	codeValidation           = "VALIDATION_ERROR"
	codeProductNotFound      = "PRODUCT_NOT_FOUND"
	codeRuleNotFound         = "RULE_NOT_FOUND"
	codeExperimentNotFound   = "EXPERIMENT_NOT_FOUND"
	codeSurgeNotFound        = "SURGE_NOT_FOUND"
	codeConflict             = "CONFLICT_ERROR"
	codeExperimentConflict   = "EXPERIMENT_CONFLICT"
	codeExperimentNotRunning = "EXPERIMENT_NOT_RUNNING"
	codeInternal             = "INTERNAL_ERROR"
)

// respondError maps domain errors onto status codes and stable error codes.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := codeInternal

	switch {
	case errors.Is(err, store.ErrProductNotFound):
		status, code = http.StatusNotFound, codeProductNotFound
	case errors.Is(err, store.ErrRuleNotFound):
		status, code = http.StatusNotFound, codeRuleNotFound
	case errors.Is(err, store.ErrExperimentNotFound):
		status, code = http.StatusNotFound, codeExperimentNotFound
	case errors.Is(err, store.ErrSurgeNotFound):
		status, code = http.StatusNotFound, codeSurgeNotFound
	case errors.Is(err, service.ErrExperimentConflict):
		status, code = http.StatusConflict, codeExperimentConflict
	case errors.Is(err, service.ErrExperimentNotRunning):
		status, code = http.StatusConflict, codeExperimentNotRunning
	case errors.Is(err, store.ErrConflict):
		status, code = http.StatusConflict, codeConflict
	case errors.Is(err, service.ErrInvalidMultiplier),
		errors.Is(err, service.ErrInvalidSurgeType),
		errors.Is(err, service.ErrInvalidDuration),
		errors.Is(err, service.ErrInvalidReason),
		errors.Is(err, service.ErrInvalidHorizon),
		errors.Is(err, service.ErrInvalidAlgorithm),
		errors.Is(err, service.ErrInvalidRule),
		errors.Is(err, service.ErrInvalidPrice):
		status, code = http.StatusUnprocessableEntity, codeValidation
	}

	c.JSON(status, gin.H{
		"error_code": code,
		"error":      err.Error(),
	})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error_code": codeInvalidRequest,
		"error":      message,
	})
}

// pathID parses a numeric path parameter, responding 400 on garbage.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
