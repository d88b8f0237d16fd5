package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pricing-service/internal/service"
	"pricing-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{store.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
		{store.ErrRuleNotFound, http.StatusNotFound, codeRuleNotFound},
		{store.ErrExperimentNotFound, http.StatusNotFound, codeExperimentNotFound},
		{store.ErrSurgeNotFound, http.StatusNotFound, codeSurgeNotFound},
		{store.ErrConflict, http.StatusConflict, codeConflict},
		{service.ErrExperimentConflict, http.StatusConflict, codeExperimentConflict},
		{service.ErrInvalidMultiplier, http.StatusUnprocessableEntity, codeValidation},
		{service.ErrInvalidRule, http.StatusUnprocessableEntity, codeValidation},
		{fmt.Errorf("wrapped: %w", store.ErrConflict), http.StatusConflict, codeConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError, codeInternal},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, tc.err)

		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.Contains(t, w.Body.String(), tc.code, tc.err.Error())
	}
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	h := &Handler{}
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestPathIDRejectsGarbage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/thing/:id", func(c *gin.Context) {
		if _, ok := pathID(c, "id"); !ok {
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing/banana", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing/-3", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing/12", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
