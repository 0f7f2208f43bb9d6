package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"kairo-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRouteGroup(t *testing.T) {
	for path, want := range map[string]string{
		"/kairo/api/v1/tunnels":          "tunnels",
		"/kairo/api/v1/tunnels/:id":      "tunnels",
		"/kairo/api/v1/tunnels/:id/logs": "tunnels",
		"/kairo/api/v1/binary/acquire":   "binary",
		"/kairo/api/v1/reload":           "reload",
		"/healthz":                       "health",
		"/metrics":                       "metrics",
		"":                               "unknown",
		"/kairo/api/v1/":                 "unknown",
	} {
		assert.Equal(t, want, RouteGroup(path), path)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/kairo/api/v1/tunnels/:id", func(c *gin.Context) {
		if c.Param("id") == "404" {
			c.JSON(http.StatusNotFound, gin.H{"code": "tunnel.not_found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{})
	})

	requests, errs := services.GetTotalRequestCount(), services.GetTotalErrorCount()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/kairo/api/v1/tunnels/3", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIdHeader))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/kairo/api/v1/tunnels/404", nil)
	req.Header.Set(RequestIdHeader, "cli-1")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "cli-1", w.Header().Get(RequestIdHeader))

	// unmatched routes are still counted
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, requests+3, services.GetTotalRequestCount())
	assert.Equal(t, errs+2, services.GetTotalErrorCount())
}
