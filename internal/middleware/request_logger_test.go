package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := logging.NewLoggerWithOutput("info", "production", &buf)

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/klines/history/:trading_pair_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	router.POST("/api/v1/catalog/reconcile", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String())

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/klines/history/abc", nil))
	assert.Contains(t, buf.String(), `"route":"/api/v1/klines/history/:trading_pair_id"`)
	assert.Contains(t, buf.String(), `"level":"warning"`)
	assert.Contains(t, buf.String(), `"status":404`)

	buf.Reset()
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/catalog/reconcile", nil))
	assert.Contains(t, buf.String(), "Request failed")
	assert.Contains(t, buf.String(), `"level":"error"`)
}
