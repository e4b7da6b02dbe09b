// Package middleware provides HTTP middleware shared by every route.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/celebrum-catalog/internal/logging"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger logs one line per request with its route, status and trace id.
// Health checks are skipped.
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	entry := logging.ForComponent(logger, "http")
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":              c.Request.Method,
			"route":               route,
			"status":              status,
			"client_ip":           c.ClientIP(),
			logging.FieldDuration: time.Since(start).Milliseconds(),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		line := entry.WithFields(fields)
		switch {
		case status >= 500:
			line.Error("Request failed")
		case status >= 400:
			line.Warn("Request rejected")
		default:
			line.Info("Request completed")
		}
	}
}
