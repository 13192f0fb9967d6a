// Package middleware holds the gin middleware shared by the HTTP surface.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// staticHeaders are applied to every response regardless of mode.
var staticHeaders = map[string]string{
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"X-XSS-Protection":        "1; mode=block",
	"Content-Security-Policy": "default-src 'self'; connect-src 'self'",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Permissions-Policy":      "geolocation=(), microphone=(), camera=()",
}

// SecurityHeaders adds security headers to all responses. HSTS is limited to
// release mode so local plain-HTTP development keeps working.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		for name, value := range staticHeaders {
			c.Header(name, value)
		}
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}
		c.Next()
	}
}

// CorrelationID attaches a correlation id to each request for audit trails,
// reusing the caller's when present.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}

		c.Set("correlation_id", id)
		c.Header("X-Correlation-ID", id)
		c.Next()
	}
}

// CORS answers cross-origin preflight and tags responses.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Correlation-ID, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestTimeout bounds each request's context. Handlers and the analysis
// pipeline below them observe the deadline through ctx, so a timed-out
// request cancels its in-flight analysis instead of leaking it.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuditLogger emits one JSON line per request for audit requirements. Fields
// are marshaled rather than templated, so client-supplied values cannot break
// the line's structure.
func AuditLogger() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		entry := map[string]interface{}{
			"timestamp":      p.TimeStamp.Format(time.RFC3339),
			"correlation_id": p.Keys["correlation_id"],
			"method":         p.Method,
			"path":           p.Path,
			"status":         p.StatusCode,
			"latency":        p.Latency.String(),
			"client_ip":      p.ClientIP,
			"user_agent":     p.Request.UserAgent(),
			"response_size":  p.BodySize,
		}

		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Sprintf(`{"audit_error":%q}`+"\n", err.Error())
		}
		return string(line) + "\n"
	})
}
