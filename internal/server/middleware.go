// internal/server/middleware.go - view bridge middleware
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"telemetry-dashboard/internal/config"
	"telemetry-dashboard/pkg/logger"
	"telemetry-dashboard/pkg/response"
)

var errTooManyRequests = response.NewError("rate_limited", "too many requests")

// RecoveryMiddleware turns handler panics into 500 responses.
func RecoveryMiddleware(logger logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered: %v", recovered)
		response.Fail(c, http.StatusInternalServerError, "internal", "internal server error")
		c.Abort()
	})
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware(logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()
		line := fmt.Sprintf("[GIN] %s %s %d %s %s %s",
			c.Request.Method,
			path,
			status,
			time.Since(start),
			c.ClientIP(),
			c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
		if status >= http.StatusInternalServerError {
			logger.Warn("%s", line)
		} else {
			logger.Debug("%s", line)
		}
	}
}

// CORSMiddleware allows the configured UI origin to read the bridge.
func CORSMiddleware(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityMiddleware sets the usual hardening headers.
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// RateLimitMiddleware caps the bridge at cfg.RateLimit requests per second.
// A non-positive limit disables it.
func RateLimitMiddleware(cfg config.ConfigServer, logger logger.Logger) gin.HandlerFunc {
	if cfg.RateLimit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	return func(c *gin.Context) {
		if !limiter.Allow() {
			logger.Warn("rate limit exceeded: %s %s", c.Request.Method, c.Request.URL.Path)
			response.Error(c, http.StatusTooManyRequests, errTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
