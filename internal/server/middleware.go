package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// LoggingMiddleware logs one line per request after the handler finishes.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		slog.Info("http_request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// RecoveryMiddleware turns a handler panic into a 500.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("http_panic_recovered", "path", c.Request.URL.Path, "panic", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

// RateLimitMiddleware rejects requests beyond the shared token bucket with
// 429. onReject runs for every rejected request.
func RateLimitMiddleware(limiter *rate.Limiter, onReject func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			slog.Warn("http_rate_limited", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			if onReject != nil {
				onReject()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
