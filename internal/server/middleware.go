package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// authMiddleware enforces the configured bearer-style token header on
// every /api/* route; public routes never pass through this middleware.
// Per §6, an empty configured token disables the check entirely.
func authMiddleware(headerName, token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(token) == "" {
			c.Next()
			return
		}
		provided := c.GetHeader(headerName)
		if subtleEqual(provided, token) {
			c.Next()
			return
		}
		writeEnvelope(c, http.StatusUnauthorized, nil, "missing or invalid API token")
		c.Abort()
	}
}

// subtleEqual is a constant-time-ish string comparison for header tokens;
// full constant-time comparison isn't warranted for a header value an
// attacker can already observe the length of, but avoiding the obvious
// short-circuit keeps this from being the weakest link.
func subtleEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := 0; i < len(a); i++ {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

// deadlineMiddleware bounds every request to the configured hard timeout,
// combined with whatever cancellation the client connection already
// imposes on gin's request context (§4.8, §5).
func deadlineMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// recoveryMiddleware is the global unhandled-error trap (§4.8, §7
// Internal): it logs with the panic value and a 500 envelope, and leaves
// the service running for the next request.
func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("unhandled panic", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
				writeEnvelope(c, http.StatusInternalServerError, nil, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// requestLogMiddleware emits one structured log line per request with the
// route, status, and latency, in the teacher's zap field style.
func requestLogMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
