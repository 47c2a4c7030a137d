package middleware

import (
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/metrics"
	"github.com/gin-gonic/gin"
)

// GuardOutcomeKey holds the guard's decision for the current request.
const GuardOutcomeKey = "guard_outcome"

const (
	outcomeAllow    = "allow"
	outcomeRedirect = "redirect"
	outcomeNone     = "none"
)

// Metrics counts requests per route template and guard decision. Paths that
// match no route share the "unmatched" label.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, routeLabel(c), c.Writer.Status(), guardLabel(c), time.Since(start))
	}
}

func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func guardLabel(c *gin.Context) string {
	if outcome := c.GetString(GuardOutcomeKey); outcome != "" {
		return outcome
	}
	return outcomeNone
}
