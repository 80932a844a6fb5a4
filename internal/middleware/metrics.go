package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workhub-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request counts and latency per route template. Websocket
// upgrades are counted with zero duration since they stay open for the
// whole session.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		var elapsed time.Duration
		if !upgrade {
			elapsed = time.Since(start)
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), elapsed)
	}
}
