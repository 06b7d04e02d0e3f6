package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docmgmt-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records latency and status per route template plus an in-flight gauge per
// top-level route group (auth, document, ingestion).
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		done := metricsSvc.TrackInFlight(routeGroup(route))
		defer done()

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// routeGroup keeps label cardinality bounded: "/document/:id" → "document".
func routeGroup(route string) string {
	if route == unmatchedRoute {
		return route
	}
	trimmed := strings.TrimPrefix(route, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if trimmed == "" {
		return "root"
	}
	return trimmed
}
