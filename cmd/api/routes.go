package main

import (
	"outbound-caller/internal/httpapi"
	"outbound-caller/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routeDeps carries what registerRoutes needs. Optional middleware is nil when
// its backing service is not configured.
type routeDeps struct {
	handlers httpapi.Handlers
	metrics  *metrics.HTTP
	gatherer prometheus.Gatherer

	auth      gin.HandlerFunc
	rateLimit gin.HandlerFunc
	slots     gin.HandlerFunc
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	// public
	r.GET("/health", d.handlers.Health)
	if d.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{})))
	}

	callsGroup := r.Group("/calls")
	for _, mw := range []gin.HandlerFunc{d.rateLimit, d.auth} {
		if mw != nil {
			callsGroup.Use(mw)
		}
	}
	{
		place := []gin.HandlerFunc{}
		if d.slots != nil {
			place = append(place, d.slots)
		}
		place = append(place, d.handlers.PlaceOutboundCall)
		callsGroup.POST("/outbound", place...)

		callsGroup.GET("/:room_name", d.handlers.GetCall)
	}
}
