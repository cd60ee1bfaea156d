// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// ServiceName is the otelgin server name.
const ServiceName = "aleutian-dispatch"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// Debug adds gin's request logger.
	Debug bool

	// RateLimitPerMinute enables per-client rate limiting when positive.
	RateLimitPerMinute int

	// CORS configures cross-origin access.
	CORS CORSConfig
}

// DefaultRouterConfig returns permissive CORS and no rate limit.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{CORS: DefaultCORSConfig()}
}

// RegisterRoutes registers the dispatch endpoints.
//
// Endpoints:
//
//	GET /           - Service banner
//	GET /execute    - Resolve ?q= to a function call
//	GET /health     - Liveness
//	GET /ready      - Readiness (templates loaded)
//	GET /functions  - Function catalog as tool definitions
//	GET /templates  - Registry in scan order
//	GET /metrics    - Prometheus exposition
func RegisterRoutes(r gin.IRoutes, h *Handlers) {
	r.GET("/", h.HandleRoot)
	r.GET("/execute", h.HandleExecute)
	r.GET("/health", h.HandleHealth)
	r.GET("/ready", h.HandleReady)
	r.GET("/functions", h.HandleFunctions)
	r.GET("/templates", h.HandleTemplates)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// NewRouter builds the gin engine with middleware and routes.
//
// Middleware order: recovery, tracing, request ID, CORS, metrics, then the
// optional request logger and rate limiter. CORS runs before the rate
// limiter so preflight requests are never throttled.
func NewRouter(cfg RouterConfig, h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(ServiceName))
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(MetricsMiddleware())
	if cfg.Debug {
		router.Use(gin.Logger())
	}
	if cfg.RateLimitPerMinute > 0 {
		router.Use(RateLimitMiddleware(NewRateLimiter(cfg.RateLimitPerMinute)))
	}

	RegisterRoutes(router, h)
	return router
}
