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
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// =============================================================================
// Request IDs
// =============================================================================

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"

	requestIDKey       = "request_id"
	maxRequestIDLength = 128
)

// RequestIDMiddleware propagates X-Request-ID, generating a UUID when the
// client sent none (or an unusable one).
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLength || strings.ContainsAny(id, "\r\n") {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// RequestID returns the request ID set by RequestIDMiddleware, or a fresh
// UUID if the middleware did not run.
func RequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := uuid.NewString()
	c.Set(requestIDKey, id)
	return id
}

// =============================================================================
// CORS
// =============================================================================

// CORSConfig configures CORSMiddleware.
type CORSConfig struct {
	// AllowOrigins lists allowed origins as scheme://host[:port]. "*"
	// allows any.
	AllowOrigins []string

	// AllowCredentials echoes the request origin instead of "*" and sets
	// Access-Control-Allow-Credentials.
	AllowCredentials bool

	// MaxAge is how long browsers may cache a preflight result.
	MaxAge time.Duration
}

// DefaultCORSConfig allows any origin, method and header, with credentials.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	}
}

// CORSMiddleware builds a gin-contrib/cors handler from cfg. Preflight
// requests are answered with 204; requests from origins outside
// AllowOrigins are rejected with 403. An empty AllowOrigins disables CORS.
func CORSMiddleware(cfg CORSConfig) gin.HandlerFunc {
	if len(cfg.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	cc := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions,
		},
		AllowHeaders:     []string{"*"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}
	switch {
	case slices.Contains(cfg.AllowOrigins, "*") && cfg.AllowCredentials:
		// Credentialed responses must echo the origin, never "*".
		cc.AllowOriginFunc = func(string) bool { return true }
	case slices.Contains(cfg.AllowOrigins, "*"):
		cc.AllowAllOrigins = true
	default:
		cc.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(cc)
}

// =============================================================================
// Rate limiting
// =============================================================================

// clientLimiterTTL is how long an idle client's limiter is kept.
const clientLimiterTTL = 10 * time.Minute

// RateLimiter is a per-client token bucket.
//
// Description:
//
//	Each client IP gets its own limiter refilling at perMinute tokens per
//	minute with a burst of perMinute. Idle limiters expire, so the set of
//	tracked clients stays bounded by recent traffic.
//
// Thread Safety: Safe for concurrent use.
type RateLimiter struct {
	perMinute int
	limiters  *gocache.Cache
}

// NewRateLimiter creates a limiter allowing perMinute requests per client.
// perMinute must be positive.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		limiters:  gocache.New(clientLimiterTTL, clientLimiterTTL),
	}
}

func (r *RateLimiter) limiterFor(client string) *rate.Limiter {
	if v, ok := r.limiters.Get(client); ok {
		r.limiters.SetDefault(client, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.perMinute)), r.perMinute)
	if err := r.limiters.Add(client, l, gocache.DefaultExpiration); err != nil {
		// Another request created it first.
		if v, ok := r.limiters.Get(client); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Allow reports whether client may proceed and, if not, how long to wait.
func (r *RateLimiter) Allow(client string) (bool, time.Duration) {
	l := r.limiterFor(client)
	if l.Allow() {
		return true, 0
	}
	res := l.Reserve()
	delay := res.Delay()
	res.Cancel()
	return false, delay
}

// RateLimitMiddleware rejects clients over their budget with 429 and a
// Retry-After header in whole seconds.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := limiter.Allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}
		retry := int(math.Ceil(wait.Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "rate limit exceeded",
			Code:  CodeRateLimited,
		})
	}
}

// =============================================================================
// HTTP metrics
// =============================================================================

var (
	// httpRequestsTotal counts requests by route and status.
	// Labels: method, route, status
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})

	// httpRequestDurationSeconds measures request handling time.
	// Labels: method, route
	httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request handling latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// MetricsMiddleware records request counts and latency per route template.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDurationSeconds.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
