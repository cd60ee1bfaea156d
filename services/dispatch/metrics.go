// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Query Resolution
// =============================================================================

var (
	// resolveTotal counts resolutions by outcome.
	// Labels: outcome (matched, extraction_failed, no_match)
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "resolve_total",
		Help:      "Total query resolutions by outcome",
	}, []string{"outcome"})

	// matchedTotal counts successful resolutions by target function.
	// Labels: function
	matchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Name:      "matched_total",
		Help:      "Total matched queries by target function",
	}, []string{"function"})

	// resolveLatencySeconds measures one Resolve call.
	resolveLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "resolve_latency_seconds",
		Help:      "Query resolution latency",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	// templatesScanned observes how many templates were tried per query.
	templatesScanned = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dispatch",
		Name:      "templates_scanned",
		Help:      "Templates tried before a resolution committed or gave up",
		Buckets:   []float64{1, 2, 5, 10, 20, 35, 50, 100},
	})

	// cacheLookupsTotal counts memoized lookups.
	// Labels: result (hit, miss, bypass)
	cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dispatch",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Resolution cache lookups by result",
	}, []string{"result"})
)

func recordResolution(res Result, scanned int, seconds float64) {
	resolveTotal.WithLabelValues(string(res.Outcome())).Inc()
	if m, ok := res.(Matched); ok {
		matchedTotal.WithLabelValues(m.FunctionName).Inc()
	}
	resolveLatencySeconds.Observe(seconds)
	templatesScanned.Observe(float64(scanned))
}
