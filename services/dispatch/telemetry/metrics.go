// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/config"
)

// DefaultMetricInterval is the stdout exporter's push interval.
const DefaultMetricInterval = 30 * time.Second

// MetricsConfig configures the OpenTelemetry meter provider.
type MetricsConfig struct {
	// Exporter is one of config.MetricExporterNone, MetricExporterPrometheus
	// or MetricExporterStdout.
	Exporter string

	// ServiceName defaults to DefaultServiceName.
	ServiceName string

	// Registerer receives the Prometheus collector. Defaults to
	// prometheus.DefaultRegisterer, which GET /metrics serves.
	Registerer promclient.Registerer

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer

	// Interval is the stdout push interval. Defaults to DefaultMetricInterval.
	Interval time.Duration
}

// InitMetrics installs the global meter provider.
//
// Description:
//
//	OpenTelemetry instruments (template compiles and reloads, plus any
//	instrumentation library that uses the global provider) are exported
//	either through the Prometheus registry, next to the client_golang
//	collectors, or periodically to a writer. With "none" the global
//	provider stays a no-op.
//
// Inputs:
//
//	ctx - Unused; kept for symmetry with InitTracing.
//	cfg - Metrics configuration.
//
// Outputs:
//
//	ShutdownFunc - Always non-nil; flushes pending measurements.
//	error - Non-nil for an unknown exporter or registration failure.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	var reader sdkmetric.Reader

	switch cfg.Exporter {
	case config.MetricExporterNone, "":
		return noop, nil
	case config.MetricExporterPrometheus:
		var opts []otelprom.Option
		if cfg.Registerer != nil {
			opts = append(opts, otelprom.WithRegisterer(cfg.Registerer))
		}
		exporter, err := otelprom.New(opts...)
		if err != nil {
			return noop, fmt.Errorf("create prometheus exporter: %w", err)
		}
		reader = exporter
	case config.MetricExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return noop, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = DefaultMetricInterval
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	default:
		return noop, fmt.Errorf("unsupported metric exporter: %q", cfg.Exporter)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
