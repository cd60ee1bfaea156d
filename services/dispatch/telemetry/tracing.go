// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry configures OpenTelemetry tracing for the dispatch
// service.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/config"
)

// DefaultServiceName identifies this service in traces.
const DefaultServiceName = "aleutian-dispatch"

// DefaultOTLPEndpoint is used when the OTLP exporter has no endpoint.
const DefaultOTLPEndpoint = "localhost:4317"

// Config configures tracing.
type Config struct {
	// Exporter is one of config.TraceExporterNone, TraceExporterStdout or
	// TraceExporterOTLP.
	Exporter string

	// OTLPEndpoint is the collector address for the OTLP exporter.
	OTLPEndpoint string

	// ServiceName defaults to DefaultServiceName.
	ServiceName string

	// SampleRate is the fraction of root traces sampled. <= 0 means 1.0.
	SampleRate float64

	// Writer receives stdout exporter output. Defaults to os.Stdout.
	Writer io.Writer
}

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracing installs the global tracer provider and W3C propagators.
//
// Description:
//
//	With the "none" exporter only the propagators are installed and the
//	global provider stays a no-op. Otherwise spans are batched to the
//	chosen exporter.
//
// Inputs:
//
//	ctx - Context for exporter setup.
//	cfg - Tracing configuration.
//
// Outputs:
//
//	ShutdownFunc - Always non-nil; call on exit.
//	error - Non-nil for an unknown exporter or exporter setup failure.
func InitTracing(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	noop := func(context.Context) error { return nil }

	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.Exporter {
	case config.TraceExporterNone, "":
		return noop, nil
	case config.TraceExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return noop, fmt.Errorf("create stdout exporter: %w", err)
		}
	case config.TraceExporterOTLP:
		endpoint := cfg.OTLPEndpoint
		if endpoint == "" {
			endpoint = DefaultOTLPEndpoint
		}
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return noop, fmt.Errorf("create otlp exporter: %w", err)
		}
	default:
		return noop, fmt.Errorf("unsupported trace exporter: %q", cfg.Exporter)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1.0
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
