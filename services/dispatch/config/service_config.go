// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"time"
)

// Tracing exporter names accepted by ServiceConfig.TraceExporter.
const (
	TraceExporterNone   = "none"
	TraceExporterStdout = "stdout"
	TraceExporterOTLP   = "otlp"
)

// Metric exporter names accepted by ServiceConfig.MetricExporter.
const (
	MetricExporterNone       = "none"
	MetricExporterPrometheus = "prometheus"
	MetricExporterStdout     = "stdout"
)

// ServiceConfig configures the dispatch HTTP service.
//
// Description:
//
//	Populated by the CLI from flags, DISPATCH_* environment variables and an
//	optional config file. Zero values are replaced by DefaultServiceConfig
//	before validation.
type ServiceConfig struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// Debug enables gin debug mode, request logging and text logs.
	Debug bool `mapstructure:"debug"`

	// TemplatesPath overrides the embedded template file. Empty means embedded.
	TemplatesPath string `mapstructure:"templates_path"`

	// WatchTemplates reloads TemplatesPath when it changes on disk.
	// Requires TemplatesPath; Validate rejects it for the embedded file.
	WatchTemplates bool `mapstructure:"watch_templates"`

	// CacheTTL is how long resolved queries stay memoized. Zero disables
	// the cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0"`

	// RateLimitPerMinute limits requests per client IP. Zero disables it.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"min=0"`

	// TraceExporter selects the span exporter: none, stdout or otlp.
	TraceExporter string `mapstructure:"trace_exporter" validate:"oneof=none stdout otlp"`

	// OTLPEndpoint is the collector address used by the otlp exporter.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`

	// MetricExporter selects where OpenTelemetry instruments are exported:
	// none, prometheus (served on /metrics) or stdout.
	MetricExporter string `mapstructure:"metric_exporter" validate:"oneof=none prometheus stdout"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// DefaultServiceConfig returns the defaults used when nothing is configured.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Port:            8000,
		CacheTTL:        5 * time.Minute,
		TraceExporter:   TraceExporterNone,
		MetricExporter:  MetricExporterPrometheus,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c ServiceConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid service config: %w", err)
	}
	if c.WatchTemplates && c.TemplatesPath == "" {
		return fmt.Errorf("invalid service config: watch_templates requires templates_path")
	}
	return nil
}
