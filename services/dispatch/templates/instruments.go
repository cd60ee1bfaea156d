// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package templates

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names. The Prometheus exporter renders them as
// dispatch_templates_compiles_total and dispatch_templates_reloads_total.
const (
	MetricCompiles = "dispatch.templates.compiles"
	MetricReloads  = "dispatch.templates.reloads"
)

var templatesMeter = otel.Meter("aleutian.dispatch.templates")

var compileCounter, reloadCounter metric.Int64Counter

func init() {
	var err error
	compileCounter, err = templatesMeter.Int64Counter(MetricCompiles,
		metric.WithDescription("Template file compilations by result."),
		metric.WithUnit("{compile}"),
	)
	if err != nil {
		otel.Handle(err)
	}
	reloadCounter, err = templatesMeter.Int64Counter(MetricReloads,
		metric.WithDescription("Hot reloads of a watched template file by result."),
		metric.WithUnit("{reload}"),
	)
	if err != nil {
		otel.Handle(err)
	}
}

func resultAttr(err error) metric.MeasurementOption {
	if err != nil {
		return metric.WithAttributes(attribute.String("result", "error"))
	}
	return metric.WithAttributes(attribute.String("result", "ok"))
}

func recordCompile(ctx context.Context, err error) {
	if compileCounter != nil {
		compileCounter.Add(ctx, 1, resultAttr(err))
	}
}

func recordReload(ctx context.Context, err error) {
	if reloadCounter != nil {
		reloadCounter.Add(ctx, 1, resultAttr(err))
	}
}
