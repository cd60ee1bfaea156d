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
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/config"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/functions"
)

var templatesTracer = otel.Tracer("aleutian.dispatch.templates")

// Compiled is a frozen registry together with the catalog it was built
// against.
type Compiled struct {
	Registry *Registry
	Catalog  *functions.Catalog
}

// Compile builds a frozen Registry from a loaded template file.
//
// Description:
//
//	Builds the function catalog, then registers every template in file
//	order with a FieldMapping extractor. A template with an explicit
//	captures list maps groups positionally; without one, named groups are
//	used. Any inconsistency between a pattern, its captures and the target
//	function's parameters is an error: a registry is either fully valid or
//	not built.
//
// Inputs:
//
//	ctx - Context for tracing.
//	tf - Loaded and validated template file. Must not be nil.
//
// Outputs:
//
//	*Compiled - Frozen registry and catalog.
//	error - Non-nil on the first invalid template.
func Compile(ctx context.Context, tf *config.TemplateFile) (compiled *Compiled, err error) {
	_, span := templatesTracer.Start(ctx, "templates.Compile")
	defer span.End()
	defer func() { recordCompile(ctx, err) }()

	if tf == nil {
		return nil, fmt.Errorf("Compile: template file must not be nil")
	}

	catalog, err := functions.CatalogFromConfig(tf.Functions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog")
		return nil, fmt.Errorf("Compile: %w", err)
	}

	reg := NewRegistry()
	for i, spec := range tf.Templates {
		if err := registerSpec(reg, catalog, spec); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "template")
			return nil, fmt.Errorf("Compile: templates[%d] (%s): %w", i, spec.ID, err)
		}
	}
	reg.Freeze()

	span.SetAttributes(
		attribute.Int("functions", catalog.Len()),
		attribute.Int("templates", reg.Len()),
	)
	slog.Debug("templates compiled",
		slog.Int("functions", catalog.Len()),
		slog.Int("templates", reg.Len()),
	)

	return &Compiled{Registry: reg, Catalog: catalog}, nil
}

func registerSpec(reg *Registry, catalog *functions.Catalog, spec config.TemplateSpec) error {
	schema, err := catalog.Lookup(spec.Function)
	if err != nil {
		return err
	}

	re, err := CompilePattern(spec.Pattern)
	if err != nil {
		return err
	}

	var mapping *FieldMapping
	if len(spec.Captures) > 0 {
		mapping, err = NewFieldMapping(schema, spec.Captures, re.NumSubexp())
	} else {
		mapping, err = NewNamedGroupMapping(schema, re)
	}
	if err != nil {
		return err
	}

	return reg.Register(spec.Pattern, spec.Function, mapping,
		WithID(spec.ID),
		WithExample(spec.Example),
	)
}

// CompileDefault compiles the embedded template file.
func CompileDefault(ctx context.Context) (*Compiled, error) {
	tf, err := config.GetDefaultTemplateFile(ctx)
	if err != nil {
		return nil, err
	}
	return Compile(ctx, tf)
}

// CompileFile loads and compiles a template file from disk.
func CompileFile(ctx context.Context, path string) (*Compiled, error) {
	tf, err := config.LoadTemplateFileFromPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return Compile(ctx, tf)
}

// Load compiles path, or the embedded templates when path is empty.
func Load(ctx context.Context, path string) (*Compiled, error) {
	if path == "" {
		return CompileDefault(ctx)
	}
	return CompileFile(ctx, path)
}
