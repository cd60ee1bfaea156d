// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dispatch resolves free-form queries to a function name and
// extracted arguments by scanning an ordered template registry.
//
// The first template whose pattern matches the whole query commits the
// resolution: its extractor either produces the arguments (Matched) or fails
// (ExtractionFailed). If no template matches, the result is NoMatch.
// Resolution is pure; a Dispatcher is safe for concurrent use.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/functions"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/templates"
)

var tracer = otel.Tracer("aleutian.dispatch")

// Resolver resolves one query.
type Resolver interface {
	Resolve(ctx context.Context, query string) Result
}

// Dispatcher resolves queries against one frozen registry.
//
// Thread Safety: Safe for concurrent use. Holds no mutable state.
type Dispatcher struct {
	registry *templates.Registry
	catalog  *functions.Catalog
	logger   *slog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithCatalog attaches the function catalog the registry was built against.
func WithCatalog(c *functions.Catalog) Option {
	return func(d *Dispatcher) { d.catalog = c }
}

// New creates a dispatcher over registry.
//
// Description:
//
//	Freezes the registry if the caller has not: a dispatcher never scans a
//	registry that can still change.
//
// Inputs:
//
//	registry - Templates to scan. Must not be nil.
//	opts - Optional logger and catalog.
//
// Outputs:
//
//	*Dispatcher - Ready for Resolve.
//	error - Non-nil if registry is nil.
func New(registry *templates.Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("dispatch.New: registry must not be nil")
	}
	registry.Freeze()

	d := &Dispatcher{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewFromCompiled creates a dispatcher from a compiled template file.
func NewFromCompiled(c *templates.Compiled, opts ...Option) (*Dispatcher, error) {
	if c == nil {
		return nil, fmt.Errorf("dispatch.NewFromCompiled: compiled templates must not be nil")
	}
	return New(c.Registry, append([]Option{WithCatalog(c.Catalog)}, opts...)...)
}

// Registry returns the registry being scanned.
func (d *Dispatcher) Registry() *templates.Registry {
	return d.registry
}

// Catalog returns the attached catalog, or nil.
func (d *Dispatcher) Catalog() *functions.Catalog {
	return d.catalog
}

// Resolve maps query to a Result.
//
// Description:
//
//	Scans the registry in order and commits to the first template whose
//	pattern matches the entire query. A panicking extractor is recovered
//	and reported as ExtractionFailed. ctx is used for tracing only.
//
// Inputs:
//
//	ctx - Parent context for the span.
//	query - Raw query text. Any string, including empty.
//
// Outputs:
//
//	Result - Matched, ExtractionFailed or NoMatch. Never nil.
func (d *Dispatcher) Resolve(ctx context.Context, query string) Result {
	_, span := tracer.Start(ctx, "dispatch.Resolve")
	defer span.End()

	start := time.Now()
	res, scanned := d.scan(query)
	recordResolution(res, scanned, time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("dispatch.query_length", len(query)),
		attribute.Int("dispatch.templates_scanned", scanned),
		attribute.String("dispatch.outcome", string(res.Outcome())),
	)

	switch r := res.(type) {
	case Matched:
		span.SetAttributes(
			attribute.String("dispatch.function", r.FunctionName),
			attribute.String("dispatch.template_id", r.TemplateID),
		)
		d.logger.Debug("query matched",
			slog.String("function", r.FunctionName),
			slog.String("template_id", r.TemplateID),
			slog.Int("scanned", scanned),
		)
	case ExtractionFailed:
		span.SetAttributes(
			attribute.String("dispatch.function", r.FunctionName),
			attribute.String("dispatch.template_id", r.TemplateID),
		)
		span.SetStatus(codes.Error, "extraction failed")
		d.logger.Warn("argument extraction failed",
			slog.String("function", r.FunctionName),
			slog.String("template_id", r.TemplateID),
			slog.String("error", RedactQuery(r.Message)),
			slog.String("query", RedactQuery(query)),
		)
	case NoMatch:
		d.logger.Debug("query matched no template",
			slog.Int("scanned", scanned),
			slog.String("query", RedactQuery(query)),
		)
	}

	return res
}

// scan is Resolve without metrics, logging or tracing. It also returns the
// number of templates tried.
func (d *Dispatcher) scan(query string) (Result, int) {
	scanned := 0
	for _, t := range d.registry.All() {
		scanned++
		caps, ok := t.Match(query)
		if !ok {
			continue
		}
		return d.commit(t, caps), scanned
	}
	return NoMatch{}, scanned
}

// commit runs the extractor of the template that matched.
func (d *Dispatcher) commit(t templates.Template, caps templates.Captures) (res Result) {
	failed := func(msg string) ExtractionFailed {
		return ExtractionFailed{Message: msg, FunctionName: t.FunctionName, TemplateID: t.ID}
	}

	defer func() {
		if r := recover(); r != nil {
			res = failed(fmt.Sprintf("extractor panicked: %v", r))
		}
	}()

	args, err := t.Extract(caps)
	if err != nil {
		return failed(err.Error())
	}
	encoded, err := args.Encode()
	if err != nil {
		return failed(err.Error())
	}
	return Matched{FunctionName: t.FunctionName, Arguments: encoded, TemplateID: t.ID}
}
