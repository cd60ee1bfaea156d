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
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// FindingKind classifies a lint finding.
type FindingKind string

const (
	// FindingShadowed: the example resolves through another template.
	FindingShadowed FindingKind = "shadowed"

	// FindingNoMatch: the example matches no template at all.
	FindingNoMatch FindingKind = "no_match"

	// FindingExtractionFailed: the example matches its template but the
	// arguments cannot be extracted.
	FindingExtractionFailed FindingKind = "extraction_failed"

	// FindingDuplicatePattern: the same pattern text appears twice.
	FindingDuplicatePattern FindingKind = "duplicate_pattern"
)

// Finding is one lint result.
type Finding struct {
	Kind       FindingKind `json:"kind"`
	TemplateID string      `json:"template_id"`
	Index      int         `json:"index"`

	// Other is the template involved besides TemplateID: the shadowing
	// template, or the first template with the same pattern.
	Other string `json:"other,omitempty"`

	Message string `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%d] %s: %s: %s", f.Index, f.TemplateID, f.Kind, f.Message)
}

// Lint checks the dispatcher's registry for templates that cannot win.
//
// Description:
//
//	Overlapping templates are legal and resolved by order, so lint never
//	changes runtime behavior; it reports. Every template with an Example is
//	resolved against the whole registry and must resolve through itself.
//	Templates without an Example are only checked for duplicate patterns.
//	Lint does not touch resolution metrics.
//
// Inputs:
//
//	ctx - Context for tracing.
//	d - Dispatcher whose registry is checked. Must not be nil.
//
// Outputs:
//
//	[]Finding - Findings in registry order. Empty when clean.
func Lint(ctx context.Context, d *Dispatcher) []Finding {
	_, span := tracer.Start(ctx, "dispatch.Lint")
	defer span.End()

	var findings []Finding
	firstByPattern := make(map[string]string)

	for i, t := range d.registry.All() {
		if first, dup := firstByPattern[t.Pattern]; dup {
			findings = append(findings, Finding{
				Kind:       FindingDuplicatePattern,
				TemplateID: t.ID,
				Index:      i,
				Other:      first,
				Message:    fmt.Sprintf("pattern is identical to %s", first),
			})
		} else {
			firstByPattern[t.Pattern] = t.ID
		}

		if t.Example == "" {
			continue
		}

		res, _ := d.scan(t.Example)
		switch r := res.(type) {
		case Matched:
			if r.TemplateID != t.ID {
				findings = append(findings, shadowed(i, t.ID, r.TemplateID, t.Example))
			}
		case ExtractionFailed:
			if r.TemplateID != t.ID {
				findings = append(findings, shadowed(i, t.ID, r.TemplateID, t.Example))
				continue
			}
			findings = append(findings, Finding{
				Kind:       FindingExtractionFailed,
				TemplateID: t.ID,
				Index:      i,
				Message:    fmt.Sprintf("example %q: %s", t.Example, r.Message),
			})
		case NoMatch:
			findings = append(findings, Finding{
				Kind:       FindingNoMatch,
				TemplateID: t.ID,
				Index:      i,
				Message:    fmt.Sprintf("example %q matches no template", t.Example),
			})
		}
	}

	span.SetAttributes(
		attribute.Int("lint.templates", d.registry.Len()),
		attribute.Int("lint.findings", len(findings)),
	)
	return findings
}

func shadowed(index int, id, by, example string) Finding {
	return Finding{
		Kind:       FindingShadowed,
		TemplateID: id,
		Index:      index,
		Other:      by,
		Message:    fmt.Sprintf("example %q resolves through template %s", example, by),
	}
}
