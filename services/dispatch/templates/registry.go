// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package templates holds the ordered query templates the dispatcher scans:
// compiled full-string patterns, their target functions and the extractors
// that turn captures into typed arguments.
package templates

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
)

// ErrRegistryFrozen is returned by Register after Freeze.
var ErrRegistryFrozen = errors.New("registry is frozen")

// =============================================================================
// Template
// =============================================================================

// Template is one recognized query shape.
//
// Thread Safety: Immutable after registration; safe for concurrent use.
type Template struct {
	// ID identifies the template. Unique within a registry.
	ID string

	// Index is the template's position in registry order.
	Index int

	// FunctionName is the function this template dispatches to.
	FunctionName string

	// Pattern is the pattern as written, before anchoring.
	Pattern string

	// Example is a query expected to resolve to this template. May be empty.
	Example string

	re        *regexp.Regexp
	extractor Extractor
}

// CompilePattern compiles pattern so that it only matches an entire string.
//
// Description:
//
//	Wraps the pattern as \A(?:pattern)\z. Author-supplied ^ and $ anchors
//	are harmless inside the group. A prefix or substring match is never a
//	match.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Match reports whether query matches the template in full and returns its
// captures.
func (t Template) Match(query string) (Captures, bool) {
	loc := t.re.FindStringSubmatchIndex(query)
	if loc == nil {
		return Captures{}, false
	}
	return newCaptures(query, loc), true
}

// Extract runs the template's extractor.
func (t Template) Extract(c Captures) (Arguments, error) {
	return t.extractor.Extract(c)
}

// Expression returns the anchored expression actually matched.
func (t Template) Expression() string {
	return t.re.String()
}

// NumGroups returns the number of capture groups in the pattern.
func (t Template) NumGroups() int {
	return t.re.NumSubexp()
}

// TemplateOption customizes a template at registration.
type TemplateOption func(*Template)

// WithID sets the template ID. Without it the ID is "<function>#<index>".
func WithID(id string) TemplateOption {
	return func(t *Template) { t.ID = id }
}

// WithExample records an example query for the template.
func WithExample(example string) TemplateOption {
	return func(t *Template) { t.Example = example }
}

// =============================================================================
// Registry
// =============================================================================

// Registry is the ordered template list.
//
// Description:
//
//	Templates are appended with Register while the registry is being built,
//	then the registry is sealed with Freeze. Order is significant: the
//	dispatcher commits to the first template that matches. Register does no
//	overlap or reachability analysis; a template shadowed by an earlier one
//	is legal and simply never wins (see dispatch.Lint).
//
// Thread Safety: Not safe for concurrent Register calls. After Freeze the
// registry is immutable and safe for concurrent use.
type Registry struct {
	templates []Template
	byID      map[string]int
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]int)}
}

// Register appends a template.
//
// Inputs:
//
//	pattern - RE2 pattern; matched against the entire query.
//	functionName - Target function. Must not be empty.
//	extractor - Builds the arguments from the captures. Must not be nil.
//	opts - Optional ID and example.
//
// Outputs:
//
//	error - ErrRegistryFrozen after Freeze, or an invalid pattern,
//	        empty function name, nil extractor or duplicate ID.
func (r *Registry) Register(pattern, functionName string, extractor Extractor, opts ...TemplateOption) error {
	if r.frozen {
		return ErrRegistryFrozen
	}
	if functionName == "" {
		return fmt.Errorf("Register: function name must not be empty")
	}
	if extractor == nil {
		return fmt.Errorf("Register: extractor must not be nil (function %s)", functionName)
	}

	re, err := CompilePattern(pattern)
	if err != nil {
		return fmt.Errorf("Register: %w", err)
	}

	t := Template{
		Index:        len(r.templates),
		FunctionName: functionName,
		Pattern:      pattern,
		re:           re,
		extractor:    extractor,
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("%s#%d", functionName, t.Index)
	}
	if _, dup := r.byID[t.ID]; dup {
		return fmt.Errorf("Register: duplicate template id %q", t.ID)
	}

	r.byID[t.ID] = t.Index
	r.templates = append(r.templates, t)
	return nil
}

// MustRegister is Register that panics on error. For static registries.
func (r *Registry) MustRegister(pattern, functionName string, extractor Extractor, opts ...TemplateOption) {
	if err := r.Register(pattern, functionName, extractor, opts...); err != nil {
		panic(err)
	}
}

// Freeze seals the registry. Further Register calls fail.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// All yields the templates in registry order.
func (r *Registry) All() iter.Seq2[int, Template] {
	return func(yield func(int, Template) bool) {
		for i, t := range r.templates {
			if !yield(i, t) {
				return
			}
		}
	}
}

// Templates returns a copy of the templates in registry order.
func (r *Registry) Templates() []Template {
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Get returns the template with the given ID.
func (r *Registry) Get(id string) (Template, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Template{}, false
	}
	return r.templates[i], true
}

// Len returns the number of templates.
func (r *Registry) Len() int {
	return len(r.templates)
}
