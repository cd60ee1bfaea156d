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
	"fmt"
	"regexp"
	"strconv"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/functions"
)

// =============================================================================
// Captures
// =============================================================================

// Captures holds the capture groups of one successful match.
//
// Group numbering follows the pattern: group 1 is the first parenthesized
// subexpression. A group that exists in the pattern but took no part in the
// match is reported as absent, not as an empty string.
type Captures struct {
	groups  []string
	present []bool
}

// newCaptures builds Captures from a FindStringSubmatchIndex result.
func newCaptures(s string, loc []int) Captures {
	n := len(loc)/2 - 1
	if n < 0 {
		n = 0
	}
	c := Captures{
		groups:  make([]string, n),
		present: make([]bool, n),
	}
	for i := 0; i < n; i++ {
		start, end := loc[2*(i+1)], loc[2*(i+1)+1]
		if start < 0 {
			continue
		}
		c.groups[i] = s[start:end]
		c.present[i] = true
	}
	return c
}

// NewCaptures builds Captures from explicit group values, all present.
// Group 1 is groups[0].
func NewCaptures(groups ...string) Captures {
	c := Captures{
		groups:  make([]string, len(groups)),
		present: make([]bool, len(groups)),
	}
	copy(c.groups, groups)
	for i := range c.present {
		c.present[i] = true
	}
	return c
}

// Len returns the number of capture groups.
func (c Captures) Len() int {
	return len(c.groups)
}

// Group returns capture group n (1-based) and whether it participated.
func (c Captures) Group(n int) (string, bool) {
	if n < 1 || n > len(c.groups) {
		return "", false
	}
	return c.groups[n-1], c.present[n-1]
}

// =============================================================================
// Extractors
// =============================================================================

// Extractor turns the captures of a matched template into typed arguments.
//
// Implementations must be pure: the same captures always yield the same
// arguments or the same error.
type Extractor interface {
	Extract(c Captures) (Arguments, error)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(c Captures) (Arguments, error)

// Extract calls f(c).
func (f ExtractorFunc) Extract(c Captures) (Arguments, error) {
	return f(c)
}

// ExtractionError describes why an argument could not be extracted.
type ExtractionError struct {
	Field string
	Group int
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("argument %s (group %d): %v", e.Field, e.Group, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FieldBinding binds one function parameter to one capture group.
type FieldBinding struct {
	Param functions.Param
	Group int
}

// FieldMapping is a data-driven extractor: a table from capture group to
// parameter, emitted in the function's declared parameter order.
//
// Description:
//
//	Templates phrase the same request in different word orders, so the
//	capture order differs between templates of one function. The mapping
//	records, per parameter, which group holds it; Extract reads the groups
//	in declared parameter order, so the output order never depends on the
//	template.
//
// Thread Safety: Immutable; safe for concurrent use.
type FieldMapping struct {
	function string
	bindings []FieldBinding
}

// NewFieldMapping builds a mapping from a positional capture list.
//
// Description:
//
//	captures[i] names the parameter held by group i+1. Every parameter of
//	schema must be named exactly once, and groups must equal the number of
//	capture groups in the pattern.
//
// Inputs:
//
//	schema - Target function schema.
//	captures - Parameter name per capture group.
//	groups - Number of capture groups in the pattern.
//
// Outputs:
//
//	*FieldMapping - The mapping.
//	error - Non-nil if captures and schema disagree.
func NewFieldMapping(schema functions.Schema, captures []string, groups int) (*FieldMapping, error) {
	if len(captures) != groups {
		return nil, fmt.Errorf("pattern has %d capture groups but %d captures are mapped", groups, len(captures))
	}

	groupOf := make(map[string]int, len(captures))
	for i, name := range captures {
		if _, ok := schema.Param(name); !ok {
			return nil, fmt.Errorf("capture %d: %s has no parameter %q", i+1, schema.Name, name)
		}
		if _, dup := groupOf[name]; dup {
			return nil, fmt.Errorf("capture %d: parameter %q mapped twice", i+1, name)
		}
		groupOf[name] = i + 1
	}

	return bindSchema(schema, groupOf)
}

// NewNamedGroupMapping builds a mapping from the named groups of re. Unnamed
// groups are ignored; every parameter of schema must have a named group.
func NewNamedGroupMapping(schema functions.Schema, re *regexp.Regexp) (*FieldMapping, error) {
	groupOf := make(map[string]int)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		if _, ok := schema.Param(name); !ok {
			return nil, fmt.Errorf("named group %q: %s has no such parameter", name, schema.Name)
		}
		groupOf[name] = i
	}
	return bindSchema(schema, groupOf)
}

func bindSchema(schema functions.Schema, groupOf map[string]int) (*FieldMapping, error) {
	bindings := make([]FieldBinding, 0, len(schema.Params))
	for _, p := range schema.Params {
		g, ok := groupOf[p.Name]
		if !ok {
			return nil, fmt.Errorf("parameter %q of %s is not captured", p.Name, schema.Name)
		}
		bindings = append(bindings, FieldBinding{Param: p, Group: g})
	}
	return &FieldMapping{function: schema.Name, bindings: bindings}, nil
}

// Bindings returns the parameter bindings in output order.
func (m *FieldMapping) Bindings() []FieldBinding {
	out := make([]FieldBinding, len(m.bindings))
	copy(out, m.bindings)
	return out
}

// Extract reads and coerces every bound group.
func (m *FieldMapping) Extract(c Captures) (Arguments, error) {
	args := make(Arguments, 0, len(m.bindings))
	for _, b := range m.bindings {
		raw, ok := c.Group(b.Group)
		if !ok {
			return nil, &ExtractionError{
				Field: b.Param.Name,
				Group: b.Group,
				Err:   fmt.Errorf("capture group did not participate in the match"),
			}
		}
		v, err := coerce(raw, b.Param.Type)
		if err != nil {
			return nil, &ExtractionError{Field: b.Param.Name, Group: b.Group, Err: err}
		}
		args = append(args, Argument{Name: b.Param.Name, Value: v})
	}
	return args, nil
}

// coerce converts captured text to the parameter type. Strings pass through
// untouched; boundaries are the pattern's job.
func coerce(raw string, t functions.ArgType) (any, error) {
	switch t {
	case functions.ArgString:
		return raw, nil
	case functions.ArgInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", raw, unwrapNumError(err))
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %v", t)
	}
}

// unwrapNumError drops strconv's "strconv.ParseInt: parsing ..." prefix,
// which repeats the input already quoted by the caller.
func unwrapNumError(err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err
	}
	return err
}
