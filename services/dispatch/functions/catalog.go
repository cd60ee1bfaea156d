// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package functions describes the functions a query can dispatch to: their
// names, parameter order and parameter types.
package functions

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/config"
	"github.com/AleutianAI/AleutianDispatch/services/llm"
)

// ErrUnknownFunction is returned when a name is not in the catalog.
var ErrUnknownFunction = errors.New("unknown function")

// ArgType is the type an extracted argument is coerced to.
type ArgType int

const (
	// ArgString passes the captured text through unchanged.
	ArgString ArgType = iota

	// ArgInteger parses the captured text as a base-10 integer.
	ArgInteger
)

// String returns the JSON Schema name of the type.
func (t ArgType) String() string {
	switch t {
	case ArgString:
		return "string"
	case ArgInteger:
		return "integer"
	default:
		return fmt.Sprintf("ArgType(%d)", int(t))
	}
}

// ParseArgType maps a JSON Schema type name to an ArgType.
func ParseArgType(s string) (ArgType, error) {
	switch s {
	case "string":
		return ArgString, nil
	case "integer":
		return ArgInteger, nil
	default:
		return 0, fmt.Errorf("unsupported argument type %q", s)
	}
}

// Param is one declared function parameter.
type Param struct {
	Name        string
	Type        ArgType
	Description string
}

// Schema is the declared argument shape of one function. Params are in
// canonical order; extracted arguments are always emitted in this order.
type Schema struct {
	Name        string
	Description string
	Params      []Param
}

// Param returns the named parameter.
func (s Schema) Param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ToolDef renders the schema as an OpenAI-style tool definition.
func (s Schema) ToolDef() llm.ToolDef {
	props := make(map[string]llm.ToolParamDef, len(s.Params))
	required := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		props[p.Name] = llm.ToolParamDef{
			Type:        p.Type.String(),
			Description: p.Description,
		}
		required = append(required, p.Name)
	}
	return llm.ToolDef{
		Type: llm.ToolTypeFunction,
		Function: llm.ToolFunction{
			Name:        s.Name,
			Description: s.Description,
			Parameters: llm.ToolParameters{
				Type:       "object",
				Properties: props,
				Required:   required,
			},
		},
	}
}

// Catalog is an ordered, immutable set of function schemas.
//
// Thread Safety: Immutable after construction; safe for concurrent use.
type Catalog struct {
	schemas []Schema
	byName  map[string]int
}

// NewCatalog builds a catalog from schemas, rejecting duplicate names.
func NewCatalog(schemas ...Schema) (*Catalog, error) {
	c := &Catalog{
		schemas: make([]Schema, 0, len(schemas)),
		byName:  make(map[string]int, len(schemas)),
	}
	for _, s := range schemas {
		if s.Name == "" {
			return nil, fmt.Errorf("NewCatalog: function name must not be empty")
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("NewCatalog: duplicate function %q", s.Name)
		}
		params := make([]Param, len(s.Params))
		copy(params, s.Params)
		s.Params = params
		c.byName[s.Name] = len(c.schemas)
		c.schemas = append(c.schemas, s)
	}
	return c, nil
}

// CatalogFromConfig builds a catalog from the functions section of a
// template file.
func CatalogFromConfig(specs []config.FunctionSpec) (*Catalog, error) {
	schemas := make([]Schema, 0, len(specs))
	for _, spec := range specs {
		params := make([]Param, 0, len(spec.Parameters))
		for _, ps := range spec.Parameters {
			typ, err := ParseArgType(ps.Type)
			if err != nil {
				return nil, fmt.Errorf("function %s: parameter %s: %w", spec.Name, ps.Name, err)
			}
			params = append(params, Param{Name: ps.Name, Type: typ, Description: ps.Description})
		}
		schemas = append(schemas, Schema{
			Name:        spec.Name,
			Description: spec.Description,
			Params:      params,
		})
	}
	return NewCatalog(schemas...)
}

// Lookup returns the schema for name.
func (c *Catalog) Lookup(name string) (Schema, error) {
	i, ok := c.byName[name]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownFunction, name)
	}
	return c.schemas[i], nil
}

// Schemas returns the schemas in declaration order. The slice is a copy.
func (c *Catalog) Schemas() []Schema {
	out := make([]Schema, len(c.schemas))
	copy(out, c.schemas)
	return out
}

// Len returns the number of functions.
func (c *Catalog) Len() int {
	return len(c.schemas)
}

// ToolDefs renders every schema as a tool definition, in declaration order.
func (c *Catalog) ToolDefs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(c.schemas))
	for _, s := range c.schemas {
		defs = append(defs, s.ToolDef())
	}
	return defs
}
