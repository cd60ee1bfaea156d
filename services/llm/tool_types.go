// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm holds the provider-agnostic wire types of the function calling
// convention: tool definitions advertised to callers and the function call
// produced for a query.
package llm

import (
	"encoding/json"
	"strings"
)

// ToolTypeFunction is the only tool type emitted by the dispatcher.
const ToolTypeFunction = "function"

// ToolDef is a tool definition following the OpenAI function calling schema.
//
// Description:
//
//	Advertises one dispatchable function, its parameters and their JSON
//	Schema types, so a frontend can show what the assistant understands.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Type is the tool type. Always "function".
	Type string `json:"type"`

	// Function contains the function definition.
	Function ToolFunction `json:"function"`
}

// ToolFunction contains the function name, description, and parameter schema.
type ToolFunction struct {
	// Name is the function name the dispatcher emits.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description"`

	// Parameters defines the JSON Schema for function parameters.
	Parameters ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool parameters.
type ToolParameters struct {
	// Type is the JSON Schema type. Always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists parameter names that must be provided, in declaration order.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single parameter in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer).
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`
}

// FunctionCall is the function calling convention's call shape.
//
// Description:
//
//	Arguments is a string that itself contains JSON, not a nested object.
//	Callers of the convention decode it a second time; the double encoding
//	is part of the contract and must be preserved on the wire.
//
// Thread Safety: FunctionCall is safe for concurrent read access.
type FunctionCall struct {
	// Name is the function to call.
	Name string `json:"name"`

	// Arguments is the JSON-encoded argument object.
	Arguments string `json:"arguments"`
}

// DecodeArguments decodes the JSON argument string into a generic map.
//
// Description:
//
//	Numbers decode as json.Number so integer arguments round-trip exactly.
//	Returns an empty map for an empty argument string.
//
// Outputs:
//   - map[string]any: Decoded arguments.
//   - error: Non-nil if Arguments is not a JSON object.
//
// Thread Safety: This method is safe for concurrent use.
func (f FunctionCall) DecodeArguments() (map[string]any, error) {
	out := make(map[string]any)
	if f.Arguments == "" {
		return out, nil
	}
	dec := json.NewDecoder(strings.NewReader(f.Arguments))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
