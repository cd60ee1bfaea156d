// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"encoding/json"
	"testing"
)

func TestFunctionCall_WireShape(t *testing.T) {
	call := FunctionCall{
		Name:      "get_ticket_status",
		Arguments: `{"ticket_id": 83742}`,
	}

	data, err := json.Marshal(call)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Arguments must be a JSON string, not a nested object.
	want := `{"name":"get_ticket_status","arguments":"{\"ticket_id\": 83742}"}`
	if string(data) != want {
		t.Errorf("wire = %s, want %s", data, want)
	}
}

func TestFunctionCall_DecodeArguments(t *testing.T) {
	call := FunctionCall{
		Name:      "report_office_issue",
		Arguments: `{"issue_code": 45321, "department": "Facilities"}`,
	}

	args, err := call.DecodeArguments()
	if err != nil {
		t.Fatalf("DecodeArguments: %v", err)
	}
	if args["department"] != "Facilities" {
		t.Errorf("department = %v, want Facilities", args["department"])
	}
	num, ok := args["issue_code"].(json.Number)
	if !ok {
		t.Fatalf("issue_code type = %T, want json.Number", args["issue_code"])
	}
	if n, _ := num.Int64(); n != 45321 {
		t.Errorf("issue_code = %d, want 45321", n)
	}
}

func TestFunctionCall_DecodeArguments_Empty(t *testing.T) {
	args, err := FunctionCall{Name: "unknown_function"}.DecodeArguments()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(args) != 0 {
		t.Errorf("expected empty map, got %v", args)
	}
}

func TestFunctionCall_DecodeArguments_Invalid(t *testing.T) {
	_, err := FunctionCall{Name: "x", Arguments: "[1, 2]"}.DecodeArguments()
	if err == nil {
		t.Error("expected error for non-object arguments")
	}
}

func TestToolDef_JSON(t *testing.T) {
	def := ToolDef{
		Type: ToolTypeFunction,
		Function: ToolFunction{
			Name:        "get_ticket_status",
			Description: "Look up a ticket.",
			Parameters: ToolParameters{
				Type: "object",
				Properties: map[string]ToolParamDef{
					"ticket_id": {Type: "integer"},
				},
				Required: []string{"ticket_id"},
			},
		},
	}

	data, err := json.Marshal(def)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "function" {
		t.Errorf("type = %v, want function", decoded["type"])
	}
	fn := decoded["function"].(map[string]any)
	params := fn["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)
	if _, ok := props["ticket_id"]; !ok {
		t.Error("expected ticket_id property")
	}
}
