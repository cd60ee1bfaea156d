// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"net/http"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
	"github.com/AleutianAI/AleutianDispatch/services/llm"
)

const (
	// UnknownFunctionName is reported when no template matches.
	UnknownFunctionName = "unknown_function"

	// NoMatchMessage is the error text of a NoMatch response.
	NoMatchMessage = "Query did not match any known function template."

	// ExtractionErrorPrefix prefixes the message of an ExtractionFailed
	// response.
	ExtractionErrorPrefix = "Error processing query: "

	// RootMessage is returned by GET /.
	RootMessage = "TechNova Digital Assistant API is running."
)

// Error codes used in ErrorResponse.Code.
const (
	CodeMissingParameter = "MISSING_PARAMETER"
	CodeNotReady         = "NOT_READY"
	CodeRateLimited      = "RATE_LIMITED"
)

// ErrorResponse is the body of error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NoMatchResponse is the body of a 404 from /execute. It keeps the function
// call shape so clients can treat it uniformly.
type NoMatchResponse struct {
	llm.FunctionCall
	Error string `json:"error"`
}

// MessageResponse is the body of GET /.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Templates int    `json:"templates"`
}

// ReadyResponse is the body of GET /ready.
type ReadyResponse struct {
	Ready     bool   `json:"ready"`
	Templates int    `json:"templates"`
	Source    string `json:"source,omitempty"`
	LoadedAt  string `json:"loaded_at,omitempty"`
}

// FunctionsResponse is the body of GET /functions.
type FunctionsResponse struct {
	Tools []llm.ToolDef `json:"tools"`
}

// TemplateInfo describes one registered template.
type TemplateInfo struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	Function string `json:"function"`
	Pattern  string `json:"pattern"`
	Example  string `json:"example,omitempty"`
}

// TemplatesResponse is the body of GET /templates.
type TemplatesResponse struct {
	Count     int            `json:"count"`
	Templates []TemplateInfo `json:"templates"`
}

// Payload maps a resolution result to its HTTP status and response body.
//
// Description:
//
//	Matched → 200 {"name", "arguments"} where arguments is the encoded
//	argument string. ExtractionFailed → 400 {"error"}. NoMatch → 404 with
//	the unknown_function call shape and an error message.
func Payload(res dispatch.Result) (int, any) {
	switch r := res.(type) {
	case dispatch.Matched:
		return http.StatusOK, llm.FunctionCall{Name: r.FunctionName, Arguments: r.Arguments}
	case dispatch.ExtractionFailed:
		return http.StatusBadRequest, ErrorResponse{Error: ExtractionErrorPrefix + r.Message}
	default:
		return http.StatusNotFound, NoMatchResponse{
			FunctionCall: llm.FunctionCall{Name: UnknownFunctionName, Arguments: "{}"},
			Error:        NoMatchMessage,
		}
	}
}
