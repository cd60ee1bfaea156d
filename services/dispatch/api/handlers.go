// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes the dispatcher over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
	"github.com/AleutianAI/AleutianDispatch/services/llm"
)

// Handlers serves the dispatch endpoints from a Provider.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	provider *Provider
	logger   *slog.Logger
}

// NewHandlers creates handlers reading the current snapshot from provider.
// A nil logger uses slog.Default().
func NewHandlers(provider *Provider, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{provider: provider, logger: logger}
}

// HandleExecute handles GET /execute.
//
// Description:
//
//	Resolves the q query parameter. The parameter must be present; an empty
//	value is a valid (unmatched) query.
//
// Query Parameters:
//
//	q: Free-form query text (required)
//
// Response:
//
//	200 OK: {"name": ..., "arguments": "<encoded arguments>"}
//	400 Bad Request: {"error": "Error processing query: ..."}
//	404 Not Found: {"name": "unknown_function", "arguments": "{}", "error": ...}
//	422 Unprocessable Entity: q missing
//	503 Service Unavailable: no templates loaded
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleExecute(c *gin.Context) {
	logger := h.logger.With("request_id", RequestID(c), "handler", "HandleExecute")
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		logger = logger.With("trace_id", sc.TraceID().String())
	}

	query, ok := c.GetQuery("q")
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: "q parameter is required",
			Code:  CodeMissingParameter,
		})
		return
	}

	snap := h.provider.Load()
	if snap == nil {
		logger.Warn("execute rejected: no templates loaded")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "templates not loaded",
			Code:  CodeNotReady,
		})
		return
	}

	res := snap.Resolver.Resolve(c.Request.Context(), query)
	status, body := Payload(res)

	switch r := res.(type) {
	case dispatch.Matched:
		logger.Info("query resolved",
			slog.String("function", r.FunctionName),
			slog.String("template_id", r.TemplateID),
		)
	case dispatch.ExtractionFailed:
		logger.Warn("query extraction failed",
			slog.String("template_id", r.TemplateID),
			slog.String("error", dispatch.RedactQuery(r.Message)),
		)
	default:
		logger.Info("query matched no template",
			slog.Int("query_length", len(query)),
			slog.String("query", dispatch.RedactQuery(query)),
		)
	}

	c.JSON(status, body)
}

// HandleRoot handles GET /.
func (h *Handlers) HandleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, MessageResponse{Message: RootMessage})
}

// HandleHealth handles GET /health. Liveness only; always 200.
func (h *Handlers) HandleHealth(c *gin.Context) {
	n := 0
	if snap := h.provider.Load(); snap != nil {
		n = snap.Dispatcher.Registry().Len()
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Templates: n})
}

// HandleReady handles GET /ready.
//
// Response:
//
//	200 OK: a registry is loaded
//	503 Service Unavailable: nothing loaded yet
func (h *Handlers) HandleReady(c *gin.Context) {
	snap := h.provider.Load()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, ReadyResponse{Ready: false})
		return
	}
	c.JSON(http.StatusOK, ReadyResponse{
		Ready:     true,
		Templates: snap.Dispatcher.Registry().Len(),
		Source:    snap.Source,
		LoadedAt:  snap.LoadedAt.Format(time.RFC3339),
	})
}

// HandleFunctions handles GET /functions: the catalog as tool definitions.
func (h *Handlers) HandleFunctions(c *gin.Context) {
	snap := h.provider.Load()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "templates not loaded", Code: CodeNotReady})
		return
	}
	tools := []llm.ToolDef{}
	if cat := snap.Dispatcher.Catalog(); cat != nil {
		tools = cat.ToolDefs()
	}
	c.JSON(http.StatusOK, FunctionsResponse{Tools: tools})
}

// HandleTemplates handles GET /templates: the registry in scan order.
func (h *Handlers) HandleTemplates(c *gin.Context) {
	snap := h.provider.Load()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "templates not loaded", Code: CodeNotReady})
		return
	}
	reg := snap.Dispatcher.Registry()
	infos := make([]TemplateInfo, 0, reg.Len())
	for i, t := range reg.All() {
		infos = append(infos, TemplateInfo{
			Index:    i,
			ID:       t.ID,
			Function: t.FunctionName,
			Pattern:  t.Pattern,
			Example:  t.Example,
		})
	}
	c.JSON(http.StatusOK, TemplatesResponse{Count: len(infos), Templates: infos})
}
