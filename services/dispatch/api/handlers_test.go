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
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/templates"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestSnapshot(t *testing.T, cacheTTL time.Duration) *Snapshot {
	t.Helper()
	compiled, err := templates.CompileDefault(context.Background())
	require.NoError(t, err)
	d, err := dispatch.NewFromCompiled(compiled, dispatch.WithLogger(quietLogger))
	require.NoError(t, err)
	return NewSnapshot(d, "embedded", cacheTTL)
}

func newTestRouter(t *testing.T, cfg RouterConfig, snap *Snapshot) *gin.Engine {
	t.Helper()
	return NewRouter(cfg, NewHandlers(NewProvider(snap), quietLogger))
}

func get(t *testing.T, r http.Handler, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func executeURL(q string) string {
	return "/execute?q=" + url.QueryEscape(q)
}

// =============================================================================
// /execute
// =============================================================================

func TestHandleExecute_Matched(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))

	tests := []struct {
		query string
		body  string
	}{
		{
			"What is the status of ticket 83742?",
			`{"name":"get_ticket_status","arguments":"{\"ticket_id\": 83742}"}`,
		},
		{
			"Schedule a meeting on 2025-02-15 at 14:00 in Room A.",
			`{"name":"schedule_meeting","arguments":"{\"date\": \"2025-02-15\", \"time\": \"14:00\", \"meeting_room\": \"Room A\"}"}`,
		},
		{
			"Calculate performance bonus for employee 10056 for 2025.",
			`{"name":"calculate_performance_bonus","arguments":"{\"employee_id\": 10056, \"current_year\": 2025}"}`,
		},
		{
			"Report office issue 45321 for the Facilities department.",
			`{"name":"report_office_issue","arguments":"{\"issue_code\": 45321, \"department\": \"Facilities\"}"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, r, executeURL(tt.query))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestHandleExecute_ArgumentsIsString(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))
	w := get(t, r, executeURL("Emp 10056 bonus 2025"))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	args, ok := body["arguments"].(string)
	require.True(t, ok, "arguments must be a JSON string, got %T", body["arguments"])
	assert.Equal(t, `{"employee_id": 10056, "current_year": 2025}`, args)
}

func TestHandleExecute_NoMatch(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))

	for _, q := range []string{"Make me a sandwich.", ""} {
		w := get(t, r, executeURL(q))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t,
			`{"name":"unknown_function","arguments":"{}","error":"Query did not match any known function template."}`,
			w.Body.String())
	}
}

func TestHandleExecute_ExtractionFailed(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))

	w := get(t, r, executeURL("What is the status of ticket 99999999999999999999?"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Error, "Error processing query: "), body.Error)
	assert.Contains(t, body.Error, "ticket_id")
	assert.NotContains(t, w.Body.String(), `"code"`)
}

func TestHandleExecute_MissingQuery(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))
	w := get(t, r, "/execute")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"q parameter is required","code":"MISSING_PARAMETER"}`, w.Body.String())
}

func TestHandleExecute_NotReady(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), nil)
	w := get(t, r, executeURL("What is the status of ticket 1?"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleExecute_Cached(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, time.Minute))
	for i := 0; i < 3; i++ {
		w := get(t, r, executeURL("Ticket 83742 status?"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"name":"get_ticket_status","arguments":"{\"ticket_id\": 83742}"}`, w.Body.String())
	}
}

// =============================================================================
// Discovery and health
// =============================================================================

func TestHandleRoot(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))
	w := get(t, r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"TechNova Digital Assistant API is running."}`, w.Body.String())
}

func TestHandleHealthAndReady(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))

	w := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","templates":35}`, w.Body.String())

	w = get(t, r, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	var ready ReadyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.True(t, ready.Ready)
	assert.Equal(t, 35, ready.Templates)
	assert.Equal(t, "embedded", ready.Source)

	empty := newTestRouter(t, DefaultRouterConfig(), nil)
	assert.Equal(t, http.StatusOK, get(t, empty, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, empty, "/ready").Code)
}

func TestHandleFunctions(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))
	w := get(t, r, "/functions")
	require.Equal(t, http.StatusOK, w.Code)

	var body FunctionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tools, 5)
	assert.Equal(t, "get_ticket_status", body.Tools[0].Function.Name)
	assert.Equal(t, []string{"date", "time", "meeting_room"}, body.Tools[1].Function.Parameters.Required)
}

func TestHandleTemplates(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))
	w := get(t, r, "/templates")
	require.Equal(t, http.StatusOK, w.Code)

	var body TemplatesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 35, body.Count)
	require.Len(t, body.Templates, 35)
	assert.Equal(t, "ticket_status_canonical", body.Templates[0].ID)
	assert.Equal(t, 34, body.Templates[34].Index)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, DefaultRouterConfig(), newTestSnapshot(t, 0))
	get(t, r, executeURL("Make me a sandwich."))

	w := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dispatch_resolve_total")
	assert.Contains(t, w.Body.String(), "dispatch_http_requests_total")
}

// =============================================================================
// Reload
// =============================================================================

func TestProvider_SwapServesNewSnapshot(t *testing.T) {
	provider := NewProvider(newTestSnapshot(t, time.Minute))
	r := NewRouter(DefaultRouterConfig(), NewHandlers(provider, quietLogger))

	q := executeURL("Lookup ticket 5")
	assert.Equal(t, http.StatusNotFound, get(t, r, q).Code)

	reg := templates.NewRegistry()
	reg.MustRegister(`Lookup ticket (\d+)`, "get_ticket_status",
		templates.ExtractorFunc(func(c templates.Captures) (templates.Arguments, error) {
			g, _ := c.Group(1)
			return templates.Arguments{{Name: "ticket_id", Value: g}}, nil
		}))
	d, err := dispatch.New(reg, dispatch.WithLogger(quietLogger))
	require.NoError(t, err)
	provider.Store(NewSnapshot(d, "reloaded", time.Minute))

	w := get(t, r, q)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"get_ticket_status","arguments":"{\"ticket_id\": \"5\"}"}`, w.Body.String())
}

func TestPayload(t *testing.T) {
	status, body := Payload(dispatch.Matched{FunctionName: "f", Arguments: `{"a": 1}`})
	assert.Equal(t, http.StatusOK, status)
	data, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"f","arguments":"{\"a\": 1}"}`, string(data))

	status, _ = Payload(dispatch.ExtractionFailed{Message: "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = Payload(dispatch.NoMatch{})
	assert.Equal(t, http.StatusNotFound, status)
}
