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
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch/functions"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/templates"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newDefaultDispatcher(t testing.TB) *Dispatcher {
	t.Helper()
	compiled, err := templates.CompileDefault(context.Background())
	if err != nil {
		t.Fatalf("CompileDefault: %v", err)
	}
	d, err := NewFromCompiled(compiled, WithLogger(discardLogger))
	if err != nil {
		t.Fatalf("NewFromCompiled: %v", err)
	}
	return d
}

func mustMapping(t testing.TB, schema functions.Schema, captures ...string) *templates.FieldMapping {
	t.Helper()
	m, err := templates.NewFieldMapping(schema, captures, len(captures))
	if err != nil {
		t.Fatalf("NewFieldMapping: %v", err)
	}
	return m
}

var ticketSchema = functions.Schema{
	Name:   "get_ticket_status",
	Params: []functions.Param{{Name: "ticket_id", Type: functions.ArgInteger}},
}

// =============================================================================
// Resolve Tests
// =============================================================================

func TestResolve_Scenarios(t *testing.T) {
	d := newDefaultDispatcher(t)

	tests := []struct {
		query    string
		function string
		args     string
		template string
	}{
		{
			query:    "What is the status of ticket 83742?",
			function: "get_ticket_status",
			args:     `{"ticket_id": 83742}`,
			template: "ticket_status_canonical",
		},
		{
			query:    "Schedule a meeting on 2025-02-15 at 14:00 in Room A.",
			function: "schedule_meeting",
			args:     `{"date": "2025-02-15", "time": "14:00", "meeting_room": "Room A"}`,
			template: "schedule_meeting_canonical",
		},
		{
			query:    "Show my expense balance for employee 10056.",
			function: "get_expense_balance",
			args:     `{"employee_id": 10056}`,
			template: "expense_balance_canonical",
		},
		{
			query:    "Calculate performance bonus for employee 10056 for 2025.",
			function: "calculate_performance_bonus",
			args:     `{"employee_id": 10056, "current_year": 2025}`,
			template: "performance_bonus_canonical",
		},
		{
			query:    "Report office issue 45321 for the Facilities department.",
			function: "report_office_issue",
			args:     `{"issue_code": 45321, "department": "Facilities"}`,
			template: "office_issue_canonical",
		},
		{
			query:    "Report office issue 1 for the Caf\u00e9 department.",
			function: "report_office_issue",
			args:     `{"issue_code": 1, "department": "Caf\u00e9"}`,
			template: "office_issue_canonical",
		},
		{
			query:    "Report office issue 2 for the Ingenier\u00eda Civil department.",
			function: "report_office_issue",
			args:     `{"issue_code": 2, "department": "Ingenier\u00eda Civil"}`,
			template: "office_issue_canonical",
		},
		{
			query:    "Schedule meeting on 2025-02-15 in Room A at 14:00.",
			function: "schedule_meeting",
			args:     `{"date": "2025-02-15", "time": "14:00", "meeting_room": "Room A"}`,
			template: "schedule_meeting_room_before_time",
		},
		{
			query:    "What's the status of ticket 83742?",
			function: "get_ticket_status",
			args:     `{"ticket_id": 83742}`,
			template: "ticket_status_whats",
		},
		{
			query:    "Report office issue 45321 for Facilities",
			function: "report_office_issue",
			args:     `{"issue_code": 45321, "department": "Facilities"}`,
			template: "office_issue_report_for",
		},
		{
			query:    "Report: issue 7, department Caf\u00e9",
			function: "report_office_issue",
			args:     `{"issue_code": 7, "department": "Caf\u00e9"}`,
			template: "office_issue_labelled",
		},
		{
			query:    "Ticket 0042 status?",
			function: "get_ticket_status",
			args:     `{"ticket_id": 42}`,
			template: "ticket_status_short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := d.Resolve(context.Background(), tt.query)
			m, ok := res.(Matched)
			if !ok {
				t.Fatalf("Resolve(%q) = %#v, want Matched", tt.query, res)
			}
			if m.FunctionName != tt.function {
				t.Errorf("FunctionName = %s, want %s", m.FunctionName, tt.function)
			}
			if m.Arguments != tt.args {
				t.Errorf("Arguments = %s, want %s", m.Arguments, tt.args)
			}
			if m.TemplateID != tt.template {
				t.Errorf("TemplateID = %s, want %s", m.TemplateID, tt.template)
			}
			if m.Outcome() != OutcomeMatched {
				t.Errorf("Outcome() = %s", m.Outcome())
			}
		})
	}
}

func TestResolve_NoMatch(t *testing.T) {
	d := newDefaultDispatcher(t)

	queries := []string{
		"Make me a sandwich.",
		"",
		"What is the status of ticket 83742? Thanks.",
		"Please: What is the status of ticket 83742?",
		"What is the status of ticket abc?",
		"what is the status of ticket 83742?",
		"Ticket 83742 status?\n",
	}
	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			res := d.Resolve(context.Background(), q)
			if _, ok := res.(NoMatch); !ok {
				t.Errorf("Resolve(%q) = %#v, want NoMatch", q, res)
			}
			if res.Outcome() != OutcomeNoMatch {
				t.Errorf("Outcome() = %s", res.Outcome())
			}
		})
	}
}

func TestResolve_ExtractionFailedCommits(t *testing.T) {
	d := newDefaultDispatcher(t)

	res := d.Resolve(context.Background(), "What is the status of ticket 99999999999999999999?")
	ef, ok := res.(ExtractionFailed)
	if !ok {
		t.Fatalf("got %#v, want ExtractionFailed", res)
	}
	if ef.TemplateID != "ticket_status_canonical" || ef.FunctionName != "get_ticket_status" {
		t.Errorf("failed template = %s/%s", ef.FunctionName, ef.TemplateID)
	}
	if !strings.Contains(ef.Message, "ticket_id") || !strings.Contains(ef.Message, "out of range") {
		t.Errorf("Message = %q", ef.Message)
	}
}

// A later template that would succeed must not be tried once an earlier one
// matched and failed.
func TestResolve_NoBacktrackingAfterFailure(t *testing.T) {
	r := templates.NewRegistry()
	r.MustRegister(`Ticket (\w+)`, ticketSchema.Name, mustMapping(t, ticketSchema, "ticket_id"), templates.WithID("loose"))
	r.MustRegister(`Ticket (\d+)`, ticketSchema.Name, mustMapping(t, ticketSchema, "ticket_id"), templates.WithID("strict"))
	d, err := New(r, WithLogger(discardLogger))
	if err != nil {
		t.Fatal(err)
	}

	res := d.Resolve(context.Background(), "Ticket x1")
	if ef, ok := res.(ExtractionFailed); !ok || ef.TemplateID != "loose" {
		t.Errorf("got %#v, want ExtractionFailed from loose", res)
	}

	res = d.Resolve(context.Background(), "Ticket 12")
	if m, ok := res.(Matched); !ok || m.TemplateID != "loose" {
		t.Errorf("got %#v, want Matched from loose", res)
	}
}

func TestResolve_OrderSensitive(t *testing.T) {
	first := templates.ExtractorFunc(func(templates.Captures) (templates.Arguments, error) {
		return templates.Arguments{{Name: "by", Value: "first"}}, nil
	})
	second := templates.ExtractorFunc(func(templates.Captures) (templates.Arguments, error) {
		return templates.Arguments{{Name: "by", Value: "second"}}, nil
	})

	r := templates.NewRegistry()
	r.MustRegister(`Report issue \d+ for the \w+ department\.`, "narrow", first)
	r.MustRegister(`Report issue \d+ for .+`, "broad", second)
	d, _ := New(r, WithLogger(discardLogger))

	res := d.Resolve(context.Background(), "Report issue 1 for the HR department.")
	if m, ok := res.(Matched); !ok || m.FunctionName != "narrow" || m.Arguments != `{"by": "first"}` {
		t.Errorf("got %#v, want narrow", res)
	}
	res = d.Resolve(context.Background(), "Report issue 1 for HR")
	if m, ok := res.(Matched); !ok || m.FunctionName != "broad" {
		t.Errorf("got %#v, want broad", res)
	}
}

func TestResolve_RecoversExtractorPanic(t *testing.T) {
	r := templates.NewRegistry()
	r.MustRegister(`boom`, "explode", templates.ExtractorFunc(func(templates.Captures) (templates.Arguments, error) {
		panic("kaboom")
	}))
	d, _ := New(r, WithLogger(discardLogger))

	res := d.Resolve(context.Background(), "boom")
	ef, ok := res.(ExtractionFailed)
	if !ok {
		t.Fatalf("got %#v, want ExtractionFailed", res)
	}
	if !strings.Contains(ef.Message, "kaboom") {
		t.Errorf("Message = %q", ef.Message)
	}
}

func TestResolve_UnencodableArguments(t *testing.T) {
	r := templates.NewRegistry()
	r.MustRegister(`f`, "float", templates.ExtractorFunc(func(templates.Captures) (templates.Arguments, error) {
		return templates.Arguments{{Name: "x", Value: 1.5}}, nil
	}))
	d, _ := New(r, WithLogger(discardLogger))

	if _, ok := d.Resolve(context.Background(), "f").(ExtractionFailed); !ok {
		t.Error("expected ExtractionFailed for unsupported value type")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil registry")
	}
	if _, err := NewFromCompiled(nil); err == nil {
		t.Error("expected error for nil compiled templates")
	}

	r := templates.NewRegistry()
	d, err := New(r)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Frozen() {
		t.Error("New must freeze the registry")
	}
	if d.Registry() != r || d.Catalog() != nil {
		t.Error("unexpected accessors")
	}
	if _, ok := d.Resolve(context.Background(), "anything").(NoMatch); !ok {
		t.Error("empty registry must resolve to NoMatch")
	}
}

func TestResolve_Concurrent(t *testing.T) {
	d := newDefaultDispatcher(t)

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				q := fmt.Sprintf("Emp %d bonus %d", i, 2000+j)
				want := fmt.Sprintf(`{"employee_id": %d, "current_year": %d}`, i, 2000+j)
				m, ok := d.Resolve(context.Background(), q).(Matched)
				if !ok || m.Arguments != want {
					errs <- q
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for q := range errs {
		t.Errorf("wrong result for %q", q)
	}
}

// =============================================================================
// Properties
// =============================================================================

func TestResolve_IdempotentProperty(t *testing.T) {
	d := newDefaultDispatcher(t)

	rapid.Check(t, func(rt *rapid.T) {
		emp := rapid.Int64Range(0, 1<<40).Draw(rt, "emp")
		year := rapid.IntRange(1900, 2100).Draw(rt, "year")
		q := fmt.Sprintf("Bonus details for employee %d for %d", emp, year)

		a := d.Resolve(context.Background(), q)
		b := d.Resolve(context.Background(), q)
		if a != b {
			rt.Fatalf("Resolve not idempotent: %#v vs %#v", a, b)
		}
		want := fmt.Sprintf(`{"employee_id": %d, "current_year": %d}`, emp, year)
		if m, ok := a.(Matched); !ok || m.Arguments != want {
			rt.Fatalf("Resolve(%q) = %#v, want %s", q, a, want)
		}
	})
}

func TestResolve_AnchoringProperty(t *testing.T) {
	r := templates.NewRegistry()
	r.MustRegister(`Ticket (\d+) status\?`, ticketSchema.Name, mustMapping(t, ticketSchema, "ticket_id"))
	d, _ := New(r, WithLogger(discardLogger))

	rapid.Check(t, func(rt *rapid.T) {
		id := rapid.IntRange(0, 1_000_000).Draw(rt, "id")
		prefix := rapid.StringMatching(`[ a-zA-Z:!.]{0,6}`).Draw(rt, "prefix")
		suffix := rapid.StringMatching(`[ a-zA-Z!.?]{0,6}`).Draw(rt, "suffix")
		q := fmt.Sprintf("%sTicket %d status?%s", prefix, id, suffix)

		res := d.Resolve(context.Background(), q)
		_, matched := res.(Matched)
		exact := prefix == "" && suffix == ""
		if matched != exact {
			rt.Fatalf("Resolve(%q) matched=%v, want %v", q, matched, exact)
		}
	})
}

// =============================================================================
// Tracing
// =============================================================================

var (
	testExporterOnce sync.Once
	testExporter     *tracetest.InMemoryExporter
)

// spanExporter installs one in-memory exporter for the whole package: the
// package-level tracer binds to the first global provider it sees.
func spanExporter(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	testExporterOnce.Do(func() {
		testExporter = tracetest.NewInMemoryExporter()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSyncer(testExporter)))
	})
	testExporter.Reset()
	return testExporter
}

func TestResolve_Span(t *testing.T) {
	exporter := spanExporter(t)
	d := newDefaultDispatcher(t)

	d.Resolve(context.Background(), "Emp 10056 bonus 2025")

	var found bool
	for _, s := range exporter.GetSpans() {
		if s.Name != "dispatch.Resolve" {
			continue
		}
		found = true
		attrs := make(map[string]string)
		for _, kv := range s.Attributes {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		if attrs["dispatch.outcome"] != "matched" {
			t.Errorf("outcome = %q", attrs["dispatch.outcome"])
		}
		if attrs["dispatch.function"] != "calculate_performance_bonus" {
			t.Errorf("function = %q", attrs["dispatch.function"])
		}
		if attrs["dispatch.template_id"] != "performance_bonus_terse" {
			t.Errorf("template_id = %q", attrs["dispatch.template_id"])
		}
	}
	if !found {
		t.Fatal("dispatch.Resolve span not recorded")
	}
}
