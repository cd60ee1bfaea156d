// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracing_None(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), Config{Exporter: "none"})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracing_Unknown(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), Config{Exporter: "zipkin"})
	if err == nil {
		t.Fatal("expected error for unknown exporter")
	}
	if shutdown == nil {
		t.Fatal("shutdown must never be nil")
	}
}

func TestInitTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), Config{Exporter: "stdout", Writer: &buf})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "sample-span")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), `"sample-span"`) {
		t.Errorf("span not exported; output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), DefaultServiceName) {
		t.Errorf("service name missing from resource")
	}
}
