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
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_Validation(t *testing.T) {
	if _, err := NewWatcher("", func(*Compiled) {}); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewWatcher("x.yaml", nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	if err := os.WriteFile(path, []byte(tinyTemplates), 0o600); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Compiled, 4)
	w, err := NewWatcher(path, func(c *Compiled) { reloaded <- c },
		WithDebounce(20*time.Millisecond),
		WithWatcherLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// A broken file is ignored.
	if err := os.WriteFile(path, []byte("version: 1\nfunctions: ["), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case <-reloaded:
		t.Fatal("invalid file must not be reloaded")
	case <-time.After(200 * time.Millisecond):
	}

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	updated := tinyTemplates + `  - id: t3
    function: get_ticket_status
    pattern: 'Check (\d+)'
    captures: [ticket_id]
`
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-reloaded:
		if c.Registry.Len() != 3 {
			t.Errorf("reloaded Len() = %d, want 3", c.Registry.Len())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_RunStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	w, err := NewWatcher(path, func(*Compiled) {})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}
