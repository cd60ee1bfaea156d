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
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long the watcher waits for writes to settle.
const DefaultReloadDebounce = 250 * time.Millisecond

// ReloadFunc receives each successfully compiled registry.
type ReloadFunc func(*Compiled)

// Watcher recompiles a template file when it changes on disk.
//
// Description:
//
//	Watches the directory holding the file (editors often replace files by
//	rename) and debounces bursts of events. Each settled change recompiles
//	the file. A successful compile is handed to the ReloadFunc; a failed one
//	is logged and the previous registry stays in service.
//
// Thread Safety: Run must be called once. The ReloadFunc is called from the
// Run goroutine.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
}

// WatcherOption customizes a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides DefaultReloadDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithWatcherLogger sets the logger. Defaults to slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher for path.
//
// Inputs:
//
//	path - Template file to watch. Must not be empty.
//	onReload - Called with every successful recompile. Must not be nil.
//
// Outputs:
//
//	*Watcher - Ready to Run.
//	error - Non-nil if the directory cannot be watched.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("NewWatcher: path must not be empty")
	}
	if onReload == nil {
		return nil, fmt.Errorf("NewWatcher: onReload must not be nil")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("NewWatcher: resolving %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		path:     abs,
		debounce: DefaultReloadDebounce,
		onReload: onReload,
		fsw:      fsw,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes file events until ctx is cancelled, then closes the
// underlying watcher. Always returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.isRelevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("template watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return abs == w.path
}

func (w *Watcher) reload(ctx context.Context) {
	compiled, err := CompileFile(ctx, w.path)
	recordReload(ctx, err)
	if err != nil {
		w.logger.Warn("template reload failed; keeping previous registry",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}
	w.logger.Info("templates reloaded",
		slog.String("path", w.path),
		slog.Int("templates", compiled.Registry.Len()),
	)
	w.onReload(compiled)
}
