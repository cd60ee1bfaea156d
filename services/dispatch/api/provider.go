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
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
)

// Snapshot is one loaded registry and the resolver serving it.
//
// Thread Safety: Immutable after NewSnapshot.
type Snapshot struct {
	Dispatcher *dispatch.Dispatcher
	Resolver   dispatch.Resolver
	Source     string
	LoadedAt   time.Time
}

// NewSnapshot wraps d for serving. A positive cacheTTL memoizes results.
//
// Inputs:
//
//	d - Dispatcher. Must not be nil.
//	source - Where the templates came from, for diagnostics.
//	cacheTTL - Result cache lifetime; 0 disables the cache.
func NewSnapshot(d *dispatch.Dispatcher, source string, cacheTTL time.Duration) *Snapshot {
	var r dispatch.Resolver = d
	if cacheTTL > 0 {
		r = dispatch.NewCachingResolver(d, cacheTTL)
	}
	return &Snapshot{
		Dispatcher: d,
		Resolver:   r,
		Source:     source,
		LoadedAt:   time.Now().UTC(),
	}
}

// Provider holds the snapshot currently in service.
//
// Description:
//
//	Reloads replace the whole snapshot. A request loads the pointer once
//	and keeps using that snapshot even if a reload lands mid-request.
//
// Thread Safety: Safe for concurrent use.
type Provider struct {
	current atomic.Pointer[Snapshot]
}

// NewProvider creates a provider, optionally seeded with s.
func NewProvider(s *Snapshot) *Provider {
	p := &Provider{}
	if s != nil {
		p.current.Store(s)
	}
	return p
}

// Load returns the current snapshot, or nil before the first Store.
func (p *Provider) Load() *Snapshot {
	return p.current.Load()
}

// Store replaces the current snapshot.
func (p *Provider) Store(s *Snapshot) {
	p.current.Store(s)
}
