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
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultCacheCleanupInterval is how often expired entries are purged.
	DefaultCacheCleanupInterval = 10 * time.Minute

	// MaxCachedQueryLength is the longest query that is memoized. Longer
	// queries are resolved directly.
	MaxCachedQueryLength = 1024
)

// CachingResolver memoizes the results of another resolver by query text.
//
// Description:
//
//	Resolve is a pure function of the query and an immutable registry, so a
//	cached Result is always the Result a fresh call would return. A
//	CachingResolver is bound to one registry; build a new one when the
//	registry is replaced.
//
// Thread Safety: Safe for concurrent use.
type CachingResolver struct {
	next  Resolver
	cache *gocache.Cache
}

// NewCachingResolver wraps next with a TTL cache.
//
// Inputs:
//
//	next - Resolver to memoize. Must not be nil.
//	ttl - Entry lifetime. Must be positive.
func NewCachingResolver(next Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		next:  next,
		cache: gocache.New(ttl, DefaultCacheCleanupInterval),
	}
}

// Resolve returns the cached result for query, resolving it on a miss.
func (c *CachingResolver) Resolve(ctx context.Context, query string) Result {
	if len(query) > MaxCachedQueryLength {
		cacheLookupsTotal.WithLabelValues("bypass").Inc()
		return c.next.Resolve(ctx, query)
	}

	if v, found := c.cache.Get(query); found {
		if res, ok := v.(Result); ok {
			cacheLookupsTotal.WithLabelValues("hit").Inc()
			return res
		}
	}

	cacheLookupsTotal.WithLabelValues("miss").Inc()
	res := c.next.Resolve(ctx, query)
	c.cache.SetDefault(query, res)
	return res
}

// Len returns the number of cached entries, including expired ones not yet
// purged.
func (c *CachingResolver) Len() int {
	return c.cache.ItemCount()
}

// Flush drops every cached entry.
func (c *CachingResolver) Flush() {
	c.cache.Flush()
}
