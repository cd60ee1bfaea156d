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
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingResolver struct {
	calls atomic.Int64
	next  Resolver
}

func (c *countingResolver) Resolve(ctx context.Context, query string) Result {
	c.calls.Add(1)
	return c.next.Resolve(ctx, query)
}

func TestCachingResolver(t *testing.T) {
	counter := &countingResolver{next: newDefaultDispatcher(t)}
	cached := NewCachingResolver(counter, time.Minute)
	ctx := context.Background()

	q := "What is the status of ticket 83742?"
	first := cached.Resolve(ctx, q)
	second := cached.Resolve(ctx, q)
	if first != second {
		t.Errorf("cached result differs: %#v vs %#v", first, second)
	}
	if n := counter.calls.Load(); n != 1 {
		t.Errorf("underlying calls = %d, want 1", n)
	}

	// Negative results are cached too.
	cached.Resolve(ctx, "Make me a sandwich.")
	cached.Resolve(ctx, "Make me a sandwich.")
	if n := counter.calls.Load(); n != 2 {
		t.Errorf("underlying calls = %d, want 2", n)
	}
	if cached.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cached.Len())
	}

	cached.Flush()
	if cached.Len() != 0 {
		t.Errorf("Len() after Flush = %d", cached.Len())
	}
	cached.Resolve(ctx, q)
	if n := counter.calls.Load(); n != 3 {
		t.Errorf("underlying calls after Flush = %d, want 3", n)
	}
}

func TestCachingResolver_LongQueryBypass(t *testing.T) {
	counter := &countingResolver{next: newDefaultDispatcher(t)}
	cached := NewCachingResolver(counter, time.Minute)

	q := strings.Repeat("x", MaxCachedQueryLength+1)
	cached.Resolve(context.Background(), q)
	cached.Resolve(context.Background(), q)
	if n := counter.calls.Load(); n != 2 {
		t.Errorf("underlying calls = %d, want 2", n)
	}
	if cached.Len() != 0 {
		t.Errorf("long query was cached")
	}
}

func TestCachingResolver_Expiry(t *testing.T) {
	counter := &countingResolver{next: newDefaultDispatcher(t)}
	cached := NewCachingResolver(counter, 10*time.Millisecond)

	cached.Resolve(context.Background(), "Emp 1 bonus 2025")
	time.Sleep(30 * time.Millisecond)
	cached.Resolve(context.Background(), "Emp 1 bonus 2025")
	if n := counter.calls.Load(); n != 2 {
		t.Errorf("underlying calls = %d, want 2 after expiry", n)
	}
}
