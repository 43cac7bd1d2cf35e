// Harborcast - Empty Container Forecasting and Repositioning Analytics
// Copyright 2026 Harborcast Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborcast/harborcast

package cache

import (
	"bytes"
	"fmt"
	"testing"
	"time"
)

func TestLRUGetSet(t *testing.T) {
	t.Parallel()

	c := NewLRU(10)
	c.Set("a", []byte("alpha"), time.Minute)

	got, ok := c.Get("a")
	if !ok || !bytes.Equal(got, []byte("alpha")) {
		t.Errorf("Get(a) = %q, %v", got, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) must miss")
	}

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

func TestLRUEvictsExactlyOldest(t *testing.T) {
	t.Parallel()

	c := NewLRU(3)
	for _, k := range []string{"a", "b", "c"} {
		c.Set(k, []byte(k), time.Minute)
	}

	// Touch "a" so "b" becomes the least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("d", []byte("d"), time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("b was least recently used and must have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s must survive the eviction", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want capacity 3", c.Len())
	}
}

func TestLRUUpdateRefreshesEntry(t *testing.T) {
	t.Parallel()

	c := NewLRU(2)
	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Set("a", []byte("3"), time.Minute) // refresh, "b" is now oldest
	c.Set("c", []byte("4"), time.Minute)

	if _, ok := c.Get("b"); ok {
		t.Error("b must have been evicted after a's refresh")
	}
	got, ok := c.Get("a")
	if !ok || string(got) != "3" {
		t.Errorf("Get(a) = %q, %v; want updated value", got, ok)
	}
}

func TestLRUTTLExpiryRemovesEntry(t *testing.T) {
	t.Parallel()

	c := NewLRU(10)
	c.Set("short", []byte("x"), 10*time.Millisecond)
	c.Set("long", []byte("y"), time.Minute)

	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expired entry must miss")
	}
	// Lazy expiration deletes the entry on access.
	if c.Len() != 1 {
		t.Errorf("Len() = %d after expiry access, want 1", c.Len())
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("unexpired entry must survive")
	}
}

func TestLRUZeroTTLIgnored(t *testing.T) {
	t.Parallel()

	c := NewLRU(10)
	c.Set("a", []byte("x"), 0)
	if c.Len() != 0 {
		t.Error("zero TTL writes must be dropped")
	}
}

func TestLRURemoveAndClear(t *testing.T) {
	t.Parallel()

	c := NewLRU(10)
	c.Set("a", []byte("x"), time.Minute)
	c.Set("b", []byte("y"), time.Minute)

	if !c.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Clear must drop every entry")
	}
}

func TestLRUDefaultCapacity(t *testing.T) {
	t.Parallel()

	c := NewLRU(0)
	for i := 0; i < DefaultCapacity+20; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"), time.Minute)
	}
	if c.Len() != DefaultCapacity {
		t.Errorf("Len() = %d, want default capacity %d", c.Len(), DefaultCapacity)
	}
}
