package cache

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests step time across TTL boundaries.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestCache() (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := New(DefaultTTLs(), nil)
	c.now = clock.now
	return c, clock
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c, _ := newTestCache()
	if _, ok := c.Get("nope"); ok {
		t.Error("Get on unknown key returned a hit")
	}
}

func TestCache_TTLBoundary(t *testing.T) {
	tests := []struct {
		name  string
		class Class
		ttl   time.Duration
	}{
		{"live", ClassLive, 60 * time.Second},
		{"historical", ClassHistorical, 5 * time.Minute},
		{"news", ClassNews, 15 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestCache()
			payload := json.RawMessage(`{"v":1}`)
			c.Put("k", payload, tt.class)

			// One millisecond before expiry: hit.
			clock.advance(tt.ttl - time.Millisecond)
			got, ok := c.Get("k")
			if !ok {
				t.Fatalf("Get at TTL-1ms returned miss, want hit")
			}
			if string(got) != string(payload) {
				t.Errorf("payload = %s, want %s", got, payload)
			}

			// Two more milliseconds: past expiry, miss.
			clock.advance(2 * time.Millisecond)
			if _, ok := c.Get("k"); ok {
				t.Error("Get at TTL+1ms returned hit, want miss")
			}
		})
	}
}

func TestCache_PutOverwrites(t *testing.T) {
	c, clock := newTestCache()

	c.Put("k", json.RawMessage(`1`), ClassLive)
	clock.advance(59 * time.Second)
	c.Put("k", json.RawMessage(`2`), ClassLive)

	// The refresh resets the clock for the entry.
	clock.advance(59 * time.Second)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("refreshed entry expired too early")
	}
	if string(got) != "2" {
		t.Errorf("payload = %s, want 2", got)
	}
}

func TestCache_StaleEntryNotPurged(t *testing.T) {
	c, clock := newTestCache()
	c.Put("k", json.RawMessage(`1`), ClassLive)
	clock.advance(time.Hour)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry served")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (stale entries are ignored, not purged)", c.Len())
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c, _ := newTestCache()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				c.Put("shared", json.RawMessage(`{"x":1}`), ClassLive)
				c.Get("shared")
			}
		}()
	}
	wg.Wait()

	if _, ok := c.Get("shared"); !ok {
		t.Error("shared key missing after concurrent writes")
	}
}

func TestKey(t *testing.T) {
	if got := Key("crypto"); got != "crypto" {
		t.Errorf("Key() = %q", got)
	}
	if got := Key("crypto_history", "bitcoin", "7"); got != "crypto_history:bitcoin:7" {
		t.Errorf("Key() = %q", got)
	}
}
