package cache

import (
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Hour)
	if _, ok := c.Get("trainers"); ok {
		t.Error("Get() on empty cache reported a hit")
	}
	c.Set("trainers", []string{"marcus", "dana"})
	got, ok := c.Get("trainers")
	if !ok {
		t.Fatal("Get() missed a stored key")
	}
	if rows := got.([]string); len(rows) != 2 {
		t.Errorf("Get() = %v", rows)
	}
}

func TestFlush(t *testing.T) {
	c := New(time.Hour)
	c.Set("trainers", 1)
	c.Set("reviewers", 2)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	c.Flush()
	if c.Len() != 0 {
		t.Errorf("Len() after Flush = %d, want 0", c.Len())
	}
	if _, ok := c.Get("trainers"); ok {
		t.Error("Get() hit after Flush")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := New(time.Hour)
	clock := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("trainers", 1)
	clock = clock.Add(59 * time.Minute)
	if _, ok := c.Get("trainers"); !ok {
		t.Error("entry expired before its TTL")
	}
	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get("trainers"); ok {
		t.Error("entry survived past its TTL")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry still counted: Len() = %d", c.Len())
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New(0)
	clock := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("trainers", 1)
	clock = clock.Add(1000 * time.Hour)
	if _, ok := c.Get("trainers"); !ok {
		t.Error("entry expired with expiry disabled")
	}
}
