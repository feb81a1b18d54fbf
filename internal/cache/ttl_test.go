package cache

import (
	"testing"
	"time"
)

func TestSetGetExpire(t *testing.T) {
	c := New[string](time.Minute)
	defer c.Stop()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("clinic:1", "A")
	if v, ok := c.Get("clinic:1"); !ok || v != "A" {
		t.Fatalf("Get: %q %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("clinic:1"); ok {
		t.Fatal("entry must expire after ttl")
	}
}

func TestDeleteAndPrefix(t *testing.T) {
	c := New[int](time.Minute)
	defer c.Stop()
	c.Set("clinic:1", 1)
	c.Set("clinic:2", 2)
	c.Set("user:1", 3)
	c.Delete("clinic:1")
	if _, ok := c.Get("clinic:1"); ok {
		t.Fatal("deleted key must be gone")
	}
	c.DeletePrefix("clinic:")
	if c.Len() != 1 {
		t.Fatalf("expected only user:1 left, got %d", c.Len())
	}
	if v, ok := c.Get("user:1"); !ok || v != 3 {
		t.Fatal("user:1 must survive prefix delete")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := New[int](0)
	c.Stop()
	c.Stop()
}
