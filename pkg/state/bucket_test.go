package state

import (
	"sync"
	"testing"
)

func TestBucket_Properties(t *testing.T) {
	props := map[string]any{"name": "Ada"}
	b := NewBucket(props)
	props["name"] = "changed"

	if v, ok, _ := b.Property("name"); !ok || v != "Ada" {
		t.Errorf("Property(name) = %v, %v; want Ada, true", v, ok)
	}
	if _, ok, _ := b.Property("age"); ok {
		t.Error("Property(age) found an unset property")
	}

	b.SetProperty("age", 36)
	snap := b.Snapshot()
	snap["age"] = 0
	if v, _, _ := b.Property("age"); v != 36 {
		t.Errorf("Property(age) = %v after editing snapshot, want 36", v)
	}
}

func TestBucket_ZeroValue(t *testing.T) {
	var b Bucket
	b.SetProperty("k", "v")
	if v, ok, _ := b.Property("k"); !ok || v != "v" {
		t.Errorf("Property(k) = %v, %v", v, ok)
	}
	b.LocalTable().Set("x", 1)
	if b.LocalTable().Get("x") != 1 {
		t.Error("local table lost its value")
	}
}

func TestBucket_String(t *testing.T) {
	b := NewBucket(map[string]any{"b": 2, "a": "one"})
	if got, want := b.String(), "Bucket{a=one, b=2}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := NewBucket(nil).String(); got != "Bucket{}" {
		t.Errorf("empty String() = %q", got)
	}
}

func TestBucket_Concurrent(t *testing.T) {
	b := NewBucket(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.SetProperty("n", j)
				b.Property("n")
				_ = b.String()
			}
		}()
	}
	wg.Wait()
	if _, ok, _ := b.Property("n"); !ok {
		t.Error("Property(n) missing after concurrent writes")
	}
}
