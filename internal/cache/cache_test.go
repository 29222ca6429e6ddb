//go:build integration

package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("k", []byte("rendered"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "rendered" {
		t.Fatalf("Get = %q, want %q", got, "rendered")
	}

	miss, err := c.Get("absent")
	if err != nil {
		t.Fatalf("Get miss: %v", err)
	}
	if miss != nil {
		t.Fatalf("cache miss returned %q, want nil", miss)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expired entry returned %q, want nil", got)
	}
}

func TestCache_DeletePrefix(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set(PageKey("/"), []byte("home"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(PageKey("/posts/hello"), []byte("post"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set("other:key", []byte("keep"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := c.DeletePrefix(PagePrefix); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}

	if got, _ := c.Get(PageKey("/")); got != nil {
		t.Fatal("page entries should be purged")
	}
	if got, _ := c.Get("other:key"); string(got) != "keep" {
		t.Fatal("unrelated entries must survive a page purge")
	}
}
