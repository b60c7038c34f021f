package settings

import (
	"os"
	"path/filepath"
	"testing"

	"redub/internal/logging"
)

func TestFlagCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configured.json")
	cache := NewFlagCache(path, logging.NewNop())

	if _, ok := cache.Load(); ok {
		t.Fatal("empty cache reported a usable entry")
	}

	cache.Store(true)
	configured, ok := cache.Load()
	if !ok || !configured {
		t.Fatalf("Load = (%v, %v), want (true, true)", configured, ok)
	}

	cache.Invalidate()
	if _, ok := cache.Load(); ok {
		t.Fatal("invalidated cache reported a usable entry")
	}
}

func TestFlagCacheIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configured.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cache := NewFlagCache(path, logging.NewNop())
	if _, ok := cache.Load(); ok {
		t.Fatal("corrupt cache reported a usable entry")
	}

	// A fresh store repairs the file.
	cache.Store(false)
	configured, ok := cache.Load()
	if !ok || configured {
		t.Fatalf("Load = (%v, %v), want (false, true)", configured, ok)
	}
}
