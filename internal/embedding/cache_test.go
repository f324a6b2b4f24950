package embedding

import (
	"path/filepath"
	"testing"
)

func TestCacheRoundTrip(t *testing.T) {
	t.Parallel()

	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	if _, found, err := cache.Get("ai"); err != nil || found {
		t.Fatalf("expected miss on empty cache, found=%t err=%v", found, err)
	}

	if err := cache.PutBatch(map[string][]float64{
		"ai":       {0.1, 0.2, 0.3},
		"robotics": {0.4, 0.5, 0.6},
	}); err != nil {
		t.Fatalf("put batch: %v", err)
	}

	vector, found, err := cache.Get("ai")
	if err != nil || !found {
		t.Fatalf("expected hit after put, found=%t err=%v", found, err)
	}
	if len(vector) != 3 || vector[1] != 0.2 {
		t.Fatalf("unexpected cached vector: %#v", vector)
	}

	count, err := cache.Len()
	if err != nil {
		t.Fatalf("len: %v", err)
	}
	if count != 2 {
		t.Fatalf("unexpected entry count: got %d want 2", count)
	}
}

func TestCacheSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	cache, err := OpenCache(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	if err := cache.PutBatch(map[string][]float64{"fintech": {1, 0}}); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("close cache: %v", err)
	}

	reopened, err := OpenCache(path)
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer reopened.Close()

	vector, found, err := reopened.Get("fintech")
	if err != nil || !found {
		t.Fatalf("expected entry to survive reopen, found=%t err=%v", found, err)
	}
	if len(vector) != 2 || vector[0] != 1 {
		t.Fatalf("unexpected vector after reopen: %#v", vector)
	}
}
