package cache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInputKeyDeterministic(t *testing.T) {
	a := InputKey("2026-W34", "stage-a")
	b := InputKey("2026-W34", "stage-a")
	if a != b {
		t.Error("Expected identical keys for identical inputs")
	}
	if a == InputKey("2026-W34", "stage-b") {
		t.Error("Expected different keys for different inputs")
	}
	// Joining must not be ambiguous across part boundaries.
	if InputKey("ab", "c") == InputKey("a", "bc") {
		t.Error("Expected part boundaries to affect the key")
	}
}

func TestGetOrComputeMissAndHit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.json")
	key := InputKey("input")

	calls := 0
	compute := func() ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	data, hit, err := GetOrCompute(path, key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute returned error: %v", err)
	}
	if hit {
		t.Error("Expected cache miss on first call")
	}
	if len(data) != 2 {
		t.Errorf("Expected 2 items, got %d", len(data))
	}

	data, hit, err = GetOrCompute(path, key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute returned error on second call: %v", err)
	}
	if !hit {
		t.Error("Expected cache hit on second call")
	}
	if calls != 1 {
		t.Errorf("Expected compute to run once, ran %d times", calls)
	}
	if len(data) != 2 {
		t.Errorf("Expected cached data, got %v", data)
	}
}

func TestGetOrComputeKeyMismatchRecomputes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.json")

	calls := 0
	compute := func() (int, error) {
		calls++
		return calls, nil
	}

	if _, _, err := GetOrCompute(path, InputKey("v1"), compute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, hit, err := GetOrCompute(path, InputKey("v2"), compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("Expected miss after input change")
	}
	if data != 2 {
		t.Errorf("Expected recomputed value 2, got %d", data)
	}
}

func TestGetOrComputeCorruptCacheRecomputes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to seed corrupt cache: %v", err)
	}

	data, hit, err := GetOrCompute(path, InputKey("x"), func() (string, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hit {
		t.Error("Expected corrupt cache to be treated as a miss")
	}
	if data != "fresh" {
		t.Errorf("Expected recomputed value, got %q", data)
	}
}

func TestWriteJSONAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := WriteJSONAtomic(path, map[string]int{"a": 1}); err != nil {
		t.Fatalf("WriteJSONAtomic returned error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		t.Errorf("Expected only out.json in dir, got %v", entries)
	}
}

func TestFileKeyChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.json")
	if err := os.WriteFile(path, []byte(`{"a":1}`), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	k1, err := FileKey(path)
	if err != nil {
		t.Fatalf("FileKey returned error: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{"a":2}`), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}
	k2, err := FileKey(path)
	if err != nil {
		t.Fatalf("FileKey returned error: %v", err)
	}

	if k1 == k2 {
		t.Error("Expected file key to change when contents change")
	}
}
