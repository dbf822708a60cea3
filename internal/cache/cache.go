package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newscurator/internal/logger"
)

// Envelope wraps a cached stage output together with the key derived from
// the stage's inputs. A rerun whose inputs hash to the same key reuses the
// payload without recomputing; any other key invalidates the entry.
type Envelope[T any] struct {
	Key         string    `json:"key"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        T         `json:"data"`
}

// InputKey derives a cache key from the parts that determine a stage's
// output. Same inputs, same key.
func InputKey(parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// FileKey hashes a file's contents into a cache-key part, so editing the
// file invalidates every entry keyed on it.
func FileKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for cache key: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16], nil
}

// GetOrCompute returns the cached payload at path when it is structurally
// valid and carries the expected key; otherwise it runs compute and persists
// the result atomically. The second return value reports a cache hit.
func GetOrCompute[T any](path, key string, compute func() (T, error)) (T, bool, error) {
	if cached, err := read[T](path, key); err == nil {
		return cached, true, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		// A corrupt or stale cache is recomputed, not trusted.
		logger.Debug("Stage cache invalid, recomputing", "path", path, "reason", err.Error())
	}

	var zero T
	data, err := compute()
	if err != nil {
		return zero, false, err
	}

	envelope := Envelope[T]{Key: key, GeneratedAt: time.Now().UTC(), Data: data}
	if err := WriteJSONAtomic(path, envelope); err != nil {
		return zero, false, fmt.Errorf("failed to persist stage cache %s: %w", path, err)
	}
	return data, false, nil
}

// read loads and validates a cache envelope.
func read[T any](path, key string) (T, error) {
	var zero T
	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}

	var envelope Envelope[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return zero, fmt.Errorf("malformed cache envelope: %w", err)
	}
	if envelope.Key != key {
		return zero, fmt.Errorf("cache key mismatch: have %s, want %s", envelope.Key, key)
	}
	return envelope.Data, nil
}

// Read returns a cached payload regardless of key, for commands that only
// inspect stored artifacts.
func Read[T any](path string) (T, error) {
	var zero T
	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	var envelope Envelope[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return zero, fmt.Errorf("malformed cache envelope %s: %w", path, err)
	}
	return envelope.Data, nil
}

// WriteJSONAtomic marshals v and writes it via a temp file and rename, so a
// crash mid-write can never leave a truncated file a later run would trust.
func WriteJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

// ReadJSONFile loads a plain (non-envelope) JSON artifact.
func ReadJSONFile[T any](path string) (T, error) {
	var out T
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("malformed JSON file %s: %w", path, err)
	}
	return out, nil
}
