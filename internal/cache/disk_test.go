package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCache_RoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}

	// Highly repetitive data so zstd actually shrinks it.
	value := bytes.Repeat([]byte("silence "), 1024)
	if err := dc.Put("clip", value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if dc.Size() >= int64(len(value)) {
		t.Errorf("expected compressed size < %d, got %d", len(value), dc.Size())
	}

	got, ok := dc.Get("clip")
	if !ok {
		t.Fatal("Get: key not found")
	}
	if !bytes.Equal(got, value) {
		t.Error("decompressed value differs from original")
	}
}

func TestDiskCache_PersistsIndex(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	if err := dc.Put("clip", []byte("payload")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := dc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.Get("clip")
	if !ok || string(got) != "payload" {
		t.Fatalf("Get after reopen = %q, %v", got, ok)
	}
}

func TestDiskCache_MissingFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	_ = dc.Put("clip", []byte("payload"))

	matches, _ := filepath.Glob(filepath.Join(dir, "*.clip"))
	for _, m := range matches {
		_ = os.Remove(m)
	}

	if _, ok := dc.Get("clip"); ok {
		t.Fatal("expected miss after clip file removal")
	}
	if dc.Size() != 0 {
		t.Errorf("Size = %d, want 0 after dropping broken entry", dc.Size())
	}
}

func TestDiskCache_EvictsLeastRecentlyAccessed(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 30, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	_ = dc.Put("a", make([]byte, 10))
	time.Sleep(5 * time.Millisecond)
	_ = dc.Put("b", make([]byte, 10))
	time.Sleep(5 * time.Millisecond)
	dc.Get("a")
	_ = dc.Put("c", make([]byte, 15))

	if _, ok := dc.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := dc.Get("a"); !ok {
		t.Error("a should have survived")
	}
}

func TestDiskCache_RemoveOlderThan(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 0)
	if err != nil {
		t.Fatalf("NewDiskCache: %v", err)
	}
	_ = dc.Put("a", []byte("x"))
	_ = dc.Put("b", []byte("y"))

	if removed := dc.RemoveOlderThan(time.Now().Add(time.Minute)); removed != 2 {
		t.Fatalf("RemoveOlderThan() = %d, want 2", removed)
	}
	if n := dc.Stats().ItemCount; n != 0 {
		t.Errorf("ItemCount = %d, want 0", n)
	}
}
