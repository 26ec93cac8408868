package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Manager coordinates the memory and disk tiers. Reads fall through from L1
// to L2 and promote disk hits into memory; writes go to both tiers.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	config *Config

	mu     sync.Mutex
	closed bool
	stats  struct {
		memoryHits int64
		diskHits   int64
		misses     int64
		expired    int
	}
}

// NewManager creates a cache manager, pruning expired disk entries on open.
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if config.DiskPath == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache directory: %w", err)
		}
		config.DiskPath = filepath.Join(dir, "narrate", "clips")
	}

	disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	m := &Manager{
		memory: NewMemoryCache(config.MemoryCapacity),
		disk:   disk,
		config: config,
	}

	if config.TTLDays > 0 {
		cutoff := time.Now().Add(-time.Duration(config.TTLDays) * 24 * time.Hour)
		m.stats.expired = disk.RemoveOlderThan(cutoff)
	}

	return m, nil
}

// Get looks a clip up in memory first, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false
	}

	if data, ok := m.memory.Get(key); ok {
		m.stats.memoryHits++
		return data, true
	}

	if data, ok := m.disk.Get(key); ok {
		m.stats.diskHits++
		// Promotion is best-effort; clips larger than L1 stay on disk only.
		_ = m.memory.Put(key, data)
		return data, true
	}

	m.stats.misses++
	return nil, false
}

// Put stores a clip in both tiers. Writes are synchronous: the process is
// short-lived and an asynchronous write could be lost at exit.
func (m *Manager) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrCacheClosed
	}

	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache: %w", err)
	}
	if err := m.disk.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

// Clear removes every entry from both tiers.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.memory.Clear()
	return m.disk.Clear()
}

// Stats returns aggregated statistics keyed for structured logging.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits := m.stats.memoryHits + m.stats.diskHits
	var hitRate float64
	if total := hits + m.stats.misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return map[string]interface{}{
		"hits":        hits,
		"misses":      m.stats.misses,
		"hit_rate":    hitRate,
		"memory_hits": m.stats.memoryHits,
		"disk_hits":   m.stats.diskHits,
		"expired":     m.stats.expired,
		"memory_size": m.memory.Size(),
		"disk_size":   m.disk.Size(),
		"disk_items":  m.disk.Stats().ItemCount,
		"disk_path":   m.config.DiskPath,
	}
}

// Close persists the disk index. The manager rejects writes afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	_ = m.memory.Clear()
	if err := m.disk.Close(); err != nil {
		return fmt.Errorf("failed to close disk cache: %w", err)
	}
	return nil
}

// Key derives a cache key from the text and every option that changes the
// synthesized audio.
func Key(text, language string, options ...string) string {
	parts := append([]string{text, strings.ToLower(language)}, options...)
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(hash[:16])
}
