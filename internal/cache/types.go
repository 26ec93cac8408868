package cache

import "errors"

var (
	// ErrItemTooLarge is returned when a clip exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheClosed is returned when the manager is used after Close.
	ErrCacheClosed = errors.New("cache closed")
)

// Level identifies the tier a clip was served from.
type Level int

const (
	// LevelMemory is the per-process LRU.
	LevelMemory Level = iota

	// LevelDisk is the persistent compressed store.
	LevelDisk
)

// String returns the string representation of the cache level
func (l Level) String() string {
	switch l {
	case LevelMemory:
		return "memory"
	case LevelDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// Stats holds counters for one cache tier.
type Stats struct {
	Capacity  int64
	Size      int64
	ItemCount int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

func (s *Stats) finalize() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Config holds configuration for a Manager.
type Config struct {
	// MemoryCapacity bounds the L1 tier in bytes.
	MemoryCapacity int64

	// DiskCapacity bounds the L2 tier in bytes (compressed size).
	DiskCapacity int64

	// DiskPath is the directory holding clip files and the index.
	DiskPath string

	// CompressionLevel is the zstd level (1-22). Zero disables compression.
	CompressionLevel int

	// TTLDays expires disk entries older than this many days. Zero keeps
	// entries until evicted for space.
	TTLDays int
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MemoryCapacity:   32 * 1024 * 1024,
		DiskCapacity:     100 * 1024 * 1024,
		CompressionLevel: 3,
		TTLDays:          7,
	}
}

// Cache is the contract shared by both tiers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Clear() error
	Size() int64
	Stats() Stats
}
