// Package cache stores synthesized speech clips between runs.
// It layers an in-memory LRU (L1) over a persistent, zstd-compressed disk
// cache (L2). Entries are keyed by the text, language and voice options that
// produced them, and expire after a configurable number of days.
package cache
