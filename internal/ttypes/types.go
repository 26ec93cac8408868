// Package ttypes contains shared types and interfaces for the narration pipeline.
// This package is used to break import cycles between tts, engines, caption, and audio packages.
package ttypes

import (
	"context"
)

// EngineType represents the TTS engine selection
type EngineType string

const (
	// EngineGoogle represents gTTS (Google Translate TTS via gtts-cli)
	EngineGoogle EngineType = "gtts"
)

// Sentence is one speakable unit of a document, in source order.
type Sentence struct {
	// ID uniquely identifies the sentence within a run ("s0", "s1", ...)
	ID string

	// Text is the trimmed sentence content; never empty
	Text string

	// Position is the sentence's index in the document
	Position int

	// StartOffset is the byte offset of Text in the segmented text
	StartOffset int

	// EndOffset is the byte offset just past Text
	EndOffset int
}

// Clip is a rendered audio file for one sentence.
type Clip struct {
	// Path of the encoded clip inside the run workspace
	Path string

	// Duration in seconds at rate 1.0
	Duration float64

	// Measured is false when Duration came from the estimator because the
	// probe failed
	Measured bool

	// Filler marks a silent clip standing in for a failed sentence
	Filler bool
}

// SynthesisResult is the outcome of synthesizing one sentence: either a clip
// or the error that prevented it.
type SynthesisResult struct {
	Sentence Sentence
	Clip     *Clip
	Err      error
}

// OK reports whether the sentence produced a clip.
func (r SynthesisResult) OK() bool {
	return r.Err == nil && r.Clip != nil
}

// EngineInfo describes engine capabilities and configuration.
type EngineInfo struct {
	Name        string // Engine name (e.g., "gtts")
	Version     string // Engine version
	Format      string // Container/codec of synthesized audio (e.g., "mp3")
	MaxTextSize int    // Maximum text size in characters, 0 for unlimited
	IsOnline    bool   // Whether the engine requires internet
}

// TTSEngine defines the contract for text-to-speech engines.
type TTSEngine interface {
	// Synthesize converts text to encoded audio in the engine's format.
	// Each call is independent and may fail on its own.
	Synthesize(ctx context.Context, text, language string) ([]byte, error)

	// GetInfo returns engine capabilities and configuration.
	GetInfo() EngineInfo

	// Validate checks if the engine is properly configured and available.
	Validate() error

	// Close releases any resources held by the engine.
	Close() error
}

// Toolchain is the audio processing collaborator.
type Toolchain interface {
	// Duration probes the length of an audio file in seconds.
	Duration(ctx context.Context, path string) (float64, error)

	// Concat joins clips in order into output without re-encoding.
	Concat(ctx context.Context, clips []string, output string) error

	// Stretch time-stretches input by rate (>1 is faster) into output.
	Stretch(ctx context.Context, input, output string, rate float64) error

	// Silence renders a silent clip of the given length, encoded so it can
	// be stream-copied alongside synthesized clips.
	Silence(ctx context.Context, output string, seconds float64) error
}
