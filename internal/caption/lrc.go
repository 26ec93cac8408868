package caption

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgnsrekt/narrate/internal/ttypes"
)

// Mode records how a track's timestamps were derived.
type Mode string

const (
	ModeEstimated Mode = "estimated"
	ModeMeasured  Mode = "measured"
)

// Entry pairs a sentence with the second at which it starts.
type Entry struct {
	Start float64
	Text  string
}

// Track is an ordered caption sequence.
type Track struct {
	Mode    Mode
	Entries []Entry
}

// DurationEstimator predicts how long a sentence takes to speak.
type DurationEstimator interface {
	Estimate(text, language string, rate float64) float64
}

// BuildEstimated walks sentences in order, starting each at the running
// total of the estimated durations before it. The first entry starts at 0.
func BuildEstimated(sentences []ttypes.Sentence, est DurationEstimator, language string, rate float64) Track {
	entries := make([]Entry, 0, len(sentences))
	current := 0.0
	for _, s := range sentences {
		entries = append(entries, Entry{Start: current, Text: s.Text})
		current += est.Estimate(s.Text, language, rate)
	}
	return Track{Mode: ModeEstimated, Entries: entries}
}

// BuildMeasured pairs sentence i with timestamps[i]. When fewer timestamps
// than sentences are given, only the covered prefix is emitted.
func BuildMeasured(sentences []ttypes.Sentence, timestamps []float64) Track {
	n := min(len(sentences), len(timestamps))
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, Entry{Start: timestamps[i], Text: sentences[i].Text})
	}
	return Track{Mode: ModeMeasured, Entries: entries}
}

// FormatTimestamp renders seconds as an LRC time tag, [mm:ss.xx]. The value
// is rounded to centiseconds before it is split so a carry never produces
// a seconds field of 60. Minutes are not bounded.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	cs := int64(math.Round(seconds * 100))
	minutes := cs / 6000
	rem := float64(cs%6000) / 100
	return fmt.Sprintf("[%02d:%05.2f]", minutes, rem)
}

// Render formats the track as LRC text: one entry per line, no header and
// no trailing newline.
func (t Track) Render() string {
	lines := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		lines[i] = FormatTimestamp(e.Start) + e.Text
	}
	return strings.Join(lines, "\n")
}

// Len returns the number of entries.
func (t Track) Len() int {
	return len(t.Entries)
}

// Write renders the track to path as UTF-8, replacing any existing file.
func (t Track) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create caption directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(t.Render()), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("failed to write captions: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write captions: %w", err)
	}
	return nil
}

// PathFor returns the caption path that accompanies an audio file.
func PathFor(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".lrc"
}
