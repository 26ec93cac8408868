package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/ttypes"
)

var (
	// ErrNoClips is returned when Concat is given nothing to join.
	ErrNoClips = errors.New("no clips to concatenate")

	// ErrInvalidDuration is returned for non-positive silence lengths.
	ErrInvalidDuration = errors.New("duration must be positive")
)

// FFmpeg implements ttypes.Toolchain with the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpeg     string
	ffprobe    string
	sampleRate int
	bitrate    string
}

// Option configures an FFmpeg toolchain.
type Option func(*FFmpeg)

// WithSampleRate sets the sample rate used for silent filler clips. It must
// match the synthesized clips for stream-copy concatenation to work.
func WithSampleRate(hz int) Option {
	return func(f *FFmpeg) {
		if hz > 0 {
			f.sampleRate = hz
		}
	}
}

// WithBitrate sets the MP3 bitrate used for silent filler clips.
func WithBitrate(bitrate string) Option {
	return func(f *FFmpeg) {
		if bitrate != "" {
			f.bitrate = bitrate
		}
	}
}

// NewFFmpeg creates a toolchain using the given binaries. gTTS emits 24kHz
// mono MP3, which is the default filler format.
func NewFFmpeg(paths ToolPaths, opts ...Option) *FFmpeg {
	f := &FFmpeg{
		ffmpeg:     paths.FFmpeg,
		ffprobe:    paths.FFprobe,
		sampleRate: 24000,
		bitrate:    "32k",
	}
	if f.ffmpeg == "" {
		f.ffmpeg = "ffmpeg"
	}
	if f.ffprobe == "" {
		f.ffprobe = "ffprobe"
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Duration probes a file's duration in seconds with ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := f.run(ctx, f.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}

	value := strings.TrimSpace(out)
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unparsable duration %q: %w", value, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("ffprobe returned negative duration %v", seconds)
	}
	return seconds, nil
}

// Concat joins clips with the concat demuxer and stream copy, so no clip is
// re-encoded and the measured durations stay exact.
func (f *FFmpeg) Concat(ctx context.Context, clips []string, output string) error {
	if len(clips) == 0 {
		return ErrNoClips
	}

	listFile, err := os.CreateTemp(filepath.Dir(output), "concat-*.txt")
	if err != nil {
		return fmt.Errorf("failed to create concat list: %w", err)
	}
	defer os.Remove(listFile.Name()) //nolint:errcheck

	var list strings.Builder
	for _, clip := range clips {
		abs, err := filepath.Abs(clip)
		if err != nil {
			_ = listFile.Close()
			return fmt.Errorf("failed to resolve clip path: %w", err)
		}
		list.WriteString(concatEntry(abs))
	}
	if _, err := listFile.WriteString(list.String()); err != nil {
		_ = listFile.Close()
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	if err := listFile.Close(); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}

	log.Debug("concatenating clips", "count", len(clips), "output", output)
	_, err = f.run(ctx, f.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile.Name(),
		"-c", "copy",
		"-y", output,
	)
	return err
}

// Stretch changes the tempo of input by rate without altering pitch,
// chaining atempo stages for rates outside a single stage's range.
func (f *FFmpeg) Stretch(ctx context.Context, input, output string, rate float64) error {
	filter := AtempoFilter(rate)
	if filter == "" {
		return fmt.Errorf("invalid stretch rate %v", rate)
	}

	log.Debug("stretching audio", "rate", rate, "filter", filter)
	_, err := f.run(ctx, f.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-filter:a", filter,
		"-vn",
		"-y", output,
	)
	return err
}

// Silence renders seconds of silence as MP3 matching the synthesized clips.
func (f *FFmpeg) Silence(ctx context.Context, output string, seconds float64) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}

	source := fmt.Sprintf("anullsrc=r=%d:cl=mono", f.sampleRate)
	_, err := f.run(ctx, f.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", source,
		"-t", strconv.FormatFloat(seconds, 'f', 3, 64),
		"-c:a", "libmp3lame",
		"-b:a", f.bitrate,
		"-y", output,
	)
	return err
}

func (f *FFmpeg) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s cancelled: %w", filepath.Base(name), ctx.Err())
		}
		return "", fmt.Errorf("%s failed: %w, stderr: %s",
			filepath.Base(name), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// concatEntry renders one line of a concat demuxer list. Single quotes in
// the path are closed, escaped and reopened.
func concatEntry(path string) string {
	return "file '" + strings.ReplaceAll(path, "'", `'\''`) + "'\n"
}

var _ ttypes.Toolchain = (*FFmpeg)(nil)
