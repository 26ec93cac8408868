package tts

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dgnsrekt/narrate/internal/audio"
)

// probeTimeout bounds each version check so a wedged binary cannot stall
// startup.
const probeTimeout = 5 * time.Second

// ToolStatus is the result of probing one external binary.
type ToolStatus struct {
	// Name is a display name, e.g. "ffmpeg"
	Name string

	// Command is the configured command or path
	Command string

	// Path is the resolved executable path when found
	Path string

	// Available indicates the binary was found and executed
	Available bool

	// Version is the first line of the binary's version output, if any
	Version string

	// Error contains the probe failure
	Error error

	// Guidance provides setup instructions when the tool is missing
	Guidance string
}

// Capabilities records which external tools this run can use. It is probed
// once and passed to every component that needs it.
type Capabilities struct {
	Synthesizer ToolStatus
	FFmpeg      ToolStatus
	FFprobe     ToolStatus
}

// CanSynthesize reports whether the gTTS command line tool is usable.
func (c Capabilities) CanSynthesize() bool {
	return c.Synthesizer.Available
}

// CanStretch reports whether audio can be time-stretched.
func (c Capabilities) CanStretch() bool {
	return c.FFmpeg.Available
}

// HasToolchain reports whether clips can be probed, merged and stretched,
// which the measured caption path needs.
func (c Capabilities) HasToolchain() bool {
	return c.FFmpeg.Available && c.FFprobe.Available
}

// Tools lists every probed tool in display order.
func (c Capabilities) Tools() []ToolStatus {
	return []ToolStatus{c.Synthesizer, c.FFmpeg, c.FFprobe}
}

// ProbeCapabilities checks each external binary once.
func ProbeCapabilities(ctx context.Context, paths audio.ToolPaths) Capabilities {
	return Capabilities{
		Synthesizer: probeTool(ctx, "gtts-cli", paths.GTTS, "--version", buildGTTSInstallGuidance()),
		FFmpeg:      probeTool(ctx, "ffmpeg", paths.FFmpeg, "-version", buildFFmpegInstallGuidance()),
		FFprobe:     probeTool(ctx, "ffprobe", paths.FFprobe, "-version", buildFFmpegInstallGuidance()),
	}
}

func probeTool(ctx context.Context, name, command, versionFlag, guidance string) ToolStatus {
	status := ToolStatus{Name: name, Command: command}
	if command == "" {
		status.Command = name
	}

	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Error = fmt.Errorf("%s not found in PATH: %w", name, err)
		status.Guidance = guidance
		return status
	}
	status.Path = path

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, versionFlag).CombinedOutput() //nolint:gosec
	if err != nil {
		status.Error = fmt.Errorf("cannot execute %s: %w", name, err)
		status.Guidance = fmt.Sprintf("%s binary found but cannot be executed. Check permissions and dependencies.", name)
		return status
	}

	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	status.Version = strings.TrimSpace(line)
	status.Available = true
	return status
}

// buildGTTSInstallGuidance provides instructions for installing gTTS
func buildGTTSInstallGuidance() string {
	return `gTTS (Google Text-to-Speech) is not installed. To install:

1. Install via pip:
   pip install gtts

   # Or with pipx (recommended):
   pipx install gtts

2. Verify installation:
   gtts-cli --help

3. No API key required - gTTS uses Google Translate's free TTS service

Note: gTTS requires an internet connection to function.`
}

// buildFFmpegInstallGuidance provides instructions for installing ffmpeg
func buildFFmpegInstallGuidance() string {
	return `ffmpeg is required for rate adjustment and accurate captions. To install:

# Ubuntu/Debian
sudo apt update && sudo apt install ffmpeg

# CentOS/RHEL/Fedora
sudo dnf install ffmpeg

# macOS (Homebrew)
brew install ffmpeg

# Arch Linux
sudo pacman -S ffmpeg

# Windows
winget install ffmpeg

# Or download from: https://ffmpeg.org/download.html

Restart your terminal after installing.`
}
