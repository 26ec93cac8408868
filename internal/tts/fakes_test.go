package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/dgnsrekt/narrate/internal/ttypes"
)

// fakeEngine "synthesizes" text by returning it as the clip bytes.
type fakeEngine struct {
	mu      sync.Mutex
	failOn  map[string]bool
	panicOn string
	calls   []string
}

func (e *fakeEngine) Synthesize(ctx context.Context, text, _ string) ([]byte, error) {
	e.mu.Lock()
	e.calls = append(e.calls, text)
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.panicOn != "" && strings.Contains(text, e.panicOn) {
		panic("engine exploded")
	}
	if e.failOn[text] {
		return nil, errors.New("network unreachable")
	}
	return []byte(text), nil
}

func (e *fakeEngine) GetInfo() ttypes.EngineInfo {
	return ttypes.EngineInfo{Name: "fake", Format: "mp3"}
}

func (e *fakeEngine) Validate() error { return nil }
func (e *fakeEngine) Close() error    { return nil }

// fakeToolchain probes a clip by looking its content up in durations.
type fakeToolchain struct {
	durations  map[string]float64
	concatErr  error
	stretchErr error
	silenceErr error

	concatInputs []string
	stretchRate  float64
	silences     []float64
}

func (f *fakeToolchain) Duration(_ context.Context, path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	d, ok := f.durations[string(data)]
	if !ok {
		return 0, fmt.Errorf("no duration for %q", data)
	}
	return d, nil
}

func (f *fakeToolchain) Concat(_ context.Context, clips []string, output string) error {
	f.concatInputs = append([]string(nil), clips...)
	if f.concatErr != nil {
		return f.concatErr
	}
	var merged []string
	for _, clip := range clips {
		data, err := os.ReadFile(clip)
		if err != nil {
			return err
		}
		merged = append(merged, string(data))
	}
	return os.WriteFile(output, []byte(strings.Join(merged, "|")), 0o600)
}

func (f *fakeToolchain) Stretch(_ context.Context, input, output string, rate float64) error {
	f.stretchRate = rate
	if f.stretchErr != nil {
		return f.stretchErr
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append([]byte("stretched:"), data...), 0o600)
}

func (f *fakeToolchain) Silence(_ context.Context, output string, seconds float64) error {
	f.silences = append(f.silences, seconds)
	if f.silenceErr != nil {
		return f.silenceErr
	}
	return os.WriteFile(output, []byte("silence"), 0o600)
}

func fullCaps() Capabilities {
	return Capabilities{
		Synthesizer: ToolStatus{Name: "gtts-cli", Available: true},
		FFmpeg:      ToolStatus{Name: "ffmpeg", Available: true},
		FFprobe:     ToolStatus{Name: "ffprobe", Available: true},
	}
}

func noToolchainCaps() Capabilities {
	return Capabilities{
		Synthesizer: ToolStatus{Name: "gtts-cli", Available: true},
	}
}
