package tts

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/dgnsrekt/narrate/internal/audio"
)

func newWorkspace(t *testing.T) *audio.Workspace {
	t.Helper()
	ws, err := audio.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	t.Cleanup(ws.Cleanup)
	return ws
}

func assertTimestamps(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("timestamps = %v, want %v", got, want)
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("timestamp %d = %v, want %v", i, got[i], want[i])
		}
	}
}

var threeDurations = map[string]float64{
	"One.":   1.5,
	"Two.":   2.0,
	"Three.": 0.5,
}

func TestSynthesizeWithTimestamps(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		want      []float64
		stretched bool
	}{
		{"natural speed", 1.0, []float64{0, 1.5, 3.5}, false},
		{"double speed", 2.0, []float64{0, 0.75, 1.75}, true},
		{"half speed", 0.5, []float64{0, 3, 7}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tools := &fakeToolchain{durations: threeDurations}
			synth := NewTimedSynthesizer(&fakeEngine{}, tools, fullCaps())
			ws := newWorkspace(t)

			res, err := synth.SynthesizeWithTimestamps(context.Background(), Segment("One. Two. Three."), "en", tt.rate, ws)
			if err != nil {
				t.Fatalf("SynthesizeWithTimestamps: %v", err)
			}

			assertTimestamps(t, res.Timestamps, tt.want)
			if len(res.Sentences) != 3 {
				t.Errorf("got %d sentences", len(res.Sentences))
			}
			if res.Stretched != tt.stretched {
				t.Errorf("Stretched = %v, want %v", res.Stretched, tt.stretched)
			}
			if tt.stretched && tools.stretchRate != tt.rate {
				t.Errorf("stretch rate = %v, want %v", tools.stretchRate, tt.rate)
			}

			if len(tools.concatInputs) != 3 {
				t.Fatalf("concat got %d clips", len(tools.concatInputs))
			}
			for i, clip := range tools.concatInputs {
				if clip != ws.ClipPath(i) {
					t.Errorf("clip %d = %q, want %q", i, clip, ws.ClipPath(i))
				}
				if _, err := os.Stat(clip); !os.IsNotExist(err) {
					t.Errorf("clip %d not removed after merge", i)
				}
			}

			data, err := os.ReadFile(res.AudioPath)
			if err != nil {
				t.Fatalf("read audio: %v", err)
			}
			want := "One.|Two.|Three."
			if tt.stretched {
				want = "stretched:" + want
			}
			if string(data) != want {
				t.Errorf("audio = %q, want %q", data, want)
			}
		})
	}
}

func TestSynthesizeWithTimestampsFailurePolicies(t *testing.T) {
	engine := func() *fakeEngine {
		return &fakeEngine{failOn: map[string]bool{"Two.": true}}
	}

	t.Run("filler keeps caption and inserts silence", func(t *testing.T) {
		tools := &fakeToolchain{durations: threeDurations}
		synth := NewTimedSynthesizer(engine(), tools, fullCaps())

		res, err := synth.SynthesizeWithTimestamps(context.Background(), Segment("One. Two. Three."), "en", 2.0, newWorkspace(t))
		if err != nil {
			t.Fatalf("SynthesizeWithTimestamps: %v", err)
		}

		assertTimestamps(t, res.Timestamps, []float64{0, 0.75, 2.75})
		if len(res.Sentences) != 3 || res.Sentences[1].Text != "Two." {
			t.Errorf("sentences = %v", Texts(res.Sentences))
		}
		if res.Failed != 1 || res.Filled != 1 || res.Dropped != 0 {
			t.Errorf("failed=%d filled=%d dropped=%d", res.Failed, res.Filled, res.Dropped)
		}
		if len(tools.silences) != 1 || tools.silences[0] != 4.0 {
			t.Errorf("silence requests = %v, want [4]", tools.silences)
		}
		if len(tools.concatInputs) != 3 {
			t.Errorf("captions and audio must stay aligned, concat got %d clips", len(tools.concatInputs))
		}
		if len(res.Clips) != 3 {
			t.Fatalf("got %d clips, want 3", len(res.Clips))
		}
		for i, clip := range res.Clips {
			if clip.Filler != (i == 1) {
				t.Errorf("clip %d Filler = %v", i, clip.Filler)
			}
		}
		if filler := res.Clips[1]; filler.Duration != 4.0 || filler.Path != tools.concatInputs[1] {
			t.Errorf("filler clip = %+v, concat input %q", filler, tools.concatInputs[1])
		}
	})

	t.Run("drop removes caption and audio", func(t *testing.T) {
		tools := &fakeToolchain{durations: threeDurations}
		synth := NewTimedSynthesizer(engine(), tools, fullCaps(), WithFailurePolicy(FailureDrop))

		res, err := synth.SynthesizeWithTimestamps(context.Background(), Segment("One. Two. Three."), "en", 2.0, newWorkspace(t))
		if err != nil {
			t.Fatalf("SynthesizeWithTimestamps: %v", err)
		}

		assertTimestamps(t, res.Timestamps, []float64{0, 0.75})
		if got := Texts(res.Sentences); len(got) != 2 || got[1] != "Three." {
			t.Errorf("sentences = %v", got)
		}
		if res.Dropped != 1 || len(tools.silences) != 0 {
			t.Errorf("dropped=%d silences=%v", res.Dropped, tools.silences)
		}
		if len(tools.concatInputs) != 2 {
			t.Errorf("concat got %d clips", len(tools.concatInputs))
		}
	})

	t.Run("filler failure drops sentence", func(t *testing.T) {
		tools := &fakeToolchain{durations: threeDurations, silenceErr: errors.New("no lavfi")}
		synth := NewTimedSynthesizer(engine(), tools, fullCaps(), WithFailurePenalty(3))

		res, err := synth.SynthesizeWithTimestamps(context.Background(), Segment("One. Two. Three."), "en", 1.0, newWorkspace(t))
		if err != nil {
			t.Fatalf("SynthesizeWithTimestamps: %v", err)
		}
		assertTimestamps(t, res.Timestamps, []float64{0, 1.5})
		if res.Dropped != 1 || res.Filled != 0 {
			t.Errorf("filled=%d dropped=%d", res.Filled, res.Dropped)
		}
		if len(tools.silences) != 1 || tools.silences[0] != 3 {
			t.Errorf("silence requests = %v", tools.silences)
		}
	})
}

func TestSynthesizeWithTimestampsProbeFallback(t *testing.T) {
	tools := &fakeToolchain{durations: map[string]float64{"One.": 1.0}}
	est := NewEstimator()
	synth := NewTimedSynthesizer(&fakeEngine{}, tools, fullCaps(), WithEstimator(est))

	res, err := synth.SynthesizeWithTimestamps(context.Background(), Segment("One. Two. Three."), "en", 2.0, newWorkspace(t))
	if err != nil {
		t.Fatalf("SynthesizeWithTimestamps: %v", err)
	}

	two := est.Estimate("Two.", "en", 1.0)
	assertTimestamps(t, res.Timestamps, []float64{0, 0.5, 0.5 + two/2})

	if !res.Results[0].Clip.Measured {
		t.Error("first clip should be measured")
	}
	if res.Results[1].Clip.Measured {
		t.Error("second clip should be estimated")
	}
}

func TestSynthesizeWithTimestampsErrors(t *testing.T) {
	sentences := Segment("One. Two.")

	t.Run("missing toolchain", func(t *testing.T) {
		synth := NewTimedSynthesizer(&fakeEngine{}, &fakeToolchain{}, noToolchainCaps())
		_, err := synth.SynthesizeWithTimestamps(context.Background(), sentences, "en", 1, newWorkspace(t))
		if !errors.Is(err, ErrToolchainMissing) || CodeOf(err) != ErrorCodeCapabilityMissing {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("every sentence fails", func(t *testing.T) {
		engine := &fakeEngine{failOn: map[string]bool{"One.": true, "Two.": true}}
		tools := &fakeToolchain{}
		synth := NewTimedSynthesizer(engine, tools, fullCaps())
		_, err := synth.SynthesizeWithTimestamps(context.Background(), sentences, "en", 1, newWorkspace(t))
		if !errors.Is(err, ErrAllSentencesFailed) {
			t.Fatalf("err = %v", err)
		}
		if tools.concatInputs != nil {
			t.Error("nothing should be merged")
		}
	})

	t.Run("concat failure is fatal", func(t *testing.T) {
		tools := &fakeToolchain{durations: threeDurations, concatErr: errors.New("bad stream")}
		synth := NewTimedSynthesizer(&fakeEngine{}, tools, fullCaps())
		_, err := synth.SynthesizeWithTimestamps(context.Background(), sentences, "en", 1, newWorkspace(t))
		if !errors.Is(err, ErrConcatFailed) || CodeOf(err) != ErrorCodeConcat {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("stretch failure keeps natural speed", func(t *testing.T) {
		tools := &fakeToolchain{durations: threeDurations, stretchErr: errors.New("atempo")}
		synth := NewTimedSynthesizer(&fakeEngine{}, tools, fullCaps())
		res, err := synth.SynthesizeWithTimestamps(context.Background(), sentences, "en", 2, newWorkspace(t))
		if err != nil {
			t.Fatalf("SynthesizeWithTimestamps: %v", err)
		}
		if res.Stretched {
			t.Error("Stretched should be false")
		}
		if !errors.Is(res.StretchErr, ErrStretchFailed) || CodeOf(res.StretchErr) != ErrorCodeStretch {
			t.Errorf("StretchErr = %v", res.StretchErr)
		}
		var ttsErr *TTSError
		if !errors.As(res.StretchErr, &ttsErr) || ttsErr.IsFatal() {
			t.Error("stretch failure should be a non-fatal TTSError")
		}
		assertTimestamps(t, res.Timestamps, []float64{0, 1.5})
		if res.Duration != 3.5 {
			t.Errorf("Duration = %v, want 3.5", res.Duration)
		}
		data, _ := os.ReadFile(res.AudioPath)
		if string(data) != "One.|Two." {
			t.Errorf("audio = %q", data)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		synth := NewTimedSynthesizer(&fakeEngine{}, &fakeToolchain{}, fullCaps())
		_, err := synth.SynthesizeWithTimestamps(ctx, sentences, "en", 1, newWorkspace(t))
		if CodeOf(err) != ErrorCodeCanceled || !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("no sentences", func(t *testing.T) {
		synth := NewTimedSynthesizer(&fakeEngine{}, &fakeToolchain{}, fullCaps())
		_, err := synth.SynthesizeWithTimestamps(context.Background(), nil, "en", 1, newWorkspace(t))
		if !errors.Is(err, ErrEmptyText) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestParseFailurePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FailurePolicy
		wantErr bool
	}{
		{"", FailureFiller, false},
		{"filler", FailureFiller, false},
		{"drop", FailureDrop, false},
		{"skip", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFailurePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFailurePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}
