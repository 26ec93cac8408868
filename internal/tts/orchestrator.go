package tts

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/ttypes"
)

// FailurePolicy decides what happens to a sentence whose synthesis failed.
type FailurePolicy string

const (
	// FailureFiller replaces the sentence's audio with silence of the
	// penalty length and keeps its caption.
	FailureFiller FailurePolicy = "filler"

	// FailureDrop removes the sentence from both audio and captions.
	FailureDrop FailurePolicy = "drop"
)

// DefaultFailurePenalty is the time, in seconds, a failed sentence occupies
// under FailureFiller.
const DefaultFailurePenalty = 2.0

// ParseFailurePolicy validates a policy name. An empty name selects
// FailureFiller.
func ParseFailurePolicy(name string) (FailurePolicy, error) {
	switch FailurePolicy(name) {
	case "", FailureFiller:
		return FailureFiller, nil
	case FailureDrop:
		return FailureDrop, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want %q or %q)", name, FailureFiller, FailureDrop)
	}
}

// TimedResult is the outcome of measured synthesis.
type TimedResult struct {
	// AudioPath is the merged, and if possible stretched, audio file
	AudioPath string

	// Sentences are the sentences present in the audio, in order
	Sentences []ttypes.Sentence

	// Timestamps holds the start of each entry in Sentences, in seconds of
	// the final audio
	Timestamps []float64

	// Clips holds the clip merged for each entry in Sentences; fillers are
	// marked
	Clips []ttypes.Clip

	// Results holds the per-sentence synthesis outcome before alignment
	Results []ttypes.SynthesisResult

	// Duration is the total length of the final audio in seconds
	Duration float64

	Failed    int
	Filled    int
	Dropped   int
	Stretched bool

	// StretchErr is set when the rate adjustment failed and the audio was
	// kept at natural speed. It wraps ErrStretchFailed.
	StretchErr error
}

// TimedSynthesizer synthesizes sentences one at a time, measures each clip
// and assembles the final audio together with the start time of every
// sentence.
type TimedSynthesizer struct {
	engine        ttypes.TTSEngine
	tools         ttypes.Toolchain
	caps          Capabilities
	estimator     *Estimator
	policy        FailurePolicy
	penalty       float64
	progressEvery int
}

// SynthesizerOption configures a TimedSynthesizer.
type SynthesizerOption func(*TimedSynthesizer)

// WithFailurePolicy sets how failed sentences are aligned.
func WithFailurePolicy(p FailurePolicy) SynthesizerOption {
	return func(s *TimedSynthesizer) {
		s.policy = p
	}
}

// WithFailurePenalty sets how long a failed sentence lasts under
// FailureFiller.
func WithFailurePenalty(seconds float64) SynthesizerOption {
	return func(s *TimedSynthesizer) {
		if seconds > 0 {
			s.penalty = seconds
		}
	}
}

// WithEstimator sets the estimator used when a clip cannot be probed.
func WithEstimator(e *Estimator) SynthesizerOption {
	return func(s *TimedSynthesizer) {
		if e != nil {
			s.estimator = e
		}
	}
}

// NewTimedSynthesizer creates a synthesizer. caps must come from a single
// probe for the whole run.
func NewTimedSynthesizer(engine ttypes.TTSEngine, tools ttypes.Toolchain, caps Capabilities, opts ...SynthesizerOption) *TimedSynthesizer {
	s := &TimedSynthesizer{
		engine:        engine,
		tools:         tools,
		caps:          caps,
		estimator:     NewEstimator(),
		policy:        FailureFiller,
		penalty:       DefaultFailurePenalty,
		progressEvery: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SynthesizeWithTimestamps renders every sentence, merges the clips with a
// lossless concat and stretches the result by rate. Sentences are processed
// strictly in order because each start time depends on all earlier
// durations.
//
// A failed sentence does not abort the run; see FailurePolicy. The run fails
// if the toolchain is missing, every sentence fails, the merge fails or ctx
// is cancelled. A failed stretch keeps the unstretched audio.
func (s *TimedSynthesizer) SynthesizeWithTimestamps(ctx context.Context, sentences []ttypes.Sentence, language string, rate float64, ws *audio.Workspace) (*TimedResult, error) {
	if !s.caps.HasToolchain() {
		return nil, NewTTSError(ErrorCodeCapabilityMissing, "measured synthesis needs ffmpeg and ffprobe", ErrToolchainMissing)
	}
	if len(sentences) == 0 {
		return nil, NewTTSError(ErrorCodeInput, "no sentences to synthesize", ErrEmptyText)
	}
	if rate <= 0 {
		rate = DefaultRate
	}

	log.Info("Synthesizing sentence by sentence", "sentences", len(sentences))

	results, err := s.synthesizeAll(ctx, sentences, language, ws)
	if err != nil {
		return nil, err
	}

	res := &TimedResult{Results: results}
	for _, r := range results {
		if !r.OK() {
			res.Failed++
		}
	}
	if res.Failed == len(results) {
		return nil, NewTTSError(ErrorCodeSynthesis, "no sentence could be synthesized", ErrAllSentencesFailed).
			WithContext("sentences", len(results))
	}
	log.Info("All clips generated", "ok", len(results)-res.Failed, "failed", res.Failed)

	clips, err := s.align(ctx, results, rate, ws, res)
	if err != nil {
		return nil, err
	}

	log.Info("Merging clips", "count", len(clips))
	merged := ws.Path("combined.mp3")
	if err := s.tools.Concat(ctx, clips, merged); err != nil {
		return nil, NewTTSError(ErrorCodeConcat, "failed to merge clips", errors.Join(ErrConcatFailed, err)).
			WithContext("clips", len(clips))
	}
	audio.RemoveFiles(clips)
	res.AudioPath = merged

	if NeedsStretch(rate) {
		stretched := ws.Path("combined_stretched.mp3")
		log.Info("Adjusting speed", "rate", RateDisplay(rate))
		if err := s.tools.Stretch(ctx, merged, stretched, rate); err != nil {
			if ctx.Err() != nil {
				return nil, NewTTSError(ErrorCodeCanceled, "conversion cancelled", ctx.Err())
			}
			res.StretchErr = stretchError(rate, err)
			log.Warn("Speed adjustment failed, keeping original speed", "error", res.StretchErr)
			res.rescale(rate)
		} else {
			_ = os.Remove(merged)
			res.AudioPath = stretched
			res.Stretched = true
		}
	}

	return res, nil
}

// synthesizeAll renders each sentence into its own clip. Per-sentence
// failures are recorded in the result; only cancellation stops the loop.
func (s *TimedSynthesizer) synthesizeAll(ctx context.Context, sentences []ttypes.Sentence, language string, ws *audio.Workspace) ([]ttypes.SynthesisResult, error) {
	results := make([]ttypes.SynthesisResult, len(sentences))

	for i, sentence := range sentences {
		if err := ctx.Err(); err != nil {
			return nil, NewTTSError(ErrorCodeCanceled, "conversion cancelled", err)
		}

		clip, err := s.synthesizeOne(ctx, sentence, language, ws.ClipPath(i))
		results[i] = ttypes.SynthesisResult{Sentence: sentence, Clip: clip, Err: err}
		if err != nil {
			if ctx.Err() != nil {
				return nil, NewTTSError(ErrorCodeCanceled, "conversion cancelled", ctx.Err())
			}
			log.Warn("Sentence failed to synthesize", "index", i+1, "error", err)
		}

		if done := i + 1; done%s.progressEvery == 0 || done == len(sentences) {
			log.Info("Progress", "done", done, "total", len(sentences))
		}
	}

	return results, nil
}

func (s *TimedSynthesizer) synthesizeOne(ctx context.Context, sentence ttypes.Sentence, language, path string) (*ttypes.Clip, error) {
	data, err := s.engine.Synthesize(ctx, sentence.Text, language)
	if err != nil {
		return nil, errors.Join(ErrSynthesisFailed, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write clip: %w", err)
	}

	clip := &ttypes.Clip{Path: path, Measured: true}
	duration, err := s.tools.Duration(ctx, path)
	if err != nil {
		// The measured length does not depend on rate, so the fallback
		// is estimated at natural speed too.
		duration = s.estimator.Estimate(sentence.Text, language, DefaultRate)
		clip.Measured = false
		log.Debug("Probe failed, using estimate", "sentence", sentence.ID, "seconds", duration, "error", err)
	}
	clip.Duration = duration
	return clip, nil
}

// align walks the results in order, applies the failure policy and assigns
// start times. It returns the clip paths to merge; res.Sentences,
// res.Timestamps and res.Clips receive the matching entries.
func (s *TimedSynthesizer) align(ctx context.Context, results []ttypes.SynthesisResult, rate float64, ws *audio.Workspace, res *TimedResult) ([]string, error) {
	var clips []string
	current := 0.0
	keep := func(sentence ttypes.Sentence, clip ttypes.Clip) {
		res.Sentences = append(res.Sentences, sentence)
		res.Timestamps = append(res.Timestamps, current)
		res.Clips = append(res.Clips, clip)
		clips = append(clips, clip.Path)
		current += clip.Duration / rate
	}

	for i, r := range results {
		if r.OK() {
			keep(r.Sentence, *r.Clip)
			continue
		}

		if s.policy == FailureDrop {
			log.Warn("Dropping failed sentence from audio and captions", "index", i+1)
			res.Dropped++
			continue
		}

		// The filler is stretched along with everything else, so it is
		// rendered at penalty*rate to last exactly penalty afterwards.
		filler := ws.FillerPath(i)
		if err := s.tools.Silence(ctx, filler, s.penalty*rate); err != nil {
			if ctx.Err() != nil {
				return nil, NewTTSError(ErrorCodeCanceled, "conversion cancelled", ctx.Err())
			}
			log.Warn("Could not create silent filler, dropping sentence", "index", i+1, "error", err)
			res.Dropped++
			continue
		}

		log.Warn("Inserted silence for failed sentence", "index", i+1, "seconds", s.penalty)
		keep(r.Sentence, ttypes.Clip{Path: filler, Duration: s.penalty * rate, Filler: true})
		res.Filled++
	}

	res.Duration = current
	return clips, nil
}

// stretchError wraps a failed rate adjustment. It is a warning, not a
// fatal error: the unstretched audio is still usable.
func stretchError(rate float64, err error) *TTSError {
	return NewTTSError(ErrorCodeStretch, "speed adjustment failed", errors.Join(ErrStretchFailed, err)).
		WithContext("rate", rate)
}

// rescale converts start times computed for stretched audio back to the
// natural-speed timeline.
func (r *TimedResult) rescale(rate float64) {
	for i := range r.Timestamps {
		r.Timestamps[i] *= rate
	}
	r.Duration *= rate
}
