package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/caption"
	"github.com/dgnsrekt/narrate/internal/ttypes"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/muesli/reflow/truncate"
)

// previewWidth is how much extracted text is echoed before synthesis.
const previewWidth = 100

// Options describes one conversion.
type Options struct {
	// Input is the markdown document to narrate
	Input string

	// Output overrides the audio path; captions follow it with .lrc
	Output string

	// Language is the gTTS language code (e.g., "zh-CN", "en")
	Language string

	// Rate is the playback speed multiplier in (0, 4]
	Rate float64

	// Subtitle writes an LRC caption file next to the audio
	Subtitle bool

	// Accurate synthesizes sentence by sentence and measures every clip
	Accurate bool
}

// Result describes the artifacts a conversion produced.
type Result struct {
	AudioPath   string
	AudioSize   int64
	CaptionPath string
	Captions    int
	Mode        caption.Mode
	Sentences   int
	Stretched   bool
	Failed      int

	// StretchErr reports a rate adjustment that failed; the audio was
	// kept at natural speed.
	StretchErr error
}

// Converter turns markdown documents into narrated audio and captions.
type Converter struct {
	engine    ttypes.TTSEngine
	tools     ttypes.Toolchain
	caps      Capabilities
	estimator *Estimator
	extractor *TextExtractor
	synthOpts []SynthesizerOption
	tempDir   string
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithConverterEstimator sets the estimator for estimated captions and probe
// fallbacks.
func WithConverterEstimator(e *Estimator) ConverterOption {
	return func(c *Converter) {
		if e != nil {
			c.estimator = e
		}
	}
}

// WithSynthesizerOptions passes options to the measured synthesizer.
func WithSynthesizerOptions(opts ...SynthesizerOption) ConverterOption {
	return func(c *Converter) {
		c.synthOpts = append(c.synthOpts, opts...)
	}
}

// WithTempDir sets where per-run workspaces are created.
func WithTempDir(dir string) ConverterOption {
	return func(c *Converter) {
		c.tempDir = dir
	}
}

// NewConverter creates a converter. caps must be probed once per run.
func NewConverter(engine ttypes.TTSEngine, tools ttypes.Toolchain, caps Capabilities, opts ...ConverterOption) (*Converter, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if tools == nil {
		return nil, fmt.Errorf("toolchain cannot be nil")
	}

	c := &Converter{
		engine:    engine,
		tools:     tools,
		caps:      caps,
		estimator: NewEstimator(),
		extractor: NewTextExtractor(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AudioPathFor returns the default audio path for a document: the same
// name with an .mp3 suffix.
func AudioPathFor(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".mp3"
}

// Convert narrates one document. Input errors are reported before any file
// is written. Panics are recovered and returned as INTERNAL errors.
func (c *Converter) Convert(ctx context.Context, opts Options) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Unexpected failure during conversion", "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = NewTTSError(ErrorCodeInternal, "unexpected failure", fmt.Errorf("%v", r)).
				WithContext("input", opts.Input)
		}
	}()

	if err := ValidateRate(opts.Rate); err != nil {
		return nil, NewTTSError(ErrorCodeInput, "invalid rate", err)
	}

	text, err := c.readText(opts.Input)
	if err != nil {
		return nil, err
	}

	audioPath := opts.Output
	if audioPath == "" {
		audioPath = AudioPathFor(opts.Input)
	}

	if err := os.MkdirAll(filepath.Dir(audioPath), 0o755); err != nil {
		return nil, NewTTSError(ErrorCodeInput, "cannot create output directory", err)
	}

	lock := flock.New(audioPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, NewTTSError(ErrorCodeInternal, "failed to lock output", err)
	}
	if !locked {
		return nil, NewTTSError(ErrorCodeLocked, "output is locked", ErrConversionInProgress).
			WithContext("output", audioPath)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	ws, err := audio.NewWorkspace(c.tempDir)
	if err != nil {
		return nil, NewTTSError(ErrorCodeInternal, "failed to create workspace", err)
	}
	defer ws.Cleanup()

	accurate := opts.Accurate
	if accurate && !opts.Subtitle {
		log.Warn("--accurate only affects captions, ignoring it without --subtitle")
		accurate = false
	}
	if accurate && !c.caps.HasToolchain() {
		log.Warn("ffmpeg/ffprobe not found, falling back to estimated captions")
		accurate = false
	}

	if accurate {
		res, err = c.convertMeasured(ctx, text, opts, audioPath, ws)
	} else {
		res, err = c.convertEstimated(ctx, text, opts, audioPath, ws)
	}
	if err != nil {
		return nil, err
	}

	if info, err := os.Stat(res.AudioPath); err == nil {
		res.AudioSize = info.Size()
	}
	log.Info("Audio written", "path", res.AudioPath, "size", humanize.Bytes(uint64(res.AudioSize))) //nolint:gosec
	return res, nil
}

// readText loads the document and extracts its speakable text.
func (c *Converter) readText(input string) (string, error) {
	log.Info("Reading file", "path", input)

	data, err := os.ReadFile(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", NewTTSError(ErrorCodeInput, "file does not exist", ErrInputNotFound).
				WithContext("input", input)
		}
		return "", NewTTSError(ErrorCodeInput, "failed to read input", err).WithContext("input", input)
	}

	text := c.extractor.Extract(string(data))
	if strings.TrimSpace(text) == "" {
		return "", NewTTSError(ErrorCodeInput, "nothing to narrate", ErrEmptyText).WithContext("input", input)
	}

	log.Info("Extracted text", "chars", len([]rune(text)))
	log.Info("Preview", "text", preview(text))
	return text, nil
}

// convertEstimated synthesizes the whole document in one call and, when
// asked, writes captions from estimated durations.
func (c *Converter) convertEstimated(ctx context.Context, text string, opts Options, audioPath string, ws *audio.Workspace) (*Result, error) {
	log.Info("Generating speech")

	data, err := c.engine.Synthesize(ctx, text, opts.Language)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewTTSError(ErrorCodeCanceled, "conversion cancelled", ctx.Err())
		}
		return nil, NewTTSError(ErrorCodeSynthesis, "failed to synthesize document", errors.Join(ErrSynthesisFailed, err))
	}

	speech := ws.Path("speech.mp3")
	if err := os.WriteFile(speech, data, 0o600); err != nil {
		return nil, NewTTSError(ErrorCodeInternal, "failed to write audio", err)
	}

	res := &Result{Mode: caption.ModeEstimated}
	final := speech
	if NeedsStretch(opts.Rate) {
		switch {
		case !c.caps.CanStretch():
			log.Warn("ffmpeg not found, keeping original speed", "rate", RateDisplay(opts.Rate))
		default:
			stretched := ws.Path("speech_stretched.mp3")
			log.Info("Adjusting speed", "rate", RateDisplay(opts.Rate))
			if err := c.tools.Stretch(ctx, speech, stretched, opts.Rate); err != nil {
				if ctx.Err() != nil {
					return nil, NewTTSError(ErrorCodeCanceled, "conversion cancelled", ctx.Err())
				}
				res.StretchErr = stretchError(opts.Rate, err)
				log.Warn("Speed adjustment failed, keeping original speed", "error", res.StretchErr)
			} else {
				final = stretched
				res.Stretched = true
			}
		}
	}

	if err := audio.Publish(final, audioPath); err != nil {
		return nil, NewTTSError(ErrorCodeInternal, "failed to write audio", err)
	}
	res.AudioPath = audioPath

	if opts.Subtitle {
		sentences := Segment(text)
		res.Sentences = len(sentences)

		// Estimates assume the requested rate; without a stretch the audio
		// plays at natural speed.
		rate := opts.Rate
		if !res.Stretched {
			rate = DefaultRate
		}
		track := caption.BuildEstimated(sentences, c.estimator, opts.Language, rate)
		if err := c.writeCaptions(track, audioPath, res); err != nil {
			return nil, err
		}
		log.Info("Caption timing is estimated; use --accurate for measured timing")
	}

	return res, nil
}

// convertMeasured synthesizes sentence by sentence and writes captions from
// measured clip durations.
func (c *Converter) convertMeasured(ctx context.Context, text string, opts Options, audioPath string, ws *audio.Workspace) (*Result, error) {
	sentences := Segment(text)
	log.Info("Split into sentences", "count", len(sentences))

	opt := append([]SynthesizerOption{WithEstimator(c.estimator)}, c.synthOpts...)
	synth := NewTimedSynthesizer(c.engine, c.tools, c.caps, opt...)

	timed, err := synth.SynthesizeWithTimestamps(ctx, sentences, opts.Language, opts.Rate, ws)
	if err != nil {
		return nil, err
	}

	if err := audio.Publish(timed.AudioPath, audioPath); err != nil {
		return nil, NewTTSError(ErrorCodeInternal, "failed to write audio", err)
	}

	res := &Result{
		AudioPath: audioPath,
		Mode:      caption.ModeMeasured,
		Sentences: len(sentences),
		Stretched:  timed.Stretched,
		StretchErr: timed.StretchErr,
		Failed:     timed.Failed,
	}

	if opts.Subtitle {
		track := caption.BuildMeasured(timed.Sentences, timed.Timestamps)
		if track.Len() < len(timed.Sentences) {
			log.Warn("Fewer timestamps than sentences, captions truncated",
				"captions", track.Len(), "sentences", len(timed.Sentences))
		}
		if err := c.writeCaptions(track, audioPath, res); err != nil {
			return nil, err
		}
	}

	return res, nil
}

func (c *Converter) writeCaptions(track caption.Track, audioPath string, res *Result) error {
	path := caption.PathFor(audioPath)
	if err := track.Write(path); err != nil {
		return NewTTSError(ErrorCodeInternal, "failed to write captions", err)
	}
	res.CaptionPath = path
	res.Captions = track.Len()
	log.Info("Captions written", "path", path, "entries", track.Len(), "mode", track.Mode)
	return nil
}

// preview flattens text onto one line and cuts it to previewWidth cells.
func preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	return truncate.StringWithTail(flat, previewWidth, "...")
}
