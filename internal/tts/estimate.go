package tts

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// DefaultSpeed is the reading speed, in characters per second, used for
// languages missing from the table.
const DefaultSpeed = 4.0

// defaultSpeeds holds approximate natural reading rates keyed by base
// language. gTTS reads CJK text faster per character than alphabetic text.
var defaultSpeeds = map[string]float64{
	"zh": 4.5,
	"en": 2.8,
	"ja": 5.0,
	"ko": 4.0,
}

// pauseWeights is the silence, in seconds, that follows each punctuation
// mark or line break.
var pauseWeights = map[rune]float64{
	'。':  0.5,
	'！':  0.5,
	'？':  0.5,
	'，':  0.3,
	'；':  0.3,
	'：':  0.3,
	'.':  0.4,
	'!':  0.4,
	'?':  0.4,
	',':  0.2,
	';':  0.2,
	'\n': 0.5,
}

// Estimator predicts spoken durations without synthesizing audio.
type Estimator struct {
	speeds      map[string]float64
	scalePauses bool
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithScaledPauses divides pause time by the rate along with the spoken
// time. By default pauses are not scaled.
func WithScaledPauses(scale bool) EstimatorOption {
	return func(e *Estimator) {
		e.scalePauses = scale
	}
}

// WithSpeed overrides the reading speed for a language tag. Full tags such
// as "zh-TW" take precedence over their base language.
func WithSpeed(tag string, charsPerSecond float64) EstimatorOption {
	return func(e *Estimator) {
		if charsPerSecond > 0 {
			e.speeds[strings.ToLower(tag)] = charsPerSecond
		}
	}
}

// NewEstimator creates an estimator with the default speed table.
func NewEstimator(opts ...EstimatorOption) *Estimator {
	e := &Estimator{speeds: make(map[string]float64, len(defaultSpeeds))}
	for k, v := range defaultSpeeds {
		e.speeds[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SpeedFor returns the reading speed for a language tag. The exact tag is
// tried first, then its base language; unknown or malformed tags get
// DefaultSpeed. A regional tag with no entry of its own inherits its base
// language's speed, so "en-US" reads at the "en" speed rather than
// DefaultSpeed.
func (e *Estimator) SpeedFor(tag string) float64 {
	key := strings.ToLower(strings.TrimSpace(tag))
	if s, ok := e.speeds[key]; ok {
		return s
	}

	parsed, err := language.Parse(key)
	if err != nil {
		return DefaultSpeed
	}
	base, _ := parsed.Base()
	if s, ok := e.speeds[base.String()]; ok {
		return s
	}
	return DefaultSpeed
}

// Estimate returns the predicted duration of text in seconds. Empty text
// takes no time. A non-positive rate is treated as 1.
func (e *Estimator) Estimate(text, lang string, rate float64) float64 {
	trimmed := strings.TrimSpace(text)
	count := utf8.RuneCountInString(trimmed)
	if count == 0 {
		return 0
	}
	if rate <= 0 {
		rate = 1
	}

	spoken := float64(count) / e.SpeedFor(lang) / rate
	pauses := PauseTime(text)
	if e.scalePauses {
		pauses /= rate
	}
	return spoken + pauses
}

// PauseTime sums the pause weight of every punctuation mark and line break
// in text.
func PauseTime(text string) float64 {
	total := 0.0
	for _, r := range text {
		total += pauseWeights[r]
	}
	return total
}
