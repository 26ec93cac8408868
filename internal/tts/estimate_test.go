package tts

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEstimatorEmpty(t *testing.T) {
	e := NewEstimator()
	for _, lang := range []string{"zh-CN", "en", "xx", ""} {
		for _, rate := range []float64{0.5, 1, 4} {
			for _, text := range []string{"", "   ", "\n\n"} {
				if got := e.Estimate(text, lang, rate); got != 0 {
					t.Errorf("Estimate(%q, %q, %v) = %v, want 0", text, lang, rate, got)
				}
			}
		}
	}
}

func TestEstimatorEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		lang string
		rate float64
		opts []EstimatorOption
		want float64
	}{
		{
			name: "chinese sentence",
			text: "你好。今天天气不错！",
			lang: "zh-CN",
			rate: 1,
			want: 10/4.5 + 0.5 + 0.5,
		},
		{
			name: "english at double rate keeps pauses",
			text: "Hello world.",
			lang: "en",
			rate: 2,
			want: 12/2.8/2 + 0.4,
		},
		{
			name: "scaled pauses",
			text: "Hello world.",
			lang: "en",
			rate: 2,
			opts: []EstimatorOption{WithScaledPauses(true)},
			want: (12/2.8 + 0.4) / 2,
		},
		{
			name: "unknown language uses default",
			text: "abcd",
			lang: "xx",
			rate: 1,
			want: 1.0,
		},
		{
			name: "zero rate treated as one",
			text: "abcd",
			lang: "fr",
			rate: 0,
			want: 1.0,
		},
		{
			name: "soft separators and newline",
			text: "a,b;c\nd",
			lang: "ko",
			rate: 1,
			want: 7/4.0 + 0.2 + 0.2 + 0.5,
		},
		{
			name: "full-width separators",
			text: "甲，乙；丙：丁",
			lang: "zh",
			rate: 1,
			want: 7/4.5 + 0.3*3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEstimator(tt.opts...)
			if got := e.Estimate(tt.text, tt.lang, tt.rate); !almostEqual(got, tt.want) {
				t.Errorf("Estimate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimatorScenario(t *testing.T) {
	got := NewEstimator().Estimate("你好。今天天气不错！", "zh-CN", 1.0)
	if got <= 0 || got >= 10 {
		t.Errorf("Estimate = %v, want between 0 and 10", got)
	}
}

func TestEstimatorMonotonicInRate(t *testing.T) {
	e := NewEstimator()
	text := "The quick brown fox, quite honestly, jumps. Then it rests!"
	prev := math.Inf(1)
	for _, rate := range []float64{0.25, 0.5, 0.75, 1, 1.5, 2, 3, 4} {
		got := e.Estimate(text, "en", rate)
		if got > prev {
			t.Errorf("Estimate at rate %v = %v, greater than %v at lower rate", rate, got, prev)
		}
		prev = got
	}
}

func TestSpeedFor(t *testing.T) {
	e := NewEstimator(WithSpeed("zh-TW", 3.0))

	tests := []struct {
		tag  string
		want float64
	}{
		{"zh-CN", 4.5},
		{"zh-Hans", 4.5},
		{"zh-TW", 3.0},
		{"ZH-tw", 3.0},
		{"en", 2.8},
		{"en-US", 2.8},
		{"EN", 2.8},
		{"ja", 5.0},
		{"ko", 4.0},
		{"fr", DefaultSpeed},
		{"", DefaultSpeed},
		{"not a tag!!", DefaultSpeed},
	}

	for _, tt := range tests {
		if got := e.SpeedFor(tt.tag); got != tt.want {
			t.Errorf("SpeedFor(%q) = %v, want %v", tt.tag, got, tt.want)
		}
	}
}

func TestPauseTime(t *testing.T) {
	if got := PauseTime("no punctuation"); got != 0 {
		t.Errorf("PauseTime = %v, want 0", got)
	}
	if got := PauseTime("。！？.!?"); !almostEqual(got, 0.5*3+0.4*3) {
		t.Errorf("PauseTime = %v", got)
	}
}
