package audio

import (
	"math"
	"strconv"
	"strings"
)

// ffmpeg's atempo filter accepts factors in [0.5, 2.0] per stage.
const (
	minAtempo = 0.5
	maxAtempo = 2.0
)

// AtempoChain splits rate into atempo stages that each fall inside the
// filter's range and whose product equals rate. It returns nil for
// non-positive or non-finite rates.
func AtempoChain(rate float64) []float64 {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return nil
	}

	var stages []float64
	for rate > maxAtempo {
		stages = append(stages, maxAtempo)
		rate /= maxAtempo
	}
	for rate < minAtempo {
		stages = append(stages, minAtempo)
		rate /= minAtempo
	}
	return append(stages, rate)
}

// AtempoFilter renders the chain as an ffmpeg audio filter expression.
func AtempoFilter(rate float64) string {
	stages := AtempoChain(rate)
	parts := make([]string, len(stages))
	for i, s := range stages {
		s = math.Round(s*1e6) / 1e6
		parts[i] = "atempo=" + strconv.FormatFloat(s, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
