package tts

import (
	"fmt"
	"math"
)

// Rate bounds. The lower bound is exclusive.
const (
	MinRate     = 0.0
	MaxRate     = 4.0
	DefaultRate = 1.0
)

// ValidateRate checks that rate is a finite value in (0, 4].
func ValidateRate(rate float64) error {
	if math.IsNaN(rate) || rate <= MinRate || rate > MaxRate {
		return fmt.Errorf("%w (got %v)", ErrInvalidRate, rate)
	}
	return nil
}

// NeedsStretch reports whether audio rendered at natural speed must be
// time-stretched to honor rate.
func NeedsStretch(rate float64) bool {
	return rate != DefaultRate
}

// RateDisplay returns a human-readable rate description.
func RateDisplay(rate float64) string {
	switch rate {
	case 1.0:
		return "1.0x (Normal)"
	case 0.5:
		return "0.5x (Half Speed)"
	case 2.0:
		return "2.0x (Double Speed)"
	default:
		return fmt.Sprintf("%gx", rate)
	}
}
