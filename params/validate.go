package params

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams wraps every validation failure.
var ErrInvalidParams = errors.New("params: invalid processing parameters")

// Parameter domains.
const (
	MinExposureStops = -4.0
	MaxExposureStops = 4.0

	MinBrightness = 0.25
	MaxBrightness = 8.0

	MinTemperatureK = 2000.0
	MaxTemperatureK = 10000.0

	MinTint = -100.0
	MaxTint = 100.0

	MinToneScale = 0.0
	MaxToneScale = 4.0

	MinGamma = 0.5
	MaxGamma = 4.0

	MinShadowRecovery = 0.0
	MaxShadowRecovery = 1.0
)

// Validate checks every field against its domain and returns the first
// violation wrapped in ErrInvalidParams.
func (p ParameterSet) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"exposure_stops", p.ExposureStops, MinExposureStops, MaxExposureStops},
		{"brightness", p.Brightness, MinBrightness, MaxBrightness},
		{"temperature_k", p.TemperatureK, MinTemperatureK, MaxTemperatureK},
		{"tint", p.Tint, MinTint, MaxTint},
		{"contrast", p.Contrast, MinToneScale, MaxToneScale},
		{"saturation", p.Saturation, MinToneScale, MaxToneScale},
		{"gamma", p.Gamma, MinGamma, MaxGamma},
		{"shadow_recovery", p.ShadowRecovery, MinShadowRecovery, MaxShadowRecovery},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s %g must be between %g and %g",
				ErrInvalidParams, c.name, c.value, c.min, c.max)
		}
	}

	if p.HighlightRecoveryMode < HighlightClip || p.HighlightRecoveryMode > HighlightRebuildMax {
		return fmt.Errorf("%w: highlight_recovery_mode %d must be between %d and %d",
			ErrInvalidParams, p.HighlightRecoveryMode, HighlightClip, HighlightRebuildMax)
	}

	if !p.DemosaicAlgorithm.Valid() {
		return fmt.Errorf("%w: demosaic_algorithm %d is not a supported decoder code",
			ErrInvalidParams, int32(p.DemosaicAlgorithm))
	}

	return nil
}
