// Package params defines the photographic adjustments applied to a single render.
//
// A ParameterSet is a plain value. Every edit produces a new value and a new
// render request; a value already handed to a render is never mutated.
package params

import (
	"fmt"
	"strings"
)

// DemosaicAlgorithm is the decoder's own interpolation algorithm ID.
// The numeric values are passed to the decoder verbatim, including the gap
// between 5 and 11.
type DemosaicAlgorithm int32

const (
	DemosaicLinear        DemosaicAlgorithm = 0
	DemosaicVNG           DemosaicAlgorithm = 1
	DemosaicPPG           DemosaicAlgorithm = 2
	DemosaicAHD           DemosaicAlgorithm = 3
	DemosaicDCB           DemosaicAlgorithm = 4
	DemosaicDCBCorrection DemosaicAlgorithm = 5
	DemosaicLMMSE         DemosaicAlgorithm = 11
	DemosaicAMaZE         DemosaicAlgorithm = 12
)

var demosaicNames = map[DemosaicAlgorithm]string{
	DemosaicLinear:        "linear",
	DemosaicVNG:           "vng",
	DemosaicPPG:           "ppg",
	DemosaicAHD:           "ahd",
	DemosaicDCB:           "dcb",
	DemosaicDCBCorrection: "dcb-correction",
	DemosaicLMMSE:         "lmmse",
	DemosaicAMaZE:         "amaze",
}

// DemosaicAlgorithms lists every supported algorithm in code order.
func DemosaicAlgorithms() []DemosaicAlgorithm {
	return []DemosaicAlgorithm{
		DemosaicLinear, DemosaicVNG, DemosaicPPG, DemosaicAHD,
		DemosaicDCB, DemosaicDCBCorrection, DemosaicLMMSE, DemosaicAMaZE,
	}
}

// Valid reports whether d is one of the enumerated decoder codes.
func (d DemosaicAlgorithm) Valid() bool {
	_, ok := demosaicNames[d]
	return ok
}

func (d DemosaicAlgorithm) String() string {
	if name, ok := demosaicNames[d]; ok {
		return name
	}
	return fmt.Sprintf("demosaic(%d)", int32(d))
}

// ParseDemosaic accepts either an algorithm name ("ahd", "dcb-correction")
// or its numeric code ("3").
func ParseDemosaic(s string) (DemosaicAlgorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for code, name := range demosaicNames {
		if name == s || fmt.Sprintf("%d", int32(code)) == s {
			return code, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown demosaic algorithm %q", ErrInvalidParams, s)
}

// Highlight recovery modes. Values 3 through 9 are rebuild levels and map 1:1
// onto the decoder's highlight field.
const (
	HighlightClip       = 0
	HighlightUnclip     = 1
	HighlightBlend      = 2
	HighlightRebuildMin = 3
	HighlightRebuildMax = 9
)

// WhiteBalanceMode is the white balance source actually used by a render.
type WhiteBalanceMode int

const (
	WhiteBalanceCamera WhiteBalanceMode = iota
	WhiteBalanceAuto
	WhiteBalanceManual
)

func (m WhiteBalanceMode) String() string {
	switch m {
	case WhiteBalanceCamera:
		return "camera"
	case WhiteBalanceAuto:
		return "auto"
	case WhiteBalanceManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParameterSet holds the adjustments requested for one render.
//
// Contrast, Saturation and ShadowRecovery are reserved: they are validated and
// carried along but have no effect on decoder configuration.
type ParameterSet struct {
	ExposureStops         float64           `json:"exposure_stops" yaml:"exposure_stops"`
	Brightness            float64           `json:"brightness" yaml:"brightness"`
	TemperatureK          float64           `json:"temperature_k" yaml:"temperature_k"`
	Tint                  float64           `json:"tint" yaml:"tint"`
	Contrast              float64           `json:"contrast" yaml:"contrast"`
	Saturation            float64           `json:"saturation" yaml:"saturation"`
	Gamma                 float64           `json:"gamma" yaml:"gamma"`
	HighlightRecoveryMode int32             `json:"highlight_recovery_mode" yaml:"highlight_recovery_mode"`
	ShadowRecovery        float64           `json:"shadow_recovery" yaml:"shadow_recovery"`
	UseCameraWB           bool              `json:"use_camera_wb" yaml:"use_camera_wb"`
	UseAutoWB             bool              `json:"use_auto_wb" yaml:"use_auto_wb"`
	DemosaicAlgorithm     DemosaicAlgorithm `json:"demosaic_algorithm" yaml:"demosaic_algorithm"`
	NoAutoBright          bool              `json:"no_auto_bright" yaml:"no_auto_bright"`
	FourColorRGB          bool              `json:"four_color_rgb" yaml:"four_color_rgb"`
}

// Default values for a fresh ParameterSet.
const (
	DefaultExposureStops = 0.0
	DefaultBrightness    = 1.0
	DefaultTemperatureK  = 6500.0
	DefaultTint          = 0.0
	DefaultContrast      = 1.0
	DefaultSaturation    = 1.0
	DefaultGamma         = 2.2
)

// Defaults returns the documented default ParameterSet: camera white balance,
// DCB demosaic, gamma 2.2, no exposure correction.
func Defaults() ParameterSet {
	return ParameterSet{
		ExposureStops:         DefaultExposureStops,
		Brightness:            DefaultBrightness,
		TemperatureK:          DefaultTemperatureK,
		Tint:                  DefaultTint,
		Contrast:              DefaultContrast,
		Saturation:            DefaultSaturation,
		Gamma:                 DefaultGamma,
		HighlightRecoveryMode: HighlightClip,
		ShadowRecovery:        0,
		UseCameraWB:           true,
		UseAutoWB:             false,
		DemosaicAlgorithm:     DemosaicDCB,
		NoAutoBright:          false,
		FourColorRGB:          false,
	}
}

// WhiteBalance resolves the active white balance source. Camera WB wins over
// auto WB, which wins over manual temperature/tint.
func (p ParameterSet) WhiteBalance() WhiteBalanceMode {
	switch {
	case p.UseCameraWB:
		return WhiteBalanceCamera
	case p.UseAutoWB:
		return WhiteBalanceAuto
	default:
		return WhiteBalanceManual
	}
}
