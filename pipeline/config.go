package pipeline

import (
	"math"

	"rawdevelop/colorscience"
	"rawdevelop/params"
	"rawdevelop/rawruntime"
)

// ToeSlope is the linear toe slope paired with 1/gamma (BT.709).
const ToeSlope = 4.5

// BuildDecoderConfig maps a parameter set onto decoder fields. It is pure.
//
// White balance resolves camera before auto before manual, and only the
// winning mode is enabled. Manual multipliers are zero unless manual mode
// wins, so they never leak into camera or auto computation.
//
// Contrast, saturation and shadow recovery have no decoder counterpart and
// are not mapped.
func BuildDecoderConfig(p params.ParameterSet) rawruntime.DecoderConfig {
	cfg := rawruntime.DefaultDecoderConfig()

	if p.ExposureStops != 0 {
		cfg.ExposureCorrection = true
		cfg.ExposureShift = math.Exp2(p.ExposureStops)
	} else {
		cfg.ExposureCorrection = false
		cfg.ExposureShift = 1
	}
	cfg.ExposurePreserve = 0

	cfg.Brightness = p.Brightness

	if p.Gamma > 0 {
		cfg.Gamma = [2]float64{1 / p.Gamma, ToeSlope}
	}

	cfg.UserQuality = int32(p.DemosaicAlgorithm)

	cfg.UseCameraWB = false
	cfg.UseAutoWB = false
	cfg.UserMultipliers = [4]float32{}
	switch p.WhiteBalance() {
	case params.WhiteBalanceCamera:
		cfg.UseCameraWB = true
	case params.WhiteBalanceAuto:
		cfg.UseAutoWB = true
	case params.WhiteBalanceManual:
		cfg.UserMultipliers = colorscience.Multipliers(p.TemperatureK, p.Tint)
	}

	cfg.Highlight = p.HighlightRecoveryMode
	cfg.NoAutoBright = p.NoAutoBright
	cfg.FourColorRGB = p.FourColorRGB

	cfg.OutputColor = rawruntime.OutputColorSRGB
	cfg.OutputBPS = 8
	cfg.OutputTIFF = false
	cfg.UserFlip = rawruntime.UserFlipFromMetadata

	return cfg
}
