package pipeline

import (
	"math"
	"testing"

	"rawdevelop/colorscience"
	"rawdevelop/params"
	"rawdevelop/rawruntime"
)

func TestBuildDecoderConfig_Exposure(t *testing.T) {
	zero := BuildDecoderConfig(params.Defaults())
	if zero.ExposureCorrection {
		t.Error("exposure correction enabled at 0 stops")
	}
	if zero.ExposureShift != 1.0 {
		t.Errorf("shift at 0 stops = %v, want exactly 1", zero.ExposureShift)
	}

	prev := 0.0
	for stops := params.MinExposureStops; stops <= params.MaxExposureStops; stops += 0.25 {
		ps := params.Defaults()
		ps.ExposureStops = stops
		cfg := BuildDecoderConfig(ps)
		if cfg.ExposureShift <= prev {
			t.Fatalf("shift not monotonic at %v stops: %v <= %v", stops, cfg.ExposureShift, prev)
		}
		prev = cfg.ExposureShift
		if stops != 0 {
			if !cfg.ExposureCorrection {
				t.Errorf("correction disabled at %v stops", stops)
			}
			if want := math.Pow(2, stops); math.Abs(cfg.ExposureShift-want) > 1e-12 {
				t.Errorf("shift at %v stops = %v, want %v", stops, cfg.ExposureShift, want)
			}
		}
		if cfg.ExposurePreserve != 0 {
			t.Errorf("preserve = %v, want 0", cfg.ExposurePreserve)
		}
	}
}

func TestBuildDecoderConfig_WhiteBalancePrecedence(t *testing.T) {
	tests := []struct {
		name            string
		camera, auto    bool
		wantCamera      bool
		wantAuto        bool
		wantMultipliers bool
	}{
		{"conflicting flags resolve to camera", true, true, true, false, false},
		{"camera only", true, false, true, false, false},
		{"auto only", false, true, false, true, false},
		{"manual", false, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := params.Defaults()
			ps.UseCameraWB, ps.UseAutoWB = tt.camera, tt.auto
			ps.TemperatureK = 3200
			ps.Tint = 10
			cfg := BuildDecoderConfig(ps)

			if cfg.UseCameraWB != tt.wantCamera || cfg.UseAutoWB != tt.wantAuto {
				t.Errorf("camera=%v auto=%v, want camera=%v auto=%v",
					cfg.UseCameraWB, cfg.UseAutoWB, tt.wantCamera, tt.wantAuto)
			}
			if !tt.wantMultipliers {
				if cfg.UserMultipliers != [4]float32{} {
					t.Errorf("multipliers = %v, want all zero", cfg.UserMultipliers)
				}
				return
			}
			want := colorscience.Multipliers(3200, 10)
			if cfg.UserMultipliers != want {
				t.Errorf("multipliers = %v, want %v", cfg.UserMultipliers, want)
			}
			r, g, b := colorscience.KelvinToMultipliers(3200)
			if cfg.UserMultipliers[0] != float32(r) || cfg.UserMultipliers[2] != float32(b) {
				t.Errorf("red/blue multipliers = %v, want %v/%v", cfg.UserMultipliers, r, b)
			}
			wantG := float32(g * colorscience.TintFactor(10))
			if cfg.UserMultipliers[1] != wantG || cfg.UserMultipliers[3] != wantG {
				t.Errorf("green multipliers = %v, want %v on both", cfg.UserMultipliers, wantG)
			}
		})
	}
}

func TestBuildDecoderConfig_PassThrough(t *testing.T) {
	ps := params.Defaults()
	ps.Brightness = 1.75
	gamma := 2.4
	ps.Gamma = gamma
	ps.DemosaicAlgorithm = params.DemosaicLMMSE
	ps.HighlightRecoveryMode = 5
	ps.NoAutoBright = true
	ps.FourColorRGB = true
	cfg := BuildDecoderConfig(ps)

	if cfg.Brightness != 1.75 {
		t.Errorf("brightness = %v", cfg.Brightness)
	}
	if cfg.Gamma != [2]float64{1 / gamma, ToeSlope} {
		t.Errorf("gamma = %v, want [1/2.4 4.5]", cfg.Gamma)
	}
	if cfg.UserQuality != 11 {
		t.Errorf("user quality = %d, want 11", cfg.UserQuality)
	}
	if cfg.Highlight != 5 || !cfg.NoAutoBright || !cfg.FourColorRGB {
		t.Errorf("highlight/no_auto_bright/four_color = %d/%v/%v", cfg.Highlight, cfg.NoAutoBright, cfg.FourColorRGB)
	}
	if cfg.OutputColor != rawruntime.OutputColorSRGB || cfg.OutputBPS != 8 || cfg.OutputTIFF || cfg.UserFlip != -1 {
		t.Errorf("output policy = color %d bps %d tiff %v flip %d", cfg.OutputColor, cfg.OutputBPS, cfg.OutputTIFF, cfg.UserFlip)
	}
}

func TestBuildDecoderConfig_ReservedFieldsHaveNoEffect(t *testing.T) {
	base := BuildDecoderConfig(params.Defaults())
	ps := params.Defaults()
	ps.Contrast = 3
	ps.Saturation = 0
	ps.ShadowRecovery = 1
	if got := BuildDecoderConfig(ps); got != base {
		t.Errorf("reserved fields changed decoder config:\n got %+v\nwant %+v", got, base)
	}
}
