package main

import (
	"flag"

	"rawdevelop/params"
)

// paramFlags exposes every ParameterSet field as a flag. Only flags given on
// the command line are applied, so a preset's values survive unless
// explicitly overridden.
type paramFlags struct {
	exposure     float64
	brightness   float64
	temperature  float64
	tint         float64
	contrast     float64
	saturation   float64
	gamma        float64
	shadows      float64
	highlight    int
	cameraWB     bool
	autoWB       bool
	demosaic     string
	noAutoBright bool
	fourColor    bool
}

func (p *paramFlags) register(fs *flag.FlagSet) {
	d := params.Defaults()
	fs.Float64Var(&p.exposure, "exposure", d.ExposureStops, "exposure correction in stops")
	fs.Float64Var(&p.brightness, "brightness", d.Brightness, "brightness multiplier")
	fs.Float64Var(&p.temperature, "temp", d.TemperatureK, "white balance temperature in kelvin (selects manual white balance)")
	fs.Float64Var(&p.tint, "tint", d.Tint, "white balance tint (selects manual white balance)")
	fs.Float64Var(&p.contrast, "contrast", d.Contrast, "contrast (reserved)")
	fs.Float64Var(&p.saturation, "saturation", d.Saturation, "saturation (reserved)")
	fs.Float64Var(&p.gamma, "gamma", d.Gamma, "output gamma")
	fs.Float64Var(&p.shadows, "shadows", d.ShadowRecovery, "shadow recovery (reserved)")
	fs.IntVar(&p.highlight, "highlight", int(d.HighlightRecoveryMode), "highlight mode: 0 clip, 1 unclip, 2 blend, 3-9 rebuild")
	fs.BoolVar(&p.cameraWB, "camera-wb", d.UseCameraWB, "use the as-shot white balance")
	fs.BoolVar(&p.autoWB, "auto-wb", d.UseAutoWB, "use automatic white balance")
	fs.StringVar(&p.demosaic, "demosaic", d.DemosaicAlgorithm.String(), "demosaic algorithm name or code")
	fs.BoolVar(&p.noAutoBright, "no-auto-bright", d.NoAutoBright, "disable automatic brightening")
	fs.BoolVar(&p.fourColor, "four-color", d.FourColorRGB, "interpolate RGB as four colors")
}

// apply layers the flags set on fs over base. Setting -temp or -tint without
// -camera-wb or -auto-wb switches to manual white balance.
func (p *paramFlags) apply(fs *flag.FlagSet, base params.ParameterSet) (params.ParameterSet, error) {
	ps := base
	set := make(map[string]bool)
	var err error
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
		switch f.Name {
		case "exposure":
			ps.ExposureStops = p.exposure
		case "brightness":
			ps.Brightness = p.brightness
		case "temp":
			ps.TemperatureK = p.temperature
		case "tint":
			ps.Tint = p.tint
		case "contrast":
			ps.Contrast = p.contrast
		case "saturation":
			ps.Saturation = p.saturation
		case "gamma":
			ps.Gamma = p.gamma
		case "shadows":
			ps.ShadowRecovery = p.shadows
		case "highlight":
			ps.HighlightRecoveryMode = int32(p.highlight)
		case "camera-wb":
			ps.UseCameraWB = p.cameraWB
		case "auto-wb":
			ps.UseAutoWB = p.autoWB
		case "demosaic":
			d, derr := params.ParseDemosaic(p.demosaic)
			if derr != nil {
				err = derr
			}
			ps.DemosaicAlgorithm = d
		case "no-auto-bright":
			ps.NoAutoBright = p.noAutoBright
		case "four-color":
			ps.FourColorRGB = p.fourColor
		}
	})
	if err != nil {
		return params.ParameterSet{}, err
	}
	if (set["temp"] || set["tint"]) && !set["camera-wb"] && !set["auto-wb"] {
		ps.UseCameraWB, ps.UseAutoWB = false, false
	}
	if err := ps.Validate(); err != nil {
		return params.ParameterSet{}, err
	}
	return ps, nil
}
