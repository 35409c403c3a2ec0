// Package colorscience converts correlated color temperature into white
// balance channel multipliers.
package colorscience

import "math"

// KelvinToMultipliers approximates the Planckian locus color of an
// illuminant at temperatureK and returns red, green and blue multipliers
// normalized so the brightest channel is exactly 1.0.
func KelvinToMultipliers(temperatureK float64) (r, g, b float64) {
	t := temperatureK / 100

	if t <= 66 {
		r = 255
	} else {
		r = clamp255(329.698727446 * math.Pow(t-60, -0.1332047592))
	}

	if t <= 66 {
		g = clamp255(99.4708025861*math.Log(t) - 161.1195681661)
	} else {
		g = clamp255(288.1221695283 * math.Pow(t-60, -0.0755148492))
	}

	switch {
	case t >= 66:
		b = 255
	case t <= 19:
		b = 0
	default:
		b = clamp255(138.5177312231*math.Log(t-10) - 305.0447927307)
	}

	peak := math.Max(r, math.Max(g, b))
	if peak == 0 {
		return 1, 1, 1
	}
	return r / peak, g / peak, b / peak
}

// TintFactor is the multiplicative green adjustment for a tint in [-100, 100].
func TintFactor(tint float64) float64 {
	return 1 + tint/100
}

// Multipliers returns decoder-ready user multipliers in R, G, B, G2 order for
// manual white balance. Tint scales both green entries.
func Multipliers(temperatureK, tint float64) [4]float32 {
	r, g, b := KelvinToMultipliers(temperatureK)
	g *= TintFactor(tint)
	return [4]float32{float32(r), float32(g), float32(b), float32(g)}
}

func clamp255(x float64) float64 {
	return math.Max(0, math.Min(255, x))
}
