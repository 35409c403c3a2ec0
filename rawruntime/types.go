package rawruntime

import "time"

// DecoderConfig is the full set of processing fields applied to a session
// before Process. It is a plain value; sessions copy it and never retain a
// reference to the caller's struct.
type DecoderConfig struct {
	// Exposure correction. ExposureShift is linear (1.0 = none) and only
	// takes effect when ExposureCorrection is set.
	ExposureCorrection bool
	ExposureShift      float64
	ExposurePreserve   float64

	Brightness float64

	// Gamma is {1/gamma, toe slope}. The zero value leaves the decoder default.
	Gamma [2]float64

	// UserQuality selects the demosaic algorithm by decoder code.
	UserQuality int32

	UseCameraWB bool
	UseAutoWB   bool
	// UserMultipliers are R, G, B, G2 white balance multipliers. They must be
	// all zero whenever UseCameraWB or UseAutoWB is set.
	UserMultipliers [4]float32

	Highlight    int32
	NoAutoBright bool
	FourColorRGB bool

	// Output policy.
	OutputColor int32 // 1 = sRGB
	OutputBPS   int32
	OutputTIFF  bool
	UserFlip    int32 // -1 = orientation from file metadata
}

// Output policy constants.
const (
	OutputColorRaw  = 0
	OutputColorSRGB = 1

	UserFlipFromMetadata = -1
)

// DefaultDecoderConfig returns the configuration a session starts with:
// no exposure correction, unit brightness, camera white balance off, and the
// fixed 8-bit sRGB output policy.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		ExposureShift: 1,
		Brightness:    1,
		Gamma:         [2]float64{1 / 2.222, 4.5},
		UserQuality:   3,
		OutputColor:   OutputColorSRGB,
		OutputBPS:     8,
		UserFlip:      UserFlipFromMetadata,
	}
}

// ProcessedImage is a materialized result. Data is owned by the session
// until ReleaseImage is called on it.
type ProcessedImage struct {
	Type   ImageType
	Width  int
	Height int
	Colors int
	Bits   int
	Data   []byte

	native any
}

// CameraInfo is capture metadata read after Open.
type CameraInfo struct {
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Software    string    `json:"software,omitempty"`
	ISO         float64   `json:"iso"`
	Shutter     float64   `json:"shutter"`
	Aperture    float64   `json:"aperture"`
	FocalLength float64   `json:"focal_length"`
	Timestamp   time.Time `json:"timestamp"`
}

// ImageInfo is sensor geometry read after Open.
type ImageInfo struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	RawWidth   int `json:"raw_width"`
	RawHeight  int `json:"raw_height"`
	TopMargin  int `json:"top_margin"`
	LeftMargin int `json:"left_margin"`
	BitDepth   int `json:"bit_depth"`
	Colors     int `json:"colors"`
}

// ColorInfo carries the as-shot white balance multipliers (R, G, B, G2).
type ColorInfo struct {
	CameraMultipliers [4]float32 `json:"camera_multipliers"`
}
