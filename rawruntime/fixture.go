package rawruntime

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixture is a synthetic raw file. Pixels are already demosaiced and are
// listed in the decoder's emit order, which for three-channel output is
// B, G, R per pixel, mirroring LibRaw's in-memory bitmap.
type Fixture struct {
	Camera struct {
		Make        string    `yaml:"make"`
		Model       string    `yaml:"model"`
		Software    string    `yaml:"software"`
		ISO         float64   `yaml:"iso"`
		Shutter     float64   `yaml:"shutter"`
		Aperture    float64   `yaml:"aperture"`
		FocalLength float64   `yaml:"focal_length"`
		Timestamp   time.Time `yaml:"timestamp"`
	} `yaml:"camera"`

	Image struct {
		RawWidth   int `yaml:"raw_width"`
		RawHeight  int `yaml:"raw_height"`
		TopMargin  int `yaml:"top_margin"`
		LeftMargin int `yaml:"left_margin"`
		BitDepth   int `yaml:"bit_depth"`
	} `yaml:"image"`

	CameraMultipliers [4]float32 `yaml:"camera_multipliers"`

	Output struct {
		Type   string `yaml:"type"`
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		Colors int    `yaml:"colors"`
		Bits   int    `yaml:"bits"`
		Pixels []int  `yaml:"pixels"`
	} `yaml:"output"`

	// Fail injects a decoder error at the named stage: open, unpack,
	// thumbnail, process or make_image.
	Fail struct {
		Stage string    `yaml:"stage"`
		Code  ErrorCode `yaml:"code"`
	} `yaml:"fail"`
}

// Fixture stage names accepted in fail.stage.
const (
	FixtureStageOpen      = "open"
	FixtureStageUnpack    = "unpack"
	FixtureStageThumbnail = "thumbnail"
	FixtureStageProcess   = "process"
	FixtureStageMakeImage = "make_image"
)

// ParseFixture decodes and checks fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFixtureInvalid, err)
	}
	if fx.Output.Type == "" {
		fx.Output.Type = ImageBitmap.String()
	}
	if fx.Output.Colors == 0 {
		fx.Output.Colors = 3
	}
	if fx.Output.Bits == 0 {
		fx.Output.Bits = 8
	}
	if fx.Image.RawWidth == 0 {
		fx.Image.RawWidth = fx.Output.Width
	}
	if fx.Image.RawHeight == 0 {
		fx.Image.RawHeight = fx.Output.Height
	}
	if fx.Fail.Stage != "" && fx.Fail.Code == Success {
		fx.Fail.Code = UnspecifiedError
	}

	if fx.Output.Width <= 0 || fx.Output.Height <= 0 {
		return nil, fmt.Errorf("%w: output size %dx%d", ErrFixtureInvalid, fx.Output.Width, fx.Output.Height)
	}
	if fx.Output.Bits != 8 && fx.Output.Bits != 16 {
		return nil, fmt.Errorf("%w: output bits %d must be 8 or 16", ErrFixtureInvalid, fx.Output.Bits)
	}
	if want := fx.Output.Width * fx.Output.Height * fx.Output.Colors; len(fx.Output.Pixels) != want {
		return nil, fmt.Errorf("%w: %d samples, want %d", ErrFixtureInvalid, len(fx.Output.Pixels), want)
	}
	switch fx.Fail.Stage {
	case "", FixtureStageOpen, FixtureStageUnpack, FixtureStageThumbnail, FixtureStageProcess, FixtureStageMakeImage:
	default:
		return nil, fmt.Errorf("%w: unknown fail stage %q", ErrFixtureInvalid, fx.Fail.Stage)
	}
	return &fx, nil
}

func (fx *Fixture) imageType() ImageType {
	if strings.EqualFold(fx.Output.Type, ImageJPEG.String()) {
		return ImageJPEG
	}
	return ImageBitmap
}

func (fx *Fixture) failsAt(stage string) ErrorCode {
	if fx.Fail.Stage == stage {
		return fx.Fail.Code
	}
	return Success
}

type fixtureDecoder struct{}

// NewFixtureDecoder returns a decoder whose "raw files" are Fixture YAML
// documents. Processing honors exposure shift, brightness and manual white
// balance multipliers so parameter edits have a visible effect.
func NewFixtureDecoder() Decoder { return fixtureDecoder{} }

func (fixtureDecoder) NewSession() Session { return &fixtureSession{cfg: DefaultDecoderConfig()} }

func (fixtureDecoder) ErrorMessage(code ErrorCode) string { return code.String() }

func (fixtureDecoder) Version() string { return "fixture 1.0" }

func (fixtureDecoder) CameraList() []string { return []string{"Synthetic Fixture"} }

type fixtureSession struct {
	fx        *Fixture
	cfg       DecoderConfig
	closed    bool
	unpacked  bool
	processed []int
}

func (s *fixtureSession) Open(path string) ErrorCode {
	if s.closed {
		return InputClosed
	}
	if s.fx != nil {
		return OutOfOrderCall
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return IOError
	}
	fx, err := ParseFixture(data)
	if err != nil {
		return FileUnsupported
	}
	if code := fx.failsAt(FixtureStageOpen); !code.OK() {
		return code
	}
	s.fx = fx
	return Success
}

func (s *fixtureSession) Configure(cfg DecoderConfig) { s.cfg = cfg }

func (s *fixtureSession) Unpack() ErrorCode {
	if code := s.ready(); !code.OK() {
		return code
	}
	if code := s.fx.failsAt(FixtureStageUnpack); !code.OK() {
		return code
	}
	s.unpacked = true
	return Success
}

func (s *fixtureSession) UnpackThumbnail() ErrorCode {
	if code := s.ready(); !code.OK() {
		return code
	}
	return s.fx.failsAt(FixtureStageThumbnail)
}

func (s *fixtureSession) Process() ErrorCode {
	if code := s.ready(); !code.OK() {
		return code
	}
	if !s.unpacked {
		return OutOfOrderCall
	}
	if code := s.fx.failsAt(FixtureStageProcess); !code.OK() {
		return code
	}
	s.processed = s.develop()
	return Success
}

func (s *fixtureSession) MakeImage() (*ProcessedImage, ErrorCode) {
	if code := s.ready(); !code.OK() {
		return nil, code
	}
	if s.processed == nil {
		return nil, OutOfOrderCall
	}
	if code := s.fx.failsAt(FixtureStageMakeImage); !code.OK() {
		return nil, code
	}

	out := s.fx.Output
	var data []byte
	if out.Bits == 16 {
		data = make([]byte, 2*len(s.processed))
		for i, v := range s.processed {
			binary.LittleEndian.PutUint16(data[2*i:], uint16(v))
		}
	} else {
		data = make([]byte, len(s.processed))
		for i, v := range s.processed {
			data[i] = byte(v)
		}
	}
	return &ProcessedImage{
		Type:   s.fx.imageType(),
		Width:  out.Width,
		Height: out.Height,
		Colors: out.Colors,
		Bits:   out.Bits,
		Data:   data,
		native: s,
	}, Success
}

func (s *fixtureSession) ReleaseImage(img *ProcessedImage) {
	if img == nil {
		return
	}
	img.native = nil
	img.Data = nil
}

func (s *fixtureSession) Close() {
	s.closed = true
	s.fx = nil
	s.processed = nil
}

func (s *fixtureSession) CameraInfo() CameraInfo {
	if s.fx == nil {
		return CameraInfo{}
	}
	c := s.fx.Camera
	return CameraInfo{
		Make:        c.Make,
		Model:       c.Model,
		Software:    c.Software,
		ISO:         c.ISO,
		Shutter:     c.Shutter,
		Aperture:    c.Aperture,
		FocalLength: c.FocalLength,
		Timestamp:   c.Timestamp,
	}
}

func (s *fixtureSession) ImageInfo() ImageInfo {
	if s.fx == nil {
		return ImageInfo{}
	}
	return ImageInfo{
		Width:      s.fx.Output.Width,
		Height:     s.fx.Output.Height,
		RawWidth:   s.fx.Image.RawWidth,
		RawHeight:  s.fx.Image.RawHeight,
		TopMargin:  s.fx.Image.TopMargin,
		LeftMargin: s.fx.Image.LeftMargin,
		BitDepth:   s.fx.Image.BitDepth,
		Colors:     s.fx.Output.Colors,
	}
}

func (s *fixtureSession) ColorInfo() ColorInfo {
	if s.fx == nil {
		return ColorInfo{}
	}
	return ColorInfo{CameraMultipliers: s.fx.CameraMultipliers}
}

func (s *fixtureSession) ready() ErrorCode {
	if s.closed {
		return InputClosed
	}
	if s.fx == nil {
		return OutOfOrderCall
	}
	return Success
}

// develop applies the configured gain to every sample. Three-channel data
// is in B, G, R order, so channel i takes user multiplier 2-i.
func (s *fixtureSession) develop() []int {
	gain := s.cfg.Brightness
	if gain <= 0 {
		gain = 1
	}
	if s.cfg.ExposureCorrection && s.cfg.ExposureShift > 0 {
		gain *= s.cfg.ExposureShift
	}

	out := s.fx.Output
	manualWB := !s.cfg.UseCameraWB && !s.cfg.UseAutoWB && out.Colors == 3 &&
		s.cfg.UserMultipliers != [4]float32{}
	maxVal := float64(int(1)<<out.Bits - 1)

	developed := make([]int, len(out.Pixels))
	for i, v := range out.Pixels {
		g := gain
		if manualWB {
			g *= float64(s.cfg.UserMultipliers[2-i%3])
		}
		developed[i] = int(math.Round(math.Max(0, math.Min(maxVal, float64(v)*g))))
	}
	return developed
}
