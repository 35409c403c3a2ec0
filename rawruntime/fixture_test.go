package rawruntime

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

const synthetic = "testdata/synthetic2x2.yaml"

func writeFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFixtureSession_FullSequence(t *testing.T) {
	sess := NewFixtureDecoder().NewSession()
	defer sess.Close()

	if code := sess.Open(synthetic); !code.OK() {
		t.Fatalf("Open() = %v", code)
	}
	sess.Configure(DefaultDecoderConfig())
	if code := sess.Unpack(); !code.OK() {
		t.Fatalf("Unpack() = %v", code)
	}
	if code := sess.UnpackThumbnail(); !code.OK() {
		t.Fatalf("UnpackThumbnail() = %v", code)
	}
	if code := sess.Process(); !code.OK() {
		t.Fatalf("Process() = %v", code)
	}
	img, code := sess.MakeImage()
	if !code.OK() {
		t.Fatalf("MakeImage() = %v", code)
	}

	want := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120}
	if diff := cmp.Diff(want, img.Data); diff != "" {
		t.Errorf("MakeImage() data mismatch (-want +got):\n%s", diff)
	}
	if img.Type != ImageBitmap || img.Width != 2 || img.Height != 2 || img.Colors != 3 || img.Bits != 8 {
		t.Errorf("MakeImage() header = %+v", img)
	}

	sess.ReleaseImage(img)
	if img.Data != nil {
		t.Error("ReleaseImage() left Data set")
	}
	sess.ReleaseImage(img)
}

func TestFixtureSession_Metadata(t *testing.T) {
	sess := NewFixtureDecoder().NewSession()
	defer sess.Close()
	if code := sess.Open(synthetic); !code.OK() {
		t.Fatalf("Open() = %v", code)
	}

	wantCam := CameraInfo{
		Make:        "Synthetic",
		Model:       "Fixture 2x2",
		Software:    "rawdevelop-fixture",
		ISO:         200,
		Shutter:     0.004,
		Aperture:    4,
		FocalLength: 50,
		Timestamp:   time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(wantCam, sess.CameraInfo()); diff != "" {
		t.Errorf("CameraInfo() mismatch (-want +got):\n%s", diff)
	}

	wantImg := ImageInfo{Width: 2, Height: 2, RawWidth: 4, RawHeight: 4, TopMargin: 1, LeftMargin: 1, BitDepth: 14, Colors: 3}
	if diff := cmp.Diff(wantImg, sess.ImageInfo()); diff != "" {
		t.Errorf("ImageInfo() mismatch (-want +got):\n%s", diff)
	}

	if got := sess.ColorInfo().CameraMultipliers; got != [4]float32{2, 1, 1.5, 1} {
		t.Errorf("ColorInfo() = %v", got)
	}
}

func TestFixtureSession_Gain(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(c *DecoderConfig)
		want []byte
	}{
		{
			name: "exposure shift ignored without correction",
			cfg:  func(c *DecoderConfig) { c.ExposureShift = 4 },
			want: []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120},
		},
		{
			name: "one stop up",
			cfg: func(c *DecoderConfig) {
				c.ExposureCorrection = true
				c.ExposureShift = 2
			},
			want: []byte{20, 40, 60, 80, 100, 120, 140, 160, 180, 200, 220, 240},
		},
		{
			name: "brightness and clamp",
			cfg:  func(c *DecoderConfig) { c.Brightness = 2.5 },
			want: []byte{25, 50, 75, 100, 125, 150, 175, 200, 225, 250, 255, 255},
		},
		{
			name: "manual multipliers hit emit order",
			cfg:  func(c *DecoderConfig) { c.UserMultipliers = [4]float32{2, 1, 0.5, 1} },
			want: []byte{5, 20, 60, 20, 50, 120, 35, 80, 180, 50, 110, 240},
		},
		{
			name: "multipliers ignored under camera white balance",
			cfg: func(c *DecoderConfig) {
				c.UseCameraWB = true
				c.UserMultipliers = [4]float32{2, 1, 0.5, 1}
			},
			want: []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := NewFixtureDecoder().NewSession()
			defer sess.Close()
			cfg := DefaultDecoderConfig()
			tt.cfg(&cfg)

			if code := sess.Open(synthetic); !code.OK() {
				t.Fatalf("Open() = %v", code)
			}
			sess.Configure(cfg)
			if code := sess.Unpack(); !code.OK() {
				t.Fatalf("Unpack() = %v", code)
			}
			if code := sess.Process(); !code.OK() {
				t.Fatalf("Process() = %v", code)
			}
			img, code := sess.MakeImage()
			if !code.OK() {
				t.Fatalf("MakeImage() = %v", code)
			}
			defer sess.ReleaseImage(img)
			if diff := cmp.Diff(tt.want, img.Data); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFixtureSession_FailInjection(t *testing.T) {
	stages := []struct {
		stage string
		run   func(s Session) ErrorCode
	}{
		{FixtureStageUnpack, func(s Session) ErrorCode { return s.Unpack() }},
		{FixtureStageThumbnail, func(s Session) ErrorCode { s.Unpack(); return s.UnpackThumbnail() }},
		{FixtureStageProcess, func(s Session) ErrorCode { s.Unpack(); return s.Process() }},
		{FixtureStageMakeImage, func(s Session) ErrorCode {
			s.Unpack()
			s.Process()
			_, code := s.MakeImage()
			return code
		}},
	}
	for _, tt := range stages {
		t.Run(tt.stage, func(t *testing.T) {
			path := writeFixture(t, "output: {width: 1, height: 1, pixels: [1, 2, 3]}\nfail: {stage: "+tt.stage+", code: -100008}\n")
			sess := NewFixtureDecoder().NewSession()
			defer sess.Close()
			if code := sess.Open(path); !code.OK() {
				t.Fatalf("Open() = %v", code)
			}
			if got := tt.run(sess); got != DataError {
				t.Errorf("%s = %v, want %v", tt.stage, got, DataError)
			}
		})
	}

	t.Run("open", func(t *testing.T) {
		path := writeFixture(t, "output: {width: 1, height: 1, pixels: [1, 2, 3]}\nfail: {stage: open}\n")
		sess := NewFixtureDecoder().NewSession()
		defer sess.Close()
		if got := sess.Open(path); got != UnspecifiedError {
			t.Errorf("Open() = %v, want %v", got, UnspecifiedError)
		}
	})
}

func TestFixtureSession_OpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want ErrorCode
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }, IOError},
		{"not a fixture", func(t *testing.T) string { return writeFixture(t, "just: text\n") }, FileUnsupported},
		{"sample count mismatch", func(t *testing.T) string {
			return writeFixture(t, "output: {width: 2, height: 1, pixels: [1, 2, 3]}\n")
		}, FileUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := NewFixtureDecoder().NewSession()
			defer sess.Close()
			if got := sess.Open(tt.path(t)); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFixtureSession_OrderAndClose(t *testing.T) {
	sess := NewFixtureDecoder().NewSession()
	if got := sess.Unpack(); got != OutOfOrderCall {
		t.Errorf("Unpack() before Open = %v, want %v", got, OutOfOrderCall)
	}
	if code := sess.Open(synthetic); !code.OK() {
		t.Fatalf("Open() = %v", code)
	}
	if got := sess.Process(); got != OutOfOrderCall {
		t.Errorf("Process() before Unpack = %v, want %v", got, OutOfOrderCall)
	}
	if _, got := sess.MakeImage(); got != OutOfOrderCall {
		t.Errorf("MakeImage() before Process = %v, want %v", got, OutOfOrderCall)
	}

	sess.Close()
	sess.Close()
	if got := sess.Unpack(); got != InputClosed {
		t.Errorf("Unpack() after Close = %v, want %v", got, InputClosed)
	}
	if got := sess.CameraInfo(); got != (CameraInfo{}) {
		t.Errorf("CameraInfo() after Close = %+v, want zero", got)
	}
}

func TestParseFixture_Defaults(t *testing.T) {
	fx, err := ParseFixture([]byte("output: {width: 1, height: 1, pixels: [1, 2, 3]}\nfail: {stage: process}\n"))
	if err != nil {
		t.Fatalf("ParseFixture() error: %v", err)
	}
	if fx.Output.Colors != 3 || fx.Output.Bits != 8 || fx.imageType() != ImageBitmap {
		t.Errorf("defaults not applied: %+v", fx.Output)
	}
	if fx.Fail.Code != UnspecifiedError {
		t.Errorf("fail code = %v, want %v", fx.Fail.Code, UnspecifiedError)
	}

	_, err = ParseFixture([]byte("output: {width: 1, height: 1, pixels: [1, 2, 3]}\nfail: {stage: demosaic}\n"))
	if !errors.Is(err, ErrFixtureInvalid) {
		t.Errorf("unknown stage error = %v, want ErrFixtureInvalid", err)
	}
}
