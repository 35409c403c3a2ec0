//go:build !libraw || !cgo

// Stub used when the binary is built without LibRaw.
// Build with: go build (no tags)

package rawruntime

type stubDecoder struct{}

// NewLibRaw returns a decoder that reports NotImplemented for every file.
// Rebuild with CGO_ENABLED=1 and -tags libraw to decode real RAW files.
func NewLibRaw() Decoder { return stubDecoder{} }

func (stubDecoder) NewSession() Session { return &stubSession{} }

func (stubDecoder) ErrorMessage(code ErrorCode) string {
	if code == NotImplemented {
		return code.String() + " (built without LibRaw, rebuild with -tags libraw)"
	}
	return code.String()
}

func (stubDecoder) Version() string { return "stub (no LibRaw linked)" }

func (stubDecoder) CameraList() []string { return nil }

type stubSession struct{}

func (*stubSession) Open(string) ErrorCode                   { return NotImplemented }
func (*stubSession) Configure(DecoderConfig)                 {}
func (*stubSession) Unpack() ErrorCode                       { return OutOfOrderCall }
func (*stubSession) UnpackThumbnail() ErrorCode              { return OutOfOrderCall }
func (*stubSession) Process() ErrorCode                      { return OutOfOrderCall }
func (*stubSession) MakeImage() (*ProcessedImage, ErrorCode) { return nil, OutOfOrderCall }
func (*stubSession) ReleaseImage(*ProcessedImage)            {}
func (*stubSession) Close()                                  {}
func (*stubSession) CameraInfo() CameraInfo                  { return CameraInfo{} }
func (*stubSession) ImageInfo() ImageInfo                    { return ImageInfo{} }
func (*stubSession) ColorInfo() ColorInfo                    { return ColorInfo{} }
