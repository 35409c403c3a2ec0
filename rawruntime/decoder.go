package rawruntime

import (
	"fmt"
	"strings"
)

// Session is one native decoder handle bound to at most one file.
//
// Every method that can fail returns an ErrorCode; Success means the call
// went through. Close is idempotent and safe on a session whose Open failed
// or was never called. ReleaseImage is idempotent per image.
type Session interface {
	Open(path string) ErrorCode
	Configure(cfg DecoderConfig)
	Unpack() ErrorCode
	UnpackThumbnail() ErrorCode
	Process() ErrorCode
	MakeImage() (*ProcessedImage, ErrorCode)
	ReleaseImage(img *ProcessedImage)
	Close()

	CameraInfo() CameraInfo
	ImageInfo() ImageInfo
	ColorInfo() ColorInfo
}

// Decoder creates sessions and describes the underlying engine.
type Decoder interface {
	NewSession() Session
	ErrorMessage(code ErrorCode) string
	Version() string
	CameraList() []string
}

// Decoder kinds accepted by New.
const (
	KindLibRaw  = "libraw"
	KindFixture = "fixture"
)

// New returns the decoder registered under kind.
func New(kind string) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindLibRaw, "":
		return NewLibRaw(), nil
	case KindFixture:
		return NewFixtureDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownDecoder, kind, KindLibRaw, KindFixture)
	}
}
