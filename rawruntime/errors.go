package rawruntime

import (
	"errors"
	"fmt"
)

// ErrorCode is a decoder status code. Values mirror LibRaw's LibRaw_errors
// enum so codes from any Decoder can be logged and compared uniformly.
type ErrorCode int32

const (
	Success                        ErrorCode = 0
	UnspecifiedError               ErrorCode = -1
	FileUnsupported                ErrorCode = -2
	RequestForNonexistentImage     ErrorCode = -3
	OutOfOrderCall                 ErrorCode = -4
	NoThumbnail                    ErrorCode = -5
	UnsupportedThumbnail           ErrorCode = -6
	InputClosed                    ErrorCode = -7
	NotImplemented                 ErrorCode = -8
	RequestForNonexistentThumbnail ErrorCode = -9
	InsufficientMemory             ErrorCode = -100007
	DataError                      ErrorCode = -100008
	IOError                        ErrorCode = -100009
	CancelledByCallback            ErrorCode = -100010
	BadCrop                        ErrorCode = -100011
	TooBig                         ErrorCode = -100012
	MempoolOverflow                ErrorCode = -100013
)

var errorMessages = map[ErrorCode]string{
	Success:                        "No error",
	UnspecifiedError:               "Unknown error",
	FileUnsupported:                "Unsupported file format or not RAW file",
	RequestForNonexistentImage:     "Request for nonexisting image number",
	OutOfOrderCall:                 "Out of order call of libraw function",
	NoThumbnail:                    "No thumbnail in file",
	UnsupportedThumbnail:           "Unsupported thumbnail format",
	InputClosed:                    "No input stream, or input stream closed",
	NotImplemented:                 "Not implemented",
	RequestForNonexistentThumbnail: "Request for nonexisting thumbnail number",
	InsufficientMemory:             "Insufficient memory",
	DataError:                      "Corrupt data or unexpected EOF",
	IOError:                        "Input/output error",
	CancelledByCallback:            "Cancelled by user callback",
	BadCrop:                        "Bad crop box",
	TooBig:                         "Image too big for processing",
	MempoolOverflow:                "Libraw internal memory pool overflowed",
}

// String returns the built-in message for c.
func (c ErrorCode) String() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error code %d", int32(c))
}

// OK reports whether c is Success.
func (c ErrorCode) OK() bool { return c == Success }

// Fatal reports whether c leaves the native handle unusable. LibRaw
// classifies every code below -100000 this way.
func (c ErrorCode) Fatal() bool { return c < -100000 }

// ImageType identifies the layout of a ProcessedImage.
type ImageType int32

const (
	ImageJPEG   ImageType = 1
	ImageBitmap ImageType = 2
)

func (t ImageType) String() string {
	switch t {
	case ImageJPEG:
		return "jpeg"
	case ImageBitmap:
		return "bitmap"
	default:
		return fmt.Sprintf("image-type(%d)", int32(t))
	}
}

var (
	// ErrUnknownDecoder is returned by New for an unrecognized decoder kind.
	ErrUnknownDecoder = errors.New("rawruntime: unknown decoder kind")

	// ErrFixtureInvalid is returned when a fixture file cannot be parsed or
	// its pixel data does not match its declared geometry.
	ErrFixtureInvalid = errors.New("rawruntime: invalid fixture")
)
