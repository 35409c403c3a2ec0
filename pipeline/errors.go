package pipeline

import (
	"context"
	"errors"
	"fmt"

	"rawdevelop/rawruntime"
)

// Stage names a step of the render sequence.
type Stage string

const (
	StageOpen         Stage = "open"
	StageConfigure    Stage = "configure"
	StageUnpack       Stage = "unpack"
	StageThumbnail    Stage = "unpack_thumbnail"
	StageRender       Stage = "render"
	StageMaterialize  Stage = "materialize"
	StageCanonicalize Stage = "canonicalize"
)

// Stage failure kinds. A *StageError unwraps to exactly one of these.
var (
	ErrOpenFailed           = errors.New("pipeline: open failed")
	ErrUnpackFailed         = errors.New("pipeline: unpack failed")
	ErrThumbnailFailed      = errors.New("pipeline: thumbnail unpack failed")
	ErrRenderFailed         = errors.New("pipeline: render failed")
	ErrUnsupportedImageType = errors.New("pipeline: decoder returned a non-bitmap image")
	ErrMaterializeFailed    = errors.New("pipeline: materialize failed")
)

var (
	// ErrCancelled marks a run stopped by its context. Cancelled errors also
	// match context.Canceled or context.DeadlineExceeded.
	ErrCancelled = errors.New("pipeline: render cancelled")

	ErrEncodeFailed   = errors.New("pipeline: encode failed")
	ErrInvalidBitmap  = errors.New("pipeline: invalid bitmap")
	ErrInvalidQuality = errors.New("pipeline: quality must be between 0 and 1")
)

// StageError is a terminal decoder failure at one stage.
type StageError struct {
	Stage   Stage
	Code    rawruntime.ErrorCode
	Message string
	Kind    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v: %s (decoder code %d)", e.Kind, e.Message, int32(e.Code))
}

func (e *StageError) Unwrap() error { return e.Kind }

// EncodeError reports a failed export. The output path must be treated as
// not written.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrEncodeFailed, e.Path, e.Err)
}

func (e *EncodeError) Unwrap() []error { return []error{ErrEncodeFailed, e.Err} }

// IsCancelled reports whether err is a cancellation rather than a failure.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
}
