package pipeline

import (
	"context"

	"go.uber.org/zap"

	"rawdevelop/logging"
	"rawdevelop/params"
	"rawdevelop/rawruntime"
)

// Options tunes stage failure policy.
type Options struct {
	// TolerateMissingThumbnail lets a render continue past a non-fatal
	// thumbnail unpack failure. Off by default: any thumbnail failure ends
	// the render.
	TolerateMissingThumbnail bool
}

// StageFunc observes stage transitions. It is called on the render goroutine
// before each stage starts and must not block.
type StageFunc func(stage Stage)

// Pipeline renders files through one Decoder. It holds no per-render state
// and is safe for concurrent use; every call gets its own session.
type Pipeline struct {
	decoder rawruntime.Decoder
	logger  *logging.Logger
	opts    Options
}

// New returns a Pipeline. A nil logger discards output.
func New(decoder rawruntime.Decoder, logger *logging.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		decoder: decoder,
		logger:  logger.Named("pipeline"),
		opts:    opts,
	}
}

// Decoder returns the decoder the pipeline renders with.
func (p *Pipeline) Decoder() rawruntime.Decoder { return p.decoder }

// Render runs the full stage sequence for path under ps.
func (p *Pipeline) Render(ctx context.Context, path string, ps params.ParameterSet) (*Bitmap, error) {
	return p.RenderObserved(ctx, path, ps, nil)
}

// RenderObserved is Render with a stage observer.
func (p *Pipeline) RenderObserved(ctx context.Context, path string, ps params.ParameterSet, onStage StageFunc) (*Bitmap, error) {
	if err := ps.Validate(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	notify := func(s Stage) {
		if onStage != nil {
			onStage(s)
		}
	}
	log := p.logger.With(zap.String("path", path))

	sess := p.decoder.NewSession()
	defer sess.Close()

	notify(StageOpen)
	if code := sess.Open(path); !code.OK() {
		return nil, p.fail(log, ErrOpenFailed, StageOpen, code)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	notify(StageConfigure)
	sess.Configure(BuildDecoderConfig(ps))

	notify(StageUnpack)
	if code := sess.Unpack(); !code.OK() {
		return nil, p.fail(log, ErrUnpackFailed, StageUnpack, code)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	notify(StageThumbnail)
	if code := sess.UnpackThumbnail(); !code.OK() {
		if !p.opts.TolerateMissingThumbnail || code.Fatal() {
			return nil, p.fail(log, ErrThumbnailFailed, StageThumbnail, code)
		}
		log.Debug("thumbnail unavailable, continuing",
			logging.StageFields(string(StageThumbnail), int32(code), p.decoder.ErrorMessage(code))...)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	notify(StageRender)
	if code := sess.Process(); !code.OK() {
		return nil, p.fail(log, ErrRenderFailed, StageRender, code)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	notify(StageMaterialize)
	img, code := sess.MakeImage()
	if img != nil {
		defer sess.ReleaseImage(img)
	}
	if img == nil || !code.OK() {
		if code.OK() {
			code = rawruntime.UnspecifiedError
		}
		return nil, p.fail(log, ErrMaterializeFailed, StageMaterialize, code)
	}
	if img.Type != rawruntime.ImageBitmap {
		return nil, p.fail(log, ErrUnsupportedImageType, StageMaterialize, rawruntime.UnspecifiedError)
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	notify(StageCanonicalize)
	bm, err := Canonicalize(img)
	if err != nil {
		log.Warn("canonicalize failed", zap.Error(err))
		return nil, err
	}
	return bm, nil
}

func (p *Pipeline) fail(log *logging.Logger, kind error, stage Stage, code rawruntime.ErrorCode) error {
	msg := p.decoder.ErrorMessage(code)
	if kind == ErrUnsupportedImageType {
		msg = "decoder produced an embedded image instead of a bitmap"
	}
	log.Warn("render stage failed", logging.StageFields(string(stage), int32(code), msg)...)
	return &StageError{Stage: stage, Code: code, Message: msg, Kind: kind}
}
