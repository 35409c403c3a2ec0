package pipeline

import (
	"context"

	"go.uber.org/zap"

	"rawdevelop/rawruntime"
)

// Metadata is the read-only description of an opened file. It is never
// mutated after ReadMetadata returns and may be shared freely.
type Metadata struct {
	Camera rawruntime.CameraInfo `json:"camera"`
	Image  rawruntime.ImageInfo  `json:"image"`
	Color  rawruntime.ColorInfo  `json:"color"`
}

// ReadMetadata opens path, reads camera, image and color metadata, and
// closes the session without decoding pixels.
func (p *Pipeline) ReadMetadata(ctx context.Context, path string) (*Metadata, error) {
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	sess := p.decoder.NewSession()
	defer sess.Close()

	if code := sess.Open(path); !code.OK() {
		return nil, p.fail(p.logger.With(zap.String("path", path)), ErrOpenFailed, StageOpen, code)
	}
	md := &Metadata{
		Camera: sess.CameraInfo(),
		Image:  sess.ImageInfo(),
		Color:  sess.ColorInfo(),
	}
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	return md, nil
}
