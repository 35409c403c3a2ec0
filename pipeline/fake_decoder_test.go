package pipeline

import (
	"sync"

	"rawdevelop/rawruntime"
)

// trackingDecoder is a release-tracking test double. It fails at one chosen
// point and records every Close and ReleaseImage call.
type trackingDecoder struct {
	failAt    Stage
	code      rawruntime.ErrorCode
	imageType rawruntime.ImageType

	// codeWithImage makes MakeImage return an image together with an error code.
	codeWithImage bool

	// shortData makes MakeImage return fewer bytes than the geometry needs.
	shortData bool

	// onCall runs before each decoder call with the stage it belongs to.
	onCall func(Stage)

	mu       sync.Mutex
	sessions []*trackingSession
}

type trackingSession struct {
	d        *trackingDecoder
	closes   int
	releases int
	images   int
	cfg      rawruntime.DecoderConfig
}

func (d *trackingDecoder) NewSession() rawruntime.Session {
	s := &trackingSession{d: d}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s
}

func (d *trackingDecoder) ErrorMessage(code rawruntime.ErrorCode) string { return code.String() }
func (d *trackingDecoder) Version() string                               { return "tracking" }
func (d *trackingDecoder) CameraList() []string                          { return nil }

func (d *trackingDecoder) only() *trackingSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) != 1 {
		return nil
	}
	return d.sessions[0]
}

func (s *trackingSession) step(stage Stage) rawruntime.ErrorCode {
	if s.d.onCall != nil {
		s.d.onCall(stage)
	}
	if s.d.failAt == stage {
		return s.d.code
	}
	return rawruntime.Success
}

func (s *trackingSession) Open(string) rawruntime.ErrorCode       { return s.step(StageOpen) }
func (s *trackingSession) Configure(cfg rawruntime.DecoderConfig) { s.cfg = cfg }
func (s *trackingSession) Unpack() rawruntime.ErrorCode           { return s.step(StageUnpack) }
func (s *trackingSession) UnpackThumbnail() rawruntime.ErrorCode  { return s.step(StageThumbnail) }
func (s *trackingSession) Process() rawruntime.ErrorCode          { return s.step(StageRender) }

func (s *trackingSession) MakeImage() (*rawruntime.ProcessedImage, rawruntime.ErrorCode) {
	code := s.step(StageMaterialize)
	if !code.OK() && !s.d.codeWithImage {
		return nil, code
	}
	typ := s.d.imageType
	if typ == 0 {
		typ = rawruntime.ImageBitmap
	}
	data := []byte{3, 2, 1, 6, 5, 4}
	if s.d.shortData {
		data = data[:4]
	}
	s.images++
	return &rawruntime.ProcessedImage{Type: typ, Width: 2, Height: 1, Colors: 3, Bits: 8, Data: data}, code
}

func (s *trackingSession) ReleaseImage(*rawruntime.ProcessedImage) { s.releases++ }
func (s *trackingSession) Close()                                  { s.closes++ }

func (s *trackingSession) CameraInfo() rawruntime.CameraInfo {
	return rawruntime.CameraInfo{Make: "Tracking", Model: "T1"}
}

func (s *trackingSession) ImageInfo() rawruntime.ImageInfo {
	return rawruntime.ImageInfo{Width: 2, Height: 1}
}

func (s *trackingSession) ColorInfo() rawruntime.ColorInfo { return rawruntime.ColorInfo{} }
