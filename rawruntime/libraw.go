//go:build libraw && cgo

// LibRaw binding. Build with: CGO_ENABLED=1 go build -tags libraw
//
// Links against the thread-safe libraw_r so independent sessions may run on
// different goroutines at the same time.

package rawruntime

/*
#cgo LDFLAGS: -lraw_r
#include <stdlib.h>
#include <libraw/libraw.h>
*/
import "C"

import (
	"time"
	"unsafe"
)

type libRawDecoder struct{}

// NewLibRaw returns the LibRaw-backed decoder.
func NewLibRaw() Decoder { return libRawDecoder{} }

func (libRawDecoder) NewSession() Session {
	return &libRawSession{lr: C.libraw_init(0)}
}

func (libRawDecoder) ErrorMessage(code ErrorCode) string {
	return C.GoString(C.libraw_strerror(C.int(code)))
}

func (libRawDecoder) Version() string {
	return "LibRaw " + C.GoString(C.libraw_version())
}

func (libRawDecoder) CameraList() []string {
	count := int(C.libraw_cameraCount())
	list := C.libraw_cameraList()
	if list == nil || count <= 0 {
		return nil
	}
	entries := unsafe.Slice((**C.char)(unsafe.Pointer(list)), count)
	cameras := make([]string, 0, count)
	for _, entry := range entries {
		if entry == nil {
			break
		}
		cameras = append(cameras, C.GoString(entry))
	}
	return cameras
}

// libRawSession owns one libraw_data_t. lr is nil once closed.
type libRawSession struct {
	lr *C.libraw_data_t
}

func (s *libRawSession) Open(path string) ErrorCode {
	if s.lr == nil {
		return InputClosed
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	return ErrorCode(C.libraw_open_file(s.lr, cPath))
}

func (s *libRawSession) Configure(cfg DecoderConfig) {
	if s.lr == nil {
		return
	}
	p := &s.lr.params

	p.exp_correc = cBool(cfg.ExposureCorrection)
	p.exp_shift = C.float(cfg.ExposureShift)
	p.exp_preser = C.float(cfg.ExposurePreserve)

	p.bright = C.float(cfg.Brightness)
	if cfg.Gamma[0] > 0 {
		p.gamm[0] = C.double(cfg.Gamma[0])
		p.gamm[1] = C.double(cfg.Gamma[1])
	}

	p.user_qual = C.int(cfg.UserQuality)

	p.use_camera_wb = cBool(cfg.UseCameraWB)
	p.use_auto_wb = cBool(cfg.UseAutoWB)
	for i, m := range cfg.UserMultipliers {
		p.user_mul[i] = C.float(m)
	}

	p.highlight = C.int(cfg.Highlight)
	p.no_auto_bright = cBool(cfg.NoAutoBright)
	p.four_color_rgb = cBool(cfg.FourColorRGB)

	p.output_color = C.int(cfg.OutputColor)
	p.output_bps = C.int(cfg.OutputBPS)
	p.output_tiff = cBool(cfg.OutputTIFF)
	p.user_flip = C.int(cfg.UserFlip)
}

func (s *libRawSession) Unpack() ErrorCode {
	if s.lr == nil {
		return InputClosed
	}
	return ErrorCode(C.libraw_unpack(s.lr))
}

func (s *libRawSession) UnpackThumbnail() ErrorCode {
	if s.lr == nil {
		return InputClosed
	}
	return ErrorCode(C.libraw_unpack_thumb(s.lr))
}

func (s *libRawSession) Process() ErrorCode {
	if s.lr == nil {
		return InputClosed
	}
	return ErrorCode(C.libraw_dcraw_process(s.lr))
}

func (s *libRawSession) MakeImage() (*ProcessedImage, ErrorCode) {
	if s.lr == nil {
		return nil, InputClosed
	}
	var rc C.int
	img := C.libraw_dcraw_make_mem_image(s.lr, &rc)
	if img == nil {
		if rc == 0 {
			rc = C.int(UnspecifiedError)
		}
		return nil, ErrorCode(rc)
	}

	var data []byte
	if img.data_size > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&img.data[0])), int(img.data_size))
	}
	return &ProcessedImage{
		Type:   ImageType(img._type),
		Width:  int(img.width),
		Height: int(img.height),
		Colors: int(img.colors),
		Bits:   int(img.bits),
		Data:   data,
		native: img,
	}, ErrorCode(rc)
}

func (s *libRawSession) ReleaseImage(img *ProcessedImage) {
	if img == nil {
		return
	}
	if native, ok := img.native.(*C.libraw_processed_image_t); ok && native != nil {
		C.libraw_dcraw_clear_mem(native)
	}
	img.native = nil
	img.Data = nil
}

func (s *libRawSession) Close() {
	if s.lr == nil {
		return
	}
	C.libraw_close(s.lr)
	s.lr = nil
}

func (s *libRawSession) CameraInfo() CameraInfo {
	if s.lr == nil {
		return CameraInfo{}
	}
	info := CameraInfo{
		Make:        C.GoString(&s.lr.idata.make[0]),
		Model:       C.GoString(&s.lr.idata.model[0]),
		Software:    C.GoString(&s.lr.idata.software[0]),
		ISO:         float64(s.lr.other.iso_speed),
		Shutter:     float64(s.lr.other.shutter),
		Aperture:    float64(s.lr.other.aperture),
		FocalLength: float64(s.lr.other.focal_len),
	}
	if ts := int64(s.lr.other.timestamp); ts > 0 {
		info.Timestamp = time.Unix(ts, 0).UTC()
	}
	return info
}

func (s *libRawSession) ImageInfo() ImageInfo {
	if s.lr == nil {
		return ImageInfo{}
	}
	return ImageInfo{
		Width:      int(s.lr.sizes.width),
		Height:     int(s.lr.sizes.height),
		RawWidth:   int(s.lr.sizes.raw_width),
		RawHeight:  int(s.lr.sizes.raw_height),
		TopMargin:  int(s.lr.sizes.top_margin),
		LeftMargin: int(s.lr.sizes.left_margin),
		BitDepth:   int(s.lr.color.raw_bps),
		Colors:     int(s.lr.idata.colors),
	}
}

func (s *libRawSession) ColorInfo() ColorInfo {
	var info ColorInfo
	if s.lr == nil {
		return info
	}
	for i := range info.CameraMultipliers {
		info.CameraMultipliers[i] = float32(s.lr.color.cam_mul[i])
	}
	return info
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}
