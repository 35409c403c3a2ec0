package pipeline

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultQuality is the export quality used when none is given.
const DefaultQuality = 0.9

// TempExportPattern names in-progress export files. Leftovers from a crash
// can be removed with RemoveTempExports.
const TempExportPattern = ".rawdevelop-export-*"

// ExportFileMode is the permission of written exports.
const ExportFileMode os.FileMode = 0o644

// Format is an export encoding.
type Format int

const (
	FormatJPEG Format = iota
	FormatPNG
)

func (f Format) String() string {
	if f == FormatPNG {
		return "png"
	}
	return "jpeg"
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// FormatForPath picks PNG for .png paths and JPEG otherwise.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return FormatPNG
	}
	return FormatJPEG
}

// JPEGQuality maps a quality in [0,1] to the encoder's 1..100 scale.
func JPEGQuality(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Encode writes b to w. quality applies to JPEG only.
func Encode(w io.Writer, b *Bitmap, format Format, quality float64) error {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return ErrInvalidQuality
	}
	img, err := b.ToImage()
	if err != nil {
		return err
	}
	return EncodeImage(w, img, format, quality)
}

// EncodeImage writes an already converted image, such as a preview, to w.
func EncodeImage(w io.Writer, img image.Image, format Format, quality float64) error {
	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return ErrInvalidQuality
	}
	if format == FormatPNG {
		return png.Encode(w, img)
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality(quality)})
}

// SaveAsEncoded writes b to path as JPEG (or PNG for .png paths). The file
// is written under a temporary name in the same directory and renamed into
// place, so a failure never leaves a truncated file at path. Errors are
// *EncodeError and are not retried.
func SaveAsEncoded(b *Bitmap, path string, quality float64) (err error) {
	fail := func(cause error) error { return &EncodeError{Path: path, Err: cause} }

	if math.IsNaN(quality) || quality < 0 || quality > 1 {
		return fail(ErrInvalidQuality)
	}
	if err := b.Validate(); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), TempExportPattern)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := Encode(tmp, b, FormatForPath(path), quality); err != nil {
		return fail(err)
	}
	// CreateTemp makes the file 0600; exports get the usual mode.
	if err := tmp.Chmod(ExportFileMode); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fail(err)
	}
	return nil
}

// RemoveTempExports deletes leftover in-progress export files in dir and
// returns how many were removed.
func RemoveTempExports(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, TempExportPattern))
	if err != nil {
		return 0, fmt.Errorf("glob temp exports: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	return removed, nil
}
