package pipeline

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"rawdevelop/rawruntime"
)

// Bitmap is a canonical render result: rows top to bottom, pixels left to
// right, samples in R, G, B order. 16-bit samples are little-endian.
type Bitmap struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Channels      int    `json:"channels"`
	BitsPerSample int    `json:"bits_per_sample"`
	Pix           []byte `json:"-"`
}

// BytesPerSample is 1 for 8-bit and 2 for 16-bit bitmaps.
func (b *Bitmap) BytesPerSample() int {
	return (b.BitsPerSample + 7) / 8
}

// Stride is the byte length of one row.
func (b *Bitmap) Stride() int {
	return b.Width * b.Channels * b.BytesPerSample()
}

// Validate checks geometry against the buffer length.
func (b *Bitmap) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil", ErrInvalidBitmap)
	}
	if b.Width <= 0 || b.Height <= 0 || b.Channels <= 0 {
		return fmt.Errorf("%w: %dx%d with %d channels", ErrInvalidBitmap, b.Width, b.Height, b.Channels)
	}
	if b.BitsPerSample != 8 && b.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrInvalidBitmap, b.BitsPerSample)
	}
	if want := b.Stride() * b.Height; len(b.Pix) < want {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidBitmap, len(b.Pix), want)
	}
	return nil
}

// SwapRedBlue exchanges the first and third sample of every pixel in place.
// It does nothing unless channels is 3. Applying it twice restores pix.
func SwapRedBlue(pix []byte, channels, bytesPerSample int) {
	if channels != 3 || bytesPerSample <= 0 {
		return
	}
	pixel := 3 * bytesPerSample
	far := 2 * bytesPerSample
	for i := 0; i+pixel <= len(pix); i += pixel {
		for k := 0; k < bytesPerSample; k++ {
			pix[i+k], pix[i+far+k] = pix[i+far+k], pix[i+k]
		}
	}
}

// Canonicalize copies a decoder-owned bitmap into an owned Bitmap, fixing
// three-channel sample order. img may be released as soon as it returns.
func Canonicalize(img *rawruntime.ProcessedImage) (*Bitmap, error) {
	b := &Bitmap{
		Width:         img.Width,
		Height:        img.Height,
		Channels:      img.Colors,
		BitsPerSample: img.Bits,
	}
	size := b.Stride() * b.Height
	if size <= 0 || len(img.Data) < size {
		return nil, fmt.Errorf("%w: decoder returned %d bytes for %dx%dx%d@%d",
			ErrInvalidBitmap, len(img.Data), img.Width, img.Height, img.Colors, img.Bits)
	}
	b.Pix = make([]byte, size)
	copy(b.Pix, img.Data[:size])
	SwapRedBlue(b.Pix, b.Channels, b.BytesPerSample())
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// ToImage converts b into a standard library image for encoding or scaling.
// Supported layouts are 1, 3 and 4 channels at 8 or 16 bits.
func (b *Bitmap) ToImage() (image.Image, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, b.Width, b.Height)
	bps := b.BytesPerSample()

	switch {
	case b.Channels == 1 && bps == 1:
		img := image.NewGray(rect)
		for y := 0; y < b.Height; y++ {
			copy(img.Pix[y*img.Stride:], b.Pix[y*b.Stride():(y+1)*b.Stride()])
		}
		return img, nil

	case b.Channels == 1 && bps == 2:
		img := image.NewGray16(rect)
		for i := 0; i < b.Width*b.Height; i++ {
			img.SetGray16(i%b.Width, i/b.Width, color.Gray16{Y: binary.LittleEndian.Uint16(b.Pix[2*i:])})
		}
		return img, nil

	case (b.Channels == 3 || b.Channels == 4) && bps == 1:
		img := image.NewRGBA(rect)
		for i, o := 0, 0; i < b.Width*b.Height; i, o = i+1, o+b.Channels {
			d := img.Pix[4*i : 4*i+4 : 4*i+4]
			d[0], d[1], d[2], d[3] = b.Pix[o], b.Pix[o+1], b.Pix[o+2], 0xff
			if b.Channels == 4 {
				d[3] = b.Pix[o+3]
			}
		}
		return img, nil

	case b.Channels == 3 && bps == 2:
		img := image.NewRGBA64(rect)
		for i, o := 0, 0; i < b.Width*b.Height; i, o = i+1, o+6 {
			img.SetRGBA64(i%b.Width, i/b.Width, color.RGBA64{
				R: binary.LittleEndian.Uint16(b.Pix[o:]),
				G: binary.LittleEndian.Uint16(b.Pix[o+2:]),
				B: binary.LittleEndian.Uint16(b.Pix[o+4:]),
				A: 0xffff,
			})
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: no image layout for %d channels at %d bits", ErrInvalidBitmap, b.Channels, b.BitsPerSample)
}
