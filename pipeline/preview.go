package pipeline

import (
	"image"

	"golang.org/x/image/draw"
)

// Preview scales b so its longer edge is at most maxEdge, preserving aspect
// ratio, using Catmull-Rom resampling. maxEdge <= 0 or a bitmap already
// within bounds returns the full-size image.
func Preview(b *Bitmap, maxEdge int) (image.Image, error) {
	src, err := b.ToImage()
	if err != nil {
		return nil, err
	}
	w, h := b.Width, b.Height
	longest := max(w, h)
	if maxEdge <= 0 || longest <= maxEdge {
		return src, nil
	}

	scale := float64(maxEdge) / float64(longest)
	dw := max(1, int(float64(w)*scale+0.5))
	dh := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}
