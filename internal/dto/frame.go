package dto

import (
	"image"
	"time"
)

// Frame is an RGBA pixel snapshot of a camera frame (4 bytes per pixel, no row padding).
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// NewFrameFromImage copies any image into an RGBA frame.
func NewFrameFromImage(img image.Image, ts time.Time) Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				rgba.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}
	return Frame{
		Pix:       rgba.Pix,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Timestamp: ts,
	}
}

// Empty reports whether the frame carries no pixel data.
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) < 4*f.Width*f.Height
}

// RGBA wraps the pixel buffer without copying.
func (f Frame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: 4 * f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Crop copies the part of the frame inside r. The second result is false when
// r does not overlap the frame.
func (f Frame) Crop(r image.Rectangle) (Frame, bool) {
	r = r.Intersect(image.Rect(0, 0, f.Width, f.Height))
	if r.Empty() || f.Empty() {
		return Frame{}, false
	}
	if r.Min == (image.Point{}) && r.Dx() == f.Width && r.Dy() == f.Height {
		return f, true
	}

	stride := 4 * f.Width
	rowLen := 4 * r.Dx()
	pix := make([]byte, rowLen*r.Dy())
	for y := 0; y < r.Dy(); y++ {
		src := (r.Min.Y+y)*stride + 4*r.Min.X
		copy(pix[y*rowLen:(y+1)*rowLen], f.Pix[src:src+rowLen])
	}

	return Frame{
		Pix:       pix,
		Width:     r.Dx(),
		Height:    r.Dy(),
		Timestamp: f.Timestamp,
	}, true
}
