package sampler

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// Channels is the number of colour channels in a Frame.
const Channels = 3

// Frame is a sampled, resized video frame with pixels stored as packed RGB.
type Frame struct {
	Index       int // position in the sampled sequence
	SourceIndex int // zero-based index of the decoded source frame
	Width       int
	Height      int
	Pix         []byte // RGB, row-major, len = Width*Height*Channels
}

// FrameSequence is the ordered output of one extraction.
type FrameSequence []*Frame

// RGB returns the colour of the pixel at (x, y).
func (f *Frame) RGB(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * Channels
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Image returns an RGBA copy of the frame, for encoders and hashers that need image.Image.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, j := 0, 0; i < len(f.Pix); i, j = i+Channels, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// newFrame resizes src to width x height and packs it as RGB.
func newFrame(src image.Image, width, height int) *Frame {
	b := src.Bounds()
	if b.Dx() != width || b.Dy() != height {
		src = resize.Resize(uint(width), uint(height), src, resize.Bilinear)
		b = src.Bounds()
	}

	f := &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}

	if rgba, ok := src.(*image.RGBA); ok {
		for y := 0; y < height; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			out := f.Pix[y*width*Channels:]
			for x := 0; x < width; x++ {
				out[x*Channels] = row[x*4]
				out[x*Channels+1] = row[x*4+1]
				out[x*Channels+2] = row[x*4+2]
			}
		}
		return f
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(src.At(x, y)).(color.RGBA)
			f.Pix[i] = c.R
			f.Pix[i+1] = c.G
			f.Pix[i+2] = c.B
			i += Channels
		}
	}
	return f
}
