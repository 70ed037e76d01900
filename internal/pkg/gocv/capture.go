//go:build gocv

package gocv

import (
	"context"
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"videomoderation/internal/pkg/sampler"
)

// Opener decodes videos in-process with OpenCV.
// It implements sampler.Opener.
type Opener struct{}

// NewOpener creates an OpenCV-backed Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Available reports whether this build links OpenCV.
func Available() bool { return true }

// Open opens the video at path.
func (o *Opener) Open(ctx context.Context, path string) (sampler.VideoHandle, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, err
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("opencv could not open %s", path)
	}
	return &capture{vc: vc, mat: gocv.NewMat()}, nil
}

type capture struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// Read decodes the next frame. OpenCV yields BGR; ToImage converts to RGBA.
func (c *capture) Read() (image.Image, error) {
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, io.EOF
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sampler.ErrDecode, err)
	}
	return img, nil
}

func (c *capture) FrameCount() int {
	return int(c.vc.Get(gocv.VideoCaptureFrameCount))
}

func (c *capture) Close() error {
	c.mat.Close()
	return c.vc.Close()
}
