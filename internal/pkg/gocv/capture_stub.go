//go:build !gocv

package gocv

import (
	"context"

	"videomoderation/internal/pkg/sampler"
)

// Opener is a stub when GoCV/OpenCV is not available
type Opener struct{}

// NewOpener creates a stub opener (requires building with -tags=gocv)
func NewOpener() *Opener {
	return &Opener{}
}

// Available reports whether this build links OpenCV.
func Available() bool { return false }

// Open returns ErrUnavailable
func (o *Opener) Open(ctx context.Context, path string) (sampler.VideoHandle, error) {
	return nil, ErrUnavailable
}

// Ensure Opener implements sampler.Opener
var _ sampler.Opener = (*Opener)(nil)
